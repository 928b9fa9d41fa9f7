// Package httpclient provides a configurable HTTP client with sensible
// defaults and helper methods for making HTTP requests.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

var (
	// ErrWrongStatusCode is returned when the server responds with an unexpected HTTP status code.
	ErrWrongStatusCode = errors.New("wrong status code")

	// ErrEmptyResponse is returned when the server response is nil and error is nil.
	ErrEmptyResponse = errors.New("empty response")
)

// Client wraps http.Client to provide additional functionality and configuration.
// It embeds the standard http.Client to expose all its methods while adding custom behavior.
type Client struct {
	http.Client
}

// New creates and returns a new Client instance configured with the given settings.
func New(cfg *Config) *Client {
	return &Client{
		http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   cfg.Dialer.Timeout,
					KeepAlive: cfg.Dialer.KeepAlive,
				}).DialContext,
				TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
			},
		},
	}
}

// SendRequest executes an HTTP request with the given method, URI, and
// optional body, and returns the response body. A response outside the
// 2xx range is an ErrWrongStatusCode error.
func (c *Client) SendRequest(ctx context.Context, method, uri string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return nil, err
	}

	res, err := c.Do(req)
	if err != nil {
		return nil, err
	}

	if res == nil {
		return nil, ErrEmptyResponse
	}

	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d %s", ErrWrongStatusCode, res.StatusCode, res.Status)
	}

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	return resBody, nil
}

// PostJSON posts body to uri with an application/json content type and
// returns the response body.
func (c *Client) PostJSON(ctx context.Context, uri string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := c.Do(req)
	if err != nil {
		return nil, err
	}

	if res == nil {
		return nil, ErrEmptyResponse
	}

	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d %s", ErrWrongStatusCode, res.StatusCode, res.Status)
	}

	return io.ReadAll(res.Body)
}
