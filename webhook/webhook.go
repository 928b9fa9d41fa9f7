// Package webhook pushes job failure events to an HTTP endpoint. The
// Notifier implements the delayedjob Metrics interface, so it plugs
// into a job with the metrics option; clean runs are ignored, failed
// and panicking runs are posted as JSON, fire and forget.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/outdead/jobkit/httpclient"
)

// DefaultTimeout bounds a single delivery when the config leaves the
// timeout unset.
const DefaultTimeout = 5 * time.Second

// ErrEmptyURL is returned by New when the config has no endpoint.
var ErrEmptyURL = errors.New("webhook: empty url")

// Logger describes the minimal logging interface required by the
// Notifier.
type Logger interface {
	Debug(args ...interface{})
	Error(args ...interface{})
}

// Config represents the webhook endpoint settings.
type Config struct {
	URL     string        `json:"url"     yaml:"url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// Event is the JSON body posted for one failed run.
type Event struct {
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error"`
}

// Notifier delivers failure events. Safe for concurrent use.
type Notifier struct {
	url     string
	timeout time.Duration
	client  *httpclient.Client
	logger  Logger
	wg      sync.WaitGroup
}

// New creates a Notifier posting to cfg.URL.
func New(cfg *Config, l Logger) (*Notifier, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, ErrEmptyURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Notifier{
		url:     cfg.URL,
		timeout: timeout,
		client:  httpclient.New(&httpclient.Config{Timeout: timeout}),
		logger:  l,
	}, nil
}

// Observe implements the metrics hook: failed runs are posted
// asynchronously, clean runs are dropped.
func (n *Notifier) Observe(job string, start time.Time, duration time.Duration, err error) {
	if err == nil {
		return
	}

	event := Event{
		Job:        job,
		StartedAt:  start,
		DurationMS: duration.Milliseconds(),
		Error:      err.Error(),
	}

	n.wg.Add(1)

	go func() {
		defer n.wg.Done()

		n.post(event)
	}()
}

// Close waits for in-flight deliveries to finish.
func (n *Notifier) Close() error {
	n.wg.Wait()

	return nil
}

func (n *Notifier) post(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("webhook: marshal event:", err)

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if _, err := n.client.PostJSON(ctx, n.url, body); err != nil {
		n.logger.Error("webhook: deliver event:", err)

		return
	}

	n.logger.Debug("webhook: delivered failure of " + event.Job)
}
