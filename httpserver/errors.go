package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrJobNotFound is returned by the job endpoints for an unknown name.
var ErrJobNotFound = errors.New("job not found")

// ErrorResponse is the JSON body served for a failed request.
type ErrorResponse struct {
	Error         string         `json:"error"`
	InvalidParams []InvalidParam `json:"invalid_params,omitempty"`
}

// InvalidParam names one request field that failed validation.
type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// toErrorResponse maps a handler error to its HTTP status and body.
// Unknown errors stay opaque: the detail goes to the log, not the
// client.
func toErrorResponse(err error) (int, ErrorResponse) {
	var (
		reqErr  *RequestError
		httpErr *echo.HTTPError
	)

	switch {
	case errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error()}
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, ErrorResponse{
			Error:         "request validation failed",
			InvalidParams: reqErr.Params,
		}
	case errors.As(err, &httpErr):
		msg, _ := httpErr.Message.(string)
		if msg == "" {
			msg = http.StatusText(httpErr.Code)
		}

		return httpErr.Code, ErrorResponse{Error: msg}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error"}
	}
}
