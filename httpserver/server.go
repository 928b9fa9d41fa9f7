// Package httpserver exposes the operations surface of a job registry:
// list and inspect delayed jobs, trigger them by hand and terminate
// them. The server is deliberately small; it serves JSON only and
// knows nothing beyond the registry it was built around.
package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/outdead/jobkit/delayedjob"
)

// ShutdownTimeout bounds the graceful stop of in-flight requests.
const ShutdownTimeout = 10 * time.Second

// ErrNotServing is returned by Close when the server was never started
// or is already closed.
var ErrNotServing = errors.New("httpserver: not serving")

// Logger describes the minimal logging interface required by the Server.
type Logger interface {
	Infof(format string, args ...interface{})
	Debug(args ...interface{})
	Error(args ...interface{})
}

type Option func(s *Server)

// WithCORS enables permissive CORS on the ops endpoints.
func WithCORS() Option {
	return func(s *Server) {
		s.cors = true
	}
}

// WithRecover guards handlers with echo's recover middleware.
func WithRecover() Option {
	return func(s *Server) {
		s.recover = true
	}
}

// Server serves the job operations API over one registry.
type Server struct {
	registry *delayedjob.Registry
	logger   Logger
	echo     *echo.Echo

	cors    bool
	recover bool

	quit chan struct{}
	wg   sync.WaitGroup
}

// New allocates a Server around reg. The listener is not started until
// Serve is called.
func New(reg *delayedjob.Registry, log Logger, options ...Option) *Server {
	s := &Server{
		registry: reg,
		logger:   log,
	}

	for _, option := range options {
		option(s)
	}

	s.echo = s.newEcho()

	return s
}

// Serve starts the listener on port and returns immediately. A failed
// start is logged; the ops surface is not worth taking a service down.
func (s *Server) Serve(port string) {
	s.quit = make(chan struct{})

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		<-s.quit
		s.logger.Debug("httpserver: stopping...")

		ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(ctx); err != nil {
			s.logger.Error("httpserver: shutdown:", err)
		}
	}()

	go func() {
		if err := s.echo.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("httpserver: start:", err)
		}
	}()

	s.logger.Infof("http server started on port %s", port)
}

// Close stops accepting requests, drains in-flight ones and waits for
// the shutdown to finish.
func (s *Server) Close() error {
	if s.quit == nil {
		return ErrNotServing
	}

	select {
	case <-s.quit:
		return ErrNotServing
	default:
		close(s.quit)
	}

	s.wg.Wait()
	s.logger.Debug("httpserver: stopped")

	return nil
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(io.Discard)

	if s.cors {
		e.Use(middleware.CORS())
	}

	if s.recover {
		e.Use(middleware.Recover())
	}

	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = s.handleError

	s.routes(e)

	return e
}

// handleError turns any error escaping a handler into the JSON error
// body the ops endpoints promise.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := toErrorResponse(err)

	if status == http.StatusInternalServerError {
		s.logger.Error("httpserver:", err)
	}

	if err := c.JSON(status, body); err != nil {
		s.logger.Error("httpserver: serve error:", err)
	}
}
