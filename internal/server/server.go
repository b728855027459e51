package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"dday-scheduler/internal/common/logging"
)

// Server represents an HTTP server
type Server struct {
	srv    *http.Server
	logger logging.Logger
}

// New creates a new server instance
func New(handler http.Handler, port int, logger logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + strconv.Itoa(port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logging.OrGlobal(logger),
	}
}

// Start binds the listener and serves in the background. Bind errors are
// returned; later serve errors are sent on the returned channel.
func (s *Server) Start() (<-chan error, error) {
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, err
	}
	return s.Serve(listener), nil
}

// Serve serves on listener in the background
func (s *Server) Serve(listener net.Listener) <-chan error {
	errCh := make(chan error, 1)
	s.logger.Info("Server listening", logging.String("address", listener.Addr().String()))

	go func() {
		defer close(errCh)
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
