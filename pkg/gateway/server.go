package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/portway-io/portway/internal/logger"
)

// Server is the gateway HTTP server. It owns nothing but the listener; the
// dispatcher and its dependencies are built by the caller so tests can run
// the router without a socket.
type Server struct {
	server          *http.Server
	cfg             Config
	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
}

// NewServer creates the gateway server around a dispatcher. The server is
// created stopped; call Start to begin serving.
func NewServer(cfg Config, d *Dispatcher) *Server {
	cfg.ApplyDefaults()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      d.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		server:          server,
		cfg:             cfg,
		shutdownTimeout: 10 * time.Second,
	}
}

// SetShutdownTimeout bounds how long Stop waits for in-flight requests to
// drain after the context is cancelled.
func (s *Server) SetShutdownTimeout(d time.Duration) {
	if d > 0 {
		s.shutdownTimeout = d
	}
}

// Start serves requests until the context is cancelled or the listener
// fails. Cancellation triggers graceful shutdown and returns nil.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "port", s.cfg.Port, "prefix", s.cfg.Prefix)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("gateway shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("gateway server failed: %w", err)
	}
}

// Stop drains in-flight requests and closes the listener. Safe to call more
// than once and concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("gateway shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("gateway shutdown error: %w", err)
			logger.Error("gateway shutdown error", logger.Err(err))
		} else {
			logger.Info("gateway stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.cfg.Port
}
