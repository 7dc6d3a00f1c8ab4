package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/portway-io/portway/internal/logger"
)

// Server exposes the Prometheus registry over HTTP.
//
// Endpoints:
//   - GET /metrics: Prometheus text exposition
//
// The server supports graceful shutdown and runs on its own port so that
// scrape traffic never competes with gateway traffic.
type Server struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once
}

// NewServer creates a metrics HTTP server for the process-wide registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewServer(port int) *Server {
	if !IsEnabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		port: port,
	}
}

// Start starts the metrics server and blocks until the context is cancelled
// or an error occurs. Safe to call on a nil receiver (returns immediately).
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		<-ctx.Done()
		return nil
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", "port", s.port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and on a
// nil receiver.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
		} else {
			logger.Info("Metrics server stopped gracefully")
		}
	})
	return shutdownErr
}
