// Package server exposes the operational HTTP endpoints for a crawl run.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shopharvest/shopharvest/internal/metrics"
)

// Server hosts /metrics and /healthz while a crawl is running.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// New builds the operational server on the given port.
func New(port int, logger *zap.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", metrics.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in a background goroutine. Listen failures are logged, not
// fatal; a crawl run does not depend on the metrics endpoint.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}
