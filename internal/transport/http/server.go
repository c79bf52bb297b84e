// Package http exposes the read-only reporting API over the partitioned
// store: symbol listings, per-expiry summaries, per-day aggregates, health
// and prometheus metrics. All mutation happens through the CLI pipeline.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fudata/internal/config"
)

// Server is the HTTP read surface.
type Server struct {
	cfg    config.ServerConfig
	srv    *http.Server
	logger *slog.Logger
}

// NewServer assembles the router and the underlying http.Server.
func NewServer(cfg config.ServerConfig, paths *config.Paths, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	health := NewHealthHandler(paths)
	data := NewDataHandler(paths, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/health", health.HealthCheck)
		r.Mount("/", data.Routes())
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logger,
	}
}

// Handler exposes the assembled router.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully within the
// configured timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down",
		slog.Duration("timeout", s.cfg.ShutdownTimeout))
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}
