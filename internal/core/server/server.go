// Package server assembles the geoviewd route tree and runs the HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/geoview/internal/core/config"
	"github.com/mohammed-shakir/geoview/internal/core/health"
	middleware "github.com/mohammed-shakir/geoview/internal/core/middleware"
	"github.com/mohammed-shakir/geoview/internal/core/router"
)

const shutdownGrace = 10 * time.Second

type Options struct {
	// Metrics serves MetricsPath; nil falls back to the default registry.
	Metrics     http.Handler
	MetricsPath string
	Checks      []health.Check
	// RequestTimeout bounds API requests; probes and metrics are exempt.
	RequestTimeout time.Duration
}

// NewHandler builds the full route tree.
func NewHandler(logger *slog.Logger, api *router.API, opts Options) http.Handler {
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}

	r := chi.NewRouter()
	r.Use(middleware.Recover(logger), middleware.Logging(logger), middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(2*time.Second, opts.Checks...))
	r.Method(http.MethodGet, opts.MetricsPath, opts.Metrics)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestTimeout(opts.RequestTimeout))
		api.Routes(r)
	})
	return r
}

// Run serves handler on cfg.Addr until ctx is done, then drains in-flight
// requests for up to shutdownGrace.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	case <-ctx.Done():
	}

	logger.Info("http shutdown", "grace", shutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
