package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/health"
	middleware "github.com/mohammed-shakir/sar-aoi-composer/internal/core/middleware"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/router"
)

type Options struct {
	Addr  string
	Ready map[string]health.Check
	// Metrics, when set, is served on MetricsPath of the API listener.
	Metrics     http.Handler
	MetricsPath string
}

// Handler builds the full HTTP surface: health endpoints plus the /v1 API.
func Handler(logger *slog.Logger, api *router.API, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(opts.Ready))
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, opts.Metrics)
	}
	r.Mount("/v1", api.Routes())
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, logger *slog.Logger, api *router.API, opts Options) error {
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           Handler(logger, api, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// composites with stats wait on the imagery service
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", opts.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
