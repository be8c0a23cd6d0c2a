package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/config"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/health"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/observability"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/router"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/server"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/metrics"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (env ADDR)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	log := a.logger(os.Stdout, "server")

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	p := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Strategy:  cfg.Strategy,
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	metricsHandler := apiMetrics(cfg.Metrics, cfg.Addr, p)
	if cfg.Metrics.Enabled {
		observability.Init(p.Registerer(), true)
	} else {
		observability.Init(nil, false)
	}
	if cfg.Metrics.Enabled && metricsHandler == nil {
		go func() {
			log.Info("metrics listen", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
			if err := p.Serve(ctx); err != nil {
				log.Error("metrics server exited", "err", err)
			}
		}()
	}
	observability.ExposeBuildInfo(Version)

	svcs, err := a.services(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := svcs.close(); err != nil {
			log.Warn("shutdown", "err", err)
		}
	}()

	log.Info("starting sarctl",
		"addr", cfg.Addr,
		"version", Version,
		"imagery", cfg.ImageryURL,
		"strategy", cfg.Strategy,
		"data_dir", cfg.DataDir)

	api := &router.API{
		Areas:   a.areas(log),
		Ranges:  a.ranges(log),
		Planner: svcs.planner,
		Log:     log,
	}
	if err := server.Run(ctx, log, api, server.Options{
		Addr:        cfg.Addr,
		Ready:       svcs.ready,
		Metrics:     metricsHandler,
		MetricsPath: cfg.Metrics.Path,
	}); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// apiMetrics returns the handler to mount on the API listener, or nil when
// metrics are off or have a listener of their own.
func apiMetrics(cfg config.MetricsCfg, apiAddr string, p *metrics.Provider) http.Handler {
	if !cfg.Enabled || !cfg.SharesListener(apiAddr) {
		return nil
	}
	return p.Handler()
}

func dataDirCheck(dir string) health.Check {
	return func(context.Context) error {
		fi, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return errors.New(dir + " is not a directory")
		}
		return nil
	}
}
