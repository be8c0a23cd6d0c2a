package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/cache"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/cache/redisstore"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/cache/resultcache"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/composite"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/health"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/httpclient"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/observability"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/exportevents"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/imagery"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/logger"
	h3mapper "github.com/mohammed-shakir/sar-aoi-composer/internal/mapper/h3"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/planner"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/store/areastore"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/store/timerange"
)

func (a *app) logger(out io.Writer, component string) *slog.Logger {
	zl := logger.Build(logger.Config{
		Level:     a.cfg.LogLevel,
		Console:   a.cfg.LogConsole,
		SampleN:   a.cfg.LogSampleN,
		Strategy:  a.cfg.Strategy,
		Component: component,
	}, out)
	return logger.NewSlog(&zl)
}

func (a *app) areas(log *slog.Logger) *areastore.Store {
	return areastore.New(a.cfg.AOIFile, log)
}

func (a *app) ranges(log *slog.Logger) *timerange.Store {
	return timerange.New(a.cfg.TimeRangeFile, log)
}

// services is everything a query needs; close releases the cache and the
// event producer.
type services struct {
	planner *planner.Planner
	ready   map[string]health.Check
	closers []io.Closer
}

func (s *services) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

func (a *app) services(ctx context.Context, log *slog.Logger) (*services, error) {
	cfg := a.cfg
	observability.SetStrategy(cfg.Strategy)

	svc, err := imagery.New(log, httpclient.NewOutbound(cfg.ImageryTimeout), cfg.ImageryURL, cfg.ImageryToken)
	if err != nil {
		return nil, err
	}
	builder, err := composite.New(cfg.Strategy, composite.Options{})
	if err != nil {
		return nil, err
	}

	out := &services{ready: map[string]health.Check{
		"data_dir": dataDirCheck(cfg.DataDir),
	}}
	opts := []planner.Option{
		planner.WithLogger(log),
		planner.WithMapper(h3mapper.New()),
	}

	if cfg.Cache.Enabled {
		var remote cache.Remote
		if cfg.Cache.RedisAddr != "" {
			rc, err := redisstore.New(ctx, cfg.Cache.RedisAddr)
			if err != nil {
				// results still memoise in process
				log.Warn("redis unavailable, using local cache only", "addr", cfg.Cache.RedisAddr, "err", err)
			} else {
				remote = rc
				out.closers = append(out.closers, rc)
				out.ready["redis"] = rc.Ping
			}
		}
		opts = append(opts, planner.WithCache(resultcache.New(resultcache.Config{
			Size:      cfg.Cache.LRUSize,
			TTL:       cfg.Cache.TTL,
			OpTimeout: cfg.Cache.OpTimeout,
		}, remote, log)))
	}

	if cfg.ExportEvents.Enabled {
		pub, err := exportevents.NewPublisher(cfg.ExportEvents.BrokerList(), cfg.ExportEvents.Topic, cfg.ExportEvents.Queue, log)
		if err != nil {
			_ = out.close()
			return nil, err
		}
		out.closers = append(out.closers, pub)
		opts = append(opts, planner.WithEvents(pub))
	}

	p, err := planner.New(svc, builder, planner.Config{
		ItemSizeMB: cfg.ItemSizeMB,
		H3Res:      cfg.H3Res,
	}, opts...)
	if err != nil {
		_ = out.close()
		return nil, err
	}
	out.planner = p
	return out, nil
}
