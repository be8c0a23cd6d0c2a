// Package planner validates archive queries, previews them cheaply and turns
// them into composites through the configured strategy.
package planner

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/cache/resultcache"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/composite"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/daterange"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/geom"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/observability"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/exportevents"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/imagery"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/logger"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/mapper"
)

const (
	DefaultCollection     = "COPERNICUS/S1_GRD"
	DefaultInstrumentMode = "IW"
	// DefaultItemSizeMB is an uncalibrated per-item payload estimate.
	DefaultItemSizeMB = 2.0
	DefaultH3Res      = 7
)

type Config struct {
	Collection     string
	InstrumentMode string
	ItemSizeMB     float64
	// H3Res is the coverage resolution reported by Preview; export events
	// carry cells coarsened by eventResDelta.
	H3Res int
}

const eventResDelta = 2

// Query is one request-scoped archive query.
type Query struct {
	Ring      model.Ring      `json:"ring"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	OrbitPass model.OrbitPass `json:"orbit_pass,omitempty"`
	// Area names the AOI the ring came from, if any.
	Area string `json:"area,omitempty"`
}

type Planner struct {
	svc     imagery.Service
	builder composite.Builder
	cfg     Config

	mapper mapper.Interface
	cache  *resultcache.Cache
	events exportevents.Sink
	log    *slog.Logger
	now    func() time.Time
}

type Option func(*Planner)

func WithMapper(m mapper.Interface) Option { return func(p *Planner) { p.mapper = m } }

func WithCache(c *resultcache.Cache) Option { return func(p *Planner) { p.cache = c } }

func WithEvents(s exportevents.Sink) Option { return func(p *Planner) { p.events = s } }

func WithLogger(l *slog.Logger) Option { return func(p *Planner) { p.log = l } }

func WithClock(now func() time.Time) Option { return func(p *Planner) { p.now = now } }

func New(svc imagery.Service, builder composite.Builder, cfg Config, opts ...Option) (*Planner, error) {
	if svc == nil {
		return nil, errors.New("planner: imagery service is required")
	}
	if builder == nil {
		return nil, errors.New("planner: composite builder is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.InstrumentMode == "" {
		cfg.InstrumentMode = DefaultInstrumentMode
	}
	if cfg.ItemSizeMB <= 0 {
		cfg.ItemSizeMB = DefaultItemSizeMB
	}
	if cfg.H3Res < 0 || cfg.H3Res > 15 {
		cfg.H3Res = DefaultH3Res
	}
	p := &Planner{
		svc:     svc,
		builder: builder,
		cfg:     cfg,
		events:  exportevents.Discard{},
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Planner) Strategy() string { return p.builder.Name() }

// ValidateDates parses both dates; start must be strictly before end.
func (p *Planner) ValidateDates(start, end string) (time.Time, time.Time, error) {
	return daterange.Parse(start, end)
}

// Filter resolves the canonical filter descriptor for a ring and date range.
// No remote call is made.
func (p *Planner) Filter(ring model.Ring, start, end string) (model.Filter, error) {
	return p.filter(Query{Ring: ring, StartDate: start, EndDate: end})
}

// QueryFilter is Filter for a full query, orbit pass included.
func (p *Planner) QueryFilter(q Query) (model.Filter, error) { return p.filter(q) }

func (p *Planner) filter(q Query) (model.Filter, error) {
	closed, err := geom.Normalize(q.Ring)
	if err != nil {
		return model.Filter{}, err
	}
	s, e, err := p.ValidateDates(q.StartDate, q.EndDate)
	if err != nil {
		return model.Filter{}, err
	}
	switch q.OrbitPass {
	case model.OrbitAny, model.OrbitAscending, model.OrbitDescending:
	default:
		return model.Filter{}, apperr.InvalidArgument("orbit_pass", "unknown orbit pass %q", q.OrbitPass)
	}
	pols := slices.Clone(p.builder.Polarizations())
	sort.Strings(pols)
	return model.Filter{
		Collection:     p.cfg.Collection,
		Polarizations:  pols,
		InstrumentMode: p.cfg.InstrumentMode,
		OrbitPass:      q.OrbitPass,
		Ring:           closed,
		StartDate:      daterange.Format(s),
		EndDate:        daterange.Format(e),
	}, nil
}

// Preview validates locally, then asks the service for the match count and
// the geometry measure. It never touches a store and is never cached.
func (p *Planner) Preview(ctx context.Context, q Query) (pv model.QueryPreview, err error) {
	ctx = logger.WithOperation(ctx, "preview")
	defer func() { p.outcome(ctx, "preview", err) }()

	f, err := p.filter(q)
	if err != nil {
		return model.QueryPreview{}, err
	}
	n, err := p.svc.Count(ctx, f)
	if err != nil {
		return model.QueryPreview{}, err
	}
	observability.ObserveMatched("preview", n)
	m, err := p.svc.Measure(ctx, f.Ring)
	if err != nil {
		return model.QueryPreview{}, err
	}

	pv = model.QueryPreview{
		AreaKm2:         m.AreaKm2,
		BBox:            m.Bounds(),
		StartDate:       q.StartDate,
		EndDate:         q.EndDate,
		Count:           n,
		EstimatedSizeMB: float64(n) * p.cfg.ItemSizeMB,
		Filter:          f,
		H3Res:           p.cfg.H3Res,
	}
	if cells := p.coverage(ctx, f.Ring, p.cfg.H3Res); cells != nil {
		pv.CoverageCells = len(cells)
	}
	return pv, nil
}

// Execute repeats validation, counts the matches and delegates to the
// builder. Zero matches return ErrNoData and the builder is not called.
func (p *Planner) Execute(ctx context.Context, q Query) (res composite.Result, err error) {
	ctx = logger.WithOperation(ctx, "execute")
	defer func() { p.outcome(ctx, "execute", err) }()

	f, err := p.filter(q)
	if err != nil {
		return composite.Result{}, err
	}
	n, err := p.svc.Count(ctx, f)
	if err != nil {
		return composite.Result{}, err
	}
	observability.ObserveMatched("execute", n)
	if n == 0 {
		return composite.Result{}, apperr.NoData(f.StartDate, f.EndDate)
	}
	return p.builder.Build(ctx, composite.Input{Filter: f, Count: n, BBox: geom.Bounds(f.Ring)})
}

// coverage returns nil when no mapper is configured or mapping fails; the
// cell count is informative only.
func (p *Planner) coverage(ctx context.Context, ring model.Ring, res int) []string {
	if p.mapper == nil {
		return nil
	}
	cells, err := p.mapper.CellsForRing(ring, res)
	if err != nil {
		p.log.WarnContext(ctx, "h3 coverage failed", "res", res, "err", err)
		return nil
	}
	return cells
}

func (p *Planner) outcome(ctx context.Context, op string, err error) {
	var outcome string
	switch {
	case err == nil:
		outcome = "ok"
	case errors.Is(err, apperr.ErrNoData):
		outcome = "no_data"
	case apperr.IsRemote(err):
		outcome = "remote_error"
	default:
		outcome = "invalid"
	}
	observability.IncPlanner(op, outcome)
	if err != nil && outcome != "no_data" {
		p.log.WarnContext(ctx, "planner call failed", "op", op, "outcome", outcome,
			"code", string(apperr.CodeOf(err)), "err", err)
	}
}
