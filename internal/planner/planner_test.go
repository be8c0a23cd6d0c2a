package planner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/cache/resultcache"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/composite"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/exportevents"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/imagery"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/imagery/imagerytest"
	h3mapper "github.com/mohammed-shakir/sar-aoi-composer/internal/mapper/h3"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/store/areastore"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/store/timerange"
)

var (
	fieldA = model.Ring{{25.0, 54.6}, {25.1, 54.6}, {25.1, 54.7}, {25.0, 54.7}}
	now    = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
)

// countingBuilder wraps a real strategy and counts Build calls.
type countingBuilder struct {
	composite.Builder
	mu    sync.Mutex
	calls int
	last  composite.Input
}

func (b *countingBuilder) Build(ctx context.Context, in composite.Input) (composite.Result, error) {
	b.mu.Lock()
	b.calls++
	b.last = in
	b.mu.Unlock()
	return b.Builder.Build(ctx, in)
}

type recordingSink struct {
	mu     sync.Mutex
	events []exportevents.Event
}

func (s *recordingSink) Publish(ev exportevents.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

type fixture struct {
	p       *Planner
	fake    *imagerytest.Fake
	builder *countingBuilder
	sink    *recordingSink
}

func newFixture(t *testing.T, strategy string, count int) fixture {
	t.Helper()
	inner, err := composite.New(strategy, composite.Options{Now: func() time.Time { return now }})
	require.NoError(t, err)

	f := fixture{
		fake:    imagerytest.New(count),
		builder: &countingBuilder{Builder: inner},
		sink:    &recordingSink{},
	}
	f.p, err = New(f.fake, f.builder, Config{ItemSizeMB: 2.0, H3Res: 7},
		WithMapper(h3mapper.New()),
		WithCache(resultcache.New(resultcache.Config{Size: 16, TTL: time.Minute}, nil, nil)),
		WithEvents(f.sink),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	return f
}

func query() Query {
	return Query{Ring: fieldA, StartDate: "2024-01-01", EndDate: "2024-02-01", Area: "Field A"}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	b, err := composite.New(composite.SingleVVMean, composite.Options{})
	require.NoError(t, err)
	_, err = New(nil, b, Config{})
	assert.Error(t, err)
	_, err = New(imagerytest.New(1), nil, Config{})
	assert.Error(t, err)

	p, err := New(imagerytest.New(1), b, Config{H3Res: 99})
	require.NoError(t, err)
	assert.Equal(t, DefaultCollection, p.cfg.Collection)
	assert.Equal(t, DefaultItemSizeMB, p.cfg.ItemSizeMB)
	assert.Equal(t, DefaultH3Res, p.cfg.H3Res)
	assert.Equal(t, composite.SingleVVMean, p.Strategy())
}

func TestFilter_CanonicalDescriptor(t *testing.T) {
	fx := newFixture(t, composite.DirectionalMax, 3)

	f, err := fx.p.Filter(fieldA, "2024-01-01", "2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, "COPERNICUS/S1_GRD", f.Collection)
	assert.Equal(t, "IW", f.InstrumentMode)
	assert.Equal(t, []string{"VH", "VV"}, f.Polarizations)
	assert.Equal(t, model.OrbitAny, f.OrbitPass)
	assert.Len(t, f.Ring, 5, "ring is closed")

	preds := f.Predicates()
	require.Len(t, preds, 5)
	assert.Equal(t, model.PredBounds, preds[0].Kind)
	assert.Equal(t, model.PredDate, preds[1].Kind)
	assert.Equal(t, "VH", preds[3].Value)
	assert.Equal(t, "VV", preds[4].Value)
	assert.Zero(t, fx.fake.CallCount("count"), "Filter is local only")
}

func TestLocalValidation_FailsBeforeRemote(t *testing.T) {
	fx := newFixture(t, composite.SingleVVMean, 3)
	ctx := context.Background()

	cases := map[string]struct {
		q    Query
		want error
	}{
		"reversed dates": {Query{Ring: fieldA, StartDate: "2024-02-01", EndDate: "2024-01-01"}, apperr.ErrInvalidDateRange},
		"equal dates":    {Query{Ring: fieldA, StartDate: "2024-02-01", EndDate: "2024-02-01"}, apperr.ErrInvalidDateRange},
		"bad format":     {Query{Ring: fieldA, StartDate: "1/2/2024", EndDate: "2024-03-01"}, apperr.ErrInvalidDateRange},
		"two points":     {Query{Ring: fieldA[:2], StartDate: "2024-01-01", EndDate: "2024-02-01"}, apperr.ErrInvalidGeometry},
		"orbit":          {Query{Ring: fieldA, StartDate: "2024-01-01", EndDate: "2024-02-01", OrbitPass: "SIDEWAYS"}, apperr.ErrInvalidArgument},
	}
	for name, tc := range cases {
		_, err := fx.p.Preview(ctx, tc.q)
		assert.True(t, errors.Is(err, tc.want), "preview %s: %v", name, err)
		_, err = fx.p.Execute(ctx, tc.q)
		assert.True(t, errors.Is(err, tc.want), "execute %s: %v", name, err)
	}
	assert.Zero(t, fx.fake.CallCount("count"))
	assert.Zero(t, fx.fake.CallCount("measure"))
	assert.Zero(t, fx.builder.calls)
}

func TestPreview_Summary(t *testing.T) {
	fx := newFixture(t, composite.SingleVVMean, 12)

	pv, err := fx.p.Preview(context.Background(), query())
	require.NoError(t, err)
	assert.Equal(t, 12, pv.Count)
	assert.InDelta(t, 24.0, pv.EstimatedSizeMB, 1e-9)
	assert.Equal(t, "2024-01-01", pv.StartDate)
	assert.Equal(t, "2024-02-01", pv.EndDate)
	assert.InDelta(t, 71, pv.AreaKm2, 6)
	assert.Equal(t, 25.0, pv.BBox.X1)
	assert.Equal(t, 54.7, pv.BBox.Y2)
	assert.Equal(t, 7, pv.H3Res)
	assert.Greater(t, pv.CoverageCells, 0)
	assert.Equal(t, []string{"VV"}, fx.fake.LastFilter.Polarizations)
	assert.Zero(t, fx.builder.calls)
}

func TestPreview_NeverMutatesStores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	areas := areastore.New(filepath.Join(dir, "aois.geojson"), nil)
	ranges := timerange.New(filepath.Join(dir, "timeranges.json"), nil)
	require.NoError(t, areas.Add(ctx, "Field A", fieldA, ""))
	require.NoError(t, ranges.Save(ctx, "Q1", "2024-01-01", "2024-03-31"))

	read := func() (string, string) {
		a, err := os.ReadFile(areas.Path())
		require.NoError(t, err)
		r, err := os.ReadFile(ranges.Path())
		require.NoError(t, err)
		return string(a), string(r)
	}
	a0, r0 := read()

	fx := newFixture(t, composite.DirectionalMax, 4)
	area, err := areas.Get(ctx, "Field A")
	require.NoError(t, err)
	tr, err := ranges.Get(ctx, "Q1")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := fx.p.Preview(ctx, Query{Ring: area.Ring, StartDate: tr.StartDate, EndDate: tr.EndDate})
		require.NoError(t, err)
	}

	a1, r1 := read()
	assert.Equal(t, a0, a1)
	assert.Equal(t, r0, r1)
	assert.Equal(t, 5, fx.fake.CallCount("count"), "preview is never cached")
}

func TestExecute_ZeroMatchesIsNoDataAndSkipsBuilder(t *testing.T) {
	for _, strategy := range composite.Names() {
		fx := newFixture(t, strategy, 0)

		_, err := fx.p.Execute(context.Background(), query())
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrNoData), "%s: %v", strategy, err)
		assert.False(t, apperr.IsRemote(err))
		assert.Equal(t, 200, apperr.HTTPStatus(err))
		assert.Zero(t, fx.builder.calls, "%s: builder must not run on an empty set", strategy)
	}
}

func TestExecute_DelegatesToBuilder(t *testing.T) {
	fx := newFixture(t, composite.DirectionalMax, 9)

	q := query()
	q.OrbitPass = model.OrbitDescending
	res, err := fx.p.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.builder.calls)
	assert.Equal(t, 9, fx.builder.last.Count)
	assert.Equal(t, model.OrbitDescending, fx.builder.last.Filter.OrbitPass)
	assert.Equal(t, 54.6, fx.builder.last.BBox.Y1)

	assert.Equal(t, composite.DirectionalMax, res.Strategy)
	assert.Equal(t, 9, res.SourceCount)
	assert.Equal(t, []string{composite.BandVVDesc, composite.BandVHMax}, res.Bands)
}

func TestExecute_OrbitPassReachesEveryCollection(t *testing.T) {
	for _, pass := range []model.OrbitPass{model.OrbitAscending, model.OrbitDescending} {
		fx := newFixture(t, composite.DirectionalMax, 4)
		q := query()
		q.OrbitPass = pass

		res, err := fx.p.Execute(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, pass, fx.fake.LastFilter.OrbitPass, "count saw the pass")

		collections := 0
		res.Image.Walk(func(e imagery.Expr) {
			if e.Op != imagery.OpCollection {
				return
			}
			collections++
			var got []string
			for _, p := range e.Params["predicates"].([]model.Predicate) {
				if p.Property == model.PropOrbitPass {
					got = append(got, p.Value.(string))
				}
			}
			assert.Equal(t, []string{string(pass)}, got)
		})
		assert.Positive(t, collections)
		assert.Len(t, res.Bands, 2)
	}

	fx := newFixture(t, composite.DirectionalMax, 4)
	res, err := fx.p.Execute(context.Background(), query())
	require.NoError(t, err)
	assert.Equal(t, []string{composite.BandVVAsc, composite.BandVVDesc, composite.BandVHMax}, res.Bands)
}

func TestRemoteErrors_Propagate(t *testing.T) {
	fx := newFixture(t, composite.SingleVVMean, 5)
	fx.fake.Fail["count"] = errors.New("quota exceeded")

	_, err := fx.p.Execute(context.Background(), query())
	require.Error(t, err)
	var re *apperr.RemoteServiceError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "count", re.Op)
	assert.False(t, errors.Is(err, apperr.ErrNoData))
	assert.Zero(t, fx.builder.calls)

	delete(fx.fake.Fail, "count")
	fx.fake.Fail["measure"] = errors.New("auth")
	_, err = fx.p.Preview(context.Background(), query())
	assert.True(t, apperr.IsRemote(err))
	assert.Equal(t, 502, apperr.HTTPStatus(err))
}

func TestStatistics_PhysicalUnitsAndMemoised(t *testing.T) {
	fx := newFixture(t, composite.DirectionalMax, 2)
	ctx := context.Background()
	res, err := fx.p.Execute(ctx, query())
	require.NoError(t, err)

	st, err := fx.p.Statistics(ctx, res, fieldA)
	require.NoError(t, err)
	assert.Equal(t, -12.5, st["VV_mean"])

	req := fx.fake.LastReduce
	assert.Equal(t, StatsReducers, req.Reducers)
	assert.Equal(t, 30.0, req.ScaleM)
	assert.Equal(t, 1e9, req.MaxPixels)
	assert.Equal(t, imagery.OpUnitScale, req.Image.Op, "stats are computed in dB")

	_, err = fx.p.Statistics(ctx, res, append(model.Ring{}, append(fieldA, fieldA[0])...))
	require.NoError(t, err)
	assert.Equal(t, 1, fx.fake.CallCount("reduce_region"))

	fx.fake.Fail["reduce_region"] = errors.New("boom")
	_, err = fx.p.Statistics(ctx, res, model.Ring{{1, 1}, {2, 1}, {2, 2}})
	assert.True(t, apperr.IsRemote(err))
}

func TestTileURL_Memoised(t *testing.T) {
	fx := newFixture(t, composite.SingleVVMean, 2)
	ctx := context.Background()
	res, err := fx.p.Execute(ctx, query())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		u, err := fx.p.TileURL(ctx, res)
		require.NoError(t, err)
		assert.Equal(t, "https://tiles.test/{z}/{x}/{y}", u)
	}
	assert.Equal(t, 1, fx.fake.CallCount("tiles"))
	assert.Equal(t, res.Image.Fingerprint(), fx.fake.LastTileImg.Fingerprint())
}

func TestForget_RefetchesTilesAndStats(t *testing.T) {
	fx := newFixture(t, composite.DirectionalMax, 2)
	ctx := context.Background()
	res, err := fx.p.Execute(ctx, query())
	require.NoError(t, err)

	fetch := func() {
		_, err := fx.p.TileURL(ctx, res)
		require.NoError(t, err)
		_, err = fx.p.Statistics(ctx, res, fieldA)
		require.NoError(t, err)
	}
	fetch()
	fetch()
	assert.Equal(t, 1, fx.fake.CallCount("tiles"))
	assert.Equal(t, 1, fx.fake.CallCount("reduce_region"))

	require.NoError(t, fx.p.Forget(ctx, res, fieldA))
	fetch()
	assert.Equal(t, 2, fx.fake.CallCount("tiles"))
	assert.Equal(t, 2, fx.fake.CallCount("reduce_region"))

	err = fx.p.Forget(ctx, res, fieldA[:2])
	assert.True(t, errors.Is(err, apperr.ErrInvalidGeometry), "%v", err)
}

func TestExportImage(t *testing.T) {
	fx := newFixture(t, composite.DirectionalMax, 2)
	ctx := context.Background()
	res, err := fx.p.Execute(ctx, query())
	require.NoError(t, err)

	h, err := fx.p.ExportImage(ctx, res, fieldA, ExportOptions{Area: "Field A", StartDate: "2024-01-01", EndDate: "2024-02-01"})
	require.NoError(t, err)
	assert.Equal(t, "task-1", h.TaskID)

	req := fx.fake.LastExport
	assert.Equal(t, "SAR_Export_Field A_20240101", req.Description)
	assert.Equal(t, "SAR_Exports", req.Folder)
	assert.Equal(t, "GeoTIFF", req.Format)
	assert.Equal(t, 10.0, req.ScaleM)
	assert.Equal(t, 1e9, req.MaxPixels)
	assert.Equal(t, imagery.OpFocal, req.Image.Op, "display units by default")

	_, err = fx.p.ExportImage(ctx, res, fieldA, ExportOptions{Physical: true, Folder: "custom", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, imagery.OpUnitScale, fx.fake.LastExport.Image.Op)
	assert.Equal(t, "custom", fx.fake.LastExport.Folder)

	require.Len(t, fx.sink.events, 2)
	ev := fx.sink.events[0]
	assert.Equal(t, exportevents.KindImage, ev.Kind)
	assert.Equal(t, "task-1", ev.TaskID)
	assert.Equal(t, composite.DirectionalMax, ev.Strategy)
	assert.Equal(t, []string{"Field A"}, ev.Areas)
	assert.Equal(t, 5, ev.H3Res)
	assert.NotEmpty(t, ev.Cells)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, now, ev.TS)
}

func TestExportImage_RemoteFailurePublishesNothing(t *testing.T) {
	fx := newFixture(t, composite.SingleVVMean, 2)
	ctx := context.Background()
	res, err := fx.p.Execute(ctx, query())
	require.NoError(t, err)

	fx.fake.Fail["export_image"] = errors.New("drive full")
	_, err = fx.p.ExportImage(ctx, res, fieldA, ExportOptions{})
	assert.True(t, apperr.IsRemote(err))
	assert.Empty(t, fx.sink.events)
}

func TestExportAreasAndDownload(t *testing.T) {
	fx := newFixture(t, composite.SingleVVMean, 0)
	ctx := context.Background()
	areas := []model.Area{
		{Name: "Field A", Description: "barley", Ring: append(fieldA, fieldA[0]), Created: now, Modified: now},
		{Name: "Field B", Ring: model.Ring{{1, 1}, {2, 1}, {2, 2}, {1, 1}}},
	}

	h, err := fx.p.ExportAreas(ctx, areas, "")
	require.NoError(t, err)
	assert.Equal(t, "AOI_Export_20240615", h.Description)
	assert.Equal(t, "AreaManager_Exports", fx.fake.LastTable.Folder)
	assert.Equal(t, "GeoJSON", fx.fake.LastTable.Format)
	require.Len(t, fx.fake.LastTable.Collection.Features, 2)
	assert.Equal(t, "2024-06-15T10:00:00Z", fx.fake.LastTable.Collection.Features[0].Properties.Created)

	require.Len(t, fx.sink.events, 1)
	assert.Equal(t, exportevents.KindTable, fx.sink.events[0].Kind)
	assert.Equal(t, []string{"Field A", "Field B"}, fx.sink.events[0].Areas)

	u, err := fx.p.DownloadURL(ctx, areas[:1])
	require.NoError(t, err)
	assert.Equal(t, "https://download.test/areas_export.geojson", u)
	assert.Equal(t, []string{"name", "description", "created", "modified"}, fx.fake.LastDownld.Selectors)
	assert.Equal(t, "areas_export", fx.fake.LastDownld.Filename)

	_, err = fx.p.ExportAreas(ctx, nil, "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = fx.p.DownloadURL(ctx, []model.Area{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, 1, fx.fake.CallCount("export_table"))
	assert.Equal(t, 1, fx.fake.CallCount("download_url"))
}
