package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/cache/resultcache"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/composite"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/imagery/imagerytest"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/planner"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/store/areastore"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/store/timerange"
)

type apiFixture struct {
	srv  *httptest.Server
	fake *imagerytest.Fake
}

func newAPI(t *testing.T, count int) apiFixture {
	t.Helper()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	fake := imagerytest.New(count)
	b, err := composite.New(composite.SingleVVMean, composite.Options{})
	require.NoError(t, err)
	p, err := planner.New(fake, b, planner.Config{},
		planner.WithLogger(log),
		planner.WithCache(resultcache.New(resultcache.Config{Size: 16, TTL: time.Minute}, nil, log)),
		planner.WithClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)

	api := &API{
		Areas:   areastore.New(filepath.Join(dir, "aois.geojson"), log),
		Ranges:  timerange.New(filepath.Join(dir, "timeranges.json"), log),
		Planner: p,
		Log:     log,
	}
	mux := chi.NewRouter()
	mux.Mount("/v1", api.Routes())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return apiFixture{srv: srv, fake: fake}
}

func (f apiFixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

var fieldA = [][2]float64{{25.0, 54.6}, {25.1, 54.6}, {25.1, 54.7}, {25.0, 54.7}}

func TestAreas_CRUD(t *testing.T) {
	f := newAPI(t, 3)

	code, body := f.do(t, http.MethodPost, "/v1/areas", map[string]any{"name": "Field A", "ring": fieldA, "description": "barley"})
	require.Equal(t, http.StatusCreated, code, "%v", body)
	assert.Equal(t, "Field A", body["name"])
	assert.InDelta(t, 71, body["area_km2"], 6)

	code, body = f.do(t, http.MethodPost, "/v1/areas", map[string]any{"name": "Field A", "ring": fieldA})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "store.add.duplicate_name", body["code"])

	code, _ = f.do(t, http.MethodPost, "/v1/areas", map[string]any{"name": "Line", "ring": fieldA[:2]})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/v1/areas", map[string]any{
		"name":     "Geo",
		"geometry": map[string]any{"type": "Polygon", "coordinates": [][][2]float64{{{1, 1}, {2, 1}, {2, 2}, {1, 1}}}},
	})
	assert.Equal(t, http.StatusCreated, code)

	code, body = f.do(t, http.MethodGet, "/v1/areas", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"Field A", "Geo"}, body["areas"])

	code, body = f.do(t, http.MethodPatch, "/v1/areas/Field%20A", map[string]any{"description": "wheat"})
	require.Equal(t, http.StatusOK, code, "%v", body)
	assert.Equal(t, "wheat", body["description"])
	geometry := body["geometry"].(map[string]any)
	assert.Len(t, geometry["coordinates"].([]any)[0], 5)

	code, _ = f.do(t, http.MethodDelete, "/v1/areas/Field%20A", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = f.do(t, http.MethodDelete, "/v1/areas/Field%20A", nil)
	assert.Equal(t, http.StatusNoContent, code, "delete is idempotent")
	code, _ = f.do(t, http.MethodGet, "/v1/areas/Field%20A", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTimeRanges_ReversedIs400AndNotStored(t *testing.T) {
	f := newAPI(t, 3)

	code, body := f.do(t, http.MethodPut, "/v1/timeranges/Q1", map[string]string{"start_date": "2024-01-01", "end_date": "2023-12-01"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "query.validate.invalid_date_range", body["code"])

	_, body = f.do(t, http.MethodGet, "/v1/timeranges", nil)
	assert.Empty(t, body["timeranges"])

	code, body = f.do(t, http.MethodPut, "/v1/timeranges/Q1", map[string]string{"start_date": "2024-01-01", "end_date": "2024-03-31"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2024-03-31", body["end_date"])

	_, body = f.do(t, http.MethodDelete, "/v1/timeranges/Q1", nil)
	assert.Equal(t, true, body["removed"])
	_, body = f.do(t, http.MethodDelete, "/v1/timeranges/Q1", nil)
	assert.Equal(t, false, body["removed"])

	code, _ = f.do(t, http.MethodDelete, "/v1/timeranges", nil)
	assert.Equal(t, http.StatusNoContent, code)
}

func TestQuery_PreviewFromStoredAreaAndRange(t *testing.T) {
	f := newAPI(t, 6)
	f.do(t, http.MethodPost, "/v1/areas", map[string]any{"name": "Field A", "ring": fieldA})
	f.do(t, http.MethodPut, "/v1/timeranges/Q1", map[string]string{"start_date": "2024-01-01", "end_date": "2024-03-31"})

	code, body := f.do(t, http.MethodPost, "/v1/query/preview", map[string]string{"area": "Field A", "timerange": "Q1"})
	require.Equal(t, http.StatusOK, code, "%v", body)
	assert.Equal(t, 6.0, body["count"])
	assert.Equal(t, 12.0, body["estimated_size_mb"])
	assert.Equal(t, "2024-01-01", body["start_date"])
	assert.Equal(t, []any{25.0, 54.6, 25.1, 54.7}, body["bbox"])

	code, _ = f.do(t, http.MethodPost, "/v1/query/preview", map[string]string{"area": "Nope", "start_date": "2024-01-01", "end_date": "2024-02-01"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodPost, "/v1/query/preview", map[string]string{"bbox": "25,54.6,25.1,54.7", "start_date": "2024-02-01", "end_date": "2024-01-01"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 1, f.fake.CallCount("count"), "invalid dates never reach the service")

	code, body = f.do(t, http.MethodPost, "/v1/query/filter", map[string]any{"ring": fieldA, "start_date": "2024-01-01", "end_date": "2024-02-01", "orbit_pass": "descending"})
	require.Equal(t, http.StatusOK, code, "%v", body)
	assert.Len(t, body["predicates"], 5)
}

func TestQuery_CompositeNoDataIs200(t *testing.T) {
	f := newAPI(t, 0)

	code, body := f.do(t, http.MethodPost, "/v1/query/composite", map[string]any{"ring": fieldA, "start_date": "2024-01-01", "end_date": "2024-02-01"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "no_data", body["status"])
	assert.Equal(t, composite.SingleVVMean, body["strategy"])

	code, body = f.do(t, http.MethodPost, "/v1/query/export", map[string]any{"ring": fieldA, "start_date": "2024-01-01", "end_date": "2024-02-01"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "no_data", body["status"])
	assert.Zero(t, f.fake.CallCount("export_image"))
}

func TestQuery_CompositeWithTilesAndStats(t *testing.T) {
	f := newAPI(t, 4)

	code, body := f.do(t, http.MethodPost, "/v1/query/composite", map[string]any{
		"ring": fieldA, "start_date": "2024-01-01", "end_date": "2024-02-01", "tiles": true, "stats": true,
	})
	require.Equal(t, http.StatusOK, code, "%v", body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 4.0, body["source_count"])
	assert.Equal(t, "https://tiles.test/{z}/{x}/{y}", body["tile_url"])
	assert.Equal(t, -12.5, body["stats"].(map[string]any)["VV_mean"])
}

func TestQuery_CompositeRefreshRefetchesTiles(t *testing.T) {
	f := newAPI(t, 4)
	req := map[string]any{"ring": fieldA, "start_date": "2024-01-01", "end_date": "2024-02-01", "tiles": true}

	for i := 0; i < 2; i++ {
		code, body := f.do(t, http.MethodPost, "/v1/query/composite", req)
		require.Equal(t, http.StatusOK, code, "%v", body)
	}
	assert.Equal(t, 1, f.fake.CallCount("tiles"), "tile URL is memoised")

	req["refresh"] = true
	code, body := f.do(t, http.MethodPost, "/v1/query/composite", req)
	require.Equal(t, http.StatusOK, code, "%v", body)
	assert.Equal(t, "https://tiles.test/{z}/{x}/{y}", body["tile_url"])
	assert.Equal(t, 2, f.fake.CallCount("tiles"))
}

func TestQuery_ExportAndRemoteFailure(t *testing.T) {
	f := newAPI(t, 4)

	code, body := f.do(t, http.MethodPost, "/v1/query/export", map[string]any{
		"ring": fieldA, "start_date": "2024-01-01", "end_date": "2024-02-01", "area": "Field A",
	})
	require.Equal(t, http.StatusAccepted, code, "%v", body)
	assert.Equal(t, "task-1", body["task_id"])
	assert.Equal(t, "SAR_Export_Field A_20240101", body["description"])

	f.fake.Fail["count"] = errors.New("quota exceeded")
	code, body = f.do(t, http.MethodPost, "/v1/query/composite", map[string]any{"ring": fieldA, "start_date": "2024-01-01", "end_date": "2024-02-01"})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "count", body["op"])
	assert.Equal(t, "imagery.remote.failure", body["code"])
}

func TestAreas_ExportDownloadAndCollection(t *testing.T) {
	f := newAPI(t, 1)
	f.do(t, http.MethodPost, "/v1/areas", map[string]any{"name": "a", "ring": fieldA})
	f.do(t, http.MethodPost, "/v1/areas", map[string]any{"name": "b", "ring": fieldA})

	code, body := f.do(t, http.MethodPost, "/v1/areas/export", map[string]any{"names": []string{"b", "missing"}})
	require.Equal(t, http.StatusAccepted, code, "%v", body)
	assert.Equal(t, "AOI_Export_20240601", body["description"])
	assert.Len(t, f.fake.LastTable.Collection.Features, 1)

	code, body = f.do(t, http.MethodPost, "/v1/areas/download-url", map[string]any{"names": []string{"a"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "https://download.test/areas_export.geojson", body["url"])

	code, _ = f.do(t, http.MethodPost, "/v1/areas/download-url", map[string]any{"names": []string{"missing"}})
	assert.Equal(t, http.StatusNotFound, code)

	code, body = f.do(t, http.MethodGet, "/v1/areas/collection?names=a", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FeatureCollection", body["type"])
	assert.Len(t, body["features"], 1)
}

func TestMalformedBody_Is400(t *testing.T) {
	f := newAPI(t, 1)
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/v1/areas", bytes.NewBufferString(`{"name":`))
	require.NoError(t, err)
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParseBBOX(t *testing.T) {
	bb, err := parseBBOX("11.0,55.0,12.0,56.0,EPSG:4326")
	require.NoError(t, err)
	assert.Equal(t, model.BBox{X1: 11, Y1: 55, X2: 12, Y2: 56, SRID: "EPSG:4326"}, bb)

	bb, err = parseBBOX("11,55,12,56")
	require.NoError(t, err)
	assert.Equal(t, "EPSG:4326", bb.SRID)

	for _, bad := range []string{"11,55,12,56,EPSG:3857", "12,55,11,56", "1,2,3", "a,55,12,56", "11,-95,12,56"} {
		_, err := parseBBOX(bad)
		assert.Error(t, err, bad)
	}
	assert.Len(t, bboxRing(bb), 5)
}
