// Package imagerytest provides an in-memory imagery.Service for tests.
package imagerytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/geom"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/imagery"
)

// Fake answers from fixed values and records every call.
type Fake struct {
	mu sync.Mutex

	CountResult  int
	Stats        model.Stats
	URLFormat    string
	DownloadLink string
	// Fail makes the named op return a RemoteServiceError.
	Fail map[string]error

	Calls       map[string]int
	LastFilter  model.Filter
	LastReduce  imagery.ReduceRequest
	LastExport  imagery.ImageExport
	LastTable   imagery.TableExport
	LastDownld  imagery.TableDownload
	LastTileImg imagery.Expr
	tasks       int
}

var _ imagery.Service = (*Fake)(nil)

func New(count int) *Fake {
	return &Fake{
		CountResult:  count,
		Stats:        model.Stats{"VV_mean": -12.5, "VV_stdDev": 2.1, "VV_min": -24.0, "VV_max": -3.0},
		URLFormat:    "https://tiles.test/{z}/{x}/{y}",
		DownloadLink: "https://download.test/areas_export.geojson",
		Fail:         map[string]error{},
		Calls:        map[string]int{},
	}
}

func (f *Fake) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[op]++
	if err, ok := f.Fail[op]; ok {
		return apperr.Remote(op, 500, map[string]any{"fake": true}, err)
	}
	return nil
}

// CallCount returns how often op was called.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[op]
}

func (f *Fake) Count(_ context.Context, flt model.Filter) (int, error) {
	if err := f.record("count"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	f.LastFilter = flt
	f.mu.Unlock()
	return f.CountResult, nil
}

func (f *Fake) Measure(_ context.Context, ring model.Ring) (imagery.Measure, error) {
	if err := f.record("measure"); err != nil {
		return imagery.Measure{}, err
	}
	bb := geom.Bounds(ring)
	return imagery.Measure{AreaKm2: geom.AreaKm2(ring), BBox: [4]float64{bb.X1, bb.Y1, bb.X2, bb.Y2}}, nil
}

func (f *Fake) ReduceRegion(_ context.Context, req imagery.ReduceRequest) (model.Stats, error) {
	if err := f.record("reduce_region"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastReduce = req
	out := make(model.Stats, len(f.Stats))
	for k, v := range f.Stats {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) TileURL(_ context.Context, img imagery.Expr, _ imagery.VisParams) (string, error) {
	if err := f.record("tiles"); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.LastTileImg = img
	f.mu.Unlock()
	return f.URLFormat, nil
}

func (f *Fake) ExportImage(_ context.Context, req imagery.ImageExport) (model.ExportHandle, error) {
	if err := f.record("export_image"); err != nil {
		return model.ExportHandle{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastExport = req
	return f.handle(req.Description, req.Folder), nil
}

func (f *Fake) ExportTable(_ context.Context, req imagery.TableExport) (model.ExportHandle, error) {
	if err := f.record("export_table"); err != nil {
		return model.ExportHandle{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastTable = req
	return f.handle(req.Description, req.Folder), nil
}

func (f *Fake) DownloadURL(_ context.Context, req imagery.TableDownload) (string, error) {
	if err := f.record("download_url"); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.LastDownld = req
	f.mu.Unlock()
	return f.DownloadLink, nil
}

// caller holds f.mu
func (f *Fake) handle(desc, folder string) model.ExportHandle {
	f.tasks++
	return model.ExportHandle{
		TaskID:      fmt.Sprintf("task-%d", f.tasks),
		Description: desc,
		Folder:      folder,
		State:       "READY",
		SubmittedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
