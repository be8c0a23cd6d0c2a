package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/cache/keys"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/cache/resultcache"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/composite"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/geom"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/exportevents"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/imagery"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/logger"
)

const (
	StatsScaleM    = 30.0
	ExportScaleM   = 10.0
	MaxPixels      = 1e9
	ImageFolder    = "SAR_Exports"
	TableFolder    = "AreaManager_Exports"
	ImageFormat    = "GeoTIFF"
	TableFormat    = "GeoJSON"
	DownloadFile   = "areas_export"
	tableDescStamp = "20060102"
)

// StatsReducers are combined into one region reduction; result keys are
// "<band>_<reducer>".
var StatsReducers = []string{"mean", "stdDev", "min", "max"}

// DownloadSelectors are the feature properties written to a download.
var DownloadSelectors = []string{"name", "description", "created", "modified"}

// Statistics reduces the composite over ring in physical units. Results are
// memoised per image and ring.
func (p *Planner) Statistics(ctx context.Context, res composite.Result, ring model.Ring) (st model.Stats, err error) {
	ctx = logger.WithOperation(ctx, "statistics")
	defer func() { p.outcome(ctx, "statistics", err) }()

	closed, err := geom.Normalize(ring)
	if err != nil {
		return nil, err
	}
	img := res.PhysicalImage()
	return resultcache.Do(ctx, p.cache, statsKey(res, closed), func(ctx context.Context) (model.Stats, error) {
		return p.svc.ReduceRegion(ctx, imagery.ReduceRequest{
			Image:     img,
			Geometry:  geom.PolygonOf(closed),
			Reducers:  StatsReducers,
			ScaleM:    StatsScaleM,
			MaxPixels: MaxPixels,
		})
	})
}

// TileURL returns the tile endpoint for the composite with the strategy's
// visualisation parameters.
func (p *Planner) TileURL(ctx context.Context, res composite.Result) (u string, err error) {
	ctx = logger.WithOperation(ctx, "tiles")
	defer func() { p.outcome(ctx, "tiles", err) }()

	return resultcache.Do(ctx, p.cache, tilesKey(res), func(ctx context.Context) (string, error) {
		return p.svc.TileURL(ctx, res.Image, res.Vis)
	})
}

// Forget drops the memoised tile URL and statistics of the composite so the
// next call asks the imagery service again. Tile URLs can expire remotely
// before the cache TTL does.
func (p *Planner) Forget(ctx context.Context, res composite.Result, ring model.Ring) error {
	closed, err := geom.Normalize(ring)
	if err != nil {
		return err
	}
	if err := p.cache.Invalidate(ctx, tilesKey(res), statsKey(res, closed)); err != nil {
		return apperr.StoreIO(err, "invalidate", "result cache")
	}
	p.log.DebugContext(ctx, "planner forgot memoised results", "strategy", res.Strategy)
	return nil
}

func statsKey(res composite.Result, closed model.Ring) string {
	return keys.Key("stats", res.Strategy, res.PhysicalImage().Fingerprint(), closed,
		fmt.Sprintf("scale=%g max_pixels=%g reducers=%s", StatsScaleM, float64(MaxPixels), strings.Join(StatsReducers, ",")))
}

func tilesKey(res composite.Result) string {
	vis := res.Vis
	return keys.Key("tiles", res.Strategy, res.Image.Fingerprint(), nil,
		fmt.Sprintf("bands=%s min=%g max=%g palette=%s",
			strings.Join(vis.Bands, ","), vis.Min, vis.Max, strings.Join(vis.Palette, ",")))
}

type ExportOptions struct {
	// Description defaults to SAR_Export_<Area>_<YYYYMMDD of StartDate>.
	Description string
	Folder      string
	Area        string
	StartDate   string
	EndDate     string
	// Physical undoes the display rescale before export.
	Physical bool
}

// ExportImage submits a fire-and-forget export of the composite clipped to
// ring and announces it on the export event stream.
func (p *Planner) ExportImage(ctx context.Context, res composite.Result, ring model.Ring, opts ExportOptions) (h model.ExportHandle, err error) {
	ctx = logger.WithOperation(ctx, "export_image")
	defer func() { p.outcome(ctx, "export_image", err) }()

	closed, err := geom.Normalize(ring)
	if err != nil {
		return model.ExportHandle{}, err
	}
	if opts.Folder == "" {
		opts.Folder = ImageFolder
	}
	if opts.Description == "" {
		opts.Description = imageDescription(opts.Area, opts.StartDate, p.now())
	}
	img := res.Image
	if opts.Physical {
		img = res.PhysicalImage()
	}

	h, err = p.svc.ExportImage(ctx, imagery.ImageExport{
		Image:       img,
		Region:      geom.PolygonOf(closed),
		Description: opts.Description,
		Folder:      opts.Folder,
		Format:      ImageFormat,
		ScaleM:      ExportScaleM,
		MaxPixels:   MaxPixels,
	})
	if err != nil {
		return model.ExportHandle{}, err
	}

	ev := p.event(ctx, exportevents.KindImage, h)
	ev.Strategy = res.Strategy
	ev.StartDate, ev.EndDate = opts.StartDate, opts.EndDate
	if opts.Area != "" {
		ev.Areas = []string{opts.Area}
	}
	ev.Cells, ev.H3Res = p.eventCells(ctx, closed)
	p.events.Publish(ev)
	return h, nil
}

// ExportAreas exports the given areas as a GeoJSON table. An empty
// selection is ErrNotFound.
func (p *Planner) ExportAreas(ctx context.Context, areas []model.Area, folder string) (h model.ExportHandle, err error) {
	ctx = logger.WithOperation(ctx, "export_areas")
	defer func() { p.outcome(ctx, "export_areas", err) }()

	fc, names, err := collection(areas)
	if err != nil {
		return model.ExportHandle{}, err
	}
	if folder == "" {
		folder = TableFolder
	}
	h, err = p.svc.ExportTable(ctx, imagery.TableExport{
		Collection:  fc,
		Description: "AOI_Export_" + p.now().Format(tableDescStamp),
		Folder:      folder,
		Format:      TableFormat,
	})
	if err != nil {
		return model.ExportHandle{}, err
	}
	ev := p.event(ctx, exportevents.KindTable, h)
	ev.Areas = names
	p.events.Publish(ev)
	return h, nil
}

// DownloadURL returns a one-off GeoJSON download link for the areas.
func (p *Planner) DownloadURL(ctx context.Context, areas []model.Area) (u string, err error) {
	ctx = logger.WithOperation(ctx, "download_url")
	defer func() { p.outcome(ctx, "download_url", err) }()

	fc, _, err := collection(areas)
	if err != nil {
		return "", err
	}
	return p.svc.DownloadURL(ctx, imagery.TableDownload{
		Collection: fc,
		Format:     TableFormat,
		Selectors:  DownloadSelectors,
		Filename:   DownloadFile,
	})
}

func collection(areas []model.Area) (geom.FeatureCollection, []string, error) {
	if len(areas) == 0 {
		return geom.FeatureCollection{}, nil, apperr.NotFound("area selection", "")
	}
	features := make([]geom.Feature, len(areas))
	names := make([]string, len(areas))
	for i, a := range areas {
		names[i] = a.Name
		features[i] = geom.Feature{
			Type: "Feature",
			Properties: geom.FeatureProperties{
				Name:        a.Name,
				Description: a.Description,
				Created:     stamp(a.Created),
				Modified:    stamp(a.Modified),
			},
			Geometry: geom.PolygonOf(a.Ring),
		}
	}
	return geom.NewFeatureCollection(features...), names, nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func imageDescription(area, start string, now time.Time) string {
	day := now.Format(tableDescStamp)
	if t, err := time.Parse(model.DateLayout, start); err == nil {
		day = t.Format(tableDescStamp)
	}
	if area == "" {
		return "SAR_Export_" + day
	}
	return "SAR_Export_" + area + "_" + day
}

func (p *Planner) event(ctx context.Context, kind string, h model.ExportHandle) exportevents.Event {
	return exportevents.Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		TaskID:      h.TaskID,
		Description: h.Description,
		Folder:      h.Folder,
		RequestID:   logger.RequestID(ctx),
		TS:          p.now().UTC(),
	}
}

func (p *Planner) eventCells(ctx context.Context, ring model.Ring) ([]string, int) {
	cells := p.coverage(ctx, ring, p.cfg.H3Res)
	if cells == nil {
		return nil, 0
	}
	res := max(p.cfg.H3Res-eventResDelta, 0)
	coarse, err := p.mapper.Coarsen(cells, res)
	if err != nil {
		p.log.WarnContext(ctx, "h3 coarsen failed", "res", res, "err", err)
		return nil, 0
	}
	return coarse, res
}
