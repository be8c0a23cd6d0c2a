package imagery

import (
	"context"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/geom"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
)

// Service is the remote imagery collaborator. Every error it returns is an
// apperr.RemoteServiceError.
type Service interface {
	Count(ctx context.Context, f model.Filter) (int, error)
	Measure(ctx context.Context, ring model.Ring) (Measure, error)
	ReduceRegion(ctx context.Context, req ReduceRequest) (model.Stats, error)
	TileURL(ctx context.Context, img Expr, vis VisParams) (string, error)
	ExportImage(ctx context.Context, req ImageExport) (model.ExportHandle, error)
	ExportTable(ctx context.Context, req TableExport) (model.ExportHandle, error)
	DownloadURL(ctx context.Context, req TableDownload) (string, error)
}

type Measure struct {
	AreaKm2 float64    `json:"area_km2"`
	BBox    [4]float64 `json:"bbox"`
}

func (m Measure) Bounds() model.BBox {
	return model.BBox{X1: m.BBox[0], Y1: m.BBox[1], X2: m.BBox[2], Y2: m.BBox[3], SRID: "EPSG:4326"}
}

type ReduceRequest struct {
	Image     Expr         `json:"image"`
	Geometry  geom.Polygon `json:"geometry"`
	Reducers  []string     `json:"reducers"`
	ScaleM    float64      `json:"scale_m"`
	MaxPixels float64      `json:"max_pixels"`
}

type VisParams struct {
	Bands   []string `json:"bands,omitempty"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Palette []string `json:"palette,omitempty"`
}

type ImageExport struct {
	Image       Expr         `json:"image"`
	Region      geom.Polygon `json:"region"`
	Description string       `json:"description"`
	Folder      string       `json:"folder"`
	Format      string       `json:"format"`
	ScaleM      float64      `json:"scale_m"`
	MaxPixels   float64      `json:"max_pixels"`
}

type TableExport struct {
	Collection  geom.FeatureCollection `json:"collection"`
	Description string                 `json:"description"`
	Folder      string                 `json:"folder"`
	Format      string                 `json:"format"`
}

type TableDownload struct {
	Collection geom.FeatureCollection `json:"collection"`
	Format     string                 `json:"format"`
	Selectors  []string               `json:"selectors"`
	Filename   string                 `json:"filename"`
}
