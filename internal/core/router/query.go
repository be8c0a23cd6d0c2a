package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/geom"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/logger"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/planner"
)

// queryRequest names the region one of four ways (ring, geometry, bbox or a
// stored area, in that order of preference) and the dates either directly
// or through a stored time range.
type queryRequest struct {
	Area      string          `json:"area,omitempty"`
	Ring      model.Ring      `json:"ring,omitempty"`
	Geometry  json.RawMessage `json:"geometry,omitempty"`
	BBox      string          `json:"bbox,omitempty"`
	StartDate string          `json:"start_date,omitempty"`
	EndDate   string          `json:"end_date,omitempty"`
	TimeRange string          `json:"timerange,omitempty"`
	OrbitPass string          `json:"orbit_pass,omitempty"`
}

type compositeRequest struct {
	queryRequest
	Tiles   bool `json:"tiles,omitempty"`
	Stats   bool `json:"stats,omitempty"`
	Refresh bool `json:"refresh,omitempty"` // skip memoised tiles and stats
}

type exportRequest struct {
	queryRequest
	Folder      string `json:"folder,omitempty"`
	Description string `json:"description,omitempty"`
	Physical    bool   `json:"physical,omitempty"`
}

type compositeResponse struct {
	Status      string      `json:"status"`
	Message     string      `json:"message,omitempty"`
	Strategy    string      `json:"strategy"`
	Bands       []string    `json:"bands,omitempty"`
	SourceCount int         `json:"source_count"`
	Created     *time.Time  `json:"created,omitempty"`
	TileURL     string      `json:"tile_url,omitempty"`
	Stats       model.Stats `json:"stats,omitempty"`
}

const (
	statusOK     = "ok"
	statusNoData = "no_data"
)

func (a *API) resolve(ctx context.Context, req queryRequest) (planner.Query, error) {
	q := planner.Query{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		OrbitPass: model.OrbitPass(strings.ToUpper(strings.TrimSpace(req.OrbitPass))),
		Area:      strings.TrimSpace(req.Area),
	}
	switch {
	case len(req.Ring) > 0:
		q.Ring = req.Ring
	case len(req.Geometry) > 0:
		ring, err := geom.ParseGeometry(req.Geometry)
		if err != nil {
			return planner.Query{}, err
		}
		q.Ring = ring
	case strings.TrimSpace(req.BBox) != "":
		bb, err := parseBBOX(req.BBox)
		if err != nil {
			return planner.Query{}, apperr.InvalidGeometry("invalid bbox: %v", err)
		}
		q.Ring = bboxRing(bb)
	case q.Area != "":
		area, err := a.Areas.Get(ctx, q.Area)
		if err != nil {
			return planner.Query{}, err
		}
		q.Ring = area.Ring
	default:
		return planner.Query{}, apperr.InvalidGeometry("one of ring, geometry, bbox or area is required")
	}
	if name := strings.TrimSpace(req.TimeRange); name != "" {
		tr, err := a.Ranges.Get(ctx, name)
		if err != nil {
			return planner.Query{}, err
		}
		q.StartDate, q.EndDate = tr.StartDate, tr.EndDate
	}
	return q, nil
}

func (a *API) filter(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	q, err := a.resolve(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	f, err := a.Planner.QueryFilter(q)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filter": f, "predicates": f.Predicates()})
}

func (a *API) preview(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	ctx := logger.WithArea(r.Context(), req.Area)
	q, err := a.resolve(ctx, req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	pv, err := a.Planner.Preview(ctx, q)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		model.QueryPreview
		BBox []float64 `json:"bbox"`
	}{pv, pv.BBox.Slice()})
}

// composite runs the query; an empty match is a 200 with status no_data.
func (a *API) composite(w http.ResponseWriter, r *http.Request) {
	var req compositeRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	ctx := logger.WithArea(r.Context(), req.Area)
	q, err := a.resolve(ctx, req.queryRequest)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.Planner.Execute(ctx, q)
	if errors.Is(err, apperr.ErrNoData) {
		a.writeNoData(w, err)
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	out := compositeResponse{
		Status:      statusOK,
		Strategy:    res.Strategy,
		Bands:       res.Bands,
		SourceCount: res.SourceCount,
		Created:     &res.Created,
	}
	if req.Refresh {
		if err := a.Planner.Forget(ctx, res, q.Ring); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	if req.Tiles {
		if out.TileURL, err = a.Planner.TileURL(ctx, res); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	if req.Stats {
		if out.Stats, err = a.Planner.Statistics(ctx, res, q.Ring); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) exportImage(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	ctx := logger.WithArea(r.Context(), req.Area)
	q, err := a.resolve(ctx, req.queryRequest)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.Planner.Execute(ctx, q)
	if errors.Is(err, apperr.ErrNoData) {
		a.writeNoData(w, err)
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	h, err := a.Planner.ExportImage(ctx, res, q.Ring, planner.ExportOptions{
		Description: req.Description,
		Folder:      req.Folder,
		Area:        q.Area,
		StartDate:   q.StartDate,
		EndDate:     q.EndDate,
		Physical:    req.Physical,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h)
}

func (a *API) writeNoData(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusOK, compositeResponse{
		Status:   statusNoData,
		Message:  err.Error(),
		Strategy: a.Planner.Strategy(),
	})
}
