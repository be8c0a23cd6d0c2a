package router

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/geom"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
)

type areaRequest struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Ring        model.Ring      `json:"ring,omitempty"`
	Geometry    json.RawMessage `json:"geometry,omitempty"`
}

// ring prefers an explicit ring over a GeoJSON geometry; nil means neither
// was given.
func (req areaRequest) ring() (model.Ring, error) {
	if len(req.Ring) > 0 {
		return req.Ring, nil
	}
	if len(req.Geometry) > 0 {
		return geom.ParseGeometry(req.Geometry)
	}
	return nil, nil
}

type areaResponse struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Geometry    geom.Polygon `json:"geometry"`
	AreaKm2     float64      `json:"area_km2"`
	Created     time.Time    `json:"created"`
	Modified    time.Time    `json:"modified"`
}

type selectionRequest struct {
	Names  []string `json:"names"`
	Folder string   `json:"folder,omitempty"`
}

func (a *API) listAreas(w http.ResponseWriter, r *http.Request) {
	names, err := a.Areas.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"areas": names})
}

func (a *API) createArea(w http.ResponseWriter, r *http.Request) {
	var req areaRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	ring, err := req.ring()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if ring == nil {
		a.writeError(w, r, apperr.InvalidGeometry("ring or geometry is required"))
		return
	}
	desc := ""
	if req.Description != nil {
		desc = *req.Description
	}
	if err := a.Areas.Add(r.Context(), req.Name, ring, desc); err != nil {
		a.writeError(w, r, err)
		return
	}
	area, err := a.Areas.Get(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAreaResponse(area))
}

func (a *API) getArea(w http.ResponseWriter, r *http.Request) {
	area, err := a.Areas.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAreaResponse(area))
}

func (a *API) updateArea(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req areaRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	ring, err := req.ring()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.Areas.Update(r.Context(), name, model.AreaPatch{Ring: ring, Description: req.Description}); err != nil {
		a.writeError(w, r, err)
		return
	}
	area, err := a.Areas.Get(r.Context(), name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAreaResponse(area))
}

func (a *API) deleteArea(w http.ResponseWriter, r *http.Request) {
	if err := a.Areas.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// areaCollection serves the stored areas as GeoJSON; ?names=a,b narrows it.
func (a *API) areaCollection(w http.ResponseWriter, r *http.Request) {
	var names []string
	if raw := strings.TrimSpace(r.URL.Query().Get("names")); raw != "" {
		for _, n := range strings.Split(raw, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}
	fc, err := a.Areas.FeatureCollection(r.Context(), names)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_ = json.NewEncoder(w).Encode(fc)
}

func (a *API) exportAreas(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	areas, err := a.Areas.SelectMany(r.Context(), req.Names)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	h, err := a.Planner.ExportAreas(r.Context(), areas, req.Folder)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h)
}

func (a *API) downloadURL(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	areas, err := a.Areas.SelectMany(r.Context(), req.Names)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	u, err := a.Planner.DownloadURL(r.Context(), areas)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

func toAreaResponse(a model.Area) areaResponse {
	return areaResponse{
		Name:        a.Name,
		Description: a.Description,
		Geometry:    geom.PolygonOf(a.Ring),
		AreaKm2:     geom.AreaKm2(a.Ring),
		Created:     a.Created,
		Modified:    a.Modified,
	}
}
