// Package router maps the JSON API onto the stores and the planner.
package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/geom"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/planner"
)

type AreaStore interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, name string, ring model.Ring, description string) error
	Get(ctx context.Context, name string) (model.Area, error)
	Update(ctx context.Context, name string, p model.AreaPatch) error
	Delete(ctx context.Context, name string) error
	SelectMany(ctx context.Context, names []string) ([]model.Area, error)
	FeatureCollection(ctx context.Context, names []string) (geom.FeatureCollection, error)
}

type RangeStore interface {
	List(ctx context.Context) ([]string, error)
	Save(ctx context.Context, name, start, end string) error
	Get(ctx context.Context, name string) (model.TimeRange, error)
	Delete(ctx context.Context, name string) (bool, error)
	Clear(ctx context.Context) error
}

// API holds the collaborators of every handler.
type API struct {
	Areas   AreaStore
	Ranges  RangeStore
	Planner *planner.Planner
	Log     *slog.Logger
}

// Routes returns the /v1 routes; middleware is added by the server.
func (a *API) Routes() http.Handler {
	if a.Log == nil {
		a.Log = slog.Default()
	}
	r := chi.NewRouter()

	r.Route("/areas", func(r chi.Router) {
		r.Get("/", a.listAreas)
		r.Post("/", a.createArea)
		r.Get("/collection", a.areaCollection)
		r.Post("/export", a.exportAreas)
		r.Post("/download-url", a.downloadURL)
		r.Get("/{name}", a.getArea)
		r.Patch("/{name}", a.updateArea)
		r.Delete("/{name}", a.deleteArea)
	})

	r.Route("/timeranges", func(r chi.Router) {
		r.Get("/", a.listRanges)
		r.Delete("/", a.clearRanges)
		r.Get("/{name}", a.getRange)
		r.Put("/{name}", a.saveRange)
		r.Delete("/{name}", a.deleteRange)
	})

	r.Route("/query", func(r chi.Router) {
		r.Post("/filter", a.filter)
		r.Post("/preview", a.preview)
		r.Post("/composite", a.composite)
		r.Post("/export", a.exportImage)
	})

	return r
}
