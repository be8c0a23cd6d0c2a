// Package areastore persists named areas of interest as a GeoJSON
// FeatureCollection on disk.
package areastore

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/geom"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/observability"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/store"
)

const metricName = "areas"

// Store owns one FeatureCollection file. Reads always go to disk so other
// writers of the file are seen on the next call.
type Store struct {
	path string
	log  *slog.Logger
	now  func() time.Time

	mu sync.Mutex
}

func New(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{path: path, log: log, now: time.Now}
}

func (s *Store) Path() string { return s.path }

// List returns the area names in file order.
func (s *Store) List(ctx context.Context) (names []string, err error) {
	defer s.observe(ctx, "list", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	areas, err := s.load()
	if err != nil {
		return nil, err
	}
	names = make([]string, len(areas))
	for i, a := range areas {
		names[i] = a.Name
	}
	return names, nil
}

// Add appends a new area. A duplicate name or an invalid ring leaves the file
// untouched. Names are trimmed here and by every lookup.
func (s *Store) Add(ctx context.Context, name string, ring model.Ring, description string) (err error) {
	defer s.observe(ctx, "add", time.Now(), &err)

	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.InvalidGeometry("area name must not be empty")
	}
	closed, err := geom.Normalize(ring)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	areas, err := s.load()
	if err != nil {
		return err
	}
	if indexOf(areas, name) >= 0 {
		return apperr.DuplicateName(name)
	}
	now := s.now().UTC().Truncate(time.Second)
	areas = append(areas, model.Area{
		Name:        name,
		Description: description,
		Ring:        closed,
		Created:     now,
		Modified:    now,
	})
	return s.save(areas)
}

func (s *Store) Get(ctx context.Context, name string) (a model.Area, err error) {
	defer s.observe(ctx, "get", time.Now(), &err)
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	areas, err := s.load()
	if err != nil {
		return model.Area{}, err
	}
	i := indexOf(areas, name)
	if i < 0 {
		return model.Area{}, apperr.NotFound("area", name)
	}
	return areas[i], nil
}

// Update applies the non-nil fields of p and refreshes Modified.
func (s *Store) Update(ctx context.Context, name string, p model.AreaPatch) (err error) {
	defer s.observe(ctx, "update", time.Now(), &err)
	name = strings.TrimSpace(name)

	var closed model.Ring
	if p.Ring != nil {
		if closed, err = geom.Normalize(p.Ring); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	areas, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(areas, name)
	if i < 0 {
		return apperr.NotFound("area", name)
	}
	if closed != nil {
		areas[i].Ring = closed
	}
	if p.Description != nil {
		areas[i].Description = *p.Description
	}
	areas[i].Modified = s.now().UTC().Truncate(time.Second)
	return s.save(areas)
}

// Delete removes the named area. Deleting a missing name is not an error.
func (s *Store) Delete(ctx context.Context, name string) (err error) {
	defer s.observe(ctx, "delete", time.Now(), &err)
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	areas, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(areas, name)
	if i < 0 {
		return nil
	}
	areas = append(areas[:i], areas[i+1:]...)
	return s.save(areas)
}

// SelectMany returns the named areas in the caller's order. Missing and
// repeated names are skipped.
func (s *Store) SelectMany(ctx context.Context, names []string) (out []model.Area, err error) {
	defer s.observe(ctx, "select", time.Now(), &err)
	s.mu.Lock()
	defer s.mu.Unlock()

	areas, err := s.load()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]model.Area, len(areas))
	for _, a := range areas {
		byName[a.Name] = a
	}
	seen := make(map[string]struct{}, len(names))
	out = make([]model.Area, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		if a, ok := byName[n]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// FeatureCollection renders the selection as a GeoJSON document. With no
// names it renders every area.
func (s *Store) FeatureCollection(ctx context.Context, names []string) (geom.FeatureCollection, error) {
	var (
		areas []model.Area
		err   error
	)
	if len(names) == 0 {
		s.mu.Lock()
		areas, err = s.load()
		s.mu.Unlock()
	} else {
		areas, err = s.SelectMany(ctx, names)
	}
	if err != nil {
		return geom.FeatureCollection{}, err
	}
	return encode(areas), nil
}

// caller holds s.mu
func (s *Store) load() ([]model.Area, error) {
	raw, err := store.ReadFile(s.path)
	if err != nil || raw == nil {
		return nil, err
	}
	var fc geom.FeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, apperr.Corrupt(s.path, "decode: %v", err)
	}
	if err := fc.Validate(); err != nil {
		return nil, apperr.Corrupt(s.path, "%v", err)
	}
	return decode(s.path, fc)
}

// caller holds s.mu
func (s *Store) save(areas []model.Area) error {
	return store.WriteJSON(s.path, encode(areas))
}

func (s *Store) observe(ctx context.Context, op string, start time.Time, errp *error) {
	elapsed := time.Since(start)
	observability.ObserveStoreOp(metricName, op, *errp, elapsed.Seconds())
	if *errp != nil {
		s.log.DebugContext(ctx, "area store op failed",
			"op", op, "path", s.path, "code", string(apperr.CodeOf(*errp)), "err", *errp)
		return
	}
	s.log.DebugContext(ctx, "area store op", "op", op, "duration", elapsed)
}

func indexOf(areas []model.Area, name string) int {
	for i, a := range areas {
		if a.Name == name {
			return i
		}
	}
	return -1
}
