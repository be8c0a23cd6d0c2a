package h3mapper

import (
	"errors"
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/mapper"
)

type Mapper struct{}

var _ mapper.Interface = (*Mapper)(nil)

func New() *Mapper { return &Mapper{} }

// CellsForRing returns the sorted, unique cells whose centers fall inside
// the ring. Small rings at coarse resolutions may yield no cells; the
// cell containing the first vertex is returned then so coverage is never
// empty for a valid ring.
func (m *Mapper) CellsForRing(ring model.Ring, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	outer := toLoop(ring)
	if len(outer) < 3 {
		return nil, errors.New("ring has < 3 vertices")
	}
	cells, err := polyfill(outer, res)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		c, err := h3.LatLngToCell(outer[0], res)
		if err != nil {
			return nil, fmt.Errorf("h3 latlng to cell: %w", err)
		}
		cells = []string{c.String()}
	}
	return cells, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// Convert a ring [[lon,lat], ...] to an h3.GeoLoop (in degrees), dropping a
// duplicated closing vertex.
func toLoop(ring model.Ring) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, p := range ring {
		loop = append(loop, h3.LatLng{Lat: p.Lat(), Lng: p.Lon()})
	}
	if len(loop) >= 2 {
		last := loop[len(loop)-1]
		first := loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}

// polyfill computes unique cells and returns them sorted for determinism.
func polyfill(outer h3.GeoLoop, res int) ([]string, error) {
	indexes, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
