package geom

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
)

// Polygon is a GeoJSON polygon geometry.
type Polygon struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

func PolygonOf(r model.Ring) Polygon {
	ring := make([][2]float64, len(r))
	for i, p := range r {
		ring[i] = p
	}
	return Polygon{Type: "Polygon", Coordinates: [][][2]float64{ring}}
}

// OuterRing returns the outer ring of a polygon geometry.
func (p Polygon) OuterRing() (model.Ring, error) {
	if strings.TrimSpace(p.Type) != "Polygon" {
		return nil, apperr.InvalidGeometry("unsupported GeoJSON type %q (must be Polygon)", p.Type)
	}
	if len(p.Coordinates) == 0 {
		return nil, apperr.InvalidGeometry("empty polygon")
	}
	out := make(model.Ring, len(p.Coordinates[0]))
	for i, xy := range p.Coordinates[0] {
		out[i] = model.LonLat(xy)
	}
	return out, nil
}

// ParseGeometry accepts a raw GeoJSON Polygon (or a Feature wrapping one) and
// returns its outer ring.
func ParseGeometry(raw []byte) (model.Ring, error) {
	var hdr struct {
		Type     string          `json:"type"`
		Geometry json.RawMessage `json:"geometry"`
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, apperr.InvalidGeometry("parse geojson: %v", err)
	}
	if hdr.Type == "Feature" {
		if len(hdr.Geometry) == 0 {
			return nil, apperr.InvalidGeometry("feature without geometry")
		}
		return ParseGeometry(hdr.Geometry)
	}
	var p Polygon
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperr.InvalidGeometry("parse polygon coords: %v", err)
	}
	return p.OuterRing()
}

// Feature is a GeoJSON feature with typed area properties.
type Feature struct {
	Type       string            `json:"type"`
	Properties FeatureProperties `json:"properties"`
	Geometry   Polygon           `json:"geometry"`
}

type FeatureProperties struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

func NewFeatureCollection(features ...Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

// Validate checks the document shape, not the individual rings.
func (fc FeatureCollection) Validate() error {
	if fc.Type != "FeatureCollection" {
		return fmt.Errorf("type %q, want FeatureCollection", fc.Type)
	}
	for i, f := range fc.Features {
		if f.Type != "Feature" {
			return fmt.Errorf("feature %d: type %q, want Feature", i, f.Type)
		}
	}
	return nil
}
