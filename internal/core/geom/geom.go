// Package geom validates, normalizes and measures polygon rings.
package geom

import (
	"math"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
)

// MinVertices is the minimum number of distinct vertices of a ring.
const MinVertices = 3

// earth radius used by the spherical area estimate (km)
const earthRadiusKm = 6371.0088

// Normalize validates a ring and returns a closed copy. The input may or may
// not repeat its first vertex at the end.
func Normalize(r model.Ring) (model.Ring, error) {
	open := Open(r)
	if n := distinct(open); n < MinVertices {
		return nil, apperr.InvalidGeometry("ring has %d distinct vertices, need at least %d", n, MinVertices)
	}
	for i, p := range open {
		lon, lat := p.Lon(), p.Lat()
		if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
			return nil, apperr.InvalidGeometry("vertex %d is not finite", i)
		}
		if lon < -180 || lon > 180 {
			return nil, apperr.InvalidGeometry("vertex %d: longitude %v must be in [-180,180]", i, lon)
		}
		if lat < -90 || lat > 90 {
			return nil, apperr.InvalidGeometry("vertex %d: latitude %v must be in [-90,90]", i, lat)
		}
	}
	out := make(model.Ring, 0, len(open)+1)
	out = append(out, open...)
	return append(out, open[0]), nil
}

func distinct(r model.Ring) int {
	seen := make(map[model.LonLat]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// Open drops the duplicated closing vertex if present.
func Open(r model.Ring) model.Ring {
	if len(r) >= 2 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

// Equal compares two rings up to closing-point normalization.
func Equal(a, b model.Ring) bool {
	a, b = Open(a), Open(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func Bounds(r model.Ring) model.BBox {
	if len(r) == 0 {
		return model.BBox{SRID: "EPSG:4326"}
	}
	bb := model.BBox{X1: r[0].Lon(), Y1: r[0].Lat(), X2: r[0].Lon(), Y2: r[0].Lat(), SRID: "EPSG:4326"}
	for _, p := range r[1:] {
		bb.X1 = math.Min(bb.X1, p.Lon())
		bb.X2 = math.Max(bb.X2, p.Lon())
		bb.Y1 = math.Min(bb.Y1, p.Lat())
		bb.Y2 = math.Max(bb.Y2, p.Lat())
	}
	return bb
}

// AreaKm2 estimates the enclosed area on a sphere with the shoelace-style
// formula over (lon, sin lat). Orientation does not matter.
func AreaKm2(r model.Ring) float64 {
	open := Open(r)
	n := len(open)
	if n < MinVertices {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		p1 := open[i]
		p2 := open[(i+1)%n]
		sum += rad(p2.Lon()-p1.Lon()) * (2 + math.Sin(rad(p1.Lat())) + math.Sin(rad(p2.Lat())))
	}
	return math.Abs(sum * earthRadiusKm * earthRadiusKm / 2)
}

func rad(d float64) float64 { return d * math.Pi / 180 }
