package areastore

import (
	"strings"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/geom"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/store"
)

func encode(areas []model.Area) geom.FeatureCollection {
	features := make([]geom.Feature, len(areas))
	for i, a := range areas {
		features[i] = geom.Feature{
			Type: "Feature",
			Properties: geom.FeatureProperties{
				Name:        a.Name,
				Description: a.Description,
				Created:     store.FormatTimestamp(a.Created),
				Modified:    store.FormatTimestamp(a.Modified),
			},
			Geometry: geom.PolygonOf(a.Ring),
		}
	}
	return geom.NewFeatureCollection(features...)
}

// decode validates every feature; the first bad one fails the whole load.
func decode(path string, fc geom.FeatureCollection) ([]model.Area, error) {
	areas := make([]model.Area, 0, len(fc.Features))
	seen := make(map[string]struct{}, len(fc.Features))
	for i, f := range fc.Features {
		name := strings.TrimSpace(f.Properties.Name)
		if name == "" {
			return nil, apperr.Corrupt(path, "feature %d: missing name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, apperr.Corrupt(path, "feature %d: duplicate name %q", i, name)
		}
		seen[name] = struct{}{}

		ring, err := f.Geometry.OuterRing()
		if err == nil {
			ring, err = geom.Normalize(ring)
		}
		if err != nil {
			return nil, apperr.Corrupt(path, "feature %d (%s): %v", i, name, err)
		}
		created, err := store.ParseTimestamp(f.Properties.Created)
		if err != nil {
			return nil, apperr.Corrupt(path, "feature %d (%s): created: %v", i, name, err)
		}
		modified, err := store.ParseTimestamp(f.Properties.Modified)
		if err != nil {
			return nil, apperr.Corrupt(path, "feature %d (%s): modified: %v", i, name, err)
		}
		areas = append(areas, model.Area{
			Name:        name,
			Description: f.Properties.Description,
			Ring:        ring,
			Created:     created,
			Modified:    modified,
		})
	}
	return areas, nil
}
