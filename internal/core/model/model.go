// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"time"
)

// LonLat is a single [lon, lat] vertex in EPSG:4326 degrees.
type LonLat [2]float64

func (p LonLat) Lon() float64 { return p[0] }
func (p LonLat) Lat() float64 { return p[1] }

// Ring is an ordered polygon outer ring. Stored rings are always closed.
type Ring []LonLat

type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

// String renders the bbox in the same "x1,y1,x2,y2,SRID" form the bbox query
// parameter accepts.
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

// Slice returns the bbox as [x1, y1, x2, y2].
func (b BBox) Slice() []float64 {
	return []float64{b.X1, b.Y1, b.X2, b.Y2}
}

// Area is a persisted, named area of interest.
type Area struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Ring        Ring      `json:"ring"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

// AreaPatch carries optional fields for an update; nil fields stay unchanged.
type AreaPatch struct {
	Ring        Ring
	Description *string
}

// TimeRange is a persisted, named pair of calendar dates.
type TimeRange struct {
	Name      string    `json:"name"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Timestamp time.Time `json:"timestamp"`
}

// DateLayout is the calendar date format used for time ranges and filters.
const DateLayout = "2006-01-02"

type OrbitPass string

const (
	OrbitAny        OrbitPass = ""
	OrbitAscending  OrbitPass = "ASCENDING"
	OrbitDescending OrbitPass = "DESCENDING"
)

type PredicateKind string

const (
	PredBounds       PredicateKind = "bounds"
	PredDate         PredicateKind = "date"
	PredEquals       PredicateKind = "eq"
	PredListContains PredicateKind = "list_contains"
)

// Predicate is one term of the filter's AND-conjunction.
type Predicate struct {
	Kind     PredicateKind `json:"kind"`
	Property string        `json:"property,omitempty"`
	Value    any           `json:"value"`
}

// Filter is the canonical description of an archive query.
type Filter struct {
	Collection     string    `json:"collection"`
	Polarizations  []string  `json:"polarizations"`
	InstrumentMode string    `json:"instrument_mode"`
	OrbitPass      OrbitPass `json:"orbit_pass,omitempty"`
	Ring           Ring      `json:"ring"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
}

// Metadata property names of the SAR archive items.
const (
	PropPolarization   = "transmitterReceiverPolarisation"
	PropInstrumentMode = "instrumentMode"
	PropOrbitPass      = "orbitProperties_pass"
)

// Predicates returns the AND-conjunction in a fixed order: bounds, date,
// instrument mode, polarizations (as given, already sorted by the planner),
// orbit pass.
func (f Filter) Predicates() []Predicate {
	out := []Predicate{
		{Kind: PredBounds, Value: f.Ring},
		{Kind: PredDate, Value: []string{f.StartDate, f.EndDate}},
	}
	if f.InstrumentMode != "" {
		out = append(out, Predicate{Kind: PredEquals, Property: PropInstrumentMode, Value: f.InstrumentMode})
	}
	for _, p := range f.Polarizations {
		out = append(out, Predicate{Kind: PredListContains, Property: PropPolarization, Value: p})
	}
	if f.OrbitPass != OrbitAny {
		out = append(out, Predicate{Kind: PredEquals, Property: PropOrbitPass, Value: string(f.OrbitPass)})
	}
	return out
}

// QueryPreview is the cheap, non-committal summary of a query.
type QueryPreview struct {
	AreaKm2         float64 `json:"area_km2"`
	BBox            BBox    `json:"-"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	Count           int     `json:"count"`
	EstimatedSizeMB float64 `json:"estimated_size_mb"`
	Filter          Filter  `json:"filter"`
	CoverageCells   int     `json:"coverage_cells"`
	H3Res           int     `json:"h3_res"`
}

// Stats maps "<band>_<reducer>" keys (e.g. VV_mean) to values.
type Stats map[string]float64

// ExportHandle acknowledges a submitted remote export job.
type ExportHandle struct {
	TaskID      string    `json:"task_id"`
	Description string    `json:"description"`
	Folder      string    `json:"folder"`
	State       string    `json:"state,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}
