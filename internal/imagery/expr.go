// Package imagery talks to the remote imagery service. Images are described
// as expression graphs; the service evaluates them, this process never holds
// pixels.
package imagery

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
)

// Expr is a node of an image expression graph.
type Expr struct {
	Op     string         `json:"op"`
	Inputs []Expr         `json:"inputs,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// Operation names understood by the service.
const (
	OpCollection = "collection.filter"
	OpMap        = "collection.map"
	OpMerge      = "collection.merge"
	OpReduce     = "collection.reduce"
	OpItem       = "item"
	OpSelect     = "image.select"
	OpClip       = "image.clip_footprint"
	OpFocal      = "image.focal"
	OpUnitScale  = "image.unit_scale"
	OpRename     = "image.rename"
	OpConcat     = "image.cat"
)

// Collection is the leaf of every graph: the filtered archive.
func Collection(f model.Filter) Expr {
	return Expr{Op: OpCollection, Params: map[string]any{
		"collection": f.Collection,
		"predicates": f.Predicates(),
	}}
}

// Item stands for the current element inside a Map body.
func Item() Expr { return Expr{Op: OpItem} }

func Map(in Expr, body Expr) Expr {
	return Expr{Op: OpMap, Inputs: []Expr{in}, Params: map[string]any{"fn": body}}
}

func Merge(a, b Expr) Expr {
	return Expr{Op: OpMerge, Inputs: []Expr{a, b}}
}

func Reduce(in Expr, reducer string) Expr {
	return Expr{Op: OpReduce, Inputs: []Expr{in}, Params: map[string]any{"reducer": reducer}}
}

func Select(in Expr, bands ...string) Expr {
	return Expr{Op: OpSelect, Inputs: []Expr{in}, Params: map[string]any{"bands": bands}}
}

func ClipToFootprint(in Expr) Expr {
	return Expr{Op: OpClip, Inputs: []Expr{in}}
}

// Focal applies a circular neighbourhood filter (kernel: mean, median, ...).
func Focal(in Expr, kernel string, radiusM float64) Expr {
	return Expr{Op: OpFocal, Inputs: []Expr{in}, Params: map[string]any{
		"kernel":   kernel,
		"radius_m": radiusM,
		"units":    "meters",
	}}
}

// UnitScale maps [low, high] linearly onto [outLow, outHigh], clamping.
func UnitScale(in Expr, low, high, outLow, outHigh float64) Expr {
	return Expr{Op: OpUnitScale, Inputs: []Expr{in}, Params: map[string]any{
		"low": low, "high": high, "out_low": outLow, "out_high": outHigh, "clamp": true,
	}}
}

func Rename(in Expr, names ...string) Expr {
	return Expr{Op: OpRename, Inputs: []Expr{in}, Params: map[string]any{"names": names}}
}

func Concat(ins ...Expr) Expr {
	return Expr{Op: OpConcat, Inputs: ins}
}

// Fingerprint is a stable hash of the graph, used for cache keys.
func (e Expr) Fingerprint() uint64 {
	b, err := json.Marshal(e)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}

// Walk visits every node depth-first, map bodies included.
func (e Expr) Walk(fn func(Expr)) {
	fn(e)
	for _, in := range e.Inputs {
		in.Walk(fn)
	}
	if body, ok := e.Params["fn"].(Expr); ok {
		body.Walk(fn)
	}
}

// Count returns how many nodes with op appear in the graph.
func (e Expr) Count(op string) int {
	n := 0
	e.Walk(func(x Expr) {
		if x.Op == op {
			n++
		}
	})
	return n
}
