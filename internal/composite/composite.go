// Package composite turns a matched set of SAR items into named output bands.
// Strategies are registered under versioned names and picked explicitly.
package composite

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/imagery"
)

// Input is what the planner hands over after a non-empty match.
type Input struct {
	Filter model.Filter
	Count  int
	BBox   model.BBox
}

// Result is a derived multi-band image handle owned by the caller.
type Result struct {
	Image       imagery.Expr      `json:"image"`
	Strategy    string            `json:"strategy"`
	Bands       []string          `json:"bands"`
	Vis         imagery.VisParams `json:"vis"`
	Rescale     *Rescale          `json:"rescale,omitempty"`
	SourceCount int               `json:"source_count"`
	BBox        model.BBox        `json:"-"`
	Created     time.Time         `json:"created"`
}

// PhysicalImage returns the image in physical units, undoing the display
// rescale when the strategy applied one.
func (r Result) PhysicalImage() imagery.Expr {
	if r.Rescale == nil {
		return r.Image
	}
	rs := *r.Rescale
	return imagery.UnitScale(r.Image, rs.OutLow, rs.OutHigh, rs.Low, rs.High)
}

type Builder interface {
	Name() string
	// Polarizations every matched item must carry.
	Polarizations() []string
	Build(ctx context.Context, in Input) (Result, error)
}

type Options struct {
	Now func() time.Time
}

type Factory func(opts Options) Builder

var reg = map[string]Factory{}

func Register(name string, f Factory) {
	reg[name] = f
}

// New returns the named strategy. Unknown names are an error; there is no
// fallback so results stay reproducible per strategy.
func New(name string, opts Options) (Builder, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if f, ok := reg[name]; ok {
		return f(opts), nil
	}
	return nil, fmt.Errorf("unknown composite strategy %q (known: %v)", name, Names())
}

func Names() []string {
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func checkInput(in Input) error {
	if in.Count <= 0 {
		return apperr.NoData(in.Filter.StartDate, in.Filter.EndDate)
	}
	return nil
}
