package composite

import (
	"context"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/apperr"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/imagery"
)

const DirectionalMax = "directional-max/v2"

// Band names of the directional composite, in output order.
const (
	BandVVAsc  = "VV_ASC"
	BandVVDesc = "VV_DESC"
	BandVHMax  = "VH_MAX"
)

const (
	despeckleKernel  = "median"
	despeckleRadiusM = 50.0
	smoothKernel     = "mean"
	smoothRadiusM    = 30.0
)

func init() {
	Register(DirectionalMax, func(opts Options) Builder { return &directional{opts: opts, scale: SigmaDB} })
}

// directional splits items by orbit pass. VV is reduced per pass, VH over
// every pass in the request; all bands are in display units (see SigmaDB).
// A filter pinned to one pass yields only that pass's VV band plus VH_MAX.
type directional struct {
	opts  Options
	scale Rescale
}

func (d *directional) Name() string { return DirectionalMax }

func (d *directional) Polarizations() []string { return []string{"VH", "VV"} }

// perItem is the chain applied to every matched item before reduction.
func (d *directional) perItem(band string) imagery.Expr {
	x := imagery.Select(imagery.Item(), band)
	x = imagery.ClipToFootprint(x)
	x = imagery.Focal(x, despeckleKernel, despeckleRadiusM)
	return imagery.UnitScale(x, d.scale.Low, d.scale.High, d.scale.OutLow, d.scale.OutHigh)
}

func (d *directional) vvMax(items imagery.Expr, band string) imagery.Expr {
	return imagery.Rename(imagery.Reduce(imagery.Map(items, d.perItem("VV")), "max"), band)
}

func (d *directional) Build(_ context.Context, in Input) (Result, error) {
	if err := checkInput(in); err != nil {
		return Result{}, err
	}

	var (
		vv    []imagery.Expr
		bands []string
		rgb   []string
		vhIn  imagery.Expr
	)
	switch in.Filter.OrbitPass {
	case model.OrbitAny:
		asc := in.Filter
		asc.OrbitPass = model.OrbitAscending
		desc := in.Filter
		desc.OrbitPass = model.OrbitDescending
		ascItems := imagery.Collection(asc)
		descItems := imagery.Collection(desc)
		vv = []imagery.Expr{d.vvMax(ascItems, BandVVAsc), d.vvMax(descItems, BandVVDesc)}
		bands = []string{BandVVAsc, BandVVDesc, BandVHMax}
		rgb = bands
		vhIn = imagery.Merge(ascItems, descItems)
	case model.OrbitAscending:
		items := imagery.Collection(in.Filter)
		vv = []imagery.Expr{d.vvMax(items, BandVVAsc)}
		bands = []string{BandVVAsc, BandVHMax}
		// tiles render as RGB; a single pass repeats its VV band
		rgb = []string{BandVVAsc, BandVHMax, BandVVAsc}
		vhIn = items
	case model.OrbitDescending:
		items := imagery.Collection(in.Filter)
		vv = []imagery.Expr{d.vvMax(items, BandVVDesc)}
		bands = []string{BandVVDesc, BandVHMax}
		rgb = []string{BandVVDesc, BandVHMax, BandVVDesc}
		vhIn = items
	default:
		return Result{}, apperr.InvalidArgument("orbit_pass", "unknown orbit pass %q", in.Filter.OrbitPass)
	}
	vhMax := imagery.Rename(imagery.Reduce(imagery.Map(vhIn, d.perItem("VH")), "max"), BandVHMax)

	img := imagery.Focal(imagery.Concat(append(vv, vhMax)...), smoothKernel, smoothRadiusM)
	scale := d.scale

	return Result{
		Image:    img,
		Strategy: d.Name(),
		Bands:    bands,
		Vis: imagery.VisParams{
			Bands: rgb,
			Min:   scale.OutLow,
			Max:   scale.OutHigh,
		},
		Rescale:     &scale,
		SourceCount: in.Count,
		BBox:        in.BBox,
		Created:     d.opts.Now().UTC(),
	}, nil
}
