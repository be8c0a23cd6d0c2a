package composite

import (
	"context"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/imagery"
)

const SingleVVMean = "single-vv-mean/v1"

func init() {
	Register(SingleVVMean, func(opts Options) Builder { return &singleChannel{opts: opts, band: "VV"} })
}

// singleChannel selects one polarization from every item and averages over
// time. Output stays in dB.
type singleChannel struct {
	opts Options
	band string
}

func (s *singleChannel) Name() string { return SingleVVMean }

func (s *singleChannel) Polarizations() []string { return []string{s.band} }

func (s *singleChannel) Build(_ context.Context, in Input) (Result, error) {
	if err := checkInput(in); err != nil {
		return Result{}, err
	}
	perItem := imagery.Select(imagery.Item(), s.band)
	img := imagery.Rename(imagery.Reduce(imagery.Map(imagery.Collection(in.Filter), perItem), "mean"), s.band)

	return Result{
		Image:    img,
		Strategy: s.Name(),
		Bands:    []string{s.band},
		Vis: imagery.VisParams{
			Bands:   []string{s.band},
			Min:     SigmaDB.Low,
			Max:     SigmaDB.High,
			Palette: []string{"black", "white"},
		},
		SourceCount: in.Count,
		BBox:        in.BBox,
		Created:     s.opts.Now().UTC(),
	}, nil
}
