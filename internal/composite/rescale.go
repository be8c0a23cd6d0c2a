package composite

import "math"

// Rescale is an affine mapping of a physical interval onto a display range.
// Forward and inverse share these constants:
//
//	pixel    = (physical - Offset) * ScaleFactor   (clamped to [OutLow, OutHigh])
//	physical = pixel / ScaleFactor + Offset
//
// with Offset = Low and OutLow = 0.
type Rescale struct {
	Low, High       float64
	OutLow, OutHigh float64
}

// SigmaDB maps SAR backscatter in [-25, 0] dB onto the 8-bit range.
var SigmaDB = Rescale{Low: -25, High: 0, OutLow: 0, OutHigh: 255}

func (r Rescale) ScaleFactor() float64 {
	return (r.OutHigh - r.OutLow) / (r.High - r.Low)
}

func (r Rescale) Offset() float64 { return r.Low }

// Forward maps a physical value to display units; out-of-interval values clamp.
func (r Rescale) Forward(v float64) float64 {
	p := (v-r.Low)*r.ScaleFactor() + r.OutLow
	return math.Min(math.Max(p, r.OutLow), r.OutHigh)
}

// Inverse maps display units back to physical units.
func (r Rescale) Inverse(p float64) float64 {
	return (p-r.OutLow)/r.ScaleFactor() + r.Low
}

// ToPixel quantizes Forward to an 8-bit value.
func (r Rescale) ToPixel(v float64) uint8 {
	return uint8(math.Round(r.Forward(v)))
}

func (r Rescale) ToPhysical(p uint8) float64 {
	return r.Inverse(float64(p))
}
