package field

import (
	"fmt"
	"math"
)

// Amplitude is an explicit two-component complex value. Kept as a plain
// struct rather than complex128 so wire and storage layers see float pairs.
type Amplitude struct {
	Re, Im float64
}

func (a Amplitude) Add(b Amplitude) Amplitude {
	return Amplitude{Re: a.Re + b.Re, Im: a.Im + b.Im}
}

// Intensity is the squared modulus.
func (a Amplitude) Intensity() float64 {
	return a.Re*a.Re + a.Im*a.Im
}

// envelope models amplitude fall-off with range. Strictly positive, strictly
// decreasing, finite at zero distance.
func envelope(d float64) float64 {
	return 1.0 / (1.0 + d)
}

// Intensity evaluates the interference intensity at (x, y) for a wave number
// and one consistent (LandmarkSet, ObservationState) pair. Each landmark i
// with a reference distance r_i contributes
//
//	envelope(d_i) * exp(j * k * (d_i - r_i))
//
// where d_i is the distance from the query point to landmark i. Landmarks
// without a reference (added after the last recording) are omitted. The
// result is the squared modulus of the sum: non-negative, unnormalized,
// comparable only between points under the same state.
func Intensity(k float64, set *LandmarkSet, obs *ObservationState, x, y float64) (float64, error) {
	if !finite(x) || !finite(y) {
		return 0, fmt.Errorf("query (%v, %v): %w", x, y, ErrInvalidInput)
	}
	return intensityAt(k, set, obs, x, y), nil
}

// intensityAt is Intensity without input validation, for callers that have
// already validated (the grid rasterizer evaluates many points per call).
func intensityAt(k float64, set *LandmarkSet, obs *ObservationState, x, y float64) float64 {
	if obs == nil || !obs.recorded {
		return 0
	}
	var sum Amplitude
	for i, lm := range set.landmarks {
		r, ok := obs.ReferenceDistance(i)
		if !ok {
			continue
		}
		d := math.Hypot(x-lm.X, y-lm.Y)
		phase := k * (d - r)
		amp := envelope(d)
		sum = sum.Add(Amplitude{Re: amp * math.Cos(phase), Im: amp * math.Sin(phase)})
	}
	return sum.Intensity()
}
