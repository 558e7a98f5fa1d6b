package field

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration rejects an unusable wave number at construction.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrInvalidInput rejects non-finite coordinates; state is left unchanged.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIndexRange flags out-of-range landmark access. Not reachable through
	// the public facade.
	ErrIndexRange = errors.New("index out of range")
)

// Estimator owns a fixed wave number, a landmark set and the latest
// observation snapshot. It is single-owner and synchronous; wrap it in
// SharedEstimator when readers and writers run concurrently.
//
// The wave number controls how fast phase accumulates with distance: higher
// values sharpen the probability peak at the cost of more side lobes.
type Estimator struct {
	waveNumber float64
	landmarks  *LandmarkSet
	obs        *ObservationState
}

func NewEstimator(waveNumber float64) (*Estimator, error) {
	if !finite(waveNumber) || waveNumber <= 0 {
		return nil, fmt.Errorf("wave number %v: %w", waveNumber, ErrConfiguration)
	}
	return &Estimator{
		waveNumber: waveNumber,
		landmarks:  NewLandmarkSet(),
		obs:        NewObservationState(),
	}, nil
}

func (e *Estimator) WaveNumber() float64 {
	return e.waveNumber
}

func (e *Estimator) LandmarkCount() int {
	return e.landmarks.Count()
}

// AddLandmark registers a wave source and returns its index. The current
// observation snapshot is not touched, so the new landmark stays outside the
// interference sum until the next UpdateObservation.
func (e *Estimator) AddLandmark(x, y float64) (int, error) {
	return e.landmarks.Add(x, y)
}

// UpdateObservation records reference distances from (x, y) to every
// registered landmark, replacing the previous snapshot.
func (e *Estimator) UpdateObservation(x, y float64) error {
	return e.obs.Record(x, y, e.landmarks)
}

// Probability evaluates the interference intensity at (x, y). Before any
// observation, or with no referenced landmarks, the field is identically
// zero and 0.0 is returned without error.
func (e *Estimator) Probability(x, y float64) (float64, error) {
	return Intensity(e.waveNumber, e.landmarks, e.obs, x, y)
}
