package field

import (
	"fmt"
	"math"
)

// Landmark is a fixed 2-D point acting as a coherent wave source.
type Landmark struct {
	X, Y float64
}

// LandmarkSet is an append-only, insertion-ordered collection of landmarks.
// Indices are stable for the lifetime of the set; order has no effect on
// field values. Coincident landmarks are allowed and treated as independent
// sources.
type LandmarkSet struct {
	landmarks []Landmark
}

func NewLandmarkSet() *LandmarkSet {
	return &LandmarkSet{}
}

// Add appends a landmark and returns its assigned index.
func (s *LandmarkSet) Add(x, y float64) (int, error) {
	if !finite(x) || !finite(y) {
		return 0, fmt.Errorf("landmark (%v, %v): %w", x, y, ErrInvalidInput)
	}
	s.landmarks = append(s.landmarks, Landmark{X: x, Y: y})
	return len(s.landmarks) - 1, nil
}

func (s *LandmarkSet) Count() int {
	return len(s.landmarks)
}

func (s *LandmarkSet) At(i int) (Landmark, error) {
	if i < 0 || i >= len(s.landmarks) {
		return Landmark{}, fmt.Errorf("landmark index %d of %d: %w", i, len(s.landmarks), ErrIndexRange)
	}
	return s.landmarks[i], nil
}

// Clone returns an independent copy. The snapshot layer clones before
// mutating so published sets stay immutable.
func (s *LandmarkSet) Clone() *LandmarkSet {
	cp := make([]Landmark, len(s.landmarks))
	copy(cp, s.landmarks)
	return &LandmarkSet{landmarks: cp}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
