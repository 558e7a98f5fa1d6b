package field

import (
	"fmt"
	"math"
)

// ObservationState holds the reference distances captured at the most recent
// observation, indexed by landmark position at recording time. A recording
// replaces the previous snapshot wholesale; landmarks added afterwards have
// no reference distance until the next recording.
type ObservationState struct {
	refDist  []float64
	recorded bool
}

func NewObservationState() *ObservationState {
	return &ObservationState{}
}

// Record snapshots the distance from (x, y) to every landmark currently in
// the set. An empty set yields a valid empty snapshot.
func (o *ObservationState) Record(x, y float64, set *LandmarkSet) error {
	if !finite(x) || !finite(y) {
		return fmt.Errorf("observation (%v, %v): %w", x, y, ErrInvalidInput)
	}
	dists := make([]float64, len(set.landmarks))
	for i, lm := range set.landmarks {
		dists[i] = math.Hypot(x-lm.X, y-lm.Y)
	}
	o.refDist = dists
	o.recorded = true
	return nil
}

// ReferenceDistance returns the stored distance for a landmark index. The
// second return is false when the index was not part of the latest snapshot.
func (o *ObservationState) ReferenceDistance(i int) (float64, bool) {
	if i < 0 || i >= len(o.refDist) {
		return 0, false
	}
	return o.refDist[i], true
}

// Recorded reports whether any recording has ever occurred.
func (o *ObservationState) Recorded() bool {
	return o.recorded
}

// Len is the number of reference distances in the latest snapshot.
func (o *ObservationState) Len() int {
	return len(o.refDist)
}

func (o *ObservationState) Clone() *ObservationState {
	cp := make([]float64, len(o.refDist))
	copy(cp, o.refDist)
	return &ObservationState{refDist: cp, recorded: o.recorded}
}
