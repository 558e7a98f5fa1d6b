package field

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Snapshot is one internally consistent (LandmarkSet, ObservationState)
// pair. Readers always see a complete pair, never a landmark list mixed
// with a half-written observation.
type Snapshot struct {
	Landmarks *LandmarkSet
	Obs       *ObservationState
}

// SharedEstimator publishes immutable snapshots for concurrent use.
// Mutators serialize on a mutex, clone the current pair, apply the change
// and atomically swap the pointer; readers load the pointer and never
// block. The wrapped state is never mutated in place after publication.
type SharedEstimator struct {
	waveNumber float64

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[Snapshot]
}

func NewShared(waveNumber float64) (*SharedEstimator, error) {
	if !finite(waveNumber) || waveNumber <= 0 {
		return nil, fmt.Errorf("wave number %v: %w", waveNumber, ErrConfiguration)
	}
	s := &SharedEstimator{waveNumber: waveNumber}
	s.snap.Store(&Snapshot{Landmarks: NewLandmarkSet(), Obs: NewObservationState()})
	return s, nil
}

func (s *SharedEstimator) WaveNumber() float64 {
	return s.waveNumber
}

// Snapshot returns the currently published pair. The result must be treated
// as read-only.
func (s *SharedEstimator) Snapshot() *Snapshot {
	return s.snap.Load()
}

func (s *SharedEstimator) LandmarkCount() int {
	return s.snap.Load().Landmarks.Count()
}

func (s *SharedEstimator) AddLandmark(x, y float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snap.Load()
	set := cur.Landmarks.Clone()
	idx, err := set.Add(x, y)
	if err != nil {
		return 0, err
	}
	// The observation snapshot is unchanged; the new landmark has no
	// reference distance until the next recording.
	s.snap.Store(&Snapshot{Landmarks: set, Obs: cur.Obs})
	return idx, nil
}

func (s *SharedEstimator) UpdateObservation(x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snap.Load()
	obs := NewObservationState()
	if err := obs.Record(x, y, cur.Landmarks); err != nil {
		return err
	}
	s.snap.Store(&Snapshot{Landmarks: cur.Landmarks, Obs: obs})
	return nil
}

func (s *SharedEstimator) Probability(x, y float64) (float64, error) {
	cur := s.snap.Load()
	return Intensity(s.waveNumber, cur.Landmarks, cur.Obs, x, y)
}

// Grid rasterizes the currently published snapshot over the given spec.
func (s *SharedEstimator) Grid(spec GridSpec) (*Grid, error) {
	cur := s.snap.Load()
	return evalGrid(s.waveNumber, cur.Landmarks, cur.Obs, spec)
}
