package field

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GridSpec is a caller-supplied raster extent and resolution. Cells are
// evaluated at their centers.
type GridSpec struct {
	MinX, MinY float64
	MaxX, MaxY float64
	Cols, Rows int
}

func (gs GridSpec) validate() error {
	if !finite(gs.MinX) || !finite(gs.MinY) || !finite(gs.MaxX) || !finite(gs.MaxY) {
		return fmt.Errorf("grid extent: %w", ErrInvalidInput)
	}
	if gs.MaxX <= gs.MinX || gs.MaxY <= gs.MinY {
		return fmt.Errorf("grid extent (%v,%v)-(%v,%v): %w", gs.MinX, gs.MinY, gs.MaxX, gs.MaxY, ErrInvalidInput)
	}
	if gs.Cols < 1 || gs.Rows < 1 {
		return fmt.Errorf("grid size %dx%d: %w", gs.Cols, gs.Rows, ErrInvalidInput)
	}
	return nil
}

// CellCenter returns the evaluation point of a cell.
func (gs GridSpec) CellCenter(row, col int) (float64, float64) {
	cw := (gs.MaxX - gs.MinX) / float64(gs.Cols)
	ch := (gs.MaxY - gs.MinY) / float64(gs.Rows)
	return gs.MinX + (float64(col)+0.5)*cw, gs.MinY + (float64(row)+0.5)*ch
}

// Grid holds raw intensities in row-major order. Values are unnormalized;
// use Stats to scale for display.
type Grid struct {
	Spec  GridSpec
	Cells []float64
}

func (g *Grid) At(row, col int) float64 {
	return g.Cells[row*g.Spec.Cols+col]
}

// GridStats summarizes raw intensities so display layers can scale without
// the core normalizing the field.
type GridStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	P99  float64 `json:"p99"`
}

func (g *Grid) Stats() GridStats {
	if len(g.Cells) == 0 {
		return GridStats{}
	}
	sorted := make([]float64, len(g.Cells))
	copy(sorted, g.Cells)
	sort.Float64s(sorted)
	return GridStats{
		Min:  floats.Min(sorted),
		Max:  floats.Max(sorted),
		Mean: stat.Mean(g.Cells, nil),
		P99:  stat.Quantile(0.99, stat.Empirical, sorted, nil),
	}
}

func evalGrid(k float64, set *LandmarkSet, obs *ObservationState, spec GridSpec) (*Grid, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	g := &Grid{Spec: spec, Cells: make([]float64, spec.Rows*spec.Cols)}

	workers := runtime.NumCPU()
	if workers > spec.Rows {
		workers = spec.Rows
	}
	rows := make(chan int, spec.Rows)
	for r := 0; r < spec.Rows; r++ {
		rows <- r
	}
	close(rows)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range rows {
				base := r * spec.Cols
				for c := 0; c < spec.Cols; c++ {
					x, y := spec.CellCenter(r, c)
					g.Cells[base+c] = intensityAt(k, set, obs, x, y)
				}
			}
		}()
	}
	wg.Wait()
	return g, nil
}

// Grid rasterizes a single-owner estimator's current state.
func (e *Estimator) Grid(spec GridSpec) (*Grid, error) {
	return evalGrid(e.waveNumber, e.landmarks, e.obs, spec)
}
