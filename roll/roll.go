package roll

import (
	"fmt"

	"github.com/jsphweid/pianoscribe/constants"
	"github.com/jsphweid/pianoscribe/model"
)

// taperFloor keeps window edges strictly positive so a position covered by a
// single window edge never divides by zero.
const taperFloor = 1e-3

// Merge stitches per-window probability rolls into one canonical roll of
// totalSteps steps. Each window's values are accumulated at its absolute
// offset under a triangular taper, then the accumulator is divided by the
// summed taper weights. Overlap regions cross-fade instead of seaming.
func Merge(totalSteps int, windows []model.Window, rolls []model.Roll) (model.Roll, error) {
	var merged model.Roll

	if len(windows) != len(rolls) {
		return merged, fmt.Errorf("merge: %d windows but %d rolls", len(windows), len(rolls))
	}

	onset := newMatrix(constants.NumPitches, totalSteps)
	frame := newMatrix(constants.NumPitches, totalSteps)
	weights := make([]float64, totalSteps)

	for i, win := range windows {
		r := rolls[i]
		steps := r.Steps()
		if steps == 0 {
			continue
		}
		if steps > win.Length {
			steps = win.Length
		}
		taper := triangularTaper(steps)
		for t := 0; t < steps; t++ {
			abs := win.Start + t
			if abs < 0 || abs >= totalSteps {
				continue
			}
			w := taper[t]
			weights[abs] += w
			for p := 0; p < constants.NumPitches; p++ {
				onset[p][abs] += w * r.Onset[p][t]
				frame[p][abs] += w * r.Frame[p][t]
			}
		}
	}

	for t := 0; t < totalSteps; t++ {
		w := weights[t]
		if w == 0 {
			// scheduler guarantees coverage; uncovered means caller error
			return merged, fmt.Errorf("merge: step %d not covered by any window", t)
		}
		for p := 0; p < constants.NumPitches; p++ {
			onset[p][t] /= w
			frame[p][t] /= w
		}
	}

	merged.Onset = onset
	merged.Frame = frame
	return merged, nil
}

// triangularTaper is maximal at the window center and falls off linearly to
// taperFloor at the edges.
func triangularTaper(n int) []float64 {
	taper := make([]float64, n)
	if n == 1 {
		taper[0] = 1
		return taper
	}
	for i := range taper {
		pos := float64(i) / float64(n-1) // 0..1
		v := 1 - abs(2*pos-1)
		if v < taperFloor {
			v = taperFloor
		}
		taper[i] = v
	}
	return taper
}

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
