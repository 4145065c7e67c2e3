package decode

import (
	"fmt"
	"math"
	"sort"

	"github.com/jsphweid/pianoscribe/config"
	"github.com/jsphweid/pianoscribe/constants"
	"github.com/jsphweid/pianoscribe/model"
	"github.com/jsphweid/pianoscribe/util"
)

// ShapeError means the merged roll does not match the 88-pitch contract.
type ShapeError struct {
	Detail string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("decode: malformed roll: %s", e.Detail)
}

// Events turns a merged probability roll into discrete note events, ordered
// by onset time with ties broken by ascending pitch. Silence decodes to an
// empty, valid result.
func Events(r model.Roll, cfg *config.Root) ([]model.Note, error) {
	if err := checkShape(r); err != nil {
		return nil, err
	}

	var notes []model.Note
	for p := 0; p < constants.NumPitches; p++ {
		notes = append(notes, decodePitch(uint8(p), r.Onset[p], r.Frame[p], cfg)...)
	}

	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Onset != notes[j].Onset {
			return notes[i].Onset < notes[j].Onset
		}
		return notes[i].Pitch < notes[j].Pitch
	})
	return notes, nil
}

func checkShape(r model.Roll) error {
	if len(r.Onset) != constants.NumPitches || len(r.Frame) != constants.NumPitches {
		return &ShapeError{Detail: fmt.Sprintf("%d onset / %d frame rows, want %d",
			len(r.Onset), len(r.Frame), constants.NumPitches)}
	}
	steps := len(r.Onset[0])
	for p := 0; p < constants.NumPitches; p++ {
		if len(r.Onset[p]) != steps || len(r.Frame[p]) != steps {
			return &ShapeError{Detail: fmt.Sprintf("ragged rows at pitch %d", p)}
		}
	}
	return nil
}

// decodePitch runs the two-stage decode on one pitch row: peak-picked onsets
// over the onset curve, then an offset scan along the frame-active curve.
func decodePitch(pitch uint8, onsetRow, frameRow []float64, cfg *config.Root) []model.Note {
	onsets := pickOnsets(onsetRow, cfg.Decode.OnsetThreshold)
	if len(onsets) == 0 {
		return nil
	}

	var notes []model.Note
	for i, on := range onsets {
		limit := len(frameRow)
		if i+1 < len(onsets) {
			// a new onset for the same pitch forces the previous note closed
			limit = onsets[i+1].step
		}
		off := scanOffset(frameRow, on.step, limit, cfg)
		if off-on.step < cfg.Decode.MinNoteFrames {
			continue
		}
		notes = append(notes, model.Note{
			Pitch:    pitch,
			Onset:    float64(on.step) / constants.FrameRate,
			Offset:   float64(off) / constants.FrameRate,
			Velocity: velocity(on.peak, cfg),
		})
	}
	return notes
}

type onsetPeak struct {
	step int
	peak float64
}

// pickOnsets keeps one onset per contiguous above-threshold run, at the
// run's probability maximum, so a single attack smeared across neighboring
// frames never yields duplicates.
func pickOnsets(row []float64, threshold float64) []onsetPeak {
	var peaks []onsetPeak
	inRun := false
	best := onsetPeak{}
	for t, v := range row {
		if v >= threshold {
			if !inRun || v > best.peak {
				best = onsetPeak{step: t, peak: v}
			}
			inRun = true
			continue
		}
		if inRun {
			peaks = append(peaks, best)
			inRun = false
		}
	}
	if inRun {
		peaks = append(peaks, best)
	}
	return peaks
}

// scanOffset walks the frame-active row from the onset until the signal
// stays below the sustain threshold for MinSilentFrames consecutive steps.
// If it never drops, the note closes at limit.
func scanOffset(frameRow []float64, onset, limit int, cfg *config.Root) int {
	silent := 0
	for t := onset + 1; t < limit; t++ {
		if frameRow[t] < cfg.Decode.FrameThreshold {
			silent++
			if silent >= cfg.Decode.MinSilentFrames {
				return t - silent + 1
			}
		} else {
			silent = 0
		}
	}
	return limit
}

// velocity maps the onset peak probability monotonically onto [1,127].
// Gamma bends the curve; 1.0 is linear.
func velocity(peak float64, cfg *config.Root) uint8 {
	gamma := cfg.Decode.VelocityGamma
	if gamma <= 0 {
		gamma = 1
	}
	v := 1 + 126*math.Pow(util.Clamp(peak, 0, 1), gamma)
	return uint8(util.Clamp(int(math.Round(v)), 1, 127))
}
