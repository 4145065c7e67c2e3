package infer

import (
	"math"

	"github.com/jsphweid/pianoscribe/constants"
	"github.com/jsphweid/pianoscribe/model"
)

// FluxModel is a deterministic spectral-flux baseline that stands in when no
// trained weights are wired up: frame activity follows per-pitch band energy
// and onsets follow positive energy flux. Transcription quality is crude but
// the full pipeline stays runnable end to end.
type FluxModel struct {
	bands [constants.NumPitches]int
}

func NewFluxModel() *FluxModel {
	m := &FluxModel{}
	for p := 0; p < constants.NumPitches; p++ {
		midi := constants.MinMidiNote + p
		hz := 440 * math.Pow(2, float64(midi-69)/12)
		m.bands[p] = nearestMelBand(hz)
	}
	return m
}

func (m *FluxModel) Predict(features model.Features) ([][]float64, [][]float64, error) {
	steps := len(features)
	onset := make([][]float64, constants.NumPitches)
	frame := make([][]float64, constants.NumPitches)

	for p := 0; p < constants.NumPitches; p++ {
		band := m.bands[p]
		onset[p] = make([]float64, steps)
		frame[p] = make([]float64, steps)
		prev := 0.0
		for t := 0; t < steps; t++ {
			v := features[t][band]
			frame[p][t] = logistic(v)
			flux := v - prev
			if flux < 0 {
				flux = 0
			}
			onset[p][t] = logistic(2*flux - 3)
			prev = v
		}
	}
	return onset, frame, nil
}

// nearestMelBand maps a frequency onto the closest of the 128 mel band
// centers used by the feature extractor.
func nearestMelBand(hz float64) int {
	nyquist := float64(constants.SampleRate) / 2
	melHi := 2595 * math.Log10(1+nyquist/700)
	mel := 2595 * math.Log10(1+hz/700)

	band := int(mel/melHi*float64(constants.NumMels+1)) - 1
	if band < 0 {
		band = 0
	}
	if band >= constants.NumMels {
		band = constants.NumMels - 1
	}
	return band
}

func logistic(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
