package roll

import (
	"testing"

	"github.com/jsphweid/pianoscribe/chunk"
	"github.com/jsphweid/pianoscribe/constants"
	"github.com/jsphweid/pianoscribe/model"
	"github.com/stretchr/testify/assert"
)

func constantRoll(steps int, value float64) model.Roll {
	r := model.Roll{
		Onset: make([][]float64, constants.NumPitches),
		Frame: make([][]float64, constants.NumPitches),
	}
	for p := range r.Onset {
		r.Onset[p] = make([]float64, steps)
		r.Frame[p] = make([]float64, steps)
		for t := 0; t < steps; t++ {
			r.Onset[p][t] = value
			r.Frame[p][t] = value
		}
	}
	return r
}

func TestMergeConstantRollsStaysConstant(t *testing.T) {
	assert := assert.New(t)

	total := 1000
	windows := chunk.Schedule(total, 312, 47)
	rolls := make([]model.Roll, len(windows))
	for i, w := range windows {
		rolls[i] = constantRoll(w.Length, 0.7)
	}

	merged, err := Merge(total, windows, rolls)
	assert.NoError(err)

	for p := 0; p < constants.NumPitches; p++ {
		for s := 0; s < total; s++ {
			assert.InDelta(0.7, merged.Onset[p][s], 1e-9)
			assert.InDelta(0.7, merged.Frame[p][s], 1e-9)
		}
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	assert := assert.New(t)

	total := 700
	windows := chunk.Schedule(total, 312, 47)
	rolls := make([]model.Roll, len(windows))
	for i, w := range windows {
		r := constantRoll(w.Length, 0.2)
		// vary a few cells so the overlap blend actually matters
		r.Onset[30][w.Length/2] = 0.9
		r.Frame[30][w.Length/2] = 0.8
		rolls[i] = r
	}

	a, err := Merge(total, windows, rolls)
	assert.NoError(err)
	b, err := Merge(total, windows, rolls)
	assert.NoError(err)

	// identical inputs must produce bit-identical output
	assert.Equal(a, b)
}

func TestMergeStaysInUnitInterval(t *testing.T) {
	total := 800
	windows := chunk.Schedule(total, 312, 47)
	rolls := make([]model.Roll, len(windows))
	for i, w := range windows {
		rolls[i] = constantRoll(w.Length, 1.0)
	}

	merged, err := Merge(total, windows, rolls)
	assert.NoError(t, err)
	for p := 0; p < constants.NumPitches; p++ {
		for s := 0; s < total; s++ {
			v := merged.Onset[p][s]
			assert.True(t, v >= 0 && v <= 1.0000001, "onset out of range at %d/%d: %v", p, s, v)
		}
	}
}

func TestMergeRejectsMismatchedInputs(t *testing.T) {
	windows := chunk.Schedule(500, 312, 47)
	_, err := Merge(500, windows, []model.Roll{constantRoll(312, 0.5)})
	assert.Error(t, err)
}

func TestMergeRejectsUncoveredSteps(t *testing.T) {
	// a single window that leaves the tail uncovered
	windows := []model.Window{{Index: 0, Start: 0, Length: 100}}
	rolls := []model.Roll{constantRoll(100, 0.5)}
	_, err := Merge(200, windows, rolls)
	assert.Error(t, err)
}
