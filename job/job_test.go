package job

import (
	"math"
	"testing"
	"time"

	"github.com/jsphweid/pianoscribe/config"
	"github.com/jsphweid/pianoscribe/constants"
	"github.com/jsphweid/pianoscribe/infer"
	"github.com/jsphweid/pianoscribe/midi"
	"github.com/jsphweid/pianoscribe/model"
	"github.com/stretchr/testify/assert"
)

func toneWaveform(seconds float64) model.Waveform {
	n := int(seconds * constants.SampleRate)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.3 * math.Sin(2*math.Pi*440*float64(i)/constants.SampleRate)
	}
	return model.Waveform{Samples: samples, SampleRate: constants.SampleRate}
}

// silentModel predicts no activity anywhere.
var silentModel = infer.ModelFunc(func(features model.Features) ([][]float64, [][]float64, error) {
	onset := make([][]float64, constants.NumPitches)
	frame := make([][]float64, constants.NumPitches)
	for p := range onset {
		onset[p] = make([]float64, len(features))
		frame[p] = make([]float64, len(features))
	}
	return onset, frame, nil
})

var nanModel = infer.ModelFunc(func(features model.Features) ([][]float64, [][]float64, error) {
	onset := make([][]float64, constants.NumPitches)
	frame := make([][]float64, constants.NumPitches)
	for p := range onset {
		onset[p] = make([]float64, len(features))
		frame[p] = make([]float64, len(features))
	}
	onset[0][0] = math.NaN()
	return onset, frame, nil
})

func waitTerminal(t *testing.T, m *Manager, id string) model.JobStatus {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		status, err := m.Status(id)
		assert.NoError(t, err)
		if status.State.Terminal() {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return model.JobStatus{}
}

func TestSubmitQueuesWithoutRunning(t *testing.T) {
	assert := assert.New(t)
	m := NewManager(config.Default(), silentModel, nil)

	id, err := m.Submit(toneWaveform(1))
	assert.NoError(err)
	assert.NotEmpty(id)

	status, err := m.Status(id)
	assert.NoError(err)
	assert.Equal(model.JobQueued, status.State)
	assert.Zero(status.Progress)
}

func TestStartRunsToCompletion(t *testing.T) {
	assert := assert.New(t)
	m := NewManager(config.Default(), silentModel, nil)

	id, err := m.Submit(toneWaveform(2))
	assert.NoError(err)

	status, err := m.Start(id)
	assert.NoError(err)
	assert.Equal(model.JobRunning, status.State)

	status = waitTerminal(t, m, id)
	assert.Equal(model.JobCompleted, status.State)
	assert.Equal(100, status.Progress)
	assert.False(status.Degraded)

	data, err := m.Result(id)
	assert.NoError(err)
	assert.NotEmpty(data)
}

func TestStartIsIdempotentOnceTerminal(t *testing.T) {
	assert := assert.New(t)
	m := NewManager(config.Default(), silentModel, nil)

	id, _ := m.Submit(toneWaveform(1))
	_, err := m.Start(id)
	assert.NoError(err)
	waitTerminal(t, m, id)

	status, err := m.Start(id)
	assert.NoError(err)
	assert.Equal(model.JobCompleted, status.State)
}

func TestResultBeforeCompletion(t *testing.T) {
	m := NewManager(config.Default(), silentModel, nil)

	id, _ := m.Submit(toneWaveform(1))
	_, err := m.Result(id)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestUnknownJob(t *testing.T) {
	m := NewManager(config.Default(), silentModel, nil)

	_, err := m.Status("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Start("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Result("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOverLongAudioIsRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.MaxSeconds = 1

	m := NewManager(cfg, silentModel, nil)
	_, err := m.Submit(toneWaveform(2))
	assert.Error(t, err)
}

func TestDegradedWindowsStillComplete(t *testing.T) {
	assert := assert.New(t)
	m := NewManager(config.Default(), nanModel, nil)

	id, _ := m.Submit(toneWaveform(2))
	_, err := m.Start(id)
	assert.NoError(err)

	status := waitTerminal(t, m, id)
	assert.Equal(model.JobCompleted, status.State)
	assert.True(status.Degraded)
	assert.Contains(status.Message, "degraded")

	data, err := m.Result(id)
	assert.NoError(err)
	assert.NotEmpty(data)
}

func TestQuietAudioYieldsEmptyMIDI(t *testing.T) {
	assert := assert.New(t)
	m := NewManager(config.Default(), silentModel, nil)

	// barely above the noise floor; nothing for the model to hear
	n := 3 * constants.SampleRate
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.005 * math.Sin(2*math.Pi*100*float64(i)/constants.SampleRate)
	}

	id, err := m.Submit(model.Waveform{Samples: samples, SampleRate: constants.SampleRate})
	assert.NoError(err)
	_, err = m.Start(id)
	assert.NoError(err)

	status := waitTerminal(t, m, id)
	assert.Equal(model.JobCompleted, status.State)

	data, err := m.Result(id)
	assert.NoError(err)

	s, err := midi.Parse(data)
	assert.NoError(err)
	assert.Empty(midi.NotesFromSMF(s))
}

func TestProgressNeverDecreases(t *testing.T) {
	assert := assert.New(t)
	m := NewManager(config.Default(), silentModel, nil)

	id, _ := m.Submit(toneWaveform(1))
	m.update(id, 50, "halfway")
	m.update(id, 30, "stale report")

	status, err := m.Status(id)
	assert.NoError(err)
	assert.Equal(50, status.Progress)
	assert.Equal("stale report", status.Message)
}

func TestSweepEvictsExpiredTerminalJobs(t *testing.T) {
	assert := assert.New(t)
	m := NewManager(config.Default(), silentModel, nil)

	done, _ := m.Submit(toneWaveform(1))
	fresh, _ := m.Submit(toneWaveform(1))

	m.mu.Lock()
	m.jobs[done].State = model.JobCompleted
	m.jobs[done].DoneAt = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	m.sweep(time.Now())

	_, err := m.Status(done)
	assert.ErrorIs(err, ErrNotFound)
	_, err = m.Status(fresh)
	assert.NoError(err)
}
