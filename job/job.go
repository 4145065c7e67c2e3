package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jsphweid/pianoscribe/audio"
	"github.com/jsphweid/pianoscribe/config"
	"github.com/jsphweid/pianoscribe/infer"
	"github.com/jsphweid/pianoscribe/model"
	"github.com/jsphweid/pianoscribe/util"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrNotReady = errors.New("job result not ready")
)

// Manager owns the in-memory job table and runs the transcription pipeline
// for started jobs on their own goroutines. All mutations of a Job happen
// under mu; readers always get a consistent snapshot.
type Manager struct {
	cfg   *config.Root
	model infer.Model
	log   *logrus.Logger

	mu    sync.RWMutex
	jobs  map[string]*model.Job
	waves map[string]model.Waveform

	sweepOnce sync.Once
	stopSweep chan struct{}
}

func NewManager(cfg *config.Root, mdl infer.Model, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{
		cfg:       cfg,
		model:     mdl,
		log:       log,
		jobs:      make(map[string]*model.Job),
		waves:     make(map[string]model.Waveform),
		stopSweep: make(chan struct{}),
	}
}

// Submit validates the waveform and records a queued job. Over-long audio
// is rejected here and never reaches the queue. Execution begins on Start.
func (m *Manager) Submit(w model.Waveform) (string, error) {
	if err := audio.ValidateDuration(w, m.cfg); err != nil {
		return "", err
	}

	j := &model.Job{
		ID:        uuid.New().String(),
		State:     model.JobQueued,
		Message:   "queued",
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[j.ID] = j
	m.waves[j.ID] = w
	m.mu.Unlock()

	return j.ID, nil
}

// Start launches the pipeline for a queued job. Starting a job that is
// already running or terminal is a no-op that reports the current state.
func (m *Manager) Start(id string) (model.JobStatus, error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return model.JobStatus{}, ErrNotFound
	}
	if j.State != model.JobQueued {
		status := snapshot(j)
		m.mu.Unlock()
		return status, nil
	}
	j.State = model.JobRunning
	j.Message = "starting"
	w := m.waves[id]
	delete(m.waves, id)
	status := snapshot(j)
	m.mu.Unlock()

	go m.run(id, w)
	return status, nil
}

// Status returns a consistent snapshot of the job record.
func (m *Manager) Status(id string) (model.JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return model.JobStatus{}, ErrNotFound
	}
	return snapshot(j), nil
}

// Result returns the assembled MIDI bytes of a completed job.
func (m *Manager) Result(id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if j.State != model.JobCompleted {
		return nil, ErrNotReady
	}
	return j.MIDI, nil
}

func snapshot(j *model.Job) model.JobStatus {
	return model.JobStatus{
		ID:       j.ID,
		State:    j.State,
		Progress: j.Progress,
		Message:  j.Message,
		Degraded: j.Degraded,
	}
}

// run drives the pipeline stages for one started job.
func (m *Manager) run(id string, w model.Waveform) {
	log := m.log.WithField("job", id)
	start := time.Now()

	result, midiBytes, degraded, err := Transcribe(context.Background(), m.cfg, m.model, w, func(progress int, message string) {
		m.update(id, progress, message)
	})
	if err != nil {
		log.WithError(err).Error("transcription failed")
		m.fail(id, err)
		return
	}

	m.mu.Lock()
	if j, ok := m.jobs[id]; ok && j.State == model.JobRunning {
		j.State = model.JobCompleted
		j.Progress = 100
		j.MIDI = midiBytes
		j.Degraded = degraded > 0
		if degraded > 0 {
			j.Message = fmt.Sprintf("completed (degraded: %v window(s) replaced with silence)", degraded)
		} else {
			j.Message = "completed"
		}
		j.DoneAt = time.Now()
	}
	m.mu.Unlock()

	log.WithFields(logrus.Fields{
		"notes":    len(result.Notes),
		"degraded": degraded,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("transcription complete")
}

// update advances progress and message together. Progress never decreases.
func (m *Manager) update(id string, progress int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || j.State.Terminal() {
		return
	}
	j.Progress = util.Max(j.Progress, progress)
	j.Message = message
}

func (m *Manager) fail(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || j.State.Terminal() {
		return
	}
	j.State = model.JobFailed
	j.Err = err.Error()
	j.Message = err.Error()
	j.DoneAt = time.Now()
}

// StartSweeper begins the timed eviction of terminal jobs older than the
// retention window. Close stops it.
func (m *Manager) StartSweeper() {
	m.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(m.cfg.SweepInterval())
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.sweep(time.Now())
				case <-m.stopSweep:
					return
				}
			}
		}()
	})
}

func (m *Manager) sweep(now time.Time) {
	retention := m.cfg.Retention()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range util.GetKeys(m.jobs) {
		j := m.jobs[id]
		if j.State.Terminal() && now.Sub(j.DoneAt) > retention {
			delete(m.jobs, id)
			delete(m.waves, id)
		}
	}
}

func (m *Manager) Close() {
	close(m.stopSweep)
}
