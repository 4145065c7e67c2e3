package infer

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/jsphweid/pianoscribe/config"
	"github.com/jsphweid/pianoscribe/constants"
	"github.com/jsphweid/pianoscribe/model"
)

// Model is the opaque trained-model capability. Input is a feature window of
// shape [step][mel band]; outputs are onset and frame-active probabilities of
// shape [pitch 0..87][step], already squashed into [0,1]. Implementations
// must be safe for concurrent use: one Model is shared across all jobs.
type Model interface {
	Predict(features model.Features) (onset, frame [][]float64, err error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(features model.Features) (onset, frame [][]float64, err error)

func (f ModelFunc) Predict(features model.Features) ([][]float64, [][]float64, error) {
	return f(features)
}

// Engine feeds scheduled windows through the model with bounded parallelism
// and restores scheduler order regardless of completion order.
type Engine struct {
	model   Model
	workers int
}

func NewEngine(mdl Model, cfg *config.Root) *Engine {
	workers := cfg.Inference.Workers
	if workers < 1 {
		workers = 1
	}
	return &Engine{model: mdl, workers: workers}
}

// Run predicts a probability roll for every window. A window whose
// prediction fails or contains non-finite values degrades to an all-zero
// roll; degraded reports how many windows were replaced. Only a broken
// model contract (wrong pitch count) is fatal.
func (e *Engine) Run(ctx context.Context, feats model.Features, windows []model.Window) ([]model.Roll, int, error) {
	rolls := make([]model.Roll, len(windows))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		degraded int
		fatal    error
	)

	jobs := make(chan int)
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				win := windows[idx]
				r, bad, err := e.predictWindow(feats[win.Start:win.End()], win.Length)
				mu.Lock()
				if err != nil && fatal == nil {
					fatal = fmt.Errorf("window %d: %w", win.Index, err)
				}
				if bad {
					degraded++
				}
				rolls[idx] = r
				mu.Unlock()
			}
		}()
	}

	for idx := range windows {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, 0, ctx.Err()
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	if fatal != nil {
		return nil, 0, fatal
	}
	return rolls, degraded, nil
}

// predictWindow returns the window's roll, substituting zeros when the model
// errors or emits NaN/Inf. A wrong pitch dimension is a contract violation
// and comes back as a hard error.
func (e *Engine) predictWindow(features model.Features, steps int) (model.Roll, bool, error) {
	onset, frame, err := e.model.Predict(features)
	if err != nil {
		return zeroRoll(steps), true, nil
	}
	if len(onset) != constants.NumPitches || len(frame) != constants.NumPitches {
		return model.Roll{}, false, fmt.Errorf("model produced %d/%d pitch rows, want %d",
			len(onset), len(frame), constants.NumPitches)
	}
	r := model.Roll{Onset: onset, Frame: frame}
	if !finite(onset) || !finite(frame) {
		return zeroRoll(steps), true, nil
	}
	return r, false, nil
}

func finite(m [][]float64) bool {
	for _, row := range m {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func zeroRoll(steps int) model.Roll {
	r := model.Roll{
		Onset: make([][]float64, constants.NumPitches),
		Frame: make([][]float64, constants.NumPitches),
	}
	for p := 0; p < constants.NumPitches; p++ {
		r.Onset[p] = make([]float64, steps)
		r.Frame[p] = make([]float64, steps)
	}
	return r
}
