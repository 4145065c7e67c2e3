package job

import (
	"context"
	"fmt"

	"github.com/jsphweid/pianoscribe/audio"
	"github.com/jsphweid/pianoscribe/chunk"
	"github.com/jsphweid/pianoscribe/config"
	"github.com/jsphweid/pianoscribe/decode"
	"github.com/jsphweid/pianoscribe/feature"
	"github.com/jsphweid/pianoscribe/infer"
	"github.com/jsphweid/pianoscribe/midi"
	"github.com/jsphweid/pianoscribe/model"
	"github.com/jsphweid/pianoscribe/roll"
)

// ProgressFunc receives stage progress as the pipeline advances.
type ProgressFunc func(progress int, message string)

// Transcribe runs the full pipeline on a normalized-or-raw waveform:
// features -> windows -> inference -> merge -> decode -> MIDI bytes.
// degraded counts inference windows that were replaced with silence.
func Transcribe(ctx context.Context, cfg *config.Root, mdl infer.Model, w model.Waveform, progress ProgressFunc) (*model.Transcription, []byte, int, error) {
	if progress == nil {
		progress = func(int, string) {}
	}

	progress(5, "extracting features")
	w = audio.Normalize(w, cfg)
	extractor := feature.NewExtractor(cfg)
	feats, err := extractor.Extract(w)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("extracting features: %w", err)
	}

	progress(15, "scheduling windows")
	windows := chunk.Schedule(len(feats), cfg.WindowFrames(), cfg.OverlapFrames())

	progress(20, fmt.Sprintf("running inference over %d window(s)", len(windows)))
	engine := infer.NewEngine(mdl, cfg)
	rolls, degraded, err := engine.Run(ctx, feats, windows)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("running inference: %w", err)
	}

	progress(70, "merging windows")
	merged, err := roll.Merge(len(feats), windows, rolls)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("merging rolls: %w", err)
	}

	progress(85, "decoding note events")
	notes, err := decode.Events(merged, cfg)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("decoding events: %w", err)
	}

	progress(95, "assembling midi")
	result := &model.Transcription{
		Notes:           notes,
		Tempo:           cfg.MIDI.Tempo,
		TicksPerQuarter: uint16(cfg.MIDI.TicksPerQuarter),
	}
	midiBytes, err := midi.Assemble(*result)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("assembling midi: %w", err)
	}

	return result, midiBytes, degraded, nil
}
