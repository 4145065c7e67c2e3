package config

import (
	"os"
	"runtime"
	"time"

	"github.com/jsphweid/pianoscribe/constants"
	"github.com/jsphweid/pianoscribe/util"
	"gopkg.in/yaml.v3"
)

type Audio struct {
	MaxSeconds   float64 `yaml:"max_seconds"`
	NoiseFloor   float64 `yaml:"noise_floor"` // RMS below this counts as silence
	TargetRMS    float64 `yaml:"target_rms"`
	ClipAmp      float64 `yaml:"clip_amp"`
	FFmpegPath   string  `yaml:"ffmpeg_path"`
	DecodeBudget int     `yaml:"decode_budget_seconds"`
}

type Windowing struct {
	WindowSeconds  float64 `yaml:"window_seconds"`
	OverlapSeconds float64 `yaml:"overlap_seconds"`
}

type Inference struct {
	Workers int `yaml:"workers"`
}

type Decode struct {
	OnsetThreshold  float64 `yaml:"onset_threshold"`
	FrameThreshold  float64 `yaml:"frame_threshold"`
	MinNoteFrames   int     `yaml:"min_note_frames"`
	MinSilentFrames int     `yaml:"min_silent_frames"`
	VelocityGamma   float64 `yaml:"velocity_gamma"`
}

type MIDI struct {
	Tempo           float64 `yaml:"tempo"`
	TicksPerQuarter int     `yaml:"ticks_per_quarter"`
}

type Jobs struct {
	RetentionSeconds int `yaml:"retention_seconds"`
	SweepSeconds     int `yaml:"sweep_seconds"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Root struct {
	Audio     Audio     `yaml:"audio"`
	Windowing Windowing `yaml:"windowing"`
	Inference Inference `yaml:"inference"`
	Decode    Decode    `yaml:"decode"`
	MIDI      MIDI      `yaml:"midi"`
	Jobs      Jobs      `yaml:"jobs"`
	Server    Server    `yaml:"server"`
}

// Default returns the built-in configuration. The DSP constants are fixed in
// the constants package; everything here is a tunable.
func Default() *Root {
	return &Root{
		Audio: Audio{
			MaxSeconds:   600,
			NoiseFloor:   1e-4,
			TargetRMS:    0.1,
			ClipAmp:      0.95,
			FFmpegPath:   "ffmpeg",
			DecodeBudget: 300,
		},
		Windowing: Windowing{
			WindowSeconds:  10,
			OverlapSeconds: 1.5,
		},
		Inference: Inference{
			Workers: util.Min(runtime.NumCPU(), 4),
		},
		Decode: Decode{
			OnsetThreshold:  0.5,
			FrameThreshold:  0.3,
			MinNoteFrames:   3,
			MinSilentFrames: 2,
			VelocityGamma:   1.0,
		},
		MIDI: MIDI{
			Tempo:           120,
			TicksPerQuarter: 480,
		},
		Jobs: Jobs{
			RetentionSeconds: 600,
			SweepSeconds:     60,
		},
		Server: Server{
			Addr: ":8080",
		},
	}
}

// Load reads the YAML config named by PIANOSCRIBE_CONFIG (or the default
// path) over the built-in defaults. A missing file is not an error.
func Load() (*Root, error) {
	cfg := Default()

	f, err := os.Open(constants.GetConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WindowFrames is the inference window length in feature frames.
func (r *Root) WindowFrames() int {
	return int(r.Windowing.WindowSeconds * constants.FrameRate)
}

// OverlapFrames is the window overlap in feature frames.
func (r *Root) OverlapFrames() int {
	return int(r.Windowing.OverlapSeconds * constants.FrameRate)
}

func (r *Root) Retention() time.Duration {
	return time.Duration(r.Jobs.RetentionSeconds) * time.Second
}

func (r *Root) SweepInterval() time.Duration {
	return time.Duration(r.Jobs.SweepSeconds) * time.Second
}
