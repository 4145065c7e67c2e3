package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/jsphweid/pianoscribe/config"
	"github.com/jsphweid/pianoscribe/constants"
	"github.com/jsphweid/pianoscribe/model"
)

// Decoder turns an audio file into a mono waveform at the fixed sample rate.
// Format sniffing, demuxing and resampling all live behind this boundary.
type Decoder interface {
	Decode(ctx context.Context, path string) (model.Waveform, error)
}

// FFmpeg decodes by piping f32le PCM out of an ffmpeg process.
type FFmpeg struct {
	cfg *config.Root
}

func NewFFmpeg(cfg *config.Root) *FFmpeg {
	return &FFmpeg{cfg: cfg}
}

func (d *FFmpeg) Decode(ctx context.Context, path string) (model.Waveform, error) {
	var w model.Waveform

	if _, err := os.Stat(path); err != nil {
		return w, err
	}

	budget := time.Duration(d.cfg.Audio.DecodeBudget) * time.Second
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	args := []string{
		"-hide_banner", "-v", "error",
		"-i", path,
		"-ac", "1",
		"-ar", strconv.Itoa(constants.SampleRate),
		"-f", "f32le",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, d.cfg.Audio.FFmpegPath, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &bytes.Buffer{}

	if err := cmd.Run(); err != nil {
		return w, fmt.Errorf("ffmpeg decode: %w", err)
	}

	raw := out.Bytes()
	if len(raw)%4 != 0 {
		return w, fmt.Errorf("ffmpeg decode: truncated pcm stream (%d bytes)", len(raw))
	}

	samples := make([]float64, len(raw)/4)
	for i := range samples {
		u := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = float64(math.Float32frombits(u))
	}

	w.Samples = samples
	w.SampleRate = constants.SampleRate
	return w, nil
}

// RMS returns the root-mean-square amplitude of the waveform.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Normalize scales the waveform to the target RMS and clips to the configured
// amplitude, in place. Silent input is left untouched.
func Normalize(w model.Waveform, cfg *config.Root) model.Waveform {
	rms := RMS(w.Samples)
	if rms <= 1e-6 {
		return w
	}
	gain := cfg.Audio.TargetRMS / rms
	clip := cfg.Audio.ClipAmp
	for i, s := range w.Samples {
		v := s * gain
		if v > clip {
			v = clip
		} else if v < -clip {
			v = -clip
		}
		w.Samples[i] = v
	}
	return w
}

// ValidateDuration rejects waveforms longer than the configured maximum.
// Enforced before a job is queued so window count stays bounded.
func ValidateDuration(w model.Waveform, cfg *config.Root) error {
	if w.Seconds() > cfg.Audio.MaxSeconds {
		return fmt.Errorf("audio is %.1fs, maximum is %.0fs", w.Seconds(), cfg.Audio.MaxSeconds)
	}
	return nil
}
