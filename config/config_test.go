package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	os.Setenv("PIANOSCRIBE_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	defer os.Unsetenv("PIANOSCRIBE_CONFIG")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFileOverDefaults(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "pianoscribe.yaml")
	body := []byte("audio:\n  max_seconds: 42\ndecode:\n  onset_threshold: 0.65\n")
	assert.NoError(os.WriteFile(path, body, 0o644))

	os.Setenv("PIANOSCRIBE_CONFIG", path)
	defer os.Unsetenv("PIANOSCRIBE_CONFIG")

	cfg, err := Load()
	assert.NoError(err)
	assert.Equal(42.0, cfg.Audio.MaxSeconds)
	assert.Equal(0.65, cfg.Decode.OnsetThreshold)

	// untouched keys keep their defaults
	assert.Equal(Default().MIDI.Tempo, cfg.MIDI.Tempo)
	assert.Equal(Default().Windowing.WindowSeconds, cfg.Windowing.WindowSeconds)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("audio: [not: a map"), 0o644))

	os.Setenv("PIANOSCRIBE_CONFIG", path)
	defer os.Unsetenv("PIANOSCRIBE_CONFIG")

	_, err := Load()
	assert.Error(t, err)
}

func TestFrameDerivations(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 312, cfg.WindowFrames())
	assert.Equal(t, 46, cfg.OverlapFrames())
}
