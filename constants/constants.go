package constants

import "os"

func GetConfigPath() string {
	path := os.Getenv("PIANOSCRIBE_CONFIG")
	if path != "" {
		return path
	}
	return "./pianoscribe.yaml"
}

// Fixed by the trained model's input/output contract. Tunable knobs live in
// the config package instead.
const (
	SampleRate = 16000
	NumMels    = 128
	FFTSize    = 2048
	HopLength  = 512

	NumPitches  = 88
	MinMidiNote = 21 // A0
	MaxMidiNote = 108
)

// FrameRate is the feature-sequence rate in frames per second.
const FrameRate = float64(SampleRate) / float64(HopLength)
