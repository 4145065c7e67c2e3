package model

// Features is a feature sequence indexed [frame][mel band].
type Features = [][]float64

// Waveform is decoded mono audio at a declared sample rate.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Seconds returns the waveform duration.
func (w Waveform) Seconds() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Window is a contiguous slice of the feature sequence, in frames.
type Window struct {
	Index  int
	Start  int
	Length int
}

// End is the exclusive end frame of the window.
func (w Window) End() int {
	return w.Start + w.Length
}

// Roll holds onset and frame-active probabilities indexed [pitch][step],
// pitch 0 being A0. Values are in [0,1].
type Roll struct {
	Onset [][]float64
	Frame [][]float64
}

// Steps returns the time length of the roll.
func (r Roll) Steps() int {
	if len(r.Onset) == 0 {
		return 0
	}
	return len(r.Onset[0])
}

// Note is a decoded note event. Pitch is a piano key index 0..87
// (midi note = constants.MinMidiNote + Pitch).
type Note struct {
	Pitch    uint8
	Onset    float64 // seconds
	Offset   float64 // seconds
	Velocity uint8 // 1..127
}

// Transcription is the final ordered note-event list plus the metadata the
// MIDI assembler needs. Immutable once produced.
type Transcription struct {
	Notes           []Note
	Tempo           float64
	TicksPerQuarter uint16
}
