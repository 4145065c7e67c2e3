package midi

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/jsphweid/pianoscribe/constants"
	"github.com/jsphweid/pianoscribe/model"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// AssemblyError means the note-event list violated an invariant the decoder
// is supposed to guarantee.
type AssemblyError struct {
	Detail string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("midi assembly: %s", e.Detail)
}

type timedMessage struct {
	tick    uint32
	noteOff bool
	key     uint8
	vel     uint8
}

// Assemble serializes a transcription into a single-track SMF byte stream:
// one tempo meta event, a program change to acoustic grand, then note
// on/off pairs in non-decreasing tick order.
func Assemble(t model.Transcription) ([]byte, error) {
	tempo := t.Tempo
	if tempo <= 0 {
		tempo = 120
	}
	tpq := t.TicksPerQuarter
	if tpq == 0 {
		tpq = 480
	}
	ticksPerSecond := float64(tpq) * tempo / 60

	var msgs []timedMessage
	for _, n := range t.Notes {
		if n.Offset <= n.Onset {
			return nil, &AssemblyError{Detail: fmt.Sprintf("note pitch %d has offset %.3f <= onset %.3f", n.Pitch, n.Offset, n.Onset)}
		}
		if int(n.Pitch) >= constants.NumPitches {
			return nil, &AssemblyError{Detail: fmt.Sprintf("pitch %d out of piano range", n.Pitch)}
		}
		key := constants.MinMidiNote + n.Pitch
		onTick := uint32(math.Round(n.Onset * ticksPerSecond))
		offTick := uint32(math.Round(n.Offset * ticksPerSecond))
		if offTick <= onTick {
			// sub-tick note after rounding; keep it audible
			offTick = onTick + 1
		}
		msgs = append(msgs, timedMessage{tick: onTick, key: key, vel: n.Velocity})
		msgs = append(msgs, timedMessage{tick: offTick, noteOff: true, key: key})
	}

	// note-offs first at equal ticks so back-to-back same-pitch notes never
	// interleave on/on/off/off
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].tick != msgs[j].tick {
			return msgs[i].tick < msgs[j].tick
		}
		if msgs[i].noteOff != msgs[j].noteOff {
			return msgs[i].noteOff
		}
		return msgs[i].key < msgs[j].key
	})

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(tempo))
	tr.Add(0, midi.ProgramChange(0, 0)) // acoustic grand piano

	var prevTick uint32
	for _, m := range msgs {
		delta := m.tick - prevTick
		prevTick = m.tick
		if m.noteOff {
			tr.Add(delta, midi.NoteOff(0, m.key))
		} else {
			tr.Add(delta, midi.NoteOn(0, m.key, m.vel))
		}
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(tpq)
	s.Add(tr)

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, &AssemblyError{Detail: err.Error()}
	}
	return buf.Bytes(), nil
}

// Parse reads an SMF byte stream.
func Parse(data []byte) (s *smf.SMF, e error) {
	var blank smf.SMF

	// handle panics
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if r, ok := recover().(string); ok {
			e = errors.New(r)
		}
	}()

	res, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return &blank, fmt.Errorf("parsing midi stream: %w", err)
	}
	return res, nil
}

// ReadFile parses a MIDI file from disk.
func ReadFile(filepath string) (*smf.SMF, error) {
	dat, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading midi file: %w", err)
	}
	return Parse(dat)
}

type reducedEvent struct {
	micros    int64
	isNoteOff bool
	key       uint8
	vel       uint8
}

// NotesFromSMF reduces an SMF back to note events in onset order, pairing
// note-starts with note-ends per key. Keys outside the piano range are
// dropped. Used by the inspect command and round-trip tests.
func NotesFromSMF(s *smf.SMF) []model.Note {
	var reduced []reducedEvent

	for _, events := range s.Tracks {
		var absTicks int64
		for _, event := range events {
			absTicks += int64(event.Delta)
			absMicros := s.TimeAt(absTicks)
			var channel, key, vel uint8
			switch {
			case event.Message.GetNoteStart(&channel, &key, &vel):
				reduced = append(reduced, reducedEvent{micros: absMicros, key: key, vel: vel})
			case event.Message.GetNoteEnd(&channel, &key):
				reduced = append(reduced, reducedEvent{micros: absMicros, isNoteOff: true, key: key})
			}
		}
	}

	// smaller offsets first, note-offs before note-ons at the same instant
	sort.SliceStable(reduced, func(i, j int) bool {
		if reduced[i].micros != reduced[j].micros {
			return reduced[i].micros < reduced[j].micros
		}
		return reduced[i].isNoteOff && !reduced[j].isNoteOff
	})

	type open struct {
		micros int64
		vel    uint8
	}
	pressed := make(map[uint8]open)
	var notes []model.Note
	for _, evt := range reduced {
		if evt.key < constants.MinMidiNote || evt.key > constants.MaxMidiNote {
			continue
		}
		if evt.isNoteOff {
			o, ok := pressed[evt.key]
			if !ok {
				continue
			}
			delete(pressed, evt.key)
			notes = append(notes, model.Note{
				Pitch:    evt.key - constants.MinMidiNote,
				Onset:    float64(o.micros) / 1e6,
				Offset:   float64(evt.micros) / 1e6,
				Velocity: o.vel,
			})
		} else {
			pressed[evt.key] = open{micros: evt.micros, vel: evt.vel}
		}
	}

	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Onset != notes[j].Onset {
			return notes[i].Onset < notes[j].Onset
		}
		return notes[i].Pitch < notes[j].Pitch
	})
	return notes
}
