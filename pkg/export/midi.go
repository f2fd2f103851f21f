package export

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/melodygen/pkg/composer"
)

// MIDI channels of the two tracks.
const (
	MelodyChannel uint8 = 0
	ChordChannel  uint8 = 1
)

// MIDIWriter renders compositions as Standard MIDI Files
type MIDIWriter struct {
	ticksPerQuarter uint16
}

// NewMIDIWriter creates a new MIDI writer
func NewMIDIWriter() *MIDIWriter {
	return &MIDIWriter{ticksPerQuarter: 480}
}

// timed is a message placed at an absolute tick. Note offs sort before note
// ons on the same tick so repeated keys retrigger.
type timed struct {
	tick uint32
	on   bool
	msg  []byte
}

func (m *MIDIWriter) ticks(beats float64) uint32 {
	if beats <= 0 {
		return 0
	}
	return uint32(math.Round(beats * float64(m.ticksPerQuarter)))
}

// Generate creates a format 1 file with a melody track on channel 0 and a
// chord track on channel 1. Tempo and meter go on the melody track.
func (m *MIDIWriter) Generate(comp *composer.Composition) ([]byte, error) {
	if comp == nil {
		return nil, errors.New("nil composition")
	}

	bpm := comp.Params.BPM
	if bpm <= 0 {
		bpm = 120.0
	}
	beatsPerBar := comp.Params.BeatsPerBar
	if beatsPerBar <= 0 || beatsPerBar > 255 {
		beatsPerBar = 4
	}
	end := m.ticks(comp.TotalBeats)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	// Tempo (FF 51 03) and time signature (FF 58 04, quarter-note denominator)
	microsecondsPerBeat := uint32(60000000.0 / bpm)
	header := [][]byte{
		trackName("Melody"),
		{
			0xFF, 0x51, 0x03,
			byte(microsecondsPerBeat >> 16),
			byte(microsecondsPerBeat >> 8),
			byte(microsecondsPerBeat),
		},
		{0xFF, 0x58, 0x04, byte(beatsPerBar), 0x02, 0x18, 0x08},
	}

	var notes []timed
	for _, ev := range comp.Melody {
		if ev.Rest {
			continue
		}
		notes = m.appendNote(notes, MelodyChannel, ev.MIDINote, clampVelocity(ev.Velocity), ev.StartBeat, ev.EndBeat())
	}
	melodyTrack := m.buildTrack(header, notes, end)

	var chordNotes []timed
	if velocity := ChordVelocity(comp.Params.ChordVolume); velocity > 0 {
		for _, c := range comp.Chords {
			for _, tone := range c.Tones {
				chordNotes = m.appendNote(chordNotes, ChordChannel, tone.MIDI(), velocity, c.TriggerBeat, c.EndBeat())
			}
		}
	}
	chordTrack := m.buildTrack([][]byte{trackName("Chords")}, chordNotes, end)

	for _, track := range []smf.Track{melodyTrack, chordTrack} {
		if err := s.Add(track); err != nil {
			return nil, fmt.Errorf("failed to add track: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *MIDIWriter) appendNote(out []timed, channel, key, velocity uint8, startBeat, endBeat float64) []timed {
	on, off := m.ticks(startBeat), m.ticks(endBeat)
	if off <= on {
		return out
	}
	return append(out,
		timed{tick: on, on: true, msg: midi.NoteOn(channel, key, velocity)},
		timed{tick: off, msg: midi.NoteOff(channel, key)},
	)
}

// buildTrack converts absolute ticks to deltas and closes the track at end.
func (m *MIDIWriter) buildTrack(meta [][]byte, events []timed, end uint32) smf.Track {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return !events[i].on && events[j].on
	})

	var track smf.Track
	for _, msg := range meta {
		track.Add(0, msg)
	}

	var current uint32
	for _, ev := range events {
		track.Add(ev.tick-current, ev.msg)
		current = ev.tick
	}

	var tail uint32
	if end > current {
		tail = end - current
	}
	track.Close(tail)
	return track
}

func trackName(name string) []byte {
	msg := []byte{0xFF, 0x03, byte(len(name))}
	return append(msg, name...)
}

// ChordVelocity maps a 0-100 chord volume to a MIDI velocity. Zero mutes the
// chord track.
func ChordVelocity(volume int) uint8 {
	if volume <= 0 {
		return 0
	}
	if volume >= 100 {
		return 127
	}
	return uint8(max(1, math.Round(float64(volume)*127/100)))
}

func clampVelocity(v int) uint8 {
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

// WriteMIDIFile writes a composition to a .mid file
func (m *MIDIWriter) WriteMIDIFile(comp *composer.Composition, filename string) error {
	data, err := m.Generate(comp)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// TrackSummary describes one track of a parsed file.
type TrackSummary struct {
	Name      string `json:"name"`
	Channel   int    `json:"channel"`
	Notes     int    `json:"notes"`
	LowestKey uint8  `json:"lowest_key"`
	HighKey   uint8  `json:"highest_key"`
}

// Summary is what Inspect reports about a MIDI file.
type Summary struct {
	TicksPerQuarter uint16         `json:"ticks_per_quarter"`
	Tempo           float64        `json:"tempo"`
	BeatsPerBar     int            `json:"beats_per_bar"`
	LengthBeats     float64        `json:"length_beats"`
	Tracks          []TrackSummary `json:"tracks"`
}

// Bars returns the length in whole and partial bars.
func (s *Summary) Bars() float64 {
	if s.BeatsPerBar <= 0 {
		return 0
	}
	return s.LengthBeats / float64(s.BeatsPerBar)
}

// DurationSec returns the playing time at the file's tempo.
func (s *Summary) DurationSec() float64 {
	if s.Tempo <= 0 {
		return 0
	}
	return s.LengthBeats * 60 / s.Tempo
}

// InspectFile reads a MIDI file and summarizes it
func InspectFile(filename string) (*Summary, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return Inspect(data)
}

// Inspect parses MIDI data and reports tempo, meter, length and per-track
// note counts.
func Inspect(data []byte) (*Summary, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	summary := &Summary{
		TicksPerQuarter: 480,
		Tempo:           120.0,
		BeatsPerBar:     4,
	}
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		summary.TicksPerQuarter = mt.Resolution()
	}

	var longest int64
	for _, track := range s.Tracks {
		ts := TrackSummary{Channel: -1, LowestKey: 127}
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			msg := ev.Message

			if len(msg) >= 3 && msg[0] == 0xFF {
				switch {
				// Tempo (FF 51 03 tt tt tt)
				case msg[1] == 0x51 && msg[2] == 0x03 && len(msg) >= 6:
					microsecondsPerBeat := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
					if microsecondsPerBeat > 0 {
						summary.Tempo = 60000000.0 / float64(microsecondsPerBeat)
					}
				// Time signature (FF 58 04 nn dd cc bb)
				case msg[1] == 0x58 && msg[2] == 0x04 && len(msg) >= 7:
					den := 1 << min(msg[4], 6)
					if beats := int(msg[3]) * 4 / den; beats > 0 {
						summary.BeatsPerBar = beats
					}
				// Track name (FF 03 len text)
				case msg[1] == 0x03 && len(msg) >= 3+int(msg[2]):
					ts.Name = string(msg[3 : 3+int(msg[2])])
				}
				continue
			}

			// Note On: 0x9n nn vv, velocity 0 is a note off
			if len(msg) >= 3 && msg[0] >= 0x90 && msg[0] <= 0x9F && msg[2] > 0 {
				ts.Notes++
				ts.Channel = int(msg[0] & 0x0F)
				ts.LowestKey = min(ts.LowestKey, msg[1])
				ts.HighKey = max(ts.HighKey, msg[1])
			}
		}
		if ts.Notes == 0 {
			ts.LowestKey = 0
		}
		longest = max(longest, tick)
		summary.Tracks = append(summary.Tracks, ts)
	}

	if summary.TicksPerQuarter > 0 {
		summary.LengthBeats = float64(longest) / float64(summary.TicksPerQuarter)
	}
	return summary, nil
}

// Notes returns the total number of notes across tracks.
func (s *Summary) Notes() int {
	total := 0
	for _, t := range s.Tracks {
		total += t.Notes
	}
	return total
}
