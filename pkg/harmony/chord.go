package harmony

import (
	"math"
	"sort"

	"github.com/james-see/melodygen/pkg/theory"
)

// Lowest and highest octave the chord voicings are taken from.
const (
	ChordLowOctave  = 3
	ChordHighOctave = 4
)

const beatEpsilon = 1e-9

// Chord is one entry of the chord track.
type Chord struct {
	TriggerBeat   float64       `json:"trigger_beat" yaml:"trigger_beat"`
	DurationBeats float64       `json:"duration_beats" yaml:"duration_beats"`
	DurationSec   float64       `json:"duration_sec" yaml:"duration_sec"`
	Degree        int           `json:"degree" yaml:"degree"`
	Tones         []theory.Note `json:"tones" yaml:"tones"`
	Label         string        `json:"label" yaml:"label"`
}

// EndBeat returns the beat at which the chord stops sounding.
func (c Chord) EndBeat() float64 {
	return c.TriggerBeat + c.DurationBeats
}

// HasDegree reports whether a tone of the chord sits on scale degree d.
func (c Chord) HasDegree(d int) bool {
	for _, t := range c.Tones {
		if t.Degree == d {
			return true
		}
	}
	return false
}

// Track is an ordered chord track.
type Track []Chord

// Assemble builds one chord per trigger, cycling progression. chordScale is
// the scale expanded over the chord octaves; triad tones use the first note
// of each degree found in it.
func Assemble(triggers []float64, progression []int, chordScale []theory.Note, totalBeats, bpm float64, mode string) Track {
	if len(triggers) == 0 || len(progression) == 0 || len(chordScale) == 0 {
		return nil
	}
	minor := theory.IsMinor(mode)

	track := make(Track, 0, len(triggers))
	for i, trigger := range triggers {
		degree := progression[i%len(progression)]

		tones := make([]theory.Note, 0, 3)
		for _, d := range []int{degree, (degree + 2) % 7, (degree + 4) % 7} {
			tones = append(tones, firstOfDegree(chordScale, d))
		}

		next := totalBeats
		if i+1 < len(triggers) {
			next = triggers[i+1]
		}
		beats := next - trigger

		label := tones[0].Name
		if minor && (degree == 0 || degree == 3 || degree == 4) {
			label += "m"
		}

		track = append(track, Chord{
			TriggerBeat:   trigger,
			DurationBeats: beats,
			DurationSec:   beats * 60 / bpm,
			Degree:        degree,
			Tones:         tones,
			Label:         label,
		})
	}
	return track
}

func firstOfDegree(notes []theory.Note, degree int) theory.Note {
	for _, n := range notes {
		if n.Degree == degree {
			return n
		}
	}
	return notes[0]
}

// ChordAt returns the last chord whose trigger is at or before beat.
func (t Track) ChordAt(beat float64) (Chord, bool) {
	i := sort.Search(len(t), func(i int) bool {
		return t[i].TriggerBeat > beat+beatEpsilon
	})
	if i == 0 {
		return Chord{}, false
	}
	return t[i-1], true
}

// NextBoundary returns the first trigger strictly after beat, or +Inf.
func (t Track) NextBoundary(beat float64) float64 {
	i := sort.Search(len(t), func(i int) bool {
		return t[i].TriggerBeat > beat+beatEpsilon
	})
	if i == len(t) {
		return math.Inf(1)
	}
	return t[i].TriggerBeat
}

// Triggers returns the trigger beat of every chord.
func (t Track) Triggers() []float64 {
	out := make([]float64, len(t))
	for i, c := range t {
		out[i] = c.TriggerBeat
	}
	return out
}

// Labels returns the chord labels in order.
func (t Track) Labels() []string {
	out := make([]string, len(t))
	for i, c := range t {
		out[i] = c.Label
	}
	return out
}
