// Package theory provides the note tables, modes and scale-degree expansion
// the generator works on.
package theory

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Octave range every generated scale is clamped to.
const (
	MinOctave = 1
	MaxOctave = 6
)

// InternalChromatic is the sharp-based 12-tone table all lookups index into.
var InternalChromatic = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatChromatic = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

// Bb spells every black key but C# as a flat.
var bbChromatic = [12]string{"C", "C#", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

// enharmonicMap picks the display spelling per root spelling. Roots not listed
// are shown with the internal sharp names.
var enharmonicMap = map[string][12]string{
	"Db": flatChromatic,
	"Eb": flatChromatic,
	"Gb": flatChromatic,
	"Ab": flatChromatic,
	"Bb": bbChromatic,
}

var rootAliases = map[string]string{
	"Db": "C#",
	"Eb": "D#",
	"Gb": "F#",
	"Ab": "G#",
	"Bb": "A#",
	"Cb": "B",
	"Fb": "E",
	"E#": "F",
	"B#": "C",
}

// Mode names.
const (
	ModeMajor         = "major"
	ModeNaturalMinor  = "natural_minor"
	ModeHarmonicMinor = "harmonic_minor"
	ModeMelodicMinor  = "melodic_minor"
	ModeDorian        = "dorian"
	ModeMixolydian    = "mixolydian"
	ModePhrygian      = "phrygian"
	ModeLydian        = "lydian"
)

var modeIntervals = map[string][]int{
	ModeMajor:         {0, 2, 4, 5, 7, 9, 11},
	ModeNaturalMinor:  {0, 2, 3, 5, 7, 8, 10},
	ModeHarmonicMinor: {0, 2, 3, 5, 7, 8, 11},
	ModeMelodicMinor:  {0, 2, 3, 5, 7, 9, 11},
	ModeDorian:        {0, 2, 3, 5, 7, 9, 10},
	ModeMixolydian:    {0, 2, 4, 5, 7, 9, 10},
	ModePhrygian:      {0, 1, 3, 5, 7, 8, 10},
	ModeLydian:        {0, 2, 4, 6, 7, 9, 11},
}

// ScaleStep is one tone of a single scale repetition.
type ScaleStep struct {
	Name         string `json:"name"`
	PitchClass   int    `json:"pitch_class"`
	OctaveOffset int    `json:"octave_offset"`
}

// Note is a scale-degree note placed in an absolute octave.
type Note struct {
	Name       string `json:"name" yaml:"name"`
	PitchClass int    `json:"pitch_class" yaml:"pitch_class"`
	Octave     int    `json:"octave" yaml:"octave"`
	Degree     int    `json:"degree" yaml:"degree"`
}

// String returns the display name with octave, e.g. "Eb4".
func (n Note) String() string {
	return fmt.Sprintf("%s%d", n.Name, n.Octave)
}

// Frequency returns the equal-tempered frequency in Hz with A4 = 440.
func (n Note) Frequency() float64 {
	return Frequency(n.PitchClass, n.Octave)
}

// MIDI returns the MIDI key number (C4 = 60).
func (n Note) MIDI() uint8 {
	key := (n.Octave+1)*12 + n.PitchClass
	if key < 0 {
		return 0
	}
	if key > 127 {
		return 127
	}
	return uint8(key)
}

// Frequency returns the frequency in Hz of a pitch class in an octave.
func Frequency(pitchClass, octave int) float64 {
	semitonesFromA4 := (octave-4)*12 + (pitchClass - 9)
	return 440 * math.Pow(2, float64(semitonesFromA4)/12)
}

// MIDIFromFrequency rounds a frequency to the nearest MIDI key.
func MIDIFromFrequency(freq float64) uint8 {
	if freq <= 0 {
		return 0
	}
	key := math.Round(12*math.Log2(freq/440) + 69)
	if key < 0 {
		return 0
	}
	if key > 127 {
		return 127
	}
	return uint8(key)
}

// PitchClass resolves a root spelling to its index in InternalChromatic.
func PitchClass(root string) (int, bool) {
	root = strings.TrimSpace(root)
	if len(root) > 1 {
		root = strings.ToUpper(root[:1]) + root[1:]
	} else {
		root = strings.ToUpper(root)
	}
	if alias, ok := rootAliases[root]; ok {
		root = alias
	}
	for i, name := range InternalChromatic {
		if name == root {
			return i, true
		}
	}
	return -1, false
}

// Intervals returns the semitone pattern of mode. Unknown modes get the major
// pattern and ok == false.
func Intervals(mode string) (intervals []int, ok bool) {
	if iv, found := modeIntervals[mode]; found {
		return iv, true
	}
	return modeIntervals[ModeMajor], false
}

// IsKnownMode reports whether mode names one of the supported interval sets.
func IsKnownMode(mode string) bool {
	_, ok := modeIntervals[mode]
	return ok
}

// IsMinor reports whether the mode name denotes a minor tonality.
func IsMinor(mode string) bool {
	return strings.Contains(mode, "minor")
}

// Modes returns the supported mode names in sorted order.
func Modes() []string {
	names := make([]string, 0, len(modeIntervals))
	for name := range modeIntervals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Roots returns the twelve root spellings offered to users.
func Roots() []string {
	return []string{"C", "C#", "Db", "D", "Eb", "E", "F", "F#", "Gb", "G", "Ab", "A", "Bb", "B"}
}

func displayNames(root string) [12]string {
	if names, ok := enharmonicMap[strings.TrimSpace(root)]; ok {
		return names
	}
	return InternalChromatic
}

// BuildScale returns one repetition of mode starting at root. An unresolvable
// root yields nil.
func BuildScale(root, mode string) []ScaleStep {
	rootIdx, ok := PitchClass(root)
	if !ok {
		return nil
	}
	intervals, _ := Intervals(mode)
	names := displayNames(root)

	scale := make([]ScaleStep, 0, len(intervals))
	for _, semitones := range intervals {
		idx := (rootIdx + semitones) % 12
		scale = append(scale, ScaleStep{
			Name:         names[idx],
			PitchClass:   idx,
			OctaveOffset: (rootIdx + semitones) / 12,
		})
	}
	return scale
}

// GenerateScaleDegrees expands the scale over every octave from lowOctave to
// highOctave. Notes landing outside MinOctave..MaxOctave are dropped.
func GenerateScaleDegrees(root, mode string, lowOctave, highOctave int) []Note {
	base := BuildScale(root, mode)
	if len(base) == 0 {
		return nil
	}

	var notes []Note
	for o := lowOctave; o <= highOctave; o++ {
		for i, step := range base {
			octave := o + step.OctaveOffset
			if octave < MinOctave || octave > MaxOctave {
				continue
			}
			notes = append(notes, Note{
				Name:       step.Name,
				PitchClass: step.PitchClass,
				Octave:     octave,
				Degree:     i,
			})
		}
	}
	return notes
}

// IndexOf returns the position of the first note matching degree and octave,
// or -1.
func IndexOf(notes []Note, degree, octave int) int {
	for i, n := range notes {
		if n.Degree == degree && n.Octave == octave {
			return i
		}
	}
	return -1
}
