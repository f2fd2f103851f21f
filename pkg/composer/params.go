// Package composer turns generation parameters into a finished composition:
// chord track, melody and diagnostics.
package composer

import (
	"errors"
	"fmt"

	"github.com/james-see/melodygen/pkg/theory"
)

// ErrConfig marks parameter sets the engine refuses to generate from.
var ErrConfig = errors.New("invalid configuration")

// ConfigError names the offending parameter.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

func configErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Parameter limits.
const (
	MaxBars        = 256
	MaxBeatsPerBar = 16
	MinBPM         = 20
	MaxBPM         = 400
	MaxMotifLength = 16
	MinRegister    = 5
)

// Params are the inputs of one generation run. RegisterLow and RegisterHigh
// index the scale expanded over octaves 1-6; -1 selects the default register.
type Params struct {
	Root            string         `json:"root" yaml:"root"`
	Mode            string         `json:"mode" yaml:"mode"`
	Bars            int            `json:"bars" yaml:"bars"`
	BeatsPerBar     int            `json:"beats_per_bar" yaml:"beats_per_bar"`
	RegisterLow     int            `json:"register_low" yaml:"register_low"`
	RegisterHigh    int            `json:"register_high" yaml:"register_high"`
	Contour         string         `json:"contour" yaml:"contour"`
	MotifStartProb  float64        `json:"motif_start_prob" yaml:"motif_start_prob"`
	MotifRepeatProb float64        `json:"motif_repeat_prob" yaml:"motif_repeat_prob"`
	MotifLength     int            `json:"motif_length" yaml:"motif_length"`
	IntervalStyle   string         `json:"interval_style" yaml:"interval_style"`
	BPM             float64        `json:"bpm" yaml:"bpm"`
	PhraseBars      int            `json:"phrase_bars" yaml:"phrase_bars"`
	HarmonicRhythm  string         `json:"harmonic_rhythm" yaml:"harmonic_rhythm"`
	ChordStrategy   string         `json:"chord_strategy" yaml:"chord_strategy"`
	RhythmWeights   map[string]int `json:"rhythm_weights,omitempty" yaml:"rhythm_weights,omitempty"`
	ChordVolume     int            `json:"chord_volume" yaml:"chord_volume"`
	Seed            *uint64        `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// DefaultParams returns a playable eight-bar C major setup.
func DefaultParams() Params {
	return Params{
		Root:            "C",
		Mode:            theory.ModeMajor,
		Bars:            8,
		BeatsPerBar:     4,
		RegisterLow:     -1,
		RegisterHigh:    -1,
		Contour:         "arch",
		MotifStartProb:  0.3,
		MotifRepeatProb: 0.4,
		MotifLength:     4,
		IntervalStyle:   "natural",
		BPM:             100,
		PhraseBars:      2,
		HarmonicRhythm:  "pillar",
		ChordStrategy:   "tonic_rooted",
		ChordVolume:     60,
	}
}

// TotalBeats is the length of the piece in beats.
func (p Params) TotalBeats() float64 {
	return float64(p.Bars * p.BeatsPerBar)
}

// Validate checks everything that can be checked without building a scale.
func (p Params) Validate() error {
	if _, ok := theory.PitchClass(p.Root); !ok {
		return configErr("root", "unknown root %q", p.Root)
	}
	if p.Bars < 1 || p.Bars > MaxBars {
		return configErr("bars", "must be within 1..%d, got %d", MaxBars, p.Bars)
	}
	if p.BeatsPerBar < 1 || p.BeatsPerBar > MaxBeatsPerBar {
		return configErr("beats_per_bar", "must be within 1..%d, got %d", MaxBeatsPerBar, p.BeatsPerBar)
	}
	if p.BPM < MinBPM || p.BPM > MaxBPM {
		return configErr("bpm", "must be within %d..%d, got %g", MinBPM, MaxBPM, p.BPM)
	}
	if p.PhraseBars < 1 {
		return configErr("phrase_bars", "must be at least 1, got %d", p.PhraseBars)
	}
	if p.MotifStartProb < 0 || p.MotifStartProb > 1 {
		return configErr("motif_start_prob", "must be within 0..1, got %g", p.MotifStartProb)
	}
	if p.MotifRepeatProb < 0 || p.MotifRepeatProb > 1 {
		return configErr("motif_repeat_prob", "must be within 0..1, got %g", p.MotifRepeatProb)
	}
	if p.MotifLength < 0 || p.MotifLength > MaxMotifLength {
		return configErr("motif_length", "must be within 0..%d, got %d", MaxMotifLength, p.MotifLength)
	}
	if p.ChordVolume < 0 || p.ChordVolume > 100 {
		return configErr("chord_volume", "must be within 0..100, got %d", p.ChordVolume)
	}
	if (p.RegisterLow < 0) != (p.RegisterHigh < 0) {
		return configErr("register", "set both bounds or neither")
	}
	return nil
}

// DefaultRegister spans from the tonic in octave 3 to the top of the scale.
func DefaultRegister(root, mode string) (low, high int) {
	full := theory.GenerateScaleDegrees(root, mode, theory.MinOctave, theory.MaxOctave)
	if len(full) == 0 {
		return -1, -1
	}
	low = theory.IndexOf(full, 0, 3)
	if low < 0 {
		low = 0
	}
	return low, len(full) - 1
}

// Register resolves the usable notes for p out of the full scale.
func (p Params) Register(full []theory.Note) ([]theory.Note, error) {
	low, high := p.RegisterLow, p.RegisterHigh
	if low < 0 && high < 0 {
		low, high = DefaultRegister(p.Root, p.Mode)
	}
	if low > high || high-low < MinRegister-1 {
		return nil, configErr("register", "span %d..%d is too narrow, select at least %d notes", low, high, MinRegister)
	}
	if low < 0 || high >= len(full) {
		return nil, configErr("register", "bounds %d..%d outside the scale of %d notes", low, high, len(full))
	}
	available := full[low : high+1]
	if len(available) < MinRegister {
		return nil, configErr("register", "only %d usable notes", len(available))
	}
	return available, nil
}
