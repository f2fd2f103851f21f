package composer

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/james-see/melodygen/pkg/harmony"
	"github.com/james-see/melodygen/pkg/melody"
	"github.com/james-see/melodygen/pkg/rhythm"
	"github.com/james-see/melodygen/pkg/rng"
	"github.com/james-see/melodygen/pkg/theory"
)

const chordsPerProgressionBar = 4

// Composition is the output of one generation run. It is never modified
// after Compose returns it.
type Composition struct {
	ID          string         `json:"id" yaml:"id"`
	Params      Params         `json:"params" yaml:"params"`
	Seed        uint64         `json:"seed" yaml:"seed"`
	TotalBeats  float64        `json:"total_beats" yaml:"total_beats"`
	Triggers    []float64      `json:"triggers" yaml:"triggers"`
	Progression []int          `json:"progression" yaml:"progression"`
	Chords      harmony.Track  `json:"chords" yaml:"chords"`
	Melody      []melody.Event `json:"melody" yaml:"melody"`
	Warnings    []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// DurationSec is the playing time of the piece.
func (c *Composition) DurationSec() float64 {
	return c.TotalBeats * 60 / c.Params.BPM
}

// Composer generates compositions against a preset registry.
type Composer struct {
	presets *harmony.Registry
	logger  *slog.Logger
}

// New creates a Composer. Nil arguments select the built-in registry and
// the default logger.
func New(presets *harmony.Registry, logger *slog.Logger) *Composer {
	if presets == nil {
		presets = harmony.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{presets: presets, logger: logger}
}

// Presets returns the registry harmonic rhythms are looked up in.
func (c *Composer) Presets() *harmony.Registry {
	return c.presets
}

// Generate composes with the built-in presets.
func Generate(p Params, src rng.Source) (*Composition, error) {
	return New(nil, nil).ComposeWith(p, src)
}

// Compose seeds a source from p.Seed, or from the clock when it is unset.
func (c *Composer) Compose(p Params) (*Composition, error) {
	var src *rng.Rand
	if p.Seed != nil {
		src = rng.New(*p.Seed)
	} else {
		src = rng.NewRandom()
	}
	return c.ComposeWith(p, src)
}

// ComposeWith generates a composition drawing every random decision from src.
// Configuration problems are returned as errors wrapping ErrConfig; unknown
// names fall back to defaults and are reported in Warnings.
func (c *Composer) ComposeWith(p Params, src rng.Source) (*Composition, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	if !theory.IsKnownMode(p.Mode) {
		warn("unknown mode %q, using major", p.Mode)
	}
	full := theory.GenerateScaleDegrees(p.Root, p.Mode, theory.MinOctave, theory.MaxOctave)
	if len(full) == 0 {
		return nil, configErr("root", "no scale for root %q", p.Root)
	}
	register, err := p.Register(full)
	if err != nil {
		return nil, err
	}

	total := p.TotalBeats()
	bpb := float64(p.BeatsPerBar)

	preset, ok := c.presets.Lookup(p.HarmonicRhythm)
	if !ok {
		warn("unknown harmonic rhythm %q, holding one chord", p.HarmonicRhythm)
	}
	warnings = append(warnings, preset.Check(bpb)...)
	triggers := harmony.Triggers(preset, total, bpb, src)

	if _, pooled := harmony.PoolFor(p.ChordStrategy); !pooled && !knownStrategy(p.ChordStrategy) {
		warn("unknown chord strategy %q, using functional moves", p.ChordStrategy)
	}
	// One progression bar holds four chords; enough bars to cover every trigger.
	progBars := math.Ceil(float64(len(triggers)) / chordsPerProgressionBar)
	progression := harmony.GenerateProgression(p.ChordStrategy, progBars, chordsPerProgressionBar, src)

	chordScale := theory.GenerateScaleDegrees(p.Root, p.Mode, harmony.ChordLowOctave, harmony.ChordHighOctave)
	chords := harmony.Assemble(triggers, progression, chordScale, total, p.BPM, p.Mode)

	picker, rw := rhythm.NewPicker(p.RhythmWeights)
	warnings = append(warnings, rw...)

	contour, ok := melody.ParseContour(p.Contour)
	if !ok {
		warn("unknown contour %q, using random", p.Contour)
	}
	style, ok := melody.ParseIntervalStyle(p.IntervalStyle)
	if !ok {
		warn("unknown interval style %q, using natural", p.IntervalStyle)
	}

	events, err := melody.Generate(melody.Config{
		Register:        register,
		Chords:          chords,
		TotalBeats:      total,
		BeatsPerBar:     bpb,
		BPM:             p.BPM,
		PhraseBeats:     float64(p.PhraseBars) * bpb,
		Contour:         contour,
		Intervals:       style,
		MotifLength:     p.MotifLength,
		MotifStartProb:  p.MotifStartProb,
		MotifRepeatProb: p.MotifRepeatProb,
		Rhythm:          picker,
	}, src)
	if err != nil {
		return nil, fmt.Errorf("generating melody: %w", err)
	}

	comp := &Composition{
		ID:          uuid.NewString(),
		Params:      p,
		TotalBeats:  total,
		Triggers:    triggers,
		Progression: progression,
		Chords:      chords,
		Melody:      events,
		Warnings:    warnings,
	}
	if seeded, ok := src.(*rng.Rand); ok {
		comp.Seed = seeded.Seed()
	}

	c.logger.Debug("composition generated",
		"id", comp.ID,
		"root", p.Root,
		"mode", p.Mode,
		"bars", p.Bars,
		"harmonic_rhythm", p.HarmonicRhythm,
		"chords", len(chords),
		"events", len(events))
	for _, w := range warnings {
		c.logger.Warn("composition fallback", "id", comp.ID, "detail", w)
	}
	return comp, nil
}

func knownStrategy(name string) bool {
	for _, s := range harmony.Strategies() {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Studio holds the latest composition for concurrent readers. Regenerate
// builds a complete composition before publishing it.
type Studio struct {
	composer *Composer
	current  atomic.Pointer[Composition]
}

// NewStudio creates an empty studio.
func NewStudio(c *Composer) *Studio {
	if c == nil {
		c = New(nil, nil)
	}
	return &Studio{composer: c}
}

// Current returns the latest composition, or nil before the first one.
func (s *Studio) Current() *Composition {
	return s.current.Load()
}

// Regenerate composes from p and publishes the result. On error the
// previous composition stays current.
func (s *Studio) Regenerate(p Params) (*Composition, error) {
	comp, err := s.composer.Compose(p)
	if err != nil {
		return nil, err
	}
	s.current.Store(comp)
	return comp, nil
}

// Composer returns the composer the studio generates with.
func (s *Studio) Composer() *Composer {
	return s.composer
}
