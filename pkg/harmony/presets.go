package harmony

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// Kind selects how a preset lays out its triggers.
type Kind string

const (
	// BarLocal repeats the same offsets in every bar.
	BarLocal Kind = "bar_local"
	// BarSpanning cycles offsets over several bars.
	BarSpanning Kind = "bar_spanning"
	// Algorithmic computes triggers from a named generator.
	Algorithmic Kind = "algorithmic"
)

// Algorithm names understood by Algorithmic presets.
const (
	AlgoRandomWalk   = "random_walk"
	AlgoFiveOverFour = "five_over_four"
	AlgoPedal        = "pedal"
	AlgoDecrescendo  = "decrescendo"
	AlgoAccelerando  = "accelerando"
)

const (
	defaultCycleBars    = 4
	defaultSpanBars     = 2
	defaultGridSize     = 0.25
	defaultWalkChance   = 0.3
	defaultPolyInterval = 0.8

	// minStep is the finest grid or interval a generator accepts, in beats.
	minStep = 1.0 / 64
)

// Preset describes a harmonic rhythm: the beats at which chords change.
//
// BarSpanning presets use BarOffsets (bar index in cycle -> offsets, cycle
// length SpanBars, default 4) or, when BarOffsets is empty, Offsets measured
// across a span of SpanBars bars (default 2).
type Preset struct {
	Name        string            `json:"name" yaml:"name"`
	Kind        Kind              `json:"type" yaml:"type"`
	Pattern     string            `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Offsets     []float64         `json:"offsets,omitempty" yaml:"offsets,omitempty"`
	BarOffsets  map[int][]float64 `json:"bar_offsets,omitempty" yaml:"bar_offsets,omitempty"`
	SpanBars    int               `json:"span_bars,omitempty" yaml:"span_bars,omitempty"`
	GridSize    float64           `json:"grid_size,omitempty" yaml:"grid_size,omitempty"`
	Probability float64           `json:"probability,omitempty" yaml:"probability,omitempty"`
	Interval    float64           `json:"interval,omitempty" yaml:"interval,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
}

var knownAlgorithms = map[string]bool{
	AlgoRandomWalk:   true,
	AlgoFiveOverFour: true,
	AlgoPedal:        true,
	AlgoDecrescendo:  true,
	AlgoAccelerando:  true,
}

// Validate rejects structurally malformed presets.
func (p Preset) Validate() error {
	switch p.Kind {
	case BarLocal, BarSpanning:
	case Algorithmic:
		if !knownAlgorithms[p.Pattern] {
			return fmt.Errorf("preset %q: unknown algorithm %q", p.Name, p.Pattern)
		}
	case "":
		return fmt.Errorf("preset %q: missing type", p.Name)
	default:
		return fmt.Errorf("preset %q: unknown type %q", p.Name, p.Kind)
	}

	if err := checkOffsets(p.Offsets); err != nil {
		return fmt.Errorf("preset %q: %w", p.Name, err)
	}
	for bar, offsets := range p.BarOffsets {
		if bar < 0 {
			return fmt.Errorf("preset %q: negative bar index %d", p.Name, bar)
		}
		if err := checkOffsets(offsets); err != nil {
			return fmt.Errorf("preset %q: bar %d: %w", p.Name, bar, err)
		}
	}
	if p.SpanBars < 0 {
		return fmt.Errorf("preset %q: span_bars must not be negative", p.Name)
	}
	if err := checkStep(p.GridSize); err != nil {
		return fmt.Errorf("preset %q: grid_size: %w", p.Name, err)
	}
	if err := checkStep(p.Interval); err != nil {
		return fmt.Errorf("preset %q: interval: %w", p.Name, err)
	}
	if math.IsNaN(p.Probability) || p.Probability < 0 || p.Probability > 1 {
		return fmt.Errorf("preset %q: probability must be within 0..1", p.Name)
	}
	return nil
}

func checkOffsets(offsets []float64) error {
	for _, o := range offsets {
		if math.IsNaN(o) || math.IsInf(o, 0) {
			return errors.New("offset is not a finite number")
		}
		if o < 0 {
			return fmt.Errorf("negative offset %g", o)
		}
	}
	return nil
}

// checkStep accepts zero (use the default) or a finite step of at least minStep.
func checkStep(step float64) error {
	switch {
	case step == 0:
		return nil
	case math.IsNaN(step) || math.IsInf(step, 0):
		return errors.New("not a finite number")
	case step < 0:
		return fmt.Errorf("negative value %g", step)
	case step < minStep:
		return fmt.Errorf("%g is finer than %g beat", step, minStep)
	}
	return nil
}

func validStep(step float64) bool {
	return step >= minStep && !math.IsInf(step, 0)
}

// Check lists offsets that do not fit the meter. Triggers drops them.
func (p Preset) Check(beatsPerBar float64) []string {
	var issues []string
	switch p.Kind {
	case BarLocal:
		for _, o := range p.Offsets {
			if o >= beatsPerBar {
				issues = append(issues, fmt.Sprintf("preset %q: offset %g does not fit a %g-beat bar", p.Name, o, beatsPerBar))
			}
		}
	case BarSpanning:
		if len(p.BarOffsets) > 0 {
			bars := make([]int, 0, len(p.BarOffsets))
			for bar := range p.BarOffsets {
				bars = append(bars, bar)
			}
			sort.Ints(bars)
			for _, bar := range bars {
				for _, o := range p.BarOffsets[bar] {
					if o >= beatsPerBar {
						issues = append(issues, fmt.Sprintf("preset %q: bar %d offset %g does not fit a %g-beat bar", p.Name, bar, o, beatsPerBar))
					}
				}
			}
			break
		}
		span := float64(p.spanBars()) * beatsPerBar
		for _, o := range p.Offsets {
			if o >= span {
				issues = append(issues, fmt.Sprintf("preset %q: offset %g does not fit a %g-beat span", p.Name, o, span))
			}
		}
	}
	return issues
}

func (p Preset) spanBars() int {
	if p.SpanBars > 0 {
		return p.SpanBars
	}
	if len(p.BarOffsets) > 0 {
		return defaultCycleBars
	}
	return defaultSpanBars
}

func sixteenths() []float64 {
	out := make([]float64, 16)
	for i := range out {
		out[i] = float64(i) * 0.25
	}
	return out
}

var builtin = []Preset{
	{Name: "pillar", Kind: BarLocal, Offsets: []float64{0}, Description: "One chord per bar on the downbeat"},
	{Name: "pulse", Kind: BarLocal, Offsets: []float64{0, 2}, Description: "Two chords per bar on beats 1 and 3"},
	{Name: "march", Kind: BarLocal, Offsets: []float64{0, 1, 2, 3}, Description: "A chord on every beat"},
	{Name: "waltz_feel", Kind: BarLocal, Offsets: []float64{0, 1, 2}, Description: "Three changes per bar"},
	{Name: "push", Kind: BarLocal, Offsets: []float64{3.5}, Description: "Chords anticipate the next bar by an eighth"},
	{Name: "charleston", Kind: BarLocal, Offsets: []float64{0, 1.5}, Description: "Downbeat and the and of two"},
	{Name: "backbeat", Kind: BarLocal, Offsets: []float64{1, 3}, Description: "Changes on beats 2 and 4"},
	{Name: "anticipator", Kind: BarLocal, Offsets: []float64{1.5, 3.5}, Description: "Syncopated pushes ahead of 3 and 1"},
	{Name: "heartbeat", Kind: BarLocal, Offsets: []float64{0, 0.5}, Description: "Double hit at the top of the bar"},
	{Name: "off_grid", Kind: BarLocal, Offsets: []float64{0.5, 1.5, 2.5, 3.5}, Description: "Every offbeat eighth"},
	{Name: "gallop", Kind: BarLocal, Offsets: []float64{0, 0.75, 1}, Description: "Galloping figure on beat one"},
	{Name: "hemiola", Kind: BarLocal, Offsets: []float64{0, 1.5, 3}, Description: "Dotted-quarter groupings against the meter"},
	{Name: "slow_cycle", Kind: BarSpanning, Pattern: "slow_cycle", BarOffsets: map[int][]float64{0: {0}, 1: {3}, 2: {2}, 3: {1}}, Description: "Four-bar cycle drifting earlier each bar"},
	{Name: "tremolo_block", Kind: BarLocal, Offsets: sixteenths(), Description: "A change on every sixteenth"},
	{Name: "ghost_notes", Kind: BarLocal, Offsets: []float64{0, 2.5, 3.5}, Description: "Downbeat plus two late ghosts"},
	{Name: "bossa_nova", Kind: BarSpanning, Pattern: "bossa_nova", SpanBars: 2, Offsets: []float64{0, 1.5, 3, 4.5}, Description: "Two-bar bossa clave"},
	{Name: "cinematic_swell", Kind: BarLocal, Offsets: []float64{1}, Description: "Changes arrive on beat two"},
	{Name: "trap_triplets", Kind: BarLocal, Offsets: []float64{2, 2.33, 2.66}, Description: "Triplet roll in the second half"},
	{Name: "pyramid", Kind: BarSpanning, Pattern: "pyramid", BarOffsets: map[int][]float64{0: {0}, 1: {0, 2}, 2: {0, 1, 2, 3}, 3: sixteenths()}, Description: "Density doubles every bar of a four-bar cycle"},
	{Name: "random_walk", Kind: Algorithmic, Pattern: AlgoRandomWalk, GridSize: 0.25, Description: "Random changes on a sixteenth grid, at least one per bar"},
	{Name: "triplet_eighths", Kind: BarLocal, Offsets: []float64{0, 0.33, 0.66, 1, 1.33, 1.66, 2, 2.33, 2.66, 3, 3.33, 3.66}, Description: "Eighth-note triplets"},
	{Name: "triplet_quarters", Kind: BarLocal, Offsets: []float64{0, 0.66, 1.33, 2, 2.66, 3.33}, Description: "Quarter-note triplets"},
	{Name: "e_and_a", Kind: BarLocal, Offsets: []float64{0.25, 1.25, 2.25, 3.25}, Description: "The e of every beat"},
	{Name: "double_pushed", Kind: BarLocal, Offsets: []float64{1.5, 3.5}, Description: "Two pushed changes per bar"},
	{Name: "five_over_four", Kind: Algorithmic, Pattern: AlgoFiveOverFour, Interval: 0.8, Description: "Five evenly spaced changes per 4/4 bar"},
	{Name: "pedal", Kind: Algorithmic, Pattern: AlgoPedal, Description: "One chord for the whole piece"},
	{Name: "decrescendo", Kind: Algorithmic, Pattern: AlgoDecrescendo, Description: "Dense changes thinning towards the end"},
	{Name: "accelerando", Kind: Algorithmic, Pattern: AlgoAccelerando, Description: "Sparse changes growing denser towards the end"},
}

// Builtin returns the built-in presets in registry order.
func Builtin() []Preset {
	out := make([]Preset, len(builtin))
	copy(out, builtin)
	return out
}

// Registry maps preset names to presets. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	presets map[string]Preset
	order   []string
}

// NewRegistry returns a registry holding the built-in presets.
func NewRegistry() *Registry {
	r := &Registry{presets: make(map[string]Preset, len(builtin))}
	for _, p := range builtin {
		r.presets[p.Name] = p
		r.order = append(r.order, p.Name)
	}
	return r
}

// Register validates p and adds it. Built-in names cannot be replaced.
func (r *Registry) Register(p Preset) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errors.New("preset name is required")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.presets[p.Name]; exists {
		for _, b := range builtin {
			if b.Name == p.Name {
				return fmt.Errorf("preset %q is built in and cannot be redefined", p.Name)
			}
		}
	} else {
		r.order = append(r.order, p.Name)
	}
	r.presets[p.Name] = p
	return nil
}

// Lookup returns the preset registered under name.
func (r *Registry) Lookup(name string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presets[name]
	return p, ok
}

// Names returns preset names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns every registered preset in registration order.
func (r *Registry) All() []Preset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Preset, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.presets[name])
	}
	return out
}
