// Package melody writes the melody line against a finished chord track.
//
// Generation is an explicit state machine: Engine holds the immutable
// inputs, State holds everything that changes, and Step advances a State by
// one unit of work (the opening note, one body iteration, or the ending).
package melody

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/james-see/melodygen/pkg/harmony"
	"github.com/james-see/melodygen/pkg/rhythm"
	"github.com/james-see/melodygen/pkg/rng"
	"github.com/james-see/melodygen/pkg/theory"
)

const (
	// Gaps to the next chord change at or below this are left alone and the
	// event may overhang the change.
	boundaryTolerance = 0.1

	// The body stops once fewer than endingWindow beats remain and never
	// consumes the last endingReserve beats.
	endingWindow  = 2.0
	endingReserve = 0.25

	barTolerance    = 0.001
	phraseTolerance = 0.001
	snapTolerance   = 1e-9

	stayChance        = 0.38
	contourStepChance = 0.28
	passingToneChance = 0.18
	passingToneBeats  = 0.25
	gravityChance     = 0.70
	phraseBreakChance = 0.7
	phraseBreakBeats  = 1.0
	motifClearChance  = 0.4
	motifWindow       = 0.85
	motifTailBeats    = 1.5
)

var transpositions = []int{0, 2, -2, 3, -3, 4, -4}

// ErrEmptyRegister is returned when there are no notes to write with.
var ErrEmptyRegister = errors.New("melody: empty register")

// Event is a note or rest of the melody line.
type Event struct {
	Rest          bool    `json:"rest" yaml:"rest"`
	Pitch         float64 `json:"pitch,omitempty" yaml:"pitch,omitempty"`
	MIDINote      uint8   `json:"midi_note,omitempty" yaml:"midi_note,omitempty"`
	Velocity      int     `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	StartBeat     float64 `json:"start_beat" yaml:"start_beat"`
	DurationBeats float64 `json:"duration_beats" yaml:"duration_beats"`
	DurationSec   float64 `json:"duration_sec" yaml:"duration_sec"`
	Label         string  `json:"label" yaml:"label"`
}

// EndBeat returns the beat at which the event stops.
func (e Event) EndBeat() float64 {
	return e.StartBeat + e.DurationBeats
}

// Config holds the inputs of one melody run.
type Config struct {
	Register        []theory.Note
	Chords          harmony.Track
	TotalBeats      float64
	BeatsPerBar     float64
	BPM             float64
	PhraseBeats     float64
	Contour         Contour
	Intervals       IntervalStyle
	MotifLength     int
	MotifStartProb  float64
	MotifRepeatProb float64
	Rhythm          *rhythm.Picker
}

// Phase is the stage a State is in.
type Phase int

const (
	PhaseOpening Phase = iota
	PhaseBody
	PhaseEnding
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "opening"
	case PhaseBody:
		return "body"
	case PhaseEnding:
		return "ending"
	case PhaseDone:
		return "done"
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

// Motif is a captured run of notes, stored as register indices.
type Motif struct {
	Start   int
	Indices []int
}

// State is the mutable part of a melody run.
type State struct {
	Phase       Phase
	Index       int
	Beats       float64
	BarBeats    float64
	PhraseBeats float64
	NoteCount   int
	Velocity    int
	Motif       *Motif
	Events      []Event

	peak        int
	phraseStart int
	forceRise   bool
	indices     []int // register index per event, -1 for rests
}

// Engine generates a melody. An Engine and its State are owned by a single
// goroutine.
type Engine struct {
	cfg Config
	src rng.Source
}

// NewEngine checks cfg and returns an engine drawing from src.
func NewEngine(cfg Config, src rng.Source) (*Engine, error) {
	if len(cfg.Register) == 0 {
		return nil, ErrEmptyRegister
	}
	if cfg.TotalBeats <= 0 || cfg.BeatsPerBar <= 0 {
		return nil, fmt.Errorf("melody: invalid length %g beats at %g beats per bar", cfg.TotalBeats, cfg.BeatsPerBar)
	}
	if cfg.BPM <= 0 {
		return nil, fmt.Errorf("melody: invalid tempo %g", cfg.BPM)
	}
	if src == nil {
		return nil, errors.New("melody: nil random source")
	}
	if cfg.Rhythm == nil {
		cfg.Rhythm, _ = rhythm.NewPicker(nil)
	}
	if cfg.PhraseBeats <= 0 {
		cfg.PhraseBeats = math.Inf(1)
	}
	return &Engine{cfg: cfg, src: src}, nil
}

// Generate runs a fresh engine to completion.
func Generate(cfg Config, src rng.Source) ([]Event, error) {
	e, err := NewEngine(cfg, src)
	if err != nil {
		return nil, err
	}
	return e.Run(), nil
}

// Start returns the initial state positioned on the starting note.
func (e *Engine) Start() *State {
	return &State{Phase: PhaseOpening, Index: startIndex(e.cfg.Register)}
}

// Run advances a new state until it is done and returns its events.
func (e *Engine) Run() []Event {
	s := e.Start()
	for s.Phase != PhaseDone {
		e.Step(s)
	}
	return s.Events
}

// Step advances s by one unit of work and returns the events it emitted.
// A done state is left untouched.
func (e *Engine) Step(s *State) []Event {
	mark := len(s.Events)
	switch s.Phase {
	case PhaseOpening:
		e.opening(s)
		e.advancePhase(s)
	case PhaseBody:
		e.body(s)
		e.advancePhase(s)
	case PhaseEnding:
		e.ending(s)
		s.Phase = PhaseDone
	default:
		return nil
	}
	out := make([]Event, len(s.Events)-mark)
	copy(out, s.Events[mark:])
	return out
}

func (e *Engine) advancePhase(s *State) {
	if s.Beats < e.cfg.TotalBeats-endingWindow {
		s.Phase = PhaseBody
	} else {
		s.Phase = PhaseEnding
	}
}

func startIndex(register []theory.Note) int {
	if i := theory.IndexOf(register, 0, 4); i >= 0 {
		return i
	}
	for i, n := range register {
		if n.Degree == 0 {
			return i
		}
	}
	return int(float64(len(register)) * 0.35)
}

func (e *Engine) opening(s *State) {
	v := e.cfg.Rhythm.PickNote(e.fit(s), e.src)
	s.Velocity = 78 + rng.Intn(e.src, 22)
	e.emitNote(s, s.Index, e.place(s.Beats, v.Beats), s.Velocity, v.Name)
	s.NoteCount = 1

	half := math.Floor(e.cfg.TotalBeats / 2)
	s.peak = int(math.Floor(half * (0.4 + e.src.Float64()*0.3)))
}

func (e *Engine) body(s *State) {
	v := e.cfg.Rhythm.Pick(e.fit(s), e.src)
	if v.IsRest() {
		e.emitRest(s, e.place(s.Beats, v.Beats), v.Name)
		return
	}

	dir := e.cfg.Contour.direction(shape{
		notes:      s.NoteCount - s.phraseStart,
		peak:       s.peak,
		halfLength: int(math.Floor(e.cfg.TotalBeats / 2)),
	}, e.src)
	if s.forceRise {
		dir = 1
		s.forceRise = false
	}

	next := s.Index + e.cfg.Intervals.draw(e.src)
	if rng.Chance(e.src, stayChance) {
		next = s.Index
	} else if rng.Chance(e.src, contourStepChance) {
		next = s.Index + dir
	}

	e.captureMotif(s)

	if rng.Chance(e.src, passingToneChance) && v.Beats <= passingToneBeats {
		if leap := next - s.Index; leap == 2 || leap == -2 {
			next = s.Index + leap/2
		}
	}

	next = e.clamp(next)
	next = e.gravitate(s, next)

	s.Velocity = 55 + rng.Intn(e.src, 45)
	s.Index = next
	e.emitNote(s, next, e.place(s.Beats, v.Beats), s.Velocity, v.Name)
	s.NoteCount++

	e.phraseBreak(s)
	e.replayMotif(s)
}

// gravitate pulls target onto the chord tone nearest the current position.
func (e *Engine) gravitate(s *State, target int) int {
	chord, ok := e.cfg.Chords.ChordAt(s.Beats)
	if !ok {
		return target
	}
	best := -1
	for i, n := range e.cfg.Register {
		if !chord.HasDegree(n.Degree) {
			continue
		}
		if best < 0 || absInt(i-s.Index) < absInt(best-s.Index) {
			best = i
		}
	}
	if best < 0 || !rng.Chance(e.src, gravityChance) {
		return target
	}
	return best
}

func (e *Engine) captureMotif(s *State) {
	n := e.cfg.MotifLength
	if n <= 1 || s.Motif != nil || s.NoteCount < n || !rng.Chance(e.src, e.cfg.MotifStartProb) {
		return
	}
	start := max(0, len(s.Events)-n)
	m := &Motif{Start: start}
	for _, idx := range s.indices[start:] {
		if idx >= 0 {
			m.Indices = append(m.Indices, idx)
		}
	}
	s.Motif = m
}

func (e *Engine) phraseBreak(s *State) {
	if s.PhraseBeats < e.cfg.PhraseBeats-phraseTolerance {
		return
	}
	if rng.Chance(e.src, phraseBreakChance) {
		if fit := math.Min(phraseBreakBeats, e.fit(s)); fit >= passingToneBeats {
			if v := e.cfg.Rhythm.Pick(fit, e.src); v.IsRest() {
				e.emitRest(s, e.place(s.Beats, v.Beats), v.Name+" (phrase break)")
			}
		}
	}
	s.PhraseBeats = 0
	if e.cfg.Contour.restartsOnPhrase() {
		s.forceRise = true
		s.phraseStart = s.NoteCount
	}
}

func (e *Engine) replayMotif(s *State) {
	m := s.Motif
	if e.cfg.MotifLength <= 0 || m == nil || !rng.Chance(e.src, e.cfg.MotifRepeatProb) ||
		s.Beats >= e.cfg.TotalBeats*motifWindow || len(s.Events) <= e.cfg.MotifLength+4 {
		return
	}

	shift := transpositions[rng.Intn(e.src, len(transpositions))]
	inserted := 0
	for _, idx := range m.Indices {
		if s.Beats >= e.cfg.TotalBeats-motifTailBeats {
			break
		}
		v := e.cfg.Rhythm.Pick(e.fit(s), e.src)
		if v.IsRest() {
			continue
		}
		target := e.clamp(idx + shift)
		velocity := s.Velocity - 8 - inserted*4
		e.emitNote(s, target, e.place(s.Beats, v.Beats), velocity, v.Name+" (motif var)")
		s.Index = target
		inserted++
	}

	if inserted*2 >= len(m.Indices) && rng.Chance(e.src, motifClearChance) {
		s.Motif = nil
	}
}

func (e *Engine) ending(s *State) {
	degree := 2
	switch r := e.src.Float64(); {
	case r < 0.60:
		degree = 0
	case r < 0.85:
		degree = 4
	}

	idx := len(e.cfg.Register) - 1
	for i := len(e.cfg.Register) - 1; i >= 0; i-- {
		if e.cfg.Register[i].Degree == degree {
			idx = i
			break
		}
	}

	remaining := e.cfg.TotalBeats - s.Beats
	if remaining > snapTolerance {
		v := e.cfg.Rhythm.PickNote(remaining, e.src)
		beats := e.reconcile(s.Beats, math.Min(v.Beats, remaining))
		velocity := 90 + rng.Intn(e.src, 10)
		s.Index = idx
		e.emitNote(s, idx, beats, velocity, v.Name+" (res)")
	}

	// The closing rest is cut at each chord change it would cross.
	for s.Beats < e.cfg.TotalBeats-snapTolerance {
		end := math.Min(e.cfg.TotalBeats, e.cfg.Chords.NextBoundary(s.Beats))
		beats := end - s.Beats
		e.emitRest(s, beats, "rest ("+formatBeats(beats)+" b)")
	}
}

// fit is the room available to the next event: the rest of the bar, never
// reaching into the reserve kept for the ending note.
func (e *Engine) fit(s *State) float64 {
	return math.Min(e.cfg.BeatsPerBar-s.BarBeats, e.cfg.TotalBeats-endingReserve-s.Beats)
}

// place clamps beats to the room left before the ending and reconciles it
// with the next chord change.
func (e *Engine) place(start, beats float64) float64 {
	if room := e.cfg.TotalBeats - endingReserve - start; beats > room && room > 0 {
		beats = room
	}
	return e.reconcile(start, beats)
}

// reconcile truncates beats so an event starting at start stops at the next
// chord change. A change within boundaryTolerance of start may be overhung;
// the one after it may not.
func (e *Engine) reconcile(start, beats float64) float64 {
	gap := e.cfg.Chords.NextBoundary(start+boundaryTolerance) - start
	if beats > gap {
		return gap
	}
	return beats
}

func (e *Engine) emitNote(s *State, idx int, beats float64, velocity int, name string) {
	n := e.cfg.Register[idx]
	e.emit(s, Event{
		Pitch:         n.Frequency(),
		MIDINote:      n.MIDI(),
		Velocity:      clampVelocity(velocity),
		DurationBeats: beats,
		Label:         n.String() + " " + name,
	}, idx)
}

func (e *Engine) emitRest(s *State, beats float64, label string) {
	e.emit(s, Event{Rest: true, DurationBeats: beats, Label: label}, -1)
}

func (e *Engine) emit(s *State, ev Event, idx int) {
	ev.StartBeat = s.Beats
	ev.DurationSec = ev.DurationBeats * 60 / e.cfg.BPM
	s.Events = append(s.Events, ev)
	s.indices = append(s.indices, idx)

	end := s.Beats + ev.DurationBeats
	if b := e.cfg.Chords.NextBoundary(end - 1e-6); math.Abs(end-b) < snapTolerance {
		end = b
	}
	if math.Abs(end-e.cfg.TotalBeats) < snapTolerance {
		end = e.cfg.TotalBeats
	}
	s.Beats = end
	s.PhraseBeats += ev.DurationBeats
	s.BarBeats = e.barPosition(end)
}

func (e *Engine) barPosition(beat float64) float64 {
	pos := math.Mod(beat, e.cfg.BeatsPerBar)
	if e.cfg.BeatsPerBar-pos < barTolerance {
		return 0
	}
	return pos
}

func (e *Engine) clamp(idx int) int {
	return max(0, min(len(e.cfg.Register)-1, idx))
}

func clampVelocity(v int) int {
	return max(1, min(127, v))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func formatBeats(beats float64) string {
	return strconv.FormatFloat(math.Round(beats*1000)/1000, 'f', -1, 64)
}
