// Package rhythm holds the weighted catalog of note and rest durations.
package rhythm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/james-see/melodygen/pkg/rng"
)

// Kind distinguishes sounding values from rests.
type Kind string

const (
	KindNote Kind = "note"
	KindRest Kind = "rest"
)

// fitTolerance lets a value that fills the bar exactly survive float drift.
const fitTolerance = 0.001

// Value is a single duration in the catalog.
type Value struct {
	Kind    Kind    `json:"kind" yaml:"kind"`
	Name    string  `json:"name" yaml:"name"`
	BaseSec float64 `json:"base_sec" yaml:"base_sec"` // seconds at 120 BPM
	Beats   float64 `json:"beats" yaml:"beats"`
	Weight  int     `json:"weight" yaml:"weight"`
}

// IsRest reports whether the value is silent.
func (v Value) IsRest() bool {
	return v.Kind == KindRest
}

// Key is the identifier used for weight overrides, e.g. "note-dotted-eighth".
func (v Value) Key() string {
	return string(v.Kind) + "-" + strings.ToLower(strings.ReplaceAll(v.Name, " ", "-"))
}

// Seconds returns the value's length at bpm.
func (v Value) Seconds(bpm float64) float64 {
	return v.Beats * 60 / bpm
}

var table = []Value{
	{KindNote, "whole", 2.0, 4.0, 1},
	{KindNote, "half", 1.0, 2.0, 5},
	{KindNote, "dotted quarter", 0.75, 1.5, 10},
	{KindNote, "quarter", 0.5, 1.0, 22},
	{KindNote, "dotted eighth", 0.375, 0.75, 18},
	{KindNote, "eighth", 0.25, 0.5, 26},
	{KindNote, "dotted 16th", 0.1875, 0.375, 8},
	{KindNote, "16th", 0.125, 0.25, 14},
	{KindRest, "whole rest", 2.0, 4.0, 1},
	{KindRest, "half rest", 1.0, 2.0, 2},
	{KindRest, "dotted quarter rest", 0.75, 1.5, 3},
	{KindRest, "quarter rest", 0.5, 1.0, 5},
	{KindRest, "dotted eighth rest", 0.375, 0.75, 4},
	{KindRest, "eighth rest", 0.25, 0.5, 6},
	{KindRest, "dotted 16th rest", 0.1875, 0.375, 2},
	{KindRest, "16th rest", 0.125, 0.25, 4},
}

// Table returns a copy of the default catalog.
func Table() []Value {
	out := make([]Value, len(table))
	copy(out, table)
	return out
}

// Keys returns every override key in catalog order.
func Keys() []string {
	keys := make([]string, len(table))
	for i, v := range table {
		keys[i] = v.Key()
	}
	return keys
}

// Picker draws values from a catalog with per-item weights.
type Picker struct {
	values []Value
}

// NewPicker builds a picker over the default catalog with overrides applied.
// Weights are clamped to 0..100. Unknown keys are returned as warnings.
func NewPicker(overrides map[string]int) (*Picker, []string) {
	values := Table()
	index := make(map[string]int, len(values))
	for i, v := range values {
		index[v.Key()] = i
	}

	var warnings []string
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		i, ok := index[strings.ToLower(k)]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown rhythm weight %q ignored", k))
			continue
		}
		w := overrides[k]
		if w < 0 || w > 100 {
			warnings = append(warnings, fmt.Sprintf("rhythm weight %q=%d clamped to 0..100", k, w))
			w = max(0, min(100, w))
		}
		values[i].Weight = w
	}
	return &Picker{values: values}, warnings
}

// Values returns the picker's catalog with effective weights.
func (p *Picker) Values() []Value {
	out := make([]Value, len(p.values))
	copy(out, p.values)
	return out
}

// Pick draws a value that fits in remaining beats. When nothing fits, values of
// half a beat or less are considered. When every candidate weight is zero the
// quarter note (or the first candidate) is returned.
func (p *Picker) Pick(remaining float64, src rng.Source) Value {
	return p.pick(remaining, src, func(Value) bool { return true })
}

// PickNote is Pick restricted to sounding values.
func (p *Picker) PickNote(remaining float64, src rng.Source) Value {
	return p.pick(remaining, src, func(v Value) bool { return !v.IsRest() })
}

func (p *Picker) pick(remaining float64, src rng.Source, keep func(Value) bool) Value {
	candidates := p.filter(func(v Value) bool { return keep(v) && v.Beats <= remaining+fitTolerance })
	if len(candidates) == 0 {
		candidates = p.filter(func(v Value) bool { return keep(v) && v.Beats <= 0.5 })
	}

	total := 0
	for _, c := range candidates {
		total += c.Weight
	}
	if total == 0 {
		for _, c := range candidates {
			if c.Kind == KindNote && c.Name == "quarter" {
				return c
			}
		}
		return candidates[0]
	}

	r := src.Float64() * float64(total)
	cum := 0.0
	for _, c := range candidates {
		cum += float64(c.Weight)
		if r < cum {
			return c
		}
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].Weight > 0 {
			return candidates[i]
		}
	}
	return candidates[0]
}

func (p *Picker) filter(keep func(Value) bool) []Value {
	var out []Value
	for _, v := range p.values {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
