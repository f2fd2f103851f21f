// Package rng provides the injectable random source used by the generation engine.
package rng

import (
	"math/rand/v2"
	"time"
)

// Source yields uniformly distributed floats in [0, 1).
type Source interface {
	Float64() float64
}

// Rand is a seeded PCG source.
type Rand struct {
	r    *rand.Rand
	seed uint64
}

// New creates a source that always produces the same sequence for the same seed.
func New(seed uint64) *Rand {
	return &Rand{
		r:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed: seed,
	}
}

// NewRandom creates a source seeded from the clock.
func NewRandom() *Rand {
	return New(uint64(time.Now().UnixNano()))
}

// Float64 implements Source.
func (r *Rand) Float64() float64 {
	return r.r.Float64()
}

// Seed returns the seed the source was created with.
func (r *Rand) Seed() uint64 {
	return r.seed
}

// Sequence replays a fixed list of values, wrapping around at the end.
// An empty Sequence always yields 0.
type Sequence struct {
	Values []float64
	pos    int
}

// NewSequence creates a Sequence over values.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{Values: values}
}

// Float64 implements Source.
func (s *Sequence) Float64() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	v := s.Values[s.pos%len(s.Values)]
	s.pos++
	return v
}

// Intn returns an int in [0, n) drawn from src. n <= 0 yields 0.
func Intn(src Source, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(src.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Chance reports whether a draw from src falls below p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}
