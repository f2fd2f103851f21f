package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandDeterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		va, vb := a.Float64(), b.Float64()
		assert.Equal(t, va, vb)
		assert.GreaterOrEqual(t, va, 0.0)
		assert.Less(t, va, 1.0)
	}
	assert.Equal(t, uint64(42), a.Seed())
}

func TestRandSeedsDiffer(t *testing.T) {
	a, b := New(1), New(2)
	same := true
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			same = false
		}
	}
	assert.False(t, same)
}

func TestSequenceWraps(t *testing.T) {
	s := NewSequence(0.1, 0.5, 0.9)
	got := make([]float64, 0, 7)
	for i := 0; i < 7; i++ {
		got = append(got, s.Float64())
	}
	assert.Equal(t, []float64{0.1, 0.5, 0.9, 0.1, 0.5, 0.9, 0.1}, got)

	assert.Equal(t, 0.0, NewSequence().Float64())
}

func TestIntn(t *testing.T) {
	tests := []struct {
		draw float64
		n    int
		want int
	}{
		{0, 5, 0},
		{0.19, 5, 0},
		{0.2, 5, 1},
		{0.999, 5, 4},
		{1, 5, 4},
		{0.5, 0, 0},
		{0.5, -3, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Intn(NewSequence(tt.draw), tt.n), "Intn(%v, %d)", tt.draw, tt.n)
	}
}

func TestChance(t *testing.T) {
	assert.True(t, Chance(NewSequence(0.29), 0.3))
	assert.False(t, Chance(NewSequence(0.3), 0.3))
	assert.False(t, Chance(NewSequence(0), 0))
	assert.True(t, Chance(NewSequence(0.999), 1))
}
