package harmony

import (
	"math"
	"strings"

	"github.com/james-see/melodygen/pkg/rng"
)

// Fixed progressions per harmonic function, as scale degrees 0..6.
var progressionPools = map[string][][]int{
	"tonic": {
		{0, 4, 5, 3},
		{0, 3, 4, 0},
		{0, 5, 3, 4},
		{5, 3, 0, 4},
		{5, 4, 3, 4},
	},
	"subdominant": {
		{3, 4, 0, 3},
		{3, 0, 4, 5},
		{1, 4, 0, 5},
		{1, 4, 0, 3},
	},
	"dominant": {
		{4, 5, 3, 0},
		{4, 0, 3, 4},
	},
	"mediant": {
		{2, 5, 1, 4},
		{2, 3, 0, 4},
	},
}

type move struct {
	degree int
	weight int
}

// Degree-to-degree transitions of the functional mode. V->IV is weak.
var transitions = map[int][]move{
	0: {{3, 30}, {4, 30}, {5, 20}, {1, 10}, {2, 10}},
	1: {{4, 80}, {5, 20}},
	2: {{5, 70}, {3, 30}},
	3: {{4, 45}, {0, 35}, {1, 20}},
	4: {{0, 75}, {5, 20}, {3, 5}},
	5: {{3, 50}, {4, 30}, {1, 20}},
	6: {{0, 90}, {5, 10}},
}

// Strategy is a named chord strategy offered to users.
type Strategy struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Strategies lists the chord strategies shown in menus. Any name whose first
// token is not a pool name selects the functional mode.
func Strategies() []Strategy {
	return []Strategy{
		{Name: "tonic_rooted", Description: "Progressions that open on or return to I"},
		{Name: "subdominant_lift", Description: "Progressions led by IV or ii"},
		{Name: "dominant_drive", Description: "Progressions that start on V"},
		{Name: "mediant_color", Description: "Progressions coloured by iii"},
		{Name: "functional", Description: "Weighted walk over functional-harmony moves"},
	}
}

// PoolFor returns the pool token selected by strategy and whether it exists.
func PoolFor(strategy string) (string, bool) {
	token, _, _ := strings.Cut(strategy, "_")
	_, ok := progressionPools[token]
	return token, ok
}

// GenerateProgression returns max(1, floor(bars*chordsPerBar)) chord roots.
func GenerateProgression(strategy string, bars, chordsPerBar float64, src rng.Source) []int {
	n := int(math.Floor(bars * chordsPerBar))
	if n < 1 || math.IsNaN(bars*chordsPerBar) {
		n = 1
	}
	out := make([]int, 0, n)

	if token, ok := PoolFor(strategy); ok {
		pool := progressionPools[token]
		selected := pool[rng.Intn(src, len(pool))]
		for i := 0; i < n; i++ {
			out = append(out, selected[i%len(selected)])
		}
		return out
	}

	current := 0
	for i := 0; i < n; i++ {
		out = append(out, current)
		moves, ok := transitions[current]
		if !ok {
			moves = transitions[0]
		}
		current = weightedMove(moves, src)
	}
	return out
}

func weightedMove(moves []move, src rng.Source) int {
	total := 0
	for _, m := range moves {
		total += m.weight
	}
	r := src.Float64() * float64(total)
	for _, m := range moves {
		if r < float64(m.weight) {
			return m.degree
		}
		r -= float64(m.weight)
	}
	return moves[len(moves)-1].degree
}
