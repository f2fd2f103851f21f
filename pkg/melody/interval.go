package melody

import "github.com/james-see/melodygen/pkg/rng"

// IntervalStyle names a distribution of scale-step offsets.
type IntervalStyle string

const (
	Natural        IntervalStyle = "natural"
	Stepwise       IntervalStyle = "stepwise"
	Leaps          IntervalStyle = "leaps"
	ChromaticSteps IntervalStyle = "chromatic"
)

type weightedStep struct {
	steps  int
	weight float64
}

var intervalTables = map[IntervalStyle][]weightedStep{
	Natural: {
		{0, 0.20}, {1, 0.35}, {-1, 0.35}, {2, 0.12}, {-2, 0.12},
		{3, 0.08}, {-3, 0.08}, {4, 0.05}, {-4, 0.05}, {5, 0.03}, {-5, 0.03},
	},
	Stepwise: {
		{0, 0.25}, {1, 0.40}, {-1, 0.40}, {2, 0.10}, {-2, 0.10}, {3, 0.05}, {-3, 0.05},
	},
	Leaps: {
		{0, 0.15}, {1, 0.15}, {-1, 0.15}, {3, 0.15}, {-3, 0.15},
		{5, 0.10}, {-5, 0.10}, {4, 0.10}, {-4, 0.10},
	},
	ChromaticSteps: {
		{0, 0.20}, {1, 0.20}, {-1, 0.20}, {2, 0.10}, {-2, 0.10},
	},
}

// IntervalStyles returns the supported styles.
func IntervalStyles() []IntervalStyle {
	return []IntervalStyle{Natural, Stepwise, Leaps, ChromaticSteps}
}

// ParseIntervalStyle resolves name. Unknown names yield Natural and ok == false.
func ParseIntervalStyle(name string) (s IntervalStyle, ok bool) {
	if _, found := intervalTables[IntervalStyle(name)]; found {
		return IntervalStyle(name), true
	}
	return Natural, false
}

// draw picks a scale-step offset from the style's table.
func (s IntervalStyle) draw(src rng.Source) int {
	table, ok := intervalTables[s]
	if !ok {
		table = intervalTables[Natural]
	}
	total := 0.0
	for _, w := range table {
		total += w.weight
	}
	r := src.Float64() * total
	sum := 0.0
	for _, w := range table {
		sum += w.weight
		if r <= sum {
			return w.steps
		}
	}
	return 1
}
