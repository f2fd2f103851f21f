// Package harmony schedules chord changes, picks chord roots and assembles
// the chord track the melody is written against.
package harmony

import (
	"math"
	"sort"

	"github.com/james-see/melodygen/pkg/rng"
)

var (
	decrescendoCurve = [5]float64{1, 0.75, 0.5, 0.25, 0.1}
	accelerandoCurve = [5]float64{0.1, 0.25, 0.5, 0.75, 1}
)

// Triggers returns the ascending, de-duplicated beats in [0, totalBeats) at
// which the chord changes. Beat 0 is always present. Unknown preset types and
// algorithms produce a single trigger at 0. src is only consulted by
// random_walk.
func Triggers(p Preset, totalBeats, beatsPerBar float64, src rng.Source) []float64 {
	if totalBeats <= 0 || beatsPerBar <= 0 {
		return []float64{0}
	}
	totalBars := int(math.Ceil(totalBeats / beatsPerBar))

	var raw []float64
	switch p.Kind {
	case BarLocal:
		raw = barLocal(p.Offsets, totalBars, beatsPerBar)
	case BarSpanning:
		raw = barSpanning(p, totalBars, beatsPerBar)
	case Algorithmic:
		raw = algorithmic(p, totalBeats, beatsPerBar, totalBars, src)
	}
	return normalize(raw, totalBeats)
}

func barLocal(offsets []float64, totalBars int, beatsPerBar float64) []float64 {
	if len(offsets) == 0 {
		offsets = []float64{0}
	}
	var out []float64
	for bar := 0; bar < totalBars; bar++ {
		for _, o := range offsets {
			if o < 0 || o >= beatsPerBar {
				continue
			}
			out = append(out, float64(bar)*beatsPerBar+o)
		}
	}
	return out
}

func barSpanning(p Preset, totalBars int, beatsPerBar float64) []float64 {
	span := p.spanBars()
	var out []float64

	if len(p.BarOffsets) > 0 {
		for bar := 0; bar < totalBars; bar++ {
			offsets, ok := p.BarOffsets[bar%span]
			if !ok {
				offsets = []float64{0}
			}
			for _, o := range offsets {
				if o < 0 || o >= beatsPerBar {
					continue
				}
				out = append(out, float64(bar)*beatsPerBar+o)
			}
		}
		return out
	}

	offsets := p.Offsets
	if len(offsets) == 0 {
		offsets = []float64{0}
	}
	spanBeats := float64(span) * beatsPerBar
	for bar := 0; bar < totalBars; bar += span {
		for _, o := range offsets {
			if o < 0 || o >= spanBeats {
				continue
			}
			out = append(out, float64(bar)*beatsPerBar+o)
		}
	}
	return out
}

func algorithmic(p Preset, totalBeats, beatsPerBar float64, totalBars int, src rng.Source) []float64 {
	switch p.Pattern {
	case AlgoRandomWalk:
		return randomWalk(p, totalBeats, beatsPerBar, totalBars, src)
	case AlgoFiveOverFour:
		interval := p.Interval
		if interval <= 0 {
			interval = defaultPolyInterval
		}
		if !validStep(interval) {
			return []float64{0}
		}
		return evenly(0, totalBeats, interval)
	case AlgoPedal:
		return []float64{0}
	case AlgoDecrescendo:
		return sections(totalBeats, decrescendoCurve)
	case AlgoAccelerando:
		return sections(totalBeats, accelerandoCurve)
	}
	return []float64{0}
}

func randomWalk(p Preset, totalBeats, beatsPerBar float64, totalBars int, src rng.Source) []float64 {
	grid := p.GridSize
	if grid <= 0 {
		grid = defaultGridSize
	}
	if !validStep(grid) {
		return []float64{0}
	}
	chance := p.Probability
	if chance <= 0 {
		chance = defaultWalkChance
	}

	var out []float64
	for _, beat := range evenly(0, totalBeats, grid) {
		if rng.Chance(src, chance) {
			out = append(out, beat)
		}
	}

	for bar := 0; bar < totalBars; bar++ {
		start := float64(bar) * beatsPerBar
		end := start + beatsPerBar
		found := false
		for _, t := range out {
			if t >= start && t < end {
				found = true
				break
			}
		}
		if !found {
			out = append(out, start)
		}
	}
	return out
}

// sections splits the piece into five equal parts and spaces
// max(1, floor(length*density)) triggers evenly inside each.
func sections(totalBeats float64, curve [5]float64) []float64 {
	length := totalBeats / float64(len(curve))
	var out []float64
	for i, density := range curve {
		start := float64(i) * length
		end := math.Min(float64(i+1)*length, totalBeats)
		span := end - start
		count := max(1, int(math.Floor(span*density)))
		for j := 0; j < count; j++ {
			out = append(out, start+float64(j)*span/float64(count))
		}
	}
	return out
}

// evenly returns start, start+step, ... below end. Positions are computed by
// multiplication so long runs do not accumulate drift.
func evenly(start, end, step float64) []float64 {
	var out []float64
	for i := 0; ; i++ {
		beat := start + float64(i)*step
		if beat >= end {
			break
		}
		out = append(out, beat)
	}
	return out
}

func normalize(raw []float64, totalBeats float64) []float64 {
	seen := map[float64]bool{0: true}
	out := []float64{0}
	for _, t := range raw {
		t = math.Round(t*1000) / 1000
		if math.IsNaN(t) || t < 0 || t >= totalBeats || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Float64s(out)
	return out
}
