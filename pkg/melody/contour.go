package melody

import (
	"github.com/james-see/melodygen/pkg/rng"
)

// Contour is the intended macro-shape of the melody.
type Contour string

const (
	Rising            Contour = "rising"
	Falling           Contour = "falling"
	Arch              Contour = "arch"
	Wavy              Contour = "wavy"
	Chromatic         Contour = "chromatic"
	DescendingArch    Contour = "descending_arch"
	StepwiseWithLeaps Contour = "stepwise_with_leaps"
	Circular          Contour = "circular"
	Random            Contour = "random"
)

var contours = []Contour{Rising, Falling, Arch, Wavy, Chromatic, DescendingArch, StepwiseWithLeaps, Circular, Random}

// Contours returns every supported contour.
func Contours() []Contour {
	out := make([]Contour, len(contours))
	copy(out, contours)
	return out
}

// ParseContour resolves name. Unknown names yield Random and ok == false.
func ParseContour(name string) (c Contour, ok bool) {
	for _, known := range contours {
		if string(known) == name {
			return known, true
		}
	}
	return Random, false
}

// restartsOnPhrase reports whether a phrase break restarts the shape.
func (c Contour) restartsOnPhrase() bool {
	return c == Arch || c == DescendingArch
}

// shape is the positional input of a contour decision.
type shape struct {
	notes      int // notes since the current phrase shape started
	peak       int
	halfLength int
}

func (c Contour) direction(at shape, src rng.Source) int {
	switch c {
	case Rising:
		return 1
	case Falling:
		return -1
	case Arch:
		if at.notes <= at.peak {
			return 1
		}
		return -1
	case Wavy, Chromatic:
		return coin(src, 1)
	case DescendingArch:
		if float64(at.notes) < float64(at.halfLength)*0.6 {
			return -1
		}
		if rng.Chance(src, 0.4) {
			return 1
		}
		return -1
	case StepwiseWithLeaps:
		if rng.Chance(src, 0.7) {
			return coin(src, 1)
		}
		return coin(src, 3)
	case Circular:
		if rng.Chance(src, 0.6) {
			return coin(src, 1)
		}
		return 0
	default:
		return coin(src, 1)
	}
}

func coin(src rng.Source, size int) int {
	if rng.Chance(src, 0.5) {
		return size
	}
	return -size
}
