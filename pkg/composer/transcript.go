package composer

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// Transcript renders the composition bar by bar for reading.
func (c *Composition) Transcript() string {
	var b strings.Builder
	_ = c.WriteTranscript(&b)
	return b.String()
}

// WriteTranscript writes the transcript to w.
func (c *Composition) WriteTranscript(w io.Writer) error {
	p := c.Params
	if _, err := fmt.Fprintf(w, "%s %s - %d bars - Harmonic Rhythm: %s (%d triggers)\n",
		p.Root, strings.ReplaceAll(p.Mode, "_", " "), p.Bars, p.HarmonicRhythm, len(c.Triggers)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Chords: %s\n\n", strings.Join(c.Chords.Labels(), " - ")); err != nil {
		return err
	}

	for i, bar := range c.bars() {
		if len(bar) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "Bar %d: %s |\n", i+1, strings.Join(bar, " ")); err != nil {
			return err
		}
	}
	return nil
}

// bars groups melody labels by the bar each event starts in.
func (c *Composition) bars() [][]string {
	bpb := float64(c.Params.BeatsPerBar)
	out := make([][]string, c.Params.Bars)
	for _, ev := range c.Melody {
		i := int(math.Floor(ev.StartBeat/bpb + 1e-9))
		if i >= len(out) {
			i = len(out) - 1
		}
		out[i] = append(out[i], ev.Label)
	}
	return out
}
