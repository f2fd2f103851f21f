package export

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/james-see/melodygen/pkg/composer"
	"github.com/james-see/melodygen/pkg/rng"
)

func testComposition(t *testing.T, mutate func(*composer.Params)) *composer.Composition {
	t.Helper()
	p := composer.DefaultParams()
	if mutate != nil {
		mutate(&p)
	}
	comp, err := composer.Generate(p, rng.New(7))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return comp
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
	}{
		{"piece.mid", FormatMIDI},
		{"piece.MIDI", FormatMIDI},
		{"piece.json", FormatJSON},
		{"piece.yaml", FormatYAML},
		{"piece.yml", FormatYAML},
		{"piece.msgpack", FormatMsgpack},
		{"piece.mpk", FormatMsgpack},
		{"piece.txt", FormatText},
		{"piece.wav", FormatUnknown},
		{"piece", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := DetectFormat(tt.filename); got != tt.want {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"", FormatJSON},
		{"JSON", FormatJSON},
		{"yml", FormatYAML},
		{"mid", FormatMIDI},
		{"msgpack", FormatMsgpack},
		{"txt", FormatText},
		{"xml", FormatUnknown},
	}

	for _, tt := range tests {
		if got := ParseFormat(tt.name); got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDetectFormatFromContent(t *testing.T) {
	comp := testComposition(t, nil)

	for _, format := range []Format{FormatMIDI, FormatJSON, FormatYAML, FormatMsgpack} {
		t.Run(string(format), func(t *testing.T) {
			data, err := Encode(comp, format)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got := DetectFormatFromContent(data); got != format {
				t.Errorf("DetectFormatFromContent() = %v, want %v", got, format)
			}
		})
	}

	if got := DetectFormatFromContent(nil); got != FormatUnknown {
		t.Errorf("DetectFormatFromContent(nil) = %v, want unknown", got)
	}
}

func TestGenerateMIDI(t *testing.T) {
	comp := testComposition(t, nil)

	data, err := NewMIDIWriter().Generate(comp)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if string(data[:4]) != "MThd" {
		t.Fatalf("Generate() header = %q", data[:4])
	}

	summary, err := Inspect(data)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	if math.Abs(summary.Tempo-comp.Params.BPM) > 0.01 {
		t.Errorf("Tempo = %v, want %v", summary.Tempo, comp.Params.BPM)
	}
	if summary.BeatsPerBar != 4 {
		t.Errorf("BeatsPerBar = %d, want 4", summary.BeatsPerBar)
	}
	if summary.LengthBeats != comp.TotalBeats {
		t.Errorf("LengthBeats = %v, want %v", summary.LengthBeats, comp.TotalBeats)
	}
	if summary.Bars() != float64(comp.Params.Bars) {
		t.Errorf("Bars() = %v, want %d", summary.Bars(), comp.Params.Bars)
	}
	if len(summary.Tracks) != 2 {
		t.Fatalf("len(Tracks) = %d, want 2", len(summary.Tracks))
	}

	melodyNotes := 0
	for _, ev := range comp.Melody {
		if !ev.Rest && math.Round(ev.EndBeat()*480) > math.Round(ev.StartBeat*480) {
			melodyNotes++
		}
	}

	tests := []struct {
		name    string
		channel int
		notes   int
	}{
		{"Melody", int(MelodyChannel), melodyNotes},
		{"Chords", int(ChordChannel), 3 * len(comp.Chords)},
	}
	for i, tt := range tests {
		got := summary.Tracks[i]
		if got.Name != tt.name {
			t.Errorf("Tracks[%d].Name = %q, want %q", i, got.Name, tt.name)
		}
		if got.Channel != tt.channel {
			t.Errorf("Tracks[%d].Channel = %d, want %d", i, got.Channel, tt.channel)
		}
		if got.Notes != tt.notes {
			t.Errorf("Tracks[%d].Notes = %d, want %d", i, got.Notes, tt.notes)
		}
	}
	if summary.Notes() != melodyNotes+3*len(comp.Chords) {
		t.Errorf("Notes() = %d", summary.Notes())
	}
}

func TestGenerateMIDIMeterAndMutedChords(t *testing.T) {
	comp := testComposition(t, func(p *composer.Params) {
		p.BeatsPerBar = 3
		p.HarmonicRhythm = "waltz_feel"
		p.ChordVolume = 0
		p.BPM = 150
	})

	data, err := NewMIDIWriter().Generate(comp)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	summary, err := Inspect(data)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}

	if summary.BeatsPerBar != 3 {
		t.Errorf("BeatsPerBar = %d, want 3", summary.BeatsPerBar)
	}
	if math.Abs(summary.Tempo-150) > 0.01 {
		t.Errorf("Tempo = %v, want 150", summary.Tempo)
	}
	if summary.Tracks[1].Notes != 0 {
		t.Errorf("chord notes = %d, want 0 with volume 0", summary.Tracks[1].Notes)
	}
	if summary.Tracks[1].Channel != -1 {
		t.Errorf("chord channel = %d, want -1 for an empty track", summary.Tracks[1].Channel)
	}
	if summary.LengthBeats != comp.TotalBeats {
		t.Errorf("LengthBeats = %v, want %v", summary.LengthBeats, comp.TotalBeats)
	}
}

func TestGenerateMIDINil(t *testing.T) {
	if _, err := NewMIDIWriter().Generate(nil); err == nil {
		t.Error("Generate(nil) expected error")
	}
}

func TestInspectInvalid(t *testing.T) {
	if _, err := Inspect([]byte("not midi")); err == nil {
		t.Error("Inspect() expected error")
	}
}

func TestChordVelocity(t *testing.T) {
	tests := []struct {
		volume int
		want   uint8
	}{
		{-5, 0},
		{0, 0},
		{1, 1},
		{50, 64},
		{60, 76},
		{100, 127},
		{150, 127},
	}

	for _, tt := range tests {
		if got := ChordVelocity(tt.volume); got != tt.want {
			t.Errorf("ChordVelocity(%d) = %d, want %d", tt.volume, got, tt.want)
		}
	}
}

func TestDecodeRestoresComposition(t *testing.T) {
	comp := testComposition(t, nil)

	for _, format := range []Format{FormatJSON, FormatYAML, FormatMsgpack} {
		t.Run(string(format), func(t *testing.T) {
			data, err := Encode(comp, format)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := Decode(data, format)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if got.ID != comp.ID || got.Seed != comp.Seed {
				t.Errorf("Decode() id/seed = %s/%d, want %s/%d", got.ID, got.Seed, comp.ID, comp.Seed)
			}
			if len(got.Melody) != len(comp.Melody) {
				t.Fatalf("len(Melody) = %d, want %d", len(got.Melody), len(comp.Melody))
			}
			if got.Melody[0].MIDINote != comp.Melody[0].MIDINote {
				t.Errorf("Melody[0].MIDINote = %d, want %d", got.Melody[0].MIDINote, comp.Melody[0].MIDINote)
			}
			if got.Transcript() != comp.Transcript() {
				t.Errorf("Transcript() differs after %s round trip", format)
			}
		})
	}

	if _, err := Decode([]byte("x"), FormatMIDI); err == nil {
		t.Error("Decode(midi) expected error")
	}
}

func TestEncodeText(t *testing.T) {
	comp := testComposition(t, nil)

	data, err := Encode(comp, FormatText)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(data) != comp.Transcript() {
		t.Errorf("Encode(text) = %q, want transcript", data)
	}

	if _, err := Encode(comp, FormatUnknown); err == nil {
		t.Error("Encode(unknown) expected error")
	}
	if _, err := Encode(nil, FormatJSON); err == nil {
		t.Error("Encode(nil) expected error")
	}
}

func TestWriteFile(t *testing.T) {
	comp := testComposition(t, nil)
	dir := t.TempDir()

	path := filepath.Join(dir, "piece.mid")
	if err := WriteFile(comp, path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	summary, err := InspectFile(path)
	if err != nil {
		t.Fatalf("InspectFile() error = %v", err)
	}
	if len(summary.Tracks) != 2 {
		t.Errorf("len(Tracks) = %d, want 2", len(summary.Tracks))
	}

	if err := WriteFile(comp, filepath.Join(dir, "piece.wav")); err == nil {
		t.Error("WriteFile(.wav) expected error")
	}
	if _, err := os.Stat(filepath.Join(dir, "piece.wav")); !os.IsNotExist(err) {
		t.Error("WriteFile(.wav) created a file")
	}
}

func TestFormatMetadata(t *testing.T) {
	for _, f := range Formats() {
		if DetectFormat("x"+f.Extension()) != f {
			t.Errorf("DetectFormat(%q) does not round trip %v", f.Extension(), f)
		}
		if f.ContentType() == "" {
			t.Errorf("%v has no content type", f)
		}
	}
}

func TestEncodeKeepsZeroSeed(t *testing.T) {
	p := composer.DefaultParams()
	p.Bars = 2
	comp, err := composer.Generate(p, rng.New(0))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	tests := []struct {
		format Format
		want   []byte
	}{
		{FormatJSON, []byte(`"seed": 0,`)},
		{FormatYAML, []byte("\nseed: 0\n")},
		{FormatMsgpack, []byte("\xa4seed")},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			data, err := Encode(comp, tt.format)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Contains(data, tt.want) {
				t.Errorf("Encode(%s) missing seed %q", tt.format, tt.want)
			}
		})
	}
}
