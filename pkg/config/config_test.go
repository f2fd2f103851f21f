package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/james-see/melodygen/pkg/harmony"
)

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Defaults.Root != "C" || cfg.Defaults.Bars != 8 {
		t.Errorf("Load() defaults = %+v", cfg.Defaults)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Load() created %s", path)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `defaults:
  root: Eb
  mode: dorian
  bars: 12
presets:
  - name: three_step
    type: bar_local
    offsets: [0, 1.5, 3]
  - name: long_cycle
    type: bar_spanning
    bar_offsets:
      0: [0]
      1: [2]
    span_bars: 2
output:
  format: json
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Defaults.Root != "Eb" || cfg.Defaults.Mode != "dorian" || cfg.Defaults.Bars != 12 {
		t.Errorf("Defaults = %+v", cfg.Defaults)
	}
	if cfg.Defaults.BeatsPerBar != 4 || cfg.Defaults.HarmonicRhythm != "pillar" {
		t.Errorf("unset fields lost their defaults: %+v", cfg.Defaults)
	}
	if cfg.Output.Format != "json" || cfg.Output.Dir != "." {
		t.Errorf("Output = %+v", cfg.Output)
	}

	reg, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}
	p, ok := reg.Lookup("long_cycle")
	if !ok {
		t.Fatal("long_cycle not registered")
	}
	got := harmony.Triggers(p, 16, 4, nil)
	want := []float64{0, 6, 8, 14}
	if len(got) != len(want) {
		t.Fatalf("Triggers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Triggers()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "defaults: [unclosed"},
		{"bad preset", "presets:\n  - name: x\n    type: bar_local\n    offsets: [-1]\n"},
		{"unknown type", "presets:\n  - name: y\n    type: swing\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Defaults.Contour = "wavy"
	cfg.Presets = append(cfg.Presets, harmony.Preset{Name: "halves", Kind: harmony.BarLocal, Offsets: []float64{0, 2}})
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if again.Defaults.Contour != "wavy" {
		t.Errorf("Contour = %q, want wavy", again.Defaults.Contour)
	}
	if len(again.Presets) != 1 || again.Presets[0].Name != "halves" {
		t.Errorf("Presets = %+v", again.Presets)
	}
}

func TestRegistryRejectsBuiltinName(t *testing.T) {
	cfg := Default()
	cfg.Presets = []harmony.Preset{{Name: "pillar", Kind: harmony.BarLocal, Offsets: []float64{0}}}
	if _, err := cfg.Registry(); err == nil {
		t.Error("Registry() expected error for built-in name")
	}
}

func TestLoadServer(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SENTRY_DSN", "")
	t.Setenv("MELODYGEN_CONFIG", "/tmp/m.yaml")

	s := LoadServer()
	if s.Port != "9090" {
		t.Errorf("Port = %q, want 9090", s.Port)
	}
	if !s.IsProduction() {
		t.Error("IsProduction() = false")
	}
	if s.SentryDSN != "" {
		t.Errorf("SentryDSN = %q", s.SentryDSN)
	}
	if s.ConfigPath != "/tmp/m.yaml" {
		t.Errorf("ConfigPath = %q", s.ConfigPath)
	}
}

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("MELODYGEN_TEST_UNSET", "")
	if got := getEnv("MELODYGEN_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("getEnv() = %q, want fallback", got)
	}
}

func TestRegistryRejectsNonFiniteInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `presets:
  - name: runaway
    type: algorithmic
    pattern: five_over_four
    interval: .nan
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := cfg.Registry(); err == nil {
		t.Error("Registry() expected error for a NaN interval")
	}
}
