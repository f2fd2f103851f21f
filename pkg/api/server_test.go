package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/james-see/melodygen/pkg/composer"
	"github.com/james-see/melodygen/pkg/export"
)

func testRouter(t *testing.T) (*gin.Engine, *composer.Studio, *bytes.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	studio := composer.NewStudio(composer.New(nil, logger))
	return NewRouter(studio, Options{Logger: logger}), studio, &logs
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _, logs := testRouter(t)

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := do(r, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, w.Code)
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Errorf("GET %s missing X-Request-ID", path)
		}
	}
	if !strings.Contains(logs.String(), "Request completed") {
		t.Errorf("request log missing: %s", logs.String())
	}
}

func TestOptions(t *testing.T) {
	r, _, _ := testRouter(t)

	w := do(r, http.MethodGet, "/api/v1/options", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	for _, key := range []string{"roots", "modes", "contours", "interval_styles", "chord_strategies", "harmonic_rhythms", "rhythm_weights", "formats", "defaults"} {
		if _, ok := body[key]; !ok {
			t.Errorf("options missing %q", key)
		}
	}

	var rhythms []string
	if err := json.Unmarshal(body["harmonic_rhythms"], &rhythms); err != nil {
		t.Fatalf("harmonic_rhythms: %v", err)
	}
	if len(rhythms) != 28 {
		t.Errorf("len(harmonic_rhythms) = %d, want 28", len(rhythms))
	}
}

func TestPresets(t *testing.T) {
	r, _, _ := testRouter(t)

	w := do(r, http.MethodGet, "/api/v1/presets", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Presets []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"presets"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(body.Presets) != 28 {
		t.Fatalf("len(presets) = %d, want 28", len(body.Presets))
	}
	if body.Presets[0].Name != "pillar" || body.Presets[0].Type != "bar_local" {
		t.Errorf("presets[0] = %+v, want pillar/bar_local", body.Presets[0])
	}
}

func TestCompose(t *testing.T) {
	r, studio, _ := testRouter(t)

	w := do(r, http.MethodPost, "/api/v1/compose", `{"root":"D","mode":"dorian","bars":4,"harmonic_rhythm":"pillar","seed":42}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var comp composer.Composition
	if err := json.Unmarshal(w.Body.Bytes(), &comp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if comp.Params.Root != "D" || comp.Params.Bars != 4 {
		t.Errorf("params = %+v", comp.Params)
	}
	if comp.Params.BPM != composer.DefaultParams().BPM {
		t.Errorf("BPM = %v, want default", comp.Params.BPM)
	}
	if comp.Seed != 42 {
		t.Errorf("Seed = %d, want 42", comp.Seed)
	}
	if len(comp.Triggers) != 4 || len(comp.Chords) != 4 {
		t.Errorf("triggers = %v, chords = %d", comp.Triggers, len(comp.Chords))
	}
	if w.Header().Get("X-Composition-ID") != comp.ID {
		t.Errorf("X-Composition-ID = %q, want %q", w.Header().Get("X-Composition-ID"), comp.ID)
	}
	if current := studio.Current(); current == nil || current.ID != comp.ID {
		t.Error("studio was not updated")
	}
}

func TestComposeEmptyBodyUsesDefaults(t *testing.T) {
	r, _, _ := testRouter(t)

	w := do(r, http.MethodPost, "/api/v1/compose", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var comp composer.Composition
	if err := json.Unmarshal(w.Body.Bytes(), &comp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if comp.Params.Bars != composer.DefaultParams().Bars {
		t.Errorf("Bars = %d, want default", comp.Params.Bars)
	}
}

func TestComposeFormats(t *testing.T) {
	r, _, _ := testRouter(t)

	tests := []struct {
		format      string
		contentType string
	}{
		{"json", "application/json"},
		{"yaml", "application/yaml"},
		{"msgpack", "application/msgpack"},
		{"text", "text/plain; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/compose?format="+tt.format, `{"seed":3}`)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
			}
			if got := w.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
			if tt.format == "text" {
				if !strings.Contains(w.Body.String(), "Bar 1:") {
					t.Errorf("transcript = %q", w.Body.String())
				}
				return
			}
			comp, err := export.Decode(w.Body.Bytes(), export.ParseFormat(tt.format))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if comp.Seed != 3 {
				t.Errorf("Seed = %d, want 3", comp.Seed)
			}
		})
	}

	w := do(r, http.MethodPost, "/api/v1/compose?format=xml", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("format=xml status = %d, want 400", w.Code)
	}
}

func TestComposeMIDI(t *testing.T) {
	r, _, _ := testRouter(t)

	w := do(r, http.MethodPost, "/api/v1/compose/midi", `{"bars":2,"seed":9}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "audio/midi" {
		t.Errorf("Content-Type = %q, want audio/midi", got)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment; filename=melodygen-") {
		t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}

	summary, err := export.Inspect(w.Body.Bytes())
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if summary.LengthBeats != 8 {
		t.Errorf("LengthBeats = %v, want 8", summary.LengthBeats)
	}
}

func TestComposeConfigError(t *testing.T) {
	r, studio, logs := testRouter(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bars", `{"bars":0}`, "bars"},
		{"root", `{"root":"H"}`, "root"},
		{"register", `{"register_low":10,"register_high":12}`, "register"},
		{"bpm", `{"bpm":1000}`, "bpm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/compose", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["field"] != tt.field {
				t.Errorf("field = %q, want %q", body["field"], tt.field)
			}
			if body["error"] == "" {
				t.Error("error message empty")
			}
		})
	}

	if studio.Current() != nil {
		t.Error("failed requests published a composition")
	}
	if !strings.Contains(logs.String(), "Request failed with client error") {
		t.Errorf("client error not logged: %s", logs.String())
	}
}

func TestComposeInvalidBody(t *testing.T) {
	r, _, _ := testRouter(t)

	w := do(r, http.MethodPost, "/api/v1/compose", `{"bars":"many"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCurrent(t *testing.T) {
	r, _, _ := testRouter(t)

	if w := do(r, http.MethodGet, "/api/v1/compositions/current", ""); w.Code != http.StatusNotFound {
		t.Fatalf("status before compose = %d, want 404", w.Code)
	}

	created := do(r, http.MethodPost, "/api/v1/compose", `{"seed":5}`)
	id := created.Header().Get("X-Composition-ID")

	w := do(r, http.MethodGet, "/api/v1/compositions/current?format=midi", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Composition-ID") != id {
		t.Errorf("current id = %q, want %q", w.Header().Get("X-Composition-ID"), id)
	}
	if export.DetectFormatFromContent(w.Body.Bytes()) != export.FormatMIDI {
		t.Error("current?format=midi did not return MIDI")
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _, _ := testRouter(t)

	w := do(r, http.MethodOptions, "/api/v1/compose", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing Access-Control-Allow-Origin")
	}
}

func TestRouterDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	defaults := composer.DefaultParams()
	defaults.Root = "Eb"
	defaults.Bars = 2
	r := NewRouter(nil, Options{Defaults: &defaults, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	w := do(r, http.MethodPost, "/api/v1/compose", `{"seed":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var comp composer.Composition
	if err := json.Unmarshal(w.Body.Bytes(), &comp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if comp.Params.Root != "Eb" || comp.Params.Bars != 2 {
		t.Errorf("params = %s/%d, want Eb/2", comp.Params.Root, comp.Params.Bars)
	}
}
