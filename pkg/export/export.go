// Package export writes compositions to MIDI, data formats and text.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/james-see/melodygen/pkg/composer"
)

// Format represents an output format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
	FormatText    Format = "text"
	FormatUnknown Format = "unknown"
)

// Formats lists every format Encode accepts.
func Formats() []Format {
	return []Format{FormatMIDI, FormatJSON, FormatYAML, FormatMsgpack, FormatText}
}

// DetectFormat detects the format from a file extension
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mid", ".midi":
		return FormatMIDI
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".msgpack", ".mpk":
		return FormatMsgpack
	case ".txt":
		return FormatText
	default:
		return FormatUnknown
	}
}

// ParseFormat resolves a format name as given on the command line or in a
// query string.
func ParseFormat(name string) Format {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "midi", "mid":
		return FormatMIDI
	case "json", "":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	case "msgpack", "mpk":
		return FormatMsgpack
	case "text", "txt":
		return FormatText
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent sniffs the format of encoded data.
func DetectFormatFromContent(data []byte) Format {
	if len(data) >= 4 && string(data[:4]) == "MThd" {
		return FormatMIDI
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return FormatUnknown
	}
	switch b := trimmed[0]; {
	case b == '{':
		return FormatJSON
	case b >= 0x80 && b <= 0x8f, b == 0xde, b == 0xdf:
		// fixmap, map16, map32
		return FormatMsgpack
	}
	if bytes.Contains(trimmed, []byte("id:")) {
		return FormatYAML
	}
	return FormatUnknown
}

// ContentType returns the HTTP media type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatMIDI:
		return "audio/midi"
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatMsgpack:
		return "application/msgpack"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension written for f.
func (f Format) Extension() string {
	switch f {
	case FormatMIDI:
		return ".mid"
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	case FormatMsgpack:
		return ".msgpack"
	default:
		return ".txt"
	}
}

// Encode renders comp in the given format.
func Encode(comp *composer.Composition, format Format) ([]byte, error) {
	if comp == nil {
		return nil, fmt.Errorf("no composition to encode")
	}

	switch format {
	case FormatMIDI:
		return NewMIDIWriter().Generate(comp)
	case FormatJSON:
		data, err := json.MarshalIndent(comp, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(comp)
		if err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return data, nil
	case FormatMsgpack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(comp); err != nil {
			return nil, fmt.Errorf("failed to encode msgpack: %w", err)
		}
		return buf.Bytes(), nil
	case FormatText:
		return []byte(comp.Transcript()), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Write encodes comp to w.
func Write(w io.Writer, comp *composer.Composition, format Format) error {
	data, err := Encode(comp, format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile encodes comp in the format implied by the path's extension.
func WriteFile(comp *composer.Composition, path string) error {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return fmt.Errorf("cannot determine output format of %s", path)
	}

	data, err := Encode(comp, format)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// Decode reads back a composition written as json, yaml or msgpack.
func Decode(data []byte, format Format) (*composer.Composition, error) {
	var comp composer.Composition

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &comp); err != nil {
			return nil, fmt.Errorf("failed to decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &comp); err != nil {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}
	case FormatMsgpack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		if err := dec.Decode(&comp); err != nil {
			return nil, fmt.Errorf("failed to decode msgpack: %w", err)
		}
	default:
		return nil, fmt.Errorf("cannot decode a composition from %s", format)
	}
	return &comp, nil
}
