package narrative

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from the file extension. Anything that is
// not .yaml or .yml is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode reads one snapshot. Unknown fields are rejected so typos surface
// before analysis rather than silently dropping data.
func Decode(r io.Reader, format Format) (*Snapshot, error) {
	var s Snapshot
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decoding yaml snapshot: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("decoding json snapshot: %w", err)
		}
		if err := dec.Decode(&struct{}{}); err != io.EOF {
			return nil, errors.New("decoding json snapshot: unexpected content after snapshot")
		}
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}
	return &s, nil
}

// LoadFile decodes a snapshot from disk.
func LoadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	s, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
