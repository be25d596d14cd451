//nolint:revive // exported
package mflow

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

type Format int8

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the document format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses a flow document. JSON numbers are kept as json.Number so
// re-encoding preserves their literal form.
func Decode(data []byte, format Format) (Flow, error) {
	var f Flow
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return Flow{}, fmt.Errorf("decode yaml flow: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&f); err != nil {
			return Flow{}, fmt.Errorf("decode json flow: %w", err)
		}
	}
	return f, nil
}

// Encode writes a flow document. JSON output is indented with sorted config
// keys, which makes decode/encode cycles stable.
func Encode(f Flow, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return nil, fmt.Errorf("encode yaml flow: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml flow: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json flow: %w", err)
		}
		return data, nil
	}
}

// Load decodes, schema-checks and validates a document in one step.
func Load(data []byte, format Format) (Flow, error) {
	if err := ValidateSchema(data, format); err != nil {
		return Flow{}, err
	}
	f, err := Decode(data, format)
	if err != nil {
		return Flow{}, err
	}
	if err := Validate(f); err != nil {
		return Flow{}, err
	}
	return f, nil
}
