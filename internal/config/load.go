package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Load reads and strictly decodes a configuration file. YAML files are
// coerced to JSON first so both formats share one strict decoder.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(path, b)
}

// Decode parses raw config bytes. The path is only used to pick the
// format by extension.
func Decode(path string, b []byte) (*File, error) {
	jb, format, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var f File
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", format, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &f, nil
}
