package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/usestring/alergia-mcp/internal/alergia"
)

// loadProfile reads learner options from a YAML file on top of base. Unknown
// keys are rejected so typos do not silently fall back to defaults.
//
//	order: canonical
//	frequency_significance: 0.1
//	tail_length: 8
func loadProfile(path string, base alergia.Config) (alergia.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	cfg := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("profile %s: %w", path, err)
	}
	return cfg, nil
}
