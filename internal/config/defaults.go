package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-sequencer/internal/sequencer"
)

// Defaults holds stored randomization settings: one block applying to every
// test set plus per-test-set overrides.
//
//	defaults:
//	  strategy: stratified
//	  prevent_repetition: true
//	test_sets:
//	  algebra-midterm:
//	    strategy: template_based
//	    template: easy_to_hard
type Defaults struct {
	Defaults sequencer.Overrides            `yaml:"defaults"`
	TestSets map[string]sequencer.Overrides `yaml:"test_sets"`
}

// LoadDefaults reads a YAML defaults file. An empty path yields empty
// defaults.
func LoadDefaults(path string) (*Defaults, error) {
	if path == "" {
		return &Defaults{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defaults %s: %w", path, err)
	}
	d, err := ParseDefaults(b)
	if err != nil {
		return nil, fmt.Errorf("defaults %s: %w", path, err)
	}
	return d, nil
}

// ParseDefaults decodes and validates a defaults document. Unknown keys are
// rejected so that typos do not silently fall back to built-in values.
func ParseDefaults(b []byte) (*Defaults, error) {
	d := &Defaults{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(d); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := d.Resolve("", sequencer.Overrides{}).Validate(); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	for id := range d.TestSets {
		if err := d.Resolve(id, sequencer.Overrides{}).Validate(); err != nil {
			return nil, fmt.Errorf("test set %s: %w", id, err)
		}
	}
	return d, nil
}

// Resolve builds the config for one call: built-in defaults, then the
// file-wide block, then the test set's block, then the request overrides.
// Later layers win field by field.
func (d *Defaults) Resolve(testSetID string, request sequencer.Overrides) sequencer.Config {
	layers := sequencer.Overrides{}
	if d != nil {
		layers = d.Defaults
		if ts, ok := d.TestSets[testSetID]; ok {
			layers = layers.Then(ts)
		}
	}
	return sequencer.DefaultConfig().Apply(layers.Then(request))
}
