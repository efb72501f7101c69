package bench

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gridbench/lopf-bench/lp"
)

// DefaultPresetsPath is where the run command looks for solver presets.
const DefaultPresetsPath = "defaults.yaml"

// Presets represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Presets struct {
	Version       string                `yaml:"version"`
	SolverPresets map[string]lp.Options `yaml:"solver_presets"`
}

// LoadPresets parses a defaults.yaml file.
func LoadPresets(path string) (*Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading presets: %w", err)
	}
	var p Presets
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing presets %s: %w", path, err)
	}
	return &p, nil
}

// Apply fills c.SolverParams from the preset of c.Solver when the config gave none.
// It reports whether a preset was used.
func (p *Presets) Apply(c *Config) bool {
	if c.SolverParams != nil || p == nil {
		return false
	}
	preset, ok := p.SolverPresets[c.Solver]
	if !ok {
		return false
	}
	c.SolverParams = preset.Clone()
	return true
}
