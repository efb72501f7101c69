package network

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Component types decode through these hooks so that absent keys take PyPSA defaults.
// A null capacity bound (`p_nom_max: ~` or an empty value) means undefined, like `.nan`.

func (s *Snapshot) UnmarshalYAML(value *yaml.Node) error {
	// A bare scalar is shorthand for a unit-weight snapshot.
	if value.Kind == yaml.ScalarNode {
		*s = NewSnapshot(value.Value)
		return nil
	}
	*s = NewSnapshot("")
	type plain Snapshot
	return value.Decode((*plain)(s))
}

func (g *Generator) UnmarshalYAML(value *yaml.Node) error {
	*g = NewGenerator("", "")
	type plain Generator
	if err := value.Decode((*plain)(g)); err != nil {
		return err
	}
	nullAsUndefined(value, "p_nom_max", &g.PNomMax)
	return nil
}

func (l *Line) UnmarshalYAML(value *yaml.Node) error {
	*l = NewLine("", "", "")
	type plain Line
	if err := value.Decode((*plain)(l)); err != nil {
		return err
	}
	nullAsUndefined(value, "s_nom_max", &l.SNomMax)
	return nil
}

func (k *Link) UnmarshalYAML(value *yaml.Node) error {
	*k = NewLink("", "", "")
	type plain Link
	if err := value.Decode((*plain)(k)); err != nil {
		return err
	}
	nullAsUndefined(value, "p_nom_max", &k.PNomMax)
	return nil
}

func (su *StorageUnit) UnmarshalYAML(value *yaml.Node) error {
	*su = NewStorageUnit("", "")
	type plain StorageUnit
	if err := value.Decode((*plain)(su)); err != nil {
		return err
	}
	nullAsUndefined(value, "p_nom_max", &su.PNomMax)
	return nil
}

func (gc *GlobalConstraint) UnmarshalYAML(value *yaml.Node) error {
	*gc = NewGlobalConstraint("", 0)
	type plain GlobalConstraint
	return value.Decode((*plain)(gc))
}

func nullAsUndefined(value *yaml.Node, key string, field *float64) {
	if value.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == key && value.Content[i+1].ShortTag() == "!!null" {
			*field = math.NaN()
		}
	}
}

// strictDocument mirrors Network with method-free element types. Custom unmarshalers
// do not inherit KnownFields, so key checking runs as a separate pass over this shape.
type strictDocument struct {
	Name              string                   `yaml:"name"`
	Snapshots         []yaml.Node              `yaml:"snapshots"`
	Carriers          []Carrier                `yaml:"carriers"`
	Buses             []Bus                    `yaml:"buses"`
	Generators        []strictGenerator        `yaml:"generators"`
	Loads             []Load                   `yaml:"loads"`
	Lines             []strictLine             `yaml:"lines"`
	Links             []strictLink             `yaml:"links"`
	StorageUnits      []strictStorageUnit      `yaml:"storage_units"`
	GlobalConstraints []strictGlobalConstraint `yaml:"global_constraints"`
	Objective         float64                  `yaml:"objective"`
}

type (
	strictGenerator        Generator
	strictLine             Line
	strictLink             Link
	strictStorageUnit      StorageUnit
	strictGlobalConstraint GlobalConstraint
)

// ParseYAML decodes a network document. Unrecognized keys are rejected.
func ParseYAML(data []byte) (*Network, error) {
	var shape strictDocument
	strict := yaml.NewDecoder(bytes.NewReader(data))
	strict.KnownFields(true)
	if err := strict.Decode(&shape); err != nil {
		return nil, fmt.Errorf("parsing network YAML: %w", err)
	}

	var n Network
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("parsing network YAML: %w", err)
	}
	return &n, nil
}

// LoadYAML reads and validates a network document from path.
func LoadYAML(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading network YAML: %w", err)
	}
	n, err := ParseYAML(data)
	if err != nil {
		return nil, err
	}
	if n.Name == "" {
		n.Name = nameFromPath(path)
	}
	return n, nil
}

// WriteYAML serializes n to path. NaN and Inf bounds round-trip as .nan and .inf.
func (n *Network) WriteYAML(path string) error {
	data, err := yaml.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling network: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing network YAML: %w", err)
	}
	return nil
}
