package network

import (
	"fmt"
	"math"
)

var validSenses = map[string]bool{"<=": true, ">=": true, "==": true}

// Validate checks referential integrity and series shapes. Generator and storage unit
// carriers must be declared once any carrier is; an empty carrier is always accepted.
// Undefined (NaN) capacity bounds are allowed here; the optimizer rejects them.
func (n *Network) Validate() error {
	nt := len(n.Snapshots)
	seen := map[string]bool{}
	for i, s := range n.Snapshots {
		if seen[s.Name] {
			return fmt.Errorf("snapshot[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		if math.IsNaN(s.Weighting) || s.Weighting < 0 {
			return fmt.Errorf("snapshot %q: weighting must be non-negative, got %f", s.Name, s.Weighting)
		}
	}

	if err := uniqueNames("carrier", len(n.Carriers), func(i int) string { return n.Carriers[i].Name }); err != nil {
		return err
	}
	if err := uniqueNames("bus", len(n.Buses), func(i int) string { return n.Buses[i].Name }); err != nil {
		return err
	}
	carriers := n.CarrierIndex()
	hasCarrier := func(kind, name, carrier string) error {
		if carrier == "" || len(carriers) == 0 {
			return nil
		}
		if _, ok := carriers[carrier]; !ok {
			return fmt.Errorf("%s %q: unknown carrier %q", kind, name, carrier)
		}
		return nil
	}
	buses := n.BusIndex()
	hasBus := func(kind, name, bus string) error {
		if _, ok := buses[bus]; !ok {
			return fmt.Errorf("%s %q: unknown bus %q", kind, name, bus)
		}
		return nil
	}
	hasSeries := func(kind, name, attr string, s []float64) error {
		if s != nil && len(s) != nt {
			return fmt.Errorf("%s %q: %s has %d values, expected %d snapshots", kind, name, attr, len(s), nt)
		}
		return nil
	}

	if err := uniqueNames("generator", len(n.Generators), func(i int) string { return n.Generators[i].Name }); err != nil {
		return err
	}
	for _, g := range n.Generators {
		if err := hasBus("generator", g.Name, g.Bus); err != nil {
			return err
		}
		if err := hasCarrier("generator", g.Name, g.Carrier); err != nil {
			return err
		}
		if err := hasSeries("generator", g.Name, "p_max_pu", g.PMaxPuT); err != nil {
			return err
		}
	}

	if err := uniqueNames("load", len(n.Loads), func(i int) string { return n.Loads[i].Name }); err != nil {
		return err
	}
	for _, l := range n.Loads {
		if err := hasBus("load", l.Name, l.Bus); err != nil {
			return err
		}
		if err := hasSeries("load", l.Name, "p_set", l.PSetT); err != nil {
			return err
		}
	}

	if err := uniqueNames("line", len(n.Lines), func(i int) string { return n.Lines[i].Name }); err != nil {
		return err
	}
	for _, l := range n.Lines {
		if err := hasBus("line", l.Name, l.Bus0); err != nil {
			return err
		}
		if err := hasBus("line", l.Name, l.Bus1); err != nil {
			return err
		}
	}

	if err := uniqueNames("link", len(n.Links), func(i int) string { return n.Links[i].Name }); err != nil {
		return err
	}
	for _, k := range n.Links {
		if err := hasBus("link", k.Name, k.Bus0); err != nil {
			return err
		}
		if err := hasBus("link", k.Name, k.Bus1); err != nil {
			return err
		}
		if err := hasSeries("link", k.Name, "p_max_pu", k.PMaxPuT); err != nil {
			return err
		}
	}

	if err := uniqueNames("storage unit", len(n.StorageUnits), func(i int) string { return n.StorageUnits[i].Name }); err != nil {
		return err
	}
	for _, su := range n.StorageUnits {
		if err := hasBus("storage unit", su.Name, su.Bus); err != nil {
			return err
		}
		if err := hasCarrier("storage unit", su.Name, su.Carrier); err != nil {
			return err
		}
		if su.EfficiencyStore <= 0 || su.EfficiencyDispatch <= 0 {
			return fmt.Errorf("storage unit %q: efficiencies must be positive", su.Name)
		}
	}

	if err := uniqueNames("global constraint", len(n.GlobalConstraints), func(i int) string { return n.GlobalConstraints[i].Name }); err != nil {
		return err
	}
	for _, gc := range n.GlobalConstraints {
		if gc.Type != ConstraintPrimaryEnergy {
			return fmt.Errorf("global constraint %q: unsupported type %q; valid: %s", gc.Name, gc.Type, ConstraintPrimaryEnergy)
		}
		if gc.CarrierAttribute != AttributeCO2Emissions {
			return fmt.Errorf("global constraint %q: unsupported carrier attribute %q; valid: %s", gc.Name, gc.CarrierAttribute, AttributeCO2Emissions)
		}
		if !validSenses[gc.Sense] {
			return fmt.Errorf("global constraint %q: unknown sense %q; valid: <=, >=, ==", gc.Name, gc.Sense)
		}
	}
	return nil
}

func uniqueNames(kind string, count int, name func(int) string) error {
	seen := make(map[string]bool, count)
	for i := 0; i < count; i++ {
		nm := name(i)
		if nm == "" {
			return fmt.Errorf("%s[%d]: name is required", kind, i)
		}
		if seen[nm] {
			return fmt.Errorf("%s[%d]: duplicate name %q", kind, i, nm)
		}
		seen[nm] = true
	}
	return nil
}
