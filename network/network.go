package network

import (
	"fmt"
	"math"
)

// Snapshot is one time step of the simulated horizon.
type Snapshot struct {
	Name      string  `yaml:"name"`
	Weighting float64 `yaml:"weighting"` // objective weighting in hours (default 1)
}

// Carrier is an energy carrier (gas, wind, AC, ...).
type Carrier struct {
	Name         string  `yaml:"name"`
	CO2Emissions float64 `yaml:"co2_emissions"` // t/MWh of primary energy
}

// Bus is an electrical node.
type Bus struct {
	Name    string  `yaml:"name"`
	VNom    float64 `yaml:"v_nom"`
	Carrier string  `yaml:"carrier"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`

	MarginalPriceT []float64 `yaml:"marginal_price_t,omitempty"` // filled when the solver reports duals
}

// Generator is a dispatchable or variable generation unit.
type Generator struct {
	Name           string  `yaml:"name"`
	Bus            string  `yaml:"bus"`
	Carrier        string  `yaml:"carrier"`
	PNom           float64 `yaml:"p_nom"`
	PNomExtendable bool    `yaml:"p_nom_extendable"`
	PNomMin        float64 `yaml:"p_nom_min"`
	PNomMax        float64 `yaml:"p_nom_max"` // NaN = undefined
	PMinPu         float64 `yaml:"p_min_pu"`
	PMaxPu         float64 `yaml:"p_max_pu"`
	MarginalCost   float64 `yaml:"marginal_cost"`
	CapitalCost    float64 `yaml:"capital_cost"`
	Efficiency     float64 `yaml:"efficiency"`

	PMaxPuT []float64 `yaml:"p_max_pu_t,omitempty"` // per-snapshot availability, overrides PMaxPu

	PNomOpt float64   `yaml:"p_nom_opt,omitempty"`
	PT      []float64 `yaml:"p_t,omitempty"`
}

// Load is a fixed demand at a bus.
type Load struct {
	Name  string    `yaml:"name"`
	Bus   string    `yaml:"bus"`
	PSet  float64   `yaml:"p_set"`
	PSetT []float64 `yaml:"p_set_t,omitempty"`
}

// Line is an AC branch taking part in Kirchhoff's voltage law.
type Line struct {
	Name           string  `yaml:"name"`
	Bus0           string  `yaml:"bus0"`
	Bus1           string  `yaml:"bus1"`
	X              float64 `yaml:"x"`
	R              float64 `yaml:"r"`
	SNom           float64 `yaml:"s_nom"`
	SNomExtendable bool    `yaml:"s_nom_extendable"`
	SNomMin        float64 `yaml:"s_nom_min"`
	SNomMax        float64 `yaml:"s_nom_max"` // NaN = undefined
	SMaxPu         float64 `yaml:"s_max_pu"`
	CapitalCost    float64 `yaml:"capital_cost"`

	SNomOpt float64   `yaml:"s_nom_opt,omitempty"`
	P0T     []float64 `yaml:"p0_t,omitempty"`
}

// Link is a controllable branch (HVDC, converter) with a conversion efficiency.
type Link struct {
	Name           string  `yaml:"name"`
	Bus0           string  `yaml:"bus0"`
	Bus1           string  `yaml:"bus1"`
	PNom           float64 `yaml:"p_nom"`
	PNomExtendable bool    `yaml:"p_nom_extendable"`
	PNomMin        float64 `yaml:"p_nom_min"`
	PNomMax        float64 `yaml:"p_nom_max"`
	PMinPu         float64 `yaml:"p_min_pu"`
	PMaxPu         float64 `yaml:"p_max_pu"`
	Efficiency     float64 `yaml:"efficiency"`
	MarginalCost   float64 `yaml:"marginal_cost"`
	CapitalCost    float64 `yaml:"capital_cost"`

	PMaxPuT []float64 `yaml:"p_max_pu_t,omitempty"`

	PNomOpt float64   `yaml:"p_nom_opt,omitempty"`
	P0T     []float64 `yaml:"p0_t,omitempty"`
}

// StorageUnit is a store with a fixed energy-to-power ratio (MaxHours).
type StorageUnit struct {
	Name                 string  `yaml:"name"`
	Bus                  string  `yaml:"bus"`
	Carrier              string  `yaml:"carrier"`
	PNom                 float64 `yaml:"p_nom"`
	PNomExtendable       bool    `yaml:"p_nom_extendable"`
	PNomMin              float64 `yaml:"p_nom_min"`
	PNomMax              float64 `yaml:"p_nom_max"`
	MaxHours             float64 `yaml:"max_hours"`
	EfficiencyStore      float64 `yaml:"efficiency_store"`
	EfficiencyDispatch   float64 `yaml:"efficiency_dispatch"`
	StateOfChargeInitial float64 `yaml:"state_of_charge_initial"`
	CyclicStateOfCharge  bool    `yaml:"cyclic_state_of_charge"`
	MarginalCost         float64 `yaml:"marginal_cost"`
	CapitalCost          float64 `yaml:"capital_cost"`

	PNomOpt        float64   `yaml:"p_nom_opt,omitempty"`
	PDispatchT     []float64 `yaml:"p_dispatch_t,omitempty"`
	PStoreT        []float64 `yaml:"p_store_t,omitempty"`
	StateOfChargeT []float64 `yaml:"state_of_charge_t,omitempty"`
}

// GlobalConstraint limits a carrier attribute summed over the whole horizon.
// Only "primary_energy" constraints are supported.
type GlobalConstraint struct {
	Name             string  `yaml:"name"`
	Type             string  `yaml:"type"`
	CarrierAttribute string  `yaml:"carrier_attribute"`
	Sense            string  `yaml:"sense"`
	Constant         float64 `yaml:"constant"`
}

// Network is a complete power-system model plus the results of the last optimization.
type Network struct {
	Name              string             `yaml:"name"`
	Snapshots         []Snapshot         `yaml:"snapshots"`
	Carriers          []Carrier          `yaml:"carriers,omitempty"`
	Buses             []Bus              `yaml:"buses"`
	Generators        []Generator        `yaml:"generators,omitempty"`
	Loads             []Load             `yaml:"loads,omitempty"`
	Lines             []Line             `yaml:"lines,omitempty"`
	Links             []Link             `yaml:"links,omitempty"`
	StorageUnits      []StorageUnit      `yaml:"storage_units,omitempty"`
	GlobalConstraints []GlobalConstraint `yaml:"global_constraints,omitempty"`

	Objective float64 `yaml:"objective,omitempty"`
}

// Global constraint vocabulary.
const (
	ConstraintPrimaryEnergy = "primary_energy"
	AttributeCO2Emissions   = "co2_emissions"
)

// NewSnapshot returns a snapshot with unit weighting.
func NewSnapshot(name string) Snapshot {
	return Snapshot{Name: name, Weighting: 1}
}

// NewGenerator returns a generator with PyPSA's static defaults.
func NewGenerator(name, bus string) Generator {
	return Generator{Name: name, Bus: bus, PNomMax: math.Inf(1), PMaxPu: 1, Efficiency: 1}
}

// NewLoad returns a load with zero demand.
func NewLoad(name, bus string) Load {
	return Load{Name: name, Bus: bus}
}

// NewLine returns a line with PyPSA's static defaults.
func NewLine(name, bus0, bus1 string) Line {
	return Line{Name: name, Bus0: bus0, Bus1: bus1, SNomMax: math.Inf(1), SMaxPu: 1}
}

// NewLink returns a link with PyPSA's static defaults.
func NewLink(name, bus0, bus1 string) Link {
	return Link{Name: name, Bus0: bus0, Bus1: bus1, PNomMax: math.Inf(1), PMaxPu: 1, Efficiency: 1}
}

// NewStorageUnit returns a storage unit with PyPSA's static defaults.
func NewStorageUnit(name, bus string) StorageUnit {
	return StorageUnit{
		Name: name, Bus: bus, PNomMax: math.Inf(1), MaxHours: 1,
		EfficiencyStore: 1, EfficiencyDispatch: 1,
	}
}

// NewGlobalConstraint returns a "<=" CO2 primary energy constraint.
func NewGlobalConstraint(name string, constant float64) GlobalConstraint {
	return GlobalConstraint{
		Name: name, Type: ConstraintPrimaryEnergy, CarrierAttribute: AttributeCO2Emissions,
		Sense: "<=", Constant: constant,
	}
}

// PMaxPuAt returns the availability of g at snapshot t.
func (g *Generator) PMaxPuAt(t int) float64 {
	if g.PMaxPuT != nil {
		return g.PMaxPuT[t]
	}
	return g.PMaxPu
}

// PSetAt returns the demand of l at snapshot t.
func (l *Load) PSetAt(t int) float64 {
	if l.PSetT != nil {
		return l.PSetT[t]
	}
	return l.PSet
}

// PMaxPuAt returns the availability of k at snapshot t.
func (k *Link) PMaxPuAt(t int) float64 {
	if k.PMaxPuT != nil {
		return k.PMaxPuT[t]
	}
	return k.PMaxPu
}

// BusIndex maps bus names to their position in n.Buses.
func (n *Network) BusIndex() map[string]int {
	idx := make(map[string]int, len(n.Buses))
	for i, b := range n.Buses {
		idx[b.Name] = i
	}
	return idx
}

// CarrierIndex maps carrier names to their position in n.Carriers.
func (n *Network) CarrierIndex() map[string]int {
	idx := make(map[string]int, len(n.Carriers))
	for i, c := range n.Carriers {
		idx[c.Name] = i
	}
	return idx
}

// series returns pointers to every per-snapshot slice held by the network,
// input series and optimization results alike.
func (n *Network) series() []*[]float64 {
	var out []*[]float64
	for i := range n.Buses {
		out = append(out, &n.Buses[i].MarginalPriceT)
	}
	for i := range n.Generators {
		out = append(out, &n.Generators[i].PMaxPuT, &n.Generators[i].PT)
	}
	for i := range n.Loads {
		out = append(out, &n.Loads[i].PSetT)
	}
	for i := range n.Lines {
		out = append(out, &n.Lines[i].P0T)
	}
	for i := range n.Links {
		out = append(out, &n.Links[i].PMaxPuT, &n.Links[i].P0T)
	}
	for i := range n.StorageUnits {
		su := &n.StorageUnits[i]
		out = append(out, &su.PDispatchT, &su.PStoreT, &su.StateOfChargeT)
	}
	return out
}

// Summary describes the size of a network.
type Summary struct {
	Name              string
	Snapshots         int
	FirstSnapshot     string
	LastSnapshot      string
	Buses             int
	Generators        int
	Loads             int
	Lines             int
	Links             int
	StorageUnits      int
	GlobalConstraints int
	UndefinedPNomMax  int // generators whose p_nom_max is NaN
}

// Summary counts the components of n.
func (n *Network) Summary() Summary {
	s := Summary{
		Name:              n.Name,
		Snapshots:         len(n.Snapshots),
		Buses:             len(n.Buses),
		Generators:        len(n.Generators),
		Loads:             len(n.Loads),
		Lines:             len(n.Lines),
		Links:             len(n.Links),
		StorageUnits:      len(n.StorageUnits),
		GlobalConstraints: len(n.GlobalConstraints),
	}
	if len(n.Snapshots) > 0 {
		s.FirstSnapshot = n.Snapshots[0].Name
		s.LastSnapshot = n.Snapshots[len(n.Snapshots)-1].Name
	}
	for _, g := range n.Generators {
		if math.IsNaN(g.PNomMax) {
			s.UndefinedPNomMax++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d snapshots [%s .. %s], %d buses, %d generators, %d loads, %d lines, %d links, %d storage units, %d global constraints",
		s.Name, s.Snapshots, s.FirstSnapshot, s.LastSnapshot, s.Buses, s.Generators, s.Loads,
		s.Lines, s.Links, s.StorageUnits, s.GlobalConstraints)
}
