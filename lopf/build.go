// Package lopf formulates PyPSA-style linear optimal power flow as an lp.Problem and
// writes the optimum back into the network.
//
// The formulation is the DC approximation in voltage-angle form:
//
//	minimize  sum_t w_t * (marginal costs of dispatch)  +  sum capital_cost * capacity
//	s.t.      nodal balance            sum injections - sum withdrawals = load   (bus, t)
//	          Kirchhoff voltage law    x*f - theta_bus0 + theta_bus1 = 0        (line, t)
//	          capacity limits          fixed as column bounds, extendable as rows
//	          storage continuity       soc_t = soc_{t-1} + w_t*(eta_s*store - dispatch/eta_d)
//	          primary energy limits    sum_t w_t * co2/eta * p  <sense>  constant
package lopf

import (
	"fmt"
	"math"

	"github.com/gridbench/lopf-bench/lp"
	"github.com/gridbench/lopf-bench/network"
)

const absent = -1

// Model is the LP of a network plus the index needed to map a solution back.
type Model struct {
	Problem *lp.Problem

	net     *network.Network
	weights []float64

	genP    [][]int // [generator][t] dispatch column
	genPNom []int   // capacity column, absent when not extendable

	lineF    [][]int
	lineSNom []int

	linkP    [][]int
	linkPNom []int

	suDispatch [][]int
	suStore    [][]int
	suSOC      [][]int
	suPNom     []int

	theta   [][]int // [bus][t], nil for buses without angles
	balance [][]int // [bus][t] nodal balance row
}

// Build formulates the optimal power flow of n. It fails on undefined (NaN) parameters;
// fill them first, e.g. n.FillGeneratorPNomMax(math.Inf(1)).
func Build(n *network.Network) (*Model, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if err := checkDefined(n); err != nil {
		return nil, err
	}
	nt := len(n.Snapshots)
	m := &Model{
		Problem: &lp.Problem{Name: n.Name},
		net:     n,
		weights: make([]float64, nt),
	}
	for t, s := range n.Snapshots {
		m.weights[t] = s.Weighting
	}
	buses := n.BusIndex()

	m.addGenerators()
	m.addLines()
	m.addLinks()
	m.addStorageUnits()
	m.addAngles(buses)
	m.addBalance(buses)
	m.addKirchhoff(buses)
	m.addStorageContinuity()
	m.addGlobalConstraints()
	return m, nil
}

// NumSnapshots is the horizon the model was built for.
func (m *Model) NumSnapshots() int { return len(m.weights) }

func (m *Model) col(kind, name, attr string, t int, cost, lo, up float64) int {
	label := fmt.Sprintf("%s-%s-%s", kind, name, attr)
	if t >= 0 {
		label += fmt.Sprintf("-%d", t)
	}
	return m.Problem.AddColumn(label, cost, lo, up)
}

func (m *Model) row(kind, name, attr string, t int, lo, up float64, terms ...lp.Term) int {
	label := fmt.Sprintf("%s-%s-%s", kind, name, attr)
	if t >= 0 {
		label += fmt.Sprintf("-%d", t)
	}
	return m.Problem.AddRow(label, lo, up, terms...)
}

// capacity adds the nominal-capacity column of an extendable asset, or returns absent.
func (m *Model) capacity(kind, name, attr string, extendable bool, capitalCost, lo, up float64) int {
	if !extendable {
		return absent
	}
	return m.col(kind, name, attr, -1, capitalCost, lo, up)
}

// dispatch adds one column per snapshot bounded by [minPu*nom, maxPu(t)*nom]. When the
// capacity is a column the bounds become coupling rows instead.
func (m *Model) dispatch(kind, name string, nomCol int, nom, cost, minPu float64, maxPu func(t int) float64) []int {
	cols := make([]int, len(m.weights))
	for t, w := range m.weights {
		if nomCol == absent {
			cols[t] = m.col(kind, name, "p", t, w*cost, minPu*nom, maxPu(t)*nom)
			continue
		}
		cols[t] = m.col(kind, name, "p", t, w*cost, -lp.Inf, lp.Inf)
		m.row(kind, name, "p_upper", t, -lp.Inf, 0, lp.Term{Col: cols[t], Coef: 1}, lp.Term{Col: nomCol, Coef: -maxPu(t)})
		m.row(kind, name, "p_lower", t, 0, lp.Inf, lp.Term{Col: cols[t], Coef: 1}, lp.Term{Col: nomCol, Coef: -minPu})
	}
	return cols
}

func (m *Model) addGenerators() {
	gens := m.net.Generators
	m.genP = make([][]int, len(gens))
	m.genPNom = make([]int, len(gens))
	for i := range gens {
		g := &gens[i]
		m.genPNom[i] = m.capacity("generator", g.Name, "p_nom", g.PNomExtendable, g.CapitalCost, g.PNomMin, g.PNomMax)
		m.genP[i] = m.dispatch("generator", g.Name, m.genPNom[i], g.PNom, g.MarginalCost, g.PMinPu, g.PMaxPuAt)
	}
}

func (m *Model) addLinks() {
	links := m.net.Links
	m.linkP = make([][]int, len(links))
	m.linkPNom = make([]int, len(links))
	for i := range links {
		k := &links[i]
		m.linkPNom[i] = m.capacity("link", k.Name, "p_nom", k.PNomExtendable, k.CapitalCost, k.PNomMin, k.PNomMax)
		m.linkP[i] = m.dispatch("link", k.Name, m.linkPNom[i], k.PNom, k.MarginalCost, k.PMinPu, k.PMaxPuAt)
	}
}

func (m *Model) addLines() {
	lines := m.net.Lines
	m.lineF = make([][]int, len(lines))
	m.lineSNom = make([]int, len(lines))
	for i := range lines {
		l := &lines[i]
		m.lineSNom[i] = m.capacity("line", l.Name, "s_nom", l.SNomExtendable, l.CapitalCost, l.SNomMin, l.SNomMax)
		m.lineF[i] = m.dispatch("line", l.Name, m.lineSNom[i], l.SNom, 0, -l.SMaxPu, func(int) float64 { return l.SMaxPu })
	}
}

func (m *Model) addStorageUnits() {
	sus := m.net.StorageUnits
	m.suDispatch = make([][]int, len(sus))
	m.suStore = make([][]int, len(sus))
	m.suSOC = make([][]int, len(sus))
	m.suPNom = make([]int, len(sus))
	for i := range sus {
		su := &sus[i]
		nomCol := m.capacity("storage_unit", su.Name, "p_nom", su.PNomExtendable, su.CapitalCost, su.PNomMin, su.PNomMax)
		m.suPNom[i] = nomCol
		one := func(int) float64 { return 1 }
		m.suDispatch[i] = m.storageColumns(su.Name, "p_dispatch", nomCol, su.PNom, su.MarginalCost, one)
		m.suStore[i] = m.storageColumns(su.Name, "p_store", nomCol, su.PNom, 0, one)
		m.suSOC[i] = m.storageColumns(su.Name, "state_of_charge", nomCol, su.PNom, 0, func(int) float64 { return su.MaxHours })
	}
}

// storageColumns adds non-negative columns bounded by scale(t)*p_nom.
func (m *Model) storageColumns(name, attr string, nomCol int, nom, cost float64, scale func(int) float64) []int {
	cols := make([]int, len(m.weights))
	for t, w := range m.weights {
		if nomCol == absent {
			cols[t] = m.col("storage_unit", name, attr, t, w*cost, 0, scale(t)*nom)
			continue
		}
		cols[t] = m.col("storage_unit", name, attr, t, w*cost, 0, lp.Inf)
		m.row("storage_unit", name, attr+"_upper", t, -lp.Inf, 0, lp.Term{Col: cols[t], Coef: 1}, lp.Term{Col: nomCol, Coef: -scale(t)})
	}
	return cols
}

func (m *Model) addAngles(buses map[string]int) {
	needsAngle, isRef := angleBuses(m.net, buses)
	m.theta = make([][]int, len(m.net.Buses))
	for b, bus := range m.net.Buses {
		if !needsAngle[b] {
			continue
		}
		lo, up := -lp.Inf, lp.Inf
		if isRef[b] {
			lo, up = 0, 0
		}
		m.theta[b] = make([]int, len(m.weights))
		for t := range m.weights {
			m.theta[b][t] = m.col("bus", bus.Name, "v_ang", t, 0, lo, up)
		}
	}
}

// addBalance adds one equality per bus and snapshot: generation, storage dispatch and
// inbound branch flow minus storage charging and outbound flow equals load.
func (m *Model) addBalance(buses map[string]int) {
	n := m.net
	nb, nt := len(n.Buses), len(m.weights)
	terms := make([][][]lp.Term, nb)
	load := make([][]float64, nb)
	for b := range terms {
		terms[b] = make([][]lp.Term, nt)
		load[b] = make([]float64, nt)
	}
	add := func(b int, cols []int, coef float64) {
		for t, c := range cols {
			terms[b][t] = append(terms[b][t], lp.Term{Col: c, Coef: coef})
		}
	}
	for i, g := range n.Generators {
		add(buses[g.Bus], m.genP[i], 1)
	}
	for i, l := range n.Lines {
		add(buses[l.Bus0], m.lineF[i], -1)
		add(buses[l.Bus1], m.lineF[i], 1)
	}
	for i, k := range n.Links {
		add(buses[k.Bus0], m.linkP[i], -1)
		add(buses[k.Bus1], m.linkP[i], k.Efficiency)
	}
	for i, su := range n.StorageUnits {
		add(buses[su.Bus], m.suDispatch[i], 1)
		add(buses[su.Bus], m.suStore[i], -1)
	}
	for i := range n.Loads {
		l := &n.Loads[i]
		b := buses[l.Bus]
		for t := 0; t < nt; t++ {
			load[b][t] += l.PSetAt(t)
		}
	}

	m.balance = make([][]int, nb)
	for b, bus := range n.Buses {
		m.balance[b] = make([]int, nt)
		for t := 0; t < nt; t++ {
			m.balance[b][t] = m.row("bus", bus.Name, "balance", t, load[b][t], load[b][t], terms[b][t]...)
		}
	}
}

func (m *Model) addKirchhoff(buses map[string]int) {
	for i, l := range m.net.Lines {
		if l.X == 0 {
			continue
		}
		b0, b1 := buses[l.Bus0], buses[l.Bus1]
		for t := range m.weights {
			m.row("line", l.Name, "kvl", t, 0, 0,
				lp.Term{Col: m.lineF[i][t], Coef: l.X},
				lp.Term{Col: m.theta[b0][t], Coef: -1},
				lp.Term{Col: m.theta[b1][t], Coef: 1})
		}
	}
}

// addStorageContinuity links consecutive states of charge. The first snapshot starts
// from the initial state, or from the last one when the unit is cyclic.
func (m *Model) addStorageContinuity() {
	nt := len(m.weights)
	for i, su := range m.net.StorageUnits {
		for t, w := range m.weights {
			terms := []lp.Term{
				{Col: m.suSOC[i][t], Coef: 1},
				{Col: m.suStore[i][t], Coef: -w * su.EfficiencyStore},
				{Col: m.suDispatch[i][t], Coef: w / su.EfficiencyDispatch},
			}
			rhs := 0.0
			switch {
			case t > 0:
				terms = append(terms, lp.Term{Col: m.suSOC[i][t-1], Coef: -1})
			case su.CyclicStateOfCharge:
				terms = append(terms, lp.Term{Col: m.suSOC[i][nt-1], Coef: -1})
			default:
				rhs = su.StateOfChargeInitial
			}
			m.row("storage_unit", su.Name, "soc", t, rhs, rhs, terms...)
		}
	}
}

// addGlobalConstraints adds primary energy limits: generator output divided by efficiency
// times the carrier's emission factor, weighted over the horizon.
func (m *Model) addGlobalConstraints() {
	n := m.net
	carriers := n.CarrierIndex()
	for _, gc := range n.GlobalConstraints {
		var terms []lp.Term
		for i, g := range n.Generators {
			c, ok := carriers[g.Carrier]
			if !ok || n.Carriers[c].CO2Emissions == 0 {
				continue
			}
			factor := n.Carriers[c].CO2Emissions / g.Efficiency
			for t, w := range m.weights {
				terms = append(terms, lp.Term{Col: m.genP[i][t], Coef: w * factor})
			}
		}
		lo, up := -lp.Inf, lp.Inf
		switch gc.Sense {
		case "<=":
			up = gc.Constant
		case ">=":
			lo = gc.Constant
		case "==":
			lo, up = gc.Constant, gc.Constant
		}
		m.row("global_constraint", gc.Name, "mu", -1, lo, up, terms...)
	}
}

// checkDefined rejects NaN parameters the formulation would use.
func checkDefined(n *network.Network) error {
	undefined := func(kind, name, attr string, vs ...float64) error {
		for _, v := range vs {
			if math.IsNaN(v) {
				return fmt.Errorf("%s %q: %s is undefined (NaN); fill it before optimizing", kind, name, attr)
			}
		}
		return nil
	}
	for _, g := range n.Generators {
		if err := undefined("generator", g.Name, "p_nom, p_min_pu, p_max_pu, marginal_cost or efficiency",
			g.PNom, g.PMinPu, g.PMaxPu, g.MarginalCost, g.Efficiency); err != nil {
			return err
		}
		if g.PNomExtendable {
			if err := undefined("generator", g.Name, "p_nom_min", g.PNomMin); err != nil {
				return err
			}
			if err := undefined("generator", g.Name, "p_nom_max", g.PNomMax); err != nil {
				return err
			}
			if err := undefined("generator", g.Name, "capital_cost", g.CapitalCost); err != nil {
				return err
			}
		}
		if err := undefined("generator", g.Name, "p_max_pu series", g.PMaxPuT...); err != nil {
			return err
		}
		if g.Efficiency == 0 {
			return fmt.Errorf("generator %q: efficiency must be non-zero", g.Name)
		}
	}
	for _, l := range n.Loads {
		if err := undefined("load", l.Name, "p_set", append([]float64{l.PSet}, l.PSetT...)...); err != nil {
			return err
		}
	}
	for _, l := range n.Lines {
		if err := undefined("line", l.Name, "x, s_nom or s_max_pu", l.X, l.SNom, l.SMaxPu); err != nil {
			return err
		}
		if l.SNomExtendable {
			if err := undefined("line", l.Name, "s_nom_min, s_nom_max or capital_cost", l.SNomMin, l.SNomMax, l.CapitalCost); err != nil {
				return err
			}
		}
	}
	for _, k := range n.Links {
		if err := undefined("link", k.Name, "p_nom, p_min_pu, p_max_pu, efficiency or marginal_cost",
			k.PNom, k.PMinPu, k.PMaxPu, k.Efficiency, k.MarginalCost); err != nil {
			return err
		}
		if k.PNomExtendable {
			if err := undefined("link", k.Name, "p_nom_min, p_nom_max or capital_cost", k.PNomMin, k.PNomMax, k.CapitalCost); err != nil {
				return err
			}
		}
		if err := undefined("link", k.Name, "p_max_pu series", k.PMaxPuT...); err != nil {
			return err
		}
	}
	for _, su := range n.StorageUnits {
		if err := undefined("storage unit", su.Name, "p_nom, max_hours, state_of_charge_initial or marginal_cost",
			su.PNom, su.MaxHours, su.StateOfChargeInitial, su.MarginalCost); err != nil {
			return err
		}
		if su.PNomExtendable {
			if err := undefined("storage unit", su.Name, "p_nom_min, p_nom_max or capital_cost", su.PNomMin, su.PNomMax, su.CapitalCost); err != nil {
				return err
			}
		}
	}
	return nil
}
