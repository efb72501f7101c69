package lopf_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbench/lopf-bench/internal/testutil"
	"github.com/gridbench/lopf-bench/lopf"
	"github.com/gridbench/lopf-bench/lp"
	_ "github.com/gridbench/lopf-bench/lp/simplex"
	"github.com/gridbench/lopf-bench/network"
)

const tol = 1e-6

func optimize(t *testing.T, n *network.Network) *lopf.Result {
	t.Helper()
	res, err := lopf.Optimize(context.Background(), n, "simplex", nil)
	require.NoError(t, err)
	return res
}

func column(t *testing.T, m *lopf.Model, name string) lp.Column {
	t.Helper()
	for _, c := range m.Problem.Columns {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("column %q not found", name)
	return lp.Column{}
}

func TestOptimize_MeritOrderDispatch(t *testing.T) {
	// GIVEN a single bus with generators at 10 and 20 per MWh, 50 MW each
	n := testutil.SingleBus([]float64{70, 30})

	// WHEN optimized
	res := optimize(t, n)

	// THEN the cheap unit is used first in every snapshot
	require.Equal(t, lp.StatusOptimal, res.Status)
	assert.InDelta(t, 50*10+20*20+30*10, res.Objective, tol)
	assert.InDelta(t, res.Objective, n.Objective, tol)
	assert.InDeltaSlice(t, []float64{50, 30}, n.Generators[0].PT, tol)
	assert.InDeltaSlice(t, []float64{20, 0}, n.Generators[1].PT, tol)
	assert.Equal(t, 50.0, n.Generators[1].PNomOpt)
	assert.Equal(t, 4, res.Columns)
	assert.Equal(t, 2, res.Rows)
}

func TestOptimize_SnapshotWeightingScalesCosts(t *testing.T) {
	n := testutil.SingleBus([]float64{70})
	n.Snapshots[0].Weighting = 2

	res := optimize(t, n)

	assert.InDelta(t, 2*(50*10+20*20), res.Objective, tol)
}

func TestOptimize_CongestedLine(t *testing.T) {
	// GIVEN cheap generation behind a 60 MW line
	n := testutil.TwoBus([]float64{100})

	res := optimize(t, n)

	// THEN the line is at its limit and the local unit covers the rest
	require.Equal(t, lp.StatusOptimal, res.Status)
	assert.InDelta(t, 60*10+40*50, res.Objective, tol)
	assert.InDeltaSlice(t, []float64{60}, n.Lines[0].P0T, tol)
	assert.InDeltaSlice(t, []float64{40}, n.Generators[1].PT, tol)
	assert.Equal(t, 60.0, n.Lines[0].SNomOpt)
}

func TestOptimize_TransportLineSkipsAngles(t *testing.T) {
	n := testutil.TwoBus([]float64{100})
	n.Lines[0].X = 0

	m, err := lopf.Build(n)
	require.NoError(t, err)
	assert.Len(t, m.Problem.Columns, 3, "two generators and one flow, no angles")

	res := optimize(t, n)
	assert.InDelta(t, 2600, res.Objective, tol)
}

func TestBuild_OneReferenceAnglePerSubNetwork(t *testing.T) {
	// GIVEN two islands a-b and c-d
	n := &network.Network{
		Name:      "islands",
		Snapshots: testutil.Snapshots(1),
		Buses:     []network.Bus{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}},
	}
	ab := network.NewLine("ab", "a", "b")
	ab.X = 1
	dc := network.NewLine("dc", "d", "c")
	dc.X = 1
	n.Lines = []network.Line{ab, dc}

	m, err := lopf.Build(n)
	require.NoError(t, err)

	// THEN the first bus of each island has its angle fixed at zero
	for name, fixed := range map[string]bool{"a": true, "b": false, "c": true, "d": false} {
		c := column(t, m, "bus-"+name+"-v_ang-0")
		if fixed {
			assert.Equal(t, [2]float64{0, 0}, [2]float64{c.Lower, c.Upper}, name)
		} else {
			assert.True(t, math.IsInf(c.Lower, -1) && math.IsInf(c.Upper, 1), name)
		}
	}
}

func TestOptimize_ExtendableGenerator(t *testing.T) {
	// GIVEN the peak unit is extendable with an undefined p_nom_max
	n := testutil.SingleBus([]float64{70, 70})
	n.Generators[1].PNomExtendable = true
	n.Generators[1].CapitalCost = 5

	// WHEN built before filling
	_, err := lopf.Build(n)

	// THEN the undefined bound is rejected
	require.Error(t, err)
	assert.Contains(t, err.Error(), `generator "peak": p_nom_max is undefined`)

	// WHEN filled with +Inf and optimized
	n.FillGeneratorPNomMax(math.Inf(1))
	res := optimize(t, n)

	// THEN only the capacity needed at peak is built
	require.Equal(t, lp.StatusOptimal, res.Status)
	assert.InDelta(t, 20, n.Generators[1].PNomOpt, tol)
	assert.InDelta(t, 2*(50*10+20*20)+5*20, res.Objective, tol)
}

func TestOptimize_CO2Limit(t *testing.T) {
	// GIVEN coal (1 t/MWh) at 10 and gas (0.5 t/MWh) at 20, capped at 45 t
	n := testutil.SingleBus([]float64{70})
	n.GlobalConstraints = []network.GlobalConstraint{network.NewGlobalConstraint("co2limit", 45)}

	res := optimize(t, n)

	// THEN gas displaces coal until the cap holds
	require.Equal(t, lp.StatusOptimal, res.Status)
	assert.InDeltaSlice(t, []float64{20}, n.Generators[0].PT, tol)
	assert.InDeltaSlice(t, []float64{50}, n.Generators[1].PT, tol)
	assert.InDelta(t, 20*10+50*20, res.Objective, tol)
}

func storageNetwork(demand []float64, cyclic bool) *network.Network {
	cheap := network.NewGenerator("cheap", "bus0")
	cheap.PNom = 60
	cheap.MarginalCost = 10
	dear := network.NewGenerator("dear", "bus0")
	dear.PNom = 100
	dear.MarginalCost = 100
	load := network.NewLoad("demand", "bus0")
	load.PSetT = demand
	su := network.NewStorageUnit("battery", "bus0")
	su.PNom = 30
	su.MaxHours = 2
	su.CyclicStateOfCharge = cyclic
	return &network.Network{
		Name:         "storage",
		Snapshots:    testutil.Snapshots(len(demand)),
		Buses:        []network.Bus{{Name: "bus0"}},
		Generators:   []network.Generator{cheap, dear},
		Loads:        []network.Load{load},
		StorageUnits: []network.StorageUnit{su},
	}
}

func TestOptimize_StorageShiftsCheapEnergy(t *testing.T) {
	n := storageNetwork([]float64{40, 80}, false)

	res := optimize(t, n)

	require.Equal(t, lp.StatusOptimal, res.Status)
	assert.InDelta(t, 1200, res.Objective, tol)
	assert.InDeltaSlice(t, []float64{60, 60}, n.Generators[0].PT, tol)
	assert.InDeltaSlice(t, []float64{20, 0}, n.StorageUnits[0].StateOfChargeT, tol)
}

func TestOptimize_CyclicStorageWrapsAround(t *testing.T) {
	// GIVEN the surplus comes last; only a cyclic unit can carry it to the first snapshot
	n := storageNetwork([]float64{80, 40}, true)

	res := optimize(t, n)

	require.Equal(t, lp.StatusOptimal, res.Status)
	assert.InDelta(t, 1200, res.Objective, tol)
	soc := n.StorageUnits[0].StateOfChargeT
	assert.InDelta(t, 20, soc[1]-soc[0], tol, "surplus of the last snapshot is stored")
}

func TestOptimize_LinkEfficiency(t *testing.T) {
	gen := network.NewGenerator("gen", "bus0")
	gen.PNom = 200
	gen.MarginalCost = 10
	load := network.NewLoad("demand", "bus1")
	load.PSet = 50
	link := network.NewLink("converter", "bus0", "bus1")
	link.PNom = 150
	link.Efficiency = 0.5
	n := &network.Network{
		Name:       "link",
		Snapshots:  testutil.Snapshots(1),
		Buses:      []network.Bus{{Name: "bus0"}, {Name: "bus1"}},
		Generators: []network.Generator{gen},
		Loads:      []network.Load{load},
		Links:      []network.Link{link},
	}

	res := optimize(t, n)

	require.Equal(t, lp.StatusOptimal, res.Status)
	assert.InDeltaSlice(t, []float64{100}, n.Links[0].P0T, tol)
	assert.InDelta(t, 1000, res.Objective, tol)
}

func TestOptimize_Infeasible_ReturnsStatusWithoutWriteBack(t *testing.T) {
	n := testutil.SingleBus([]float64{200})

	res, err := lopf.Optimize(context.Background(), n, "simplex", nil)

	require.NoError(t, err)
	assert.Equal(t, lp.StatusInfeasible, res.Status)
	assert.Nil(t, n.Generators[0].PT)
	assert.Zero(t, n.Objective)
}

func TestOptimize_UnknownSolver(t *testing.T) {
	_, err := lopf.Optimize(context.Background(), testutil.SingleBus([]float64{1}), "gurobi", nil)
	assert.True(t, errors.Is(err, lp.ErrUnknownSolver))
}

func TestOptimize_SolverErrorPropagates(t *testing.T) {
	_, err := lopf.Optimize(context.Background(), testutil.SingleBus([]float64{1}), "simplex", lp.Options{"threads": 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solving with simplex")
}

func TestBuild_RejectsUndefinedSeries(t *testing.T) {
	n := testutil.SingleBus([]float64{70, math.NaN()})
	_, err := lopf.Build(n)
	assert.ErrorContains(t, err, `load "demand": p_set is undefined`)
}

func TestApply_MarginalPricesFromDuals(t *testing.T) {
	// GIVEN a model whose only rows are the two nodal balances
	n := testutil.SingleBus([]float64{70, 30})
	n.Snapshots[1].Weighting = 2
	m, err := lopf.Build(n)
	require.NoError(t, err)
	require.Len(t, m.Problem.Rows, 2)

	// WHEN a solution with duals is applied
	sol := &lp.Solution{
		Status:    lp.StatusOptimal,
		Objective: 42,
		Primal:    make([]float64, len(m.Problem.Columns)),
		RowDuals:  []float64{20, 20},
	}
	require.NoError(t, m.Apply(sol))

	// THEN prices are duals per unit of weighting
	assert.Equal(t, []float64{20, 10}, n.Buses[0].MarginalPriceT)
	assert.Equal(t, 42.0, n.Objective)

	assert.Error(t, m.Apply(&lp.Solution{Primal: []float64{1}}))
}

// triangleDay is a three-bus meshed network over 24 hourly snapshots: capped coal at
// bus a, extendable gas at bus b, the load and a cyclic battery at bus c.
func triangleDay() *network.Network {
	const nt = 24
	demand := make([]float64, nt)
	for t := range demand {
		demand[t] = 30
		if t%2 == 1 {
			demand[t] = 70
		}
	}
	coal := network.NewGenerator("coal", "a")
	coal.PNom = 100
	coal.MarginalCost = 10
	coal.Carrier = "coal"
	gas := network.NewGenerator("gas", "b")
	gas.PNomExtendable = true
	gas.CapitalCost = 5
	gas.MarginalCost = 30
	gas.Carrier = "gas"
	load := network.NewLoad("demand", "c")
	load.PSetT = demand
	su := network.NewStorageUnit("battery", "c")
	su.PNom = 10
	su.MaxHours = 4
	su.CyclicStateOfCharge = true

	var lines []network.Line
	for _, ends := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}} {
		l := network.NewLine(ends[0]+ends[1], ends[0], ends[1])
		l.X = 0.1
		l.SNom = 1000
		lines = append(lines, l)
	}
	n := &network.Network{
		Name:         "triangle",
		Snapshots:    testutil.Snapshots(nt),
		Carriers:     []network.Carrier{{Name: "coal", CO2Emissions: 1}, {Name: "gas"}},
		Buses:        []network.Bus{{Name: "a"}, {Name: "b"}, {Name: "c"}},
		Generators:   []network.Generator{coal, gas},
		Loads:        []network.Load{load},
		Lines:        lines,
		StorageUnits: []network.StorageUnit{su},
	}
	n.GlobalConstraints = []network.GlobalConstraint{network.NewGlobalConstraint("co2limit", 720)}
	return n
}

func TestOptimize_MeshedDayWithExtendableCO2AndCyclicStorage(t *testing.T) {
	// GIVEN 1200 MWh of demand, coal capped at 720 t (720 MWh) and gas built on demand
	n := triangleDay()

	// WHEN optimized
	res := optimize(t, n)

	// THEN gas covers the remaining 480 MWh from the smallest flat capacity
	require.Equal(t, lp.StatusOptimal, res.Status, res.Termination)
	assert.InDelta(t, 720*10+480*30+20*5, res.Objective, 1e-4)
	assert.InDelta(t, 20, n.Generators[1].PNomOpt, 1e-4)
	coal := 0.0
	for _, p := range n.Generators[0].PT {
		coal += p
	}
	assert.InDelta(t, 720, coal, 1e-4)
	assert.Len(t, n.StorageUnits[0].StateOfChargeT, 24)
}
