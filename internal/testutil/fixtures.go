// Package testutil provides shared network fixtures for the lopf-bench test suites.
package testutil

import (
	"fmt"
	"math"
	"testing"

	"github.com/gridbench/lopf-bench/network"
)

// Snapshots returns count hourly snapshots with unit weighting.
func Snapshots(count int) []network.Snapshot {
	out := make([]network.Snapshot, count)
	for i := range out {
		out[i] = network.NewSnapshot(fmt.Sprintf("2013-01-%02d %02d:00:00", 1+i/24, i%24))
	}
	return out
}

// SingleBus returns one bus with a cheap and an expensive generator and a load
// following demand. Both generators have p_nom 50; "peak" has an undefined p_nom_max.
//
//	base: marginal_cost 10, p_nom 50
//	peak: marginal_cost 20, p_nom 50, p_nom_max NaN
func SingleBus(demand []float64) *network.Network {
	base := network.NewGenerator("base", "bus0")
	base.PNom = 50
	base.MarginalCost = 10
	base.Carrier = "coal"

	peak := network.NewGenerator("peak", "bus0")
	peak.PNom = 50
	peak.MarginalCost = 20
	peak.PNomMax = math.NaN()
	peak.Carrier = "gas"

	load := network.NewLoad("demand", "bus0")
	load.PSetT = append([]float64(nil), demand...)

	return &network.Network{
		Name:       "single-bus",
		Snapshots:  Snapshots(len(demand)),
		Carriers:   []network.Carrier{{Name: "coal", CO2Emissions: 1}, {Name: "gas", CO2Emissions: 0.5}},
		Buses:      []network.Bus{{Name: "bus0", VNom: 380, Carrier: "AC"}},
		Generators: []network.Generator{base, peak},
		Loads:      []network.Load{load},
	}
}

// TwoBus returns a congested two-bus system: a cheap generator at bus0 can only reach
// the load at bus1 through a 60 MW line, the remainder comes from a local generator.
func TwoBus(demand []float64) *network.Network {
	cheap := network.NewGenerator("cheap", "bus0")
	cheap.PNom = 100
	cheap.MarginalCost = 10

	local := network.NewGenerator("local", "bus1")
	local.PNom = 100
	local.MarginalCost = 50

	load := network.NewLoad("demand", "bus1")
	load.PSetT = append([]float64(nil), demand...)

	line := network.NewLine("line0", "bus0", "bus1")
	line.X = 0.1
	line.SNom = 60

	return &network.Network{
		Name:      "two-bus",
		Snapshots: Snapshots(len(demand)),
		Buses: []network.Bus{
			{Name: "bus0", VNom: 380, Carrier: "AC"},
			{Name: "bus1", VNom: 380, Carrier: "AC"},
		},
		Generators: []network.Generator{cheap, local},
		Loads:      []network.Load{load},
		Lines:      []network.Line{line},
	}
}

// WriteCSVFolder exports n into a fresh temporary directory and returns its path.
func WriteCSVFolder(t *testing.T, n *network.Network) string {
	t.Helper()
	dir := t.TempDir()
	if err := n.ExportCSVFolder(dir); err != nil {
		t.Fatalf("exporting fixture: %v", err)
	}
	return dir
}
