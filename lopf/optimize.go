package lopf

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gridbench/lopf-bench/lp"
	"github.com/gridbench/lopf-bench/network"
)

// Result summarizes one optimization.
type Result struct {
	Status      lp.Status
	Termination string
	Objective   float64
	Columns     int
	Rows        int
	BuildTime   time.Duration
	SolveTime   time.Duration
}

// Optimize builds the model of n, solves it once with the named backend and, when the
// solution is optimal, writes dispatch, capacities, prices and the objective back into n.
// A non-optimal status is not an error: it is returned in the Result and n is unchanged.
func Optimize(ctx context.Context, n *network.Network, solverName string, opts lp.Options) (*Result, error) {
	start := time.Now()
	m, err := Build(n)
	if err != nil {
		return nil, fmt.Errorf("building model: %w", err)
	}
	res := &Result{
		Columns:   len(m.Problem.Columns),
		Rows:      len(m.Problem.Rows),
		BuildTime: time.Since(start),
	}
	logrus.WithFields(logrus.Fields{
		"network": n.Name, "snapshots": m.NumSnapshots(),
		"columns": res.Columns, "rows": res.Rows, "nonzeros": m.Problem.NumNonZeros(),
	}).Debug("lopf: model built")

	solver, err := lp.New(solverName)
	if err != nil {
		return nil, err
	}
	start = time.Now()
	sol, err := solver.Solve(ctx, m.Problem, opts)
	res.SolveTime = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("solving with %s: %w", solverName, err)
	}
	res.Status = sol.Status
	res.Termination = sol.Termination

	if !sol.OK() {
		logrus.Warnf("lopf: solver %s finished with status %s (%s); results not stored", solverName, sol.Status, sol.Termination)
		return res, nil
	}
	res.Objective = sol.Objective
	if err := m.Apply(sol); err != nil {
		return nil, err
	}
	return res, nil
}

// Apply writes an optimal solution of m.Problem into the network m was built from.
// Bus marginal prices are set only when the solution carries row duals; they are divided
// by the snapshot weighting so they read as prices per MWh.
func (m *Model) Apply(sol *lp.Solution) error {
	if len(sol.Primal) != len(m.Problem.Columns) {
		return fmt.Errorf("solution has %d primal values, model has %d columns", len(sol.Primal), len(m.Problem.Columns))
	}
	x := sol.Primal
	values := func(cols []int) []float64 {
		out := make([]float64, len(cols))
		for t, c := range cols {
			out[t] = x[c]
		}
		return out
	}
	capacity := func(col int, fixed float64) float64 {
		if col == absent {
			return fixed
		}
		return x[col]
	}

	n := m.net
	for i := range n.Generators {
		g := &n.Generators[i]
		g.PT = values(m.genP[i])
		g.PNomOpt = capacity(m.genPNom[i], g.PNom)
	}
	for i := range n.Lines {
		l := &n.Lines[i]
		l.P0T = values(m.lineF[i])
		l.SNomOpt = capacity(m.lineSNom[i], l.SNom)
	}
	for i := range n.Links {
		k := &n.Links[i]
		k.P0T = values(m.linkP[i])
		k.PNomOpt = capacity(m.linkPNom[i], k.PNom)
	}
	for i := range n.StorageUnits {
		su := &n.StorageUnits[i]
		su.PDispatchT = values(m.suDispatch[i])
		su.PStoreT = values(m.suStore[i])
		su.StateOfChargeT = values(m.suSOC[i])
		su.PNomOpt = capacity(m.suPNom[i], su.PNom)
	}
	if len(sol.RowDuals) == len(m.Problem.Rows) && len(m.Problem.Rows) > 0 {
		for b := range n.Buses {
			prices := make([]float64, len(m.weights))
			for t, r := range m.balance[b] {
				if w := m.weights[t]; w != 0 {
					prices[t] = sol.RowDuals[r] / w
				}
			}
			n.Buses[b].MarginalPriceT = prices
		}
	}
	n.Objective = sol.Objective
	return nil
}
