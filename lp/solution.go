package lp

// Status is the outcome of a solve, named after PyPSA's termination conditions.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusWarning    Status = "warning" // solver stopped early (time/iteration limit)
	StatusUnknown    Status = "unknown"
)

// Solution holds a solver's answer. Primal has one entry per column; RowDuals, when the
// backend reports them, one entry per row.
type Solution struct {
	Status      Status
	Termination string // backend's own status text
	Objective   float64
	Primal      []float64
	RowDuals    []float64
}

// OK reports whether the solution is optimal, PyPSA's "ok" status.
func (s *Solution) OK() bool {
	return s != nil && s.Status == StatusOptimal
}

// trivialSolution answers a problem without rows: every column sits at the bound its cost
// prefers. A column with a negative cost and no upper bound makes the problem unbounded.
func trivialSolution(p *Problem) *Solution {
	x := make([]float64, len(p.Columns))
	for j, c := range p.Columns {
		switch {
		case c.Cost > 0:
			x[j] = c.Lower
		case c.Cost < 0:
			x[j] = c.Upper
		default:
			x[j] = clampZero(c.Lower, c.Upper)
		}
		if x[j] == Inf || x[j] == -Inf {
			return &Solution{Status: StatusUnbounded, Termination: "unbounded column " + c.Name}
		}
	}
	return &Solution{
		Status:      StatusOptimal,
		Termination: "trivial",
		Objective:   p.Evaluate(x),
		Primal:      x,
		RowDuals:    []float64{},
	}
}

func clampZero(lower, upper float64) float64 {
	switch {
	case lower > 0:
		return lower
	case upper < 0:
		return upper
	}
	return 0
}

// SolveTrivial returns the solution of p when it has no rows, and false otherwise.
// Backends call it before handing a problem to the underlying solver.
func SolveTrivial(p *Problem) (*Solution, bool) {
	if len(p.Rows) > 0 {
		return nil, false
	}
	return trivialSolution(p), true
}
