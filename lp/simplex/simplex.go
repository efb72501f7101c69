// Package simplex solves LP problems in process with gonum's dense simplex method.
// It has no external dependencies, which makes it the reference backend for tests and
// small benchmark networks; memory grows with rows*columns.
package simplex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	glp "gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/gridbench/lopf-bench/lp"
)

// Name is the registry name of this backend.
const Name = "simplex"

// DefaultTolerance is the simplex pivot tolerance used when "tolerance" is not set.
const DefaultTolerance = 1e-10

// knownOptions lists the accepted option keys.
var knownOptions = map[string]bool{"tolerance": true}

// Solver implements lp.Solver.
type Solver struct{}

// New returns a simplex solver.
func New() *Solver { return &Solver{} }

func (s *Solver) Name() string { return Name }

// Solve rewrites p in standard form (A y = b, y >= 0) and runs gonum's Simplex.
// Infeasible and unbounded outcomes are reported as a status rather than an error.
func (s *Solver) Solve(ctx context.Context, p *lp.Problem, opts lp.Options) (*lp.Solution, error) {
	for k := range opts {
		if !knownOptions[k] {
			return nil, fmt.Errorf("simplex: unknown option %q; valid: tolerance", k)
		}
	}
	tol, err := opts.Float("tolerance", DefaultTolerance)
	if err != nil {
		return nil, fmt.Errorf("simplex: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("simplex: %w", err)
	}
	if sol, ok := lp.SolveTrivial(p); ok {
		return sol, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sf, infeasibleRow := toStandardForm(p)
	if infeasibleRow != "" {
		return &lp.Solution{Status: lp.StatusInfeasible, Termination: "row " + infeasibleRow + " cannot be satisfied"}, nil
	}
	x := make([]float64, len(p.Columns))
	if len(sf.unused) > 0 {
		rest := &lp.Problem{Columns: make([]lp.Column, len(sf.unused))}
		for k, j := range sf.unused {
			rest.Columns[k] = p.Columns[j]
		}
		sol, _ := lp.SolveTrivial(rest)
		if !sol.OK() {
			return sol, nil
		}
		for k, j := range sf.unused {
			x[j] = sol.Primal[k]
		}
	}

	y := make([]float64, len(sf.c))
	if len(sf.b) > 0 {
		rows, cols := sf.a.Dims()
		if cols < rows {
			return nil, fmt.Errorf("simplex: standard form has %d rows but only %d columns", rows, cols)
		}
		logrus.WithFields(logrus.Fields{
			"rows": rows, "columns": cols, "tolerance": tol,
		}).Debug("simplex: solving standard form")

		start := time.Now()
		y, err = solveStandard(sf, tol)
		logrus.Debugf("simplex: finished in %v", time.Since(start))
		switch {
		case errors.Is(err, glp.ErrInfeasible):
			return &lp.Solution{Status: lp.StatusInfeasible, Termination: err.Error()}, nil
		case errors.Is(err, glp.ErrUnbounded) && boundedBelow(p):
			return &lp.Solution{Status: lp.StatusWarning, Termination: "numerical trouble: " + err.Error() + " on a problem bounded below"}, nil
		case errors.Is(err, glp.ErrUnbounded):
			return &lp.Solution{Status: lp.StatusUnbounded, Termination: err.Error()}, nil
		case err != nil:
			return nil, fmt.Errorf("simplex: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for j := range p.Columns {
		v := sf.vars[j]
		switch {
		case v.fixed:
			x[j] = v.offset
		case v.index >= 0:
			x[j] = v.offset + v.sign*y[v.index]
			if v.free && x[j] <= -freeBound/2 {
				return &lp.Solution{Status: lp.StatusUnbounded, Termination: "free column " + p.Columns[j].Name + " is unbounded below"}, nil
			}
		}
	}
	return &lp.Solution{
		Status:      lp.StatusOptimal,
		Termination: "optimal",
		Objective:   p.Evaluate(x),
		Primal:      x,
	}, nil
}

func solveStandard(sf *standardForm, tol float64) ([]float64, error) {
	_, y, err := glp.Simplex(sf.c, sf.a, sf.b, tol, nil)
	return y, err
}

// boundedBelow reports whether every costed column is bounded in the direction that
// lowers the objective, so the problem cannot be unbounded.
func boundedBelow(p *lp.Problem) bool {
	for _, c := range p.Columns {
		if (c.Cost > 0 && math.IsInf(c.Lower, -1)) || (c.Cost < 0 && math.IsInf(c.Upper, 1)) {
			return false
		}
	}
	return true
}

// freeBound is the artificial lower bound given to free columns, so that every column
// maps to a single non-negative variable. A solution reaching it is reported as unbounded.
const freeBound = 1e6

// variable maps a problem column onto the standard form: x = offset + sign*y[index].
type variable struct {
	index  int
	sign   float64
	offset float64
	fixed  bool
	free   bool
}

// standardForm is p as min cᵀy subject to A y = b, y >= 0.
type standardForm struct {
	vars   []variable
	unused []int // columns in no constrained row, solved by their cost alone
	c      []float64
	a      *mat.Dense
	b      []float64
}

type equation struct {
	terms map[int]float64
	slack float64 // +1 for <=, -1 for >=, 0 for =
	rhs   float64
}

// toStandardForm shifts columns with a finite lower bound, reflects columns with only
// an upper bound and gives free columns the -freeBound floor. Fixed columns become
// constants. Rows left without variables are checked directly; the name of the first
// one that cannot hold is returned.
func toStandardForm(p *lp.Problem) (*standardForm, string) {
	constrained := make([]bool, len(p.Columns))
	for i := range p.Rows {
		if p.Rows[i].Kind() == lp.RowFree {
			continue
		}
		for _, t := range p.Rows[i].Terms {
			if t.Coef != 0 {
				constrained[t.Col] = true
			}
		}
	}

	sf := &standardForm{vars: make([]variable, len(p.Columns))}
	var eqs []equation
	nv := 0
	for j, c := range p.Columns {
		v := variable{index: -1, sign: 1}
		lo, up := !math.IsInf(c.Lower, -1), !math.IsInf(c.Upper, 1)
		switch {
		case !constrained[j]:
			sf.unused = append(sf.unused, j)
		case lo && up && c.Lower == c.Upper:
			v.fixed, v.offset = true, c.Lower
		case lo:
			v.index, v.offset = nv, c.Lower
			if up {
				eqs = append(eqs, equation{terms: map[int]float64{nv: 1}, slack: 1, rhs: c.Upper - c.Lower})
			}
			nv++
		case up:
			v.index, v.offset, v.sign = nv, c.Upper, -1
			nv++
		default:
			v.index, v.offset, v.free = nv, -freeBound, true
			nv++
		}
		sf.vars[j] = v
	}

	for i := range p.Rows {
		r := &p.Rows[i]
		kind := r.Kind()
		if kind == lp.RowFree {
			continue
		}
		terms := map[int]float64{}
		shift := 0.0
		for _, t := range r.Terms {
			v := sf.vars[t.Col]
			shift += t.Coef * v.offset
			if v.index >= 0 {
				terms[v.index] += t.Coef * v.sign
			}
		}
		for k, coef := range terms {
			if coef == 0 {
				delete(terms, k)
			}
		}
		if len(terms) == 0 {
			slack := 1e-9 * math.Max(1, math.Abs(shift))
			if shift < r.Lower-slack || shift > r.Upper+slack {
				return sf, r.Name
			}
			continue
		}
		switch kind {
		case lp.RowEqual:
			eqs = append(eqs, equation{terms: terms, rhs: r.Lower - shift})
		case lp.RowLessEqual:
			eqs = append(eqs, equation{terms: terms, slack: 1, rhs: r.Upper - shift})
		case lp.RowGreaterEqual:
			eqs = append(eqs, equation{terms: terms, slack: -1, rhs: r.Lower - shift})
		case lp.RowRanged:
			eqs = append(eqs,
				equation{terms: terms, slack: -1, rhs: r.Lower - shift},
				equation{terms: terms, slack: 1, rhs: r.Upper - shift})
		}
	}

	slacks := 0
	for _, eq := range eqs {
		if eq.slack != 0 {
			slacks++
		}
	}
	sf.c = make([]float64, nv+slacks)
	for j, c := range p.Columns {
		if v := sf.vars[j]; v.index >= 0 {
			sf.c[v.index] = v.sign * c.Cost
		}
	}
	if len(eqs) == 0 {
		return sf, ""
	}
	sf.a = mat.NewDense(len(eqs), nv+slacks, nil)
	sf.b = make([]float64, len(eqs))
	next := nv
	for i, eq := range eqs {
		for k, coef := range eq.terms {
			sf.a.Set(i, k, coef)
		}
		if eq.slack != 0 {
			sf.a.Set(i, next, eq.slack)
			next++
		}
		sf.b[i] = eq.rhs
	}
	return sf, ""
}
