// Package lp defines a solver-neutral linear program, its solution, and the registry of
// solver backends. Backends live in sub-packages and register themselves from init():
//   - lp/simplex: in-process dense simplex (gonum)
//   - lp/external: HiGHS, CBC and GLPK command-line solvers
//
// Every problem is a minimization with bounded columns and ranged rows.
package lp

import (
	"fmt"
	"math"
)

// Column is a decision variable with objective coefficient Cost and bounds [Lower, Upper].
type Column struct {
	Name  string
	Cost  float64
	Lower float64
	Upper float64
}

// Term is one non-zero coefficient of a row.
type Term struct {
	Col  int
	Coef float64
}

// Row is a constraint Lower <= sum(Terms) <= Upper. Equal bounds make an equality.
type Row struct {
	Name  string
	Lower float64
	Upper float64
	Terms []Term
}

// RowKind classifies a row by its finite bounds.
type RowKind int

const (
	RowFree RowKind = iota
	RowEqual
	RowLessEqual
	RowGreaterEqual
	RowRanged
)

// Kind reports how the row's bounds constrain it.
func (r *Row) Kind() RowKind {
	lo, up := !math.IsInf(r.Lower, -1), !math.IsInf(r.Upper, 1)
	switch {
	case lo && up && r.Lower == r.Upper:
		return RowEqual
	case lo && up:
		return RowRanged
	case up:
		return RowLessEqual
	case lo:
		return RowGreaterEqual
	}
	return RowFree
}

// Problem is a linear program: minimize sum(Cost*x) + Offset subject to Rows and column bounds.
type Problem struct {
	Name    string
	Columns []Column
	Rows    []Row
	Offset  float64
}

// Inf is shorthand for an unbounded column or row side.
var Inf = math.Inf(1)

// AddColumn appends a column and returns its index.
func (p *Problem) AddColumn(name string, cost, lower, upper float64) int {
	p.Columns = append(p.Columns, Column{Name: name, Cost: cost, Lower: lower, Upper: upper})
	return len(p.Columns) - 1
}

// AddRow appends a row and returns its index. Terms with a zero coefficient are dropped
// and repeated columns are merged.
func (p *Problem) AddRow(name string, lower, upper float64, terms ...Term) int {
	merged := make([]Term, 0, len(terms))
	pos := make(map[int]int, len(terms))
	for _, t := range terms {
		if i, ok := pos[t.Col]; ok {
			merged[i].Coef += t.Coef
			continue
		}
		pos[t.Col] = len(merged)
		merged = append(merged, t)
	}
	kept := merged[:0]
	for _, t := range merged {
		if t.Coef != 0 {
			kept = append(kept, t)
		}
	}
	p.Rows = append(p.Rows, Row{Name: name, Lower: lower, Upper: upper, Terms: kept})
	return len(p.Rows) - 1
}

// NumNonZeros counts the constraint matrix entries.
func (p *Problem) NumNonZeros() int {
	nnz := 0
	for i := range p.Rows {
		nnz += len(p.Rows[i].Terms)
	}
	return nnz
}

// Validate checks index ranges and bound consistency.
func (p *Problem) Validate() error {
	for j, c := range p.Columns {
		if math.IsNaN(c.Lower) || math.IsNaN(c.Upper) || math.IsNaN(c.Cost) {
			return fmt.Errorf("column %d (%s): NaN cost or bound", j, c.Name)
		}
		if c.Lower > c.Upper {
			return fmt.Errorf("column %d (%s): lower bound %g exceeds upper bound %g", j, c.Name, c.Lower, c.Upper)
		}
	}
	for i, r := range p.Rows {
		if math.IsNaN(r.Lower) || math.IsNaN(r.Upper) {
			return fmt.Errorf("row %d (%s): NaN bound", i, r.Name)
		}
		if r.Lower > r.Upper {
			return fmt.Errorf("row %d (%s): lower bound %g exceeds upper bound %g", i, r.Name, r.Lower, r.Upper)
		}
		for _, t := range r.Terms {
			if t.Col < 0 || t.Col >= len(p.Columns) {
				return fmt.Errorf("row %d (%s): column index %d out of range", i, r.Name, t.Col)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("row %d (%s): non-finite coefficient for column %d", i, r.Name, t.Col)
			}
		}
	}
	return nil
}

// Evaluate returns the objective value of x including Offset.
func (p *Problem) Evaluate(x []float64) float64 {
	obj := p.Offset
	for j, c := range p.Columns {
		obj += c.Cost * x[j]
	}
	return obj
}

// RowActivity returns sum(Terms) of row i at x.
func (p *Problem) RowActivity(i int, x []float64) float64 {
	act := 0.0
	for _, t := range p.Rows[i].Terms {
		act += t.Coef * x[t.Col]
	}
	return act
}
