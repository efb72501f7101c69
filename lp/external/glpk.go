package external

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gridbench/lopf-bench/lp"
)

// GLPKName is the registry name of the GLPK backend.
const GLPKName = "glpk"

// NewGLPK returns a backend running glpsol.
func NewGLPK() *Solver { return newSolver(GLPKName, "glpsol", glpk{}) }

type glpk struct{}

func (glpk) args(_ string, opts lp.Options) ([]string, error) {
	args := []string{"--lp", problemFile}
	args = append(args, flagArgs("--", opts)...)
	return append(args, "--write", solutionFile), nil
}

func (glpk) parse(path string, p *lp.Problem) (*lp.Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseGLPK(bufio.NewScanner(f), p)
}

// glpkStatus combines the primal and dual solution statuses of an "s bas" line:
// f feasible, i infeasible, n no feasible solution exists, u undefined.
func glpkStatus(primal, dual string) lp.Status {
	switch {
	case primal == "f" && dual == "f":
		return lp.StatusOptimal
	case primal == "n" || primal == "i":
		return lp.StatusInfeasible
	case primal == "f" && dual == "n":
		return lp.StatusUnbounded
	case primal == "f":
		return lp.StatusWarning
	}
	return lp.StatusUnknown
}

// parseGLPK reads the raw format written by glpsol --write:
//
//	s bas <rows> <cols> <pst> <dst> <obj>
//	i <row> <st> <prim> <dual>
//	j <col> <st> <prim> <dual>
//	e o f
//
// Rows and columns are numbered from 1 in the order the LP reader met them.
func parseGLPK(sc *bufio.Scanner, p *lp.Problem) (*lp.Solution, error) {
	primal, duals := solutionVectors(p)
	colOrder, rowOrder := lp.ColumnOrder(p), lp.RowOrder(p)
	var sol *lp.Solution

	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "c":
			continue
		case "s":
			if len(fields) < 7 || fields[1] != "bas" {
				return nil, fmt.Errorf("glpk solution: unsupported solution line %q", sc.Text())
			}
			status := glpkStatus(fields[4], fields[5])
			sol = &lp.Solution{Status: status, Termination: fmt.Sprintf("primal %s, dual %s", fields[4], fields[5])}
		case "i", "j":
			if len(fields) < 5 {
				return nil, fmt.Errorf("glpk solution: unexpected line %q", sc.Text())
			}
			k, err := strconv.Atoi(fields[1])
			if err != nil || k < 1 {
				return nil, fmt.Errorf("glpk solution: bad index in %q", sc.Text())
			}
			prim, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return nil, fmt.Errorf("glpk solution: %w", err)
			}
			dual, err := strconv.ParseFloat(fields[4], 64)
			if err != nil {
				return nil, fmt.Errorf("glpk solution: %w", err)
			}
			if fields[0] == "j" {
				if k > len(colOrder) {
					return nil, fmt.Errorf("glpk solution: column %d out of range", k)
				}
				primal[colOrder[k-1]] = prim
			} else {
				if k > len(rowOrder) {
					return nil, fmt.Errorf("glpk solution: row %d out of range", k)
				}
				duals[rowOrder[k-1]] += dual
			}
		case "e":
			// end of file marker
		default:
			return nil, fmt.Errorf("glpk solution: unexpected line %q", sc.Text())
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if sol == nil {
		return nil, fmt.Errorf("glpk solution: missing status line")
	}
	if sol.OK() {
		sol.Primal = primal
		sol.RowDuals = duals
	}
	return sol, nil
}
