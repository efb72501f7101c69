package external

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gridbench/lopf-bench/lp"
)

// CBCName is the registry name of the COIN-OR CBC backend.
const CBCName = "cbc"

// NewCBC returns a backend running the cbc executable.
func NewCBC() *Solver { return newSolver(CBCName, "cbc", cbc{}) }

type cbc struct{}

// args passes options as "-key value" pairs between the import and the solve command.
// printingOptions all makes cbc list rows with their duals.
func (cbc) args(_ string, opts lp.Options) ([]string, error) {
	args := []string{problemFile, "-printingOptions", "all"}
	args = append(args, flagArgs("-", opts)...)
	return append(args, "-solve", "-solu", solutionFile), nil
}

func (cbc) parse(path string, p *lp.Problem) (*lp.Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseCBC(bufio.NewScanner(f), p)
}

func cbcStatus(line string) lp.Status {
	l := strings.ToLower(line)
	switch {
	case strings.HasPrefix(l, "optimal"):
		return lp.StatusOptimal
	case strings.HasPrefix(l, "infeasible"), strings.HasPrefix(l, "integer infeasible"):
		return lp.StatusInfeasible
	case strings.HasPrefix(l, "unbounded"):
		return lp.StatusUnbounded
	case strings.HasPrefix(l, "stopped"):
		return lp.StatusWarning
	}
	return lp.StatusUnknown
}

// parseCBC reads "Optimal - objective value 1100" followed by "index name value reduced"
// lines. Rows (c*) carry their dual in the last field. Columns cbc leaves out are zero.
// A leading "**" marks values outside their bounds and is ignored.
func parseCBC(sc *bufio.Scanner, p *lp.Problem) (*lp.Solution, error) {
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("cbc solution: empty file")
	}
	first := strings.TrimSpace(sc.Text())
	sol := &lp.Solution{Status: cbcStatus(first), Termination: first}
	primal, duals := solutionVectors(p)

	for sc.Scan() {
		fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(sc.Text()), "**"))
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 4 {
			return nil, fmt.Errorf("cbc solution: unexpected line %q", sc.Text())
		}
		name := fields[1]
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("cbc solution: %s: %w", name, err)
		}
		dual, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("cbc solution: %s: %w", name, err)
		}
		if j, ok := lp.ParseColumnName(name); ok && j < len(primal) {
			primal[j] = value
		} else if i, ok := lp.ParseRowName(name); ok && i < len(duals) {
			duals[i] += dual
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if sol.OK() {
		sol.Primal = primal
		sol.RowDuals = duals
	}
	return sol, nil
}
