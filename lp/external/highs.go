package external

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gridbench/lopf-bench/lp"
)

// HiGHSName is the registry name of the HiGHS backend.
const HiGHSName = "highs"

// NewHiGHS returns a backend running the highs executable.
func NewHiGHS() *Solver { return newSolver(HiGHSName, "highs", highs{}) }

type highs struct{}

// args writes solver options to an options file, one "key = value" per line, and asks
// for a raw-style solution file.
func (highs) args(dir string, opts lp.Options) ([]string, error) {
	var b strings.Builder
	for _, k := range opts.SortedKeys() {
		fmt.Fprintf(&b, "%s = %s\n", k, lp.FormatValue(opts[k]))
	}
	b.WriteString("write_solution_to_file = true\n")
	b.WriteString("write_solution_style = 0\n")
	if err := os.WriteFile(filepath.Join(dir, optionsFile), []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("writing options file: %w", err)
	}
	return []string{
		"--model_file", problemFile,
		"--options_file", optionsFile,
		"--solution_file", solutionFile,
	}, nil
}

func (highs) parse(path string, p *lp.Problem) (*lp.Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseHiGHS(bufio.NewScanner(f), p)
}

// highsStatus maps HiGHS model status strings.
func highsStatus(s string) lp.Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "optimal":
		return lp.StatusOptimal
	case "infeasible", "primal infeasible or unbounded":
		return lp.StatusInfeasible
	case "unbounded", "primal unbounded":
		return lp.StatusUnbounded
	case "time limit reached", "iteration limit reached", "objective bound", "objective target":
		return lp.StatusWarning
	}
	return lp.StatusUnknown
}

// parseHiGHS reads the raw solution style. The model status is either on the same line
// ("Model status        : Optimal") or on the next one, depending on the HiGHS version.
// Values are keyed by name; lines carrying only a value are taken positionally.
func parseHiGHS(sc *bufio.Scanner, p *lp.Problem) (*lp.Solution, error) {
	sol := &lp.Solution{Status: lp.StatusUnknown}
	primal, duals := solutionVectors(p)
	colOrder, rowOrder := lp.ColumnOrder(p), lp.RowOrder(p)

	const (
		none = iota
		primalCols
		primalRows
		dualCols
		dualRows
	)
	var section, pos int
	var inDual, awaitStatus, havePrimal bool

scan:
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case awaitStatus:
			sol.Termination = line
			sol.Status = highsStatus(line)
			awaitStatus = false
			continue
		case strings.HasPrefix(line, "Model status"):
			if _, v, ok := strings.Cut(line, ":"); ok {
				sol.Termination = strings.TrimSpace(v)
				sol.Status = highsStatus(v)
			} else {
				awaitStatus = true
			}
			continue
		case strings.HasPrefix(line, "# Primal solution values"):
			inDual, section = false, none
			continue
		case strings.HasPrefix(line, "# Dual solution values"):
			inDual, section = true, none
			continue
		case strings.HasPrefix(line, "# Basis"):
			break scan
		case strings.HasPrefix(line, "# Columns"):
			section, pos = primalCols, 0
			if inDual {
				section = dualCols
			}
			continue
		case strings.HasPrefix(line, "# Rows"):
			section, pos = primalRows, 0
			if inDual {
				section = dualRows
			}
			continue
		case strings.HasPrefix(line, "#"):
			section = none
			continue
		case strings.HasPrefix(line, "Objective"):
			continue
		}

		if section == none {
			continue
		}
		name, value, err := splitEntry(line)
		if err != nil {
			return nil, fmt.Errorf("highs solution: %w", err)
		}
		switch section {
		case primalCols:
			j, ok := lookup(name, pos, colOrder, lp.ParseColumnName)
			if ok && j < len(primal) {
				primal[j] = value
				havePrimal = true
			}
		case dualRows:
			i, ok := lookup(name, pos, rowOrder, lp.ParseRowName)
			if ok && i < len(duals) {
				duals[i] += value
			}
		}
		pos++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if sol.Status == lp.StatusOptimal {
		if !havePrimal {
			return nil, fmt.Errorf("highs solution: optimal status but no primal values")
		}
		sol.Primal = primal
		sol.RowDuals = duals
	}
	return sol, nil
}

// splitEntry parses "name value" or a bare "value".
func splitEntry(line string) (string, float64, error) {
	fields := strings.Fields(line)
	var name, raw string
	switch len(fields) {
	case 1:
		raw = fields[0]
	case 2:
		name, raw = fields[0], fields[1]
	default:
		return "", 0, fmt.Errorf("unexpected line %q", line)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", 0, fmt.Errorf("line %q: %w", line, err)
	}
	return name, v, nil
}

// lookup resolves a solution entry to a problem index by name, or by position when the
// entry is unnamed.
func lookup(name string, pos int, order []int, parse func(string) (int, bool)) (int, bool) {
	if name != "" {
		return parse(name)
	}
	if pos < len(order) {
		return order[pos], true
	}
	return 0, false
}
