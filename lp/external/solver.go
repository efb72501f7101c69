// Package external runs command-line LP solvers (HiGHS, CBC, GLPK) as child processes.
// Each solve writes the problem as a CPLEX LP file into a private temporary directory,
// runs the binary there and reads the solution file back. The child's PID is handed to
// the memory sampler in the context so solver memory is part of the measurement.
package external

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gridbench/lopf-bench/lp"
	"github.com/gridbench/lopf-bench/memprof"
)

const (
	problemFile  = "problem.lp"
	solutionFile = "solution.sol"
	optionsFile  = "options.txt"

	// BinaryOption overrides the executable looked up on PATH. It is not passed on.
	BinaryOption = "binary"

	stderrTail = 2048
)

// dialect is what differs between command-line solvers.
type dialect interface {
	// args returns the command line; it may write extra files (options) into dir.
	args(dir string, opts lp.Options) ([]string, error)
	// parse reads the solution file written by the solver.
	parse(path string, p *lp.Problem) (*lp.Solution, error)
}

// Solver runs one command-line solver. Runner and LookPath may be replaced in tests.
type Solver struct {
	name     string
	binary   string
	dialect  dialect
	Runner   Runner
	LookPath func(file string) (string, error)
}

func newSolver(name, binary string, d dialect) *Solver {
	return &Solver{name: name, binary: binary, dialect: d, Runner: ExecRunner{}, LookPath: exec.LookPath}
}

func (s *Solver) Name() string { return s.name }

// Available reports whether the solver binary can be found.
func (s *Solver) Available() bool {
	_, err := s.LookPath(s.binary)
	return err == nil
}

// Solve writes p, runs the solver and reads its answer. Infeasible and unbounded outcomes
// are reported in the solution status; a failing process is an error.
func (s *Solver) Solve(ctx context.Context, p *lp.Problem, opts lp.Options) (*lp.Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	if sol, ok := lp.SolveTrivial(p); ok {
		return sol, nil
	}

	opts = opts.Clone()
	bin := opts.Text(BinaryOption, s.binary)
	delete(opts, BinaryOption)
	path, err := s.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%s: solver binary %q not found: %w", s.name, bin, err)
	}

	dir, err := os.MkdirTemp("", "lopf-"+s.name+"-")
	if err != nil {
		return nil, fmt.Errorf("%s: creating work dir: %w", s.name, err)
	}
	defer os.RemoveAll(dir)

	if err := writeProblem(filepath.Join(dir, problemFile), p); err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	args, err := s.dialect.args(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	sampler := memprof.FromContext(ctx)
	var pid int
	start := time.Now()
	stdout, stderr, err := s.Runner.Run(ctx, Command{Path: path, Args: args, Dir: dir}, func(child int) {
		pid = child
		sampler.Track(child)
	})
	sampler.Untrack(pid)
	logrus.WithFields(logrus.Fields{
		"solver": s.name, "pid": pid, "elapsed": time.Since(start),
	}).Debug("external: solver process finished")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", s.name, ctxErr)
		}
		out := stderr
		if len(strings.TrimSpace(string(out))) == 0 {
			out = stdout
		}
		return nil, fmt.Errorf("%s: running %s: %w: %s", s.name, filepath.Base(path), err, tail(out))
	}

	sol, err := s.dialect.parse(filepath.Join(dir, solutionFile), p)
	if err != nil {
		return nil, fmt.Errorf("%s: reading solution: %w", s.name, err)
	}
	if sol.OK() {
		sol.Objective = p.Evaluate(sol.Primal)
	}
	return sol, nil
}

func writeProblem(path string, p *lp.Problem) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating problem file: %w", err)
	}
	if err := lp.WriteLP(f, p); err != nil {
		f.Close()
		return fmt.Errorf("writing problem file: %w", err)
	}
	return f.Close()
}

func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}

// flagArgs renders options as command-line flags in key order. A true boolean becomes a
// bare flag and a false one is left out.
func flagArgs(prefix string, opts lp.Options) []string {
	var args []string
	for _, k := range opts.SortedKeys() {
		v := opts[k]
		if b, ok := v.(bool); ok {
			if b {
				args = append(args, prefix+k)
			}
			continue
		}
		args = append(args, prefix+k, lp.FormatValue(v))
	}
	return args
}

// solutionVectors allocates primal and dual slices for p.
func solutionVectors(p *lp.Problem) (primal, duals []float64) {
	return make([]float64, len(p.Columns)), make([]float64, len(p.Rows))
}
