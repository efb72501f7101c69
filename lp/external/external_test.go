package external

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbench/lopf-bench/lp"
	"github.com/gridbench/lopf-bench/memprof"
)

// fakeRunner plays the solver: it records the command, checks the problem file exists and
// writes a canned solution.
type fakeRunner struct {
	solution string
	stderr   string
	err      error

	cmd        Command
	sawProblem bool
	options    string
}

func (f *fakeRunner) Run(_ context.Context, cmd Command, started func(int)) ([]byte, []byte, error) {
	f.cmd = cmd
	if _, err := os.Stat(filepath.Join(cmd.Dir, problemFile)); err == nil {
		f.sawProblem = true
	}
	if b, err := os.ReadFile(filepath.Join(cmd.Dir, optionsFile)); err == nil {
		f.options = string(b)
	}
	started(4242)
	if f.err != nil {
		return nil, []byte(f.stderr), f.err
	}
	return nil, nil, os.WriteFile(filepath.Join(cmd.Dir, solutionFile), []byte(f.solution), 0o644)
}

func fakeLookPath(file string) (string, error) { return "/usr/bin/" + filepath.Base(file), nil }

func withFakes(s *Solver, r Runner) *Solver {
	s.Runner = r
	s.LookPath = fakeLookPath
	return s
}

// dispatchProblem is min 10a + 20b s.t. a + b = 70, a,b in [0, 50].
func dispatchProblem() *lp.Problem {
	var p lp.Problem
	a := p.AddColumn("base", 10, 0, 50)
	b := p.AddColumn("peak", 20, 0, 50)
	p.AddRow("balance", 70, 70, lp.Term{Col: a, Coef: 1}, lp.Term{Col: b, Coef: 1})
	return &p
}

// pidRecorder is a memprof.Reader that remembers which PIDs were sampled.
type pidRecorder struct {
	mu   sync.Mutex
	pids []int
}

func (r *pidRecorder) RSS(pid int) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pids = append(r.pids, pid)
	return 1, nil
}

const highsSolution = `Model status
Optimal

# Primal solution values
Feasible
Objective 1100
# Columns 2
x0 50
x1 20
# Rows 1
c0 70

# Dual solution values
Feasible
# Columns 2
x0 -10
x1 0
# Rows 1
c0 20

# Basis
HiGHS v1
Valid
# Columns 2
1 1
# Rows 1
0
`

func TestHiGHS_Solve_WritesOptionsAndParsesSolution(t *testing.T) {
	// GIVEN a HiGHS backend whose process is faked and a sampler in the context
	runner := &fakeRunner{solution: highsSolution}
	s := withFakes(NewHiGHS(), runner)
	rec := &pidRecorder{}
	sampler := memprof.NewSampler("test", memprof.Config{Reader: rec, PID: 1})
	ctx := memprof.WithSampler(context.Background(), sampler)

	// WHEN solved with options
	sol, err := s.Solve(ctx, dispatchProblem(), lp.Options{"threads": 4, "solver": "ipm", "run_crossover": "off"})
	sampler.Stop()

	// THEN the command line, options file and solution all line up
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/highs", runner.cmd.Path)
	assert.Equal(t, []string{"--model_file", "problem.lp", "--options_file", "options.txt", "--solution_file", "solution.sol"}, runner.cmd.Args)
	assert.True(t, runner.sawProblem)
	assert.Equal(t, "run_crossover = off\nsolver = ipm\nthreads = 4\nwrite_solution_to_file = true\nwrite_solution_style = 0\n", runner.options)
	require.True(t, sol.OK())
	assert.Equal(t, []float64{50, 20}, sol.Primal)
	assert.Equal(t, []float64{20}, sol.RowDuals)
	assert.Equal(t, 900.0, sol.Objective, "objective is recomputed from the primal values")
	assert.Contains(t, rec.pids, 4242, "child pid should be sampled")
	assert.Empty(t, sampler.Tracked())

	// AND the work dir is gone
	assert.NoDirExists(t, runner.cmd.Dir)
}

func TestSolve_BinaryOptionOverridesLookupAndIsNotPassedOn(t *testing.T) {
	runner := &fakeRunner{solution: highsSolution}
	s := NewHiGHS()
	s.Runner = runner
	var looked string
	s.LookPath = func(file string) (string, error) {
		looked = file
		return file, nil
	}
	opts := lp.Options{BinaryOption: "/opt/highs/bin/highs", "threads": 2}

	_, err := s.Solve(context.Background(), dispatchProblem(), opts)

	require.NoError(t, err)
	assert.Equal(t, "/opt/highs/bin/highs", looked)
	assert.Equal(t, "/opt/highs/bin/highs", runner.cmd.Path)
	assert.NotContains(t, runner.options, "binary")
	assert.Contains(t, opts, BinaryOption, "caller's options must not be modified")
}

func TestSolve_MissingBinary_Errors(t *testing.T) {
	s := NewCBC()
	s.LookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	_, err := s.Solve(context.Background(), dispatchProblem(), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Contains(t, err.Error(), `solver binary "cbc" not found`)
	assert.False(t, s.Available())
}

func TestSolve_ProcessFailure_WrapsStderrAndCleansUp(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1"), stderr: "ERROR: license expired\n"}
	s := withFakes(NewGLPK(), runner)

	_, err := s.Solve(context.Background(), dispatchProblem(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "glpk: running glpsol: exit status 1: ERROR: license expired")
	assert.NoDirExists(t, runner.cmd.Dir)
}

func TestSolve_NoRows_SkipsProcess(t *testing.T) {
	runner := &fakeRunner{}
	s := withFakes(NewHiGHS(), runner)
	var p lp.Problem
	p.AddColumn("x", 1, 2, 3)

	sol, err := s.Solve(context.Background(), &p, nil)

	require.NoError(t, err)
	assert.True(t, sol.OK())
	assert.Empty(t, runner.cmd.Path)
}

func TestCBC_Args(t *testing.T) {
	args, err := cbc{}.args("", lp.Options{"threads": 4, "presolve": "off", "dualSimplex": true, "skip": false})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"problem.lp", "-printingOptions", "all",
		"-dualSimplex", "-presolve", "off", "-threads", "4",
		"-solve", "-solu", "solution.sol",
	}, args)
}

func TestGLPK_Args(t *testing.T) {
	args, err := glpk{}.args("", lp.Options{"tmlim": 60, "nopresol": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"--lp", "problem.lp", "--nopresol", "--tmlim", "60", "--write", "solution.sol"}, args)
}

func scanner(s string) *bufio.Scanner { return bufio.NewScanner(strings.NewReader(s)) }

func TestParseHiGHS_InlineStatusAndRangedRows(t *testing.T) {
	// GIVEN a problem with a ranged row written as c0_lo / c0_up
	var p lp.Problem
	x := p.AddColumn("x", 1, 0, 10)
	p.AddRow("range", 2, 5, lp.Term{Col: x, Coef: 1})
	in := "Model status        : Optimal\n" +
		"# Primal solution values\nFeasible\nObjective 2\n# Columns 1\nx0 2\n# Rows 2\nc0_lo 2\nc0_up 2\n" +
		"# Dual solution values\nFeasible\n# Columns 1\nx0 0\n# Rows 2\nc0_lo 1\nc0_up 0\n"

	sol, err := parseHiGHS(scanner(in), &p)

	require.NoError(t, err)
	assert.Equal(t, lp.StatusOptimal, sol.Status)
	assert.Equal(t, []float64{2}, sol.Primal)
	assert.Equal(t, []float64{1}, sol.RowDuals)
}

func TestParseHiGHS_Infeasible(t *testing.T) {
	in := "Model status\nInfeasible\n\n# Primal solution values\nNone\n\n# Dual solution values\nNone\n"

	sol, err := parseHiGHS(scanner(in), dispatchProblem())

	require.NoError(t, err)
	assert.Equal(t, lp.StatusInfeasible, sol.Status)
	assert.Equal(t, "Infeasible", sol.Termination)
	assert.Nil(t, sol.Primal)
}

func TestParseHiGHS_UnnamedValuesArePositional(t *testing.T) {
	in := "Model status\nOptimal\n# Primal solution values\nFeasible\n# Columns 2\n50\n20\n"

	sol, err := parseHiGHS(scanner(in), dispatchProblem())

	require.NoError(t, err)
	assert.Equal(t, []float64{50, 20}, sol.Primal)
}

func TestParseHiGHS_OptimalWithoutValues_Errors(t *testing.T) {
	_, err := parseHiGHS(scanner("Model status\nOptimal\n"), dispatchProblem())
	assert.Error(t, err)
}

func TestParseCBC(t *testing.T) {
	t.Run("optimal with rows", func(t *testing.T) {
		in := "Optimal - objective value 1100.00000000\n" +
			"      0 c0                        70                      20\n" +
			"      0 x0                        50                     -10\n" +
			"      1 x1                        20                       0\n"
		sol, err := parseCBC(scanner(in), dispatchProblem())
		require.NoError(t, err)
		assert.True(t, sol.OK())
		assert.Equal(t, []float64{50, 20}, sol.Primal)
		assert.Equal(t, []float64{20}, sol.RowDuals)
	})
	t.Run("absent columns are zero and ** markers are ignored", func(t *testing.T) {
		in := "Optimal - objective value 500\n** 0 x0 50 0\n"
		sol, err := parseCBC(scanner(in), dispatchProblem())
		require.NoError(t, err)
		assert.Equal(t, []float64{50, 0}, sol.Primal)
	})
	t.Run("infeasible", func(t *testing.T) {
		sol, err := parseCBC(scanner("Infeasible - objective value 0\n"), dispatchProblem())
		require.NoError(t, err)
		assert.Equal(t, lp.StatusInfeasible, sol.Status)
		assert.Nil(t, sol.Primal)
	})
	t.Run("stopped on time", func(t *testing.T) {
		sol, err := parseCBC(scanner("Stopped on time - objective value 1200\n"), dispatchProblem())
		require.NoError(t, err)
		assert.Equal(t, lp.StatusWarning, sol.Status)
	})
	t.Run("empty file", func(t *testing.T) {
		_, err := parseCBC(scanner(""), dispatchProblem())
		assert.Error(t, err)
	})
}

func TestParseGLPK_MapsPositionsThroughReaderOrder(t *testing.T) {
	// GIVEN a zero-cost column that glpsol numbers after the costed one
	var p lp.Problem
	free := p.AddColumn("spill", 0, 0, 100)
	paid := p.AddColumn("gen", 10, 0, 100)
	p.AddRow("balance", 30, 30, lp.Term{Col: free, Coef: -1}, lp.Term{Col: paid, Coef: 1})
	in := "c Problem:\nc\ns bas 1 2 f f 300\n" +
		"i 1 s 30 10\n" +
		"j 1 b 30 0\n" +
		"j 2 l 0 10\n" +
		"e o f\n"

	sol, err := parseGLPK(scanner(in), &p)

	// THEN j 1 is "gen" (first in the objective) and j 2 is "spill"
	require.NoError(t, err)
	require.True(t, sol.OK())
	assert.Equal(t, 30.0, sol.Primal[paid])
	assert.Equal(t, 0.0, sol.Primal[free])
	assert.Equal(t, []float64{10}, sol.RowDuals)
}

func TestParseGLPK_Statuses(t *testing.T) {
	tests := []struct {
		line string
		want lp.Status
	}{
		{"s bas 1 2 n f 0", lp.StatusInfeasible},
		{"s bas 1 2 i u 0", lp.StatusInfeasible},
		{"s bas 1 2 f n 0", lp.StatusUnbounded},
		{"s bas 1 2 f u 0", lp.StatusWarning},
		{"s bas 1 2 u u 0", lp.StatusUnknown},
	}
	for _, tt := range tests {
		sol, err := parseGLPK(scanner(tt.line+"\ne o f\n"), dispatchProblem())
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, sol.Status, tt.line)
	}

	_, err := parseGLPK(scanner("e o f\n"), dispatchProblem())
	assert.ErrorContains(t, err, "missing status line")

	_, err = parseGLPK(scanner("s bas 1 2 f f 0\nj 9 b 1 0\n"), dispatchProblem())
	assert.ErrorContains(t, err, "out of range")
}

func TestRegister_AllBackends(t *testing.T) {
	for _, name := range []string{HiGHSName, CBCName, GLPKName} {
		s, err := lp.New(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
}
