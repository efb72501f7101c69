package bench

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/gridbench/lopf-bench/lopf"
	"github.com/gridbench/lopf-bench/lp"
	"github.com/gridbench/lopf-bench/memprof"
	"github.com/gridbench/lopf-bench/network"
)

// LoadFunc reads a network from a path.
type LoadFunc func(path string) (*network.Network, error)

// OptimizeFunc runs one optimization of n.
type OptimizeFunc func(ctx context.Context, n *network.Network, solver string, opts lp.Options) (*lopf.Result, error)

// ProfileFunc runs fn inside a memory measurement scope.
type ProfileFunc func(ctx context.Context, name string, cfg memprof.Config, fn func(context.Context) error) (*memprof.Report, error)

// Driver runs the benchmark sequence. Every step is a replaceable function so tests can
// observe or fake it.
type Driver struct {
	Load     LoadFunc
	Optimize OptimizeFunc
	Profile  ProfileFunc
	Reader   memprof.Reader // nil selects memprof.DefaultReader
}

// NewDriver returns a driver wired to the real loader, optimizer and profiler.
func NewDriver() *Driver {
	return &Driver{
		Load:     network.Open,
		Optimize: lopf.Optimize,
		Profile:  memprof.Profile,
	}
}

// Run executes load, fill, truncate and a single optimize call inside one profile scope.
// The optimization result is logged and then discarded; the memory report is what the
// benchmark measures. The report is returned on failure too, as far as it got.
func (d *Driver) Run(ctx context.Context, cfg *Config) (*memprof.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	name := fmt.Sprintf("lopf %s snapshots=%d solver=%s", filepath.Base(cfg.Network), cfg.Snapshots, cfg.Solver)
	var res *lopf.Result

	report, err := d.Profile(ctx, name, memprof.Config{Interval: cfg.SampleInterval, Reader: d.Reader},
		func(ctx context.Context) error {
			n, err := d.Load(cfg.Network)
			if err != nil {
				return fmt.Errorf("loading network %s: %w", cfg.Network, err)
			}
			filled := n.FillGeneratorPNomMax(math.Inf(1))
			total := len(n.Snapshots)
			if err := n.TruncateSnapshots(cfg.Snapshots); err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{
				"network":          n.Name,
				"filled_p_nom_max": filled,
				"snapshots":        len(n.Snapshots),
				"of":               total,
			}).Info("bench: network prepared")

			res, err = d.Optimize(ctx, n, cfg.Solver, cfg.SolverParams)
			if err != nil {
				return fmt.Errorf("optimizing with %s: %w", cfg.Solver, err)
			}
			return nil
		})
	if err != nil {
		return report, err
	}

	fields := logrus.Fields{"solver": cfg.Solver}
	if report != nil {
		fields["run_id"] = report.RunID
		fields["peak_mib"] = fmt.Sprintf("%.1f", report.PeakMiB())
	}
	if res != nil {
		fields["status"] = res.Status
		fields["objective"] = res.Objective
		fields["build_time"] = res.BuildTime
		fields["solve_time"] = res.SolveTime
	}
	logrus.WithFields(fields).Info("bench: run finished")
	return report, nil
}
