package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gridbench/lopf-bench/bench"
	_ "github.com/gridbench/lopf-bench/lp/external"
	_ "github.com/gridbench/lopf-bench/lp/simplex"
)

var (
	logLevel    string // Log verbosity level
	configPath  string // Benchmark config YAML
	presetsPath string // Solver option presets
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "lopf-bench",
	Short: "Memory benchmark for linear optimal power flow solves",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd loads a network, solves it once and reports memory use
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load, fill p_nom_max, truncate snapshots and solve once under the memory profiler",
	Run: func(cmd *cobra.Command, args []string) {
		presetsGiven := cmd.Flags().Changed("presets")
		if err := runBenchmark(cmd.Context(), cmd.Flags(), presetsGiven, os.Stdout); err != nil {
			logrus.Fatalf("Benchmark failed: %v", err)
		}
	},
}

// runBenchmark resolves the configuration, runs the driver and prints the memory report.
// The report is printed even when the run fails part way.
func runBenchmark(ctx context.Context, flags *pflag.FlagSet, presetsGiven bool, out io.Writer) error {
	cfg, err := bench.LoadConfig(configPath, flags)
	if err != nil {
		return err
	}
	presets, err := bench.LoadPresets(presetsPath)
	switch {
	case err == nil:
		if presets.Apply(cfg) {
			logrus.Infof("Using %s preset from %s", cfg.Solver, presetsPath)
		}
	case presetsGiven || !errors.Is(err, os.ErrNotExist):
		return err
	default:
		logrus.Debugf("No presets file at %s", presetsPath)
	}

	logrus.WithFields(logrus.Fields{
		"network":   cfg.Network,
		"snapshots": cfg.Snapshots,
		"solver":    cfg.Solver,
	}).Info("Starting benchmark")

	report, runErr := bench.NewDriver().Run(ctx, cfg)
	if report != nil {
		if err := report.Print(out); err != nil {
			return err
		}
		if cfg.MemOutput != "" {
			if err := writeMprof(cfg.MemOutput, report.WriteMprof); err != nil {
				return errors.Join(runErr, err)
			}
			logrus.Infof("Memory samples written to %s", cfg.MemOutput)
		}
	}
	return runErr
}

func writeMprof(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Execute runs the CLI root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&configPath, "config", "", "Benchmark config YAML (network, snapshots, solver, solver_params, ...)")
	runCmd.Flags().StringVar(&presetsPath, "presets", bench.DefaultPresetsPath, "Solver option presets used when the config has no solver_params")
	bench.RegisterFlags(runCmd.Flags())

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(solversCmd)
}
