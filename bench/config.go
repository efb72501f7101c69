// Package bench drives the LOPF memory benchmark: load a network, fill undefined generator
// capacity bounds, cut the horizon, solve once, all inside one memory profile scope.
package bench

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gridbench/lopf-bench/lp"
	"github.com/gridbench/lopf-bench/memprof"
)

// EnvPrefix prefixes environment overrides, e.g. LOPFBENCH_SNAPSHOTS=24.
const EnvPrefix = "LOPFBENCH"

// Config describes one benchmark run.
type Config struct {
	Network        string        `yaml:"network"`
	Snapshots      int           `yaml:"snapshots"`
	Solver         string        `yaml:"solver"`
	SolverParams   lp.Options    `yaml:"solver_params"`
	SampleInterval time.Duration `yaml:"sample_interval"`
	MemOutput      string        `yaml:"mem_output"` // mprof .dat file, optional
}

// DefaultConfig returns the settings used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		Solver:         "highs",
		SampleInterval: memprof.DefaultInterval,
	}
}

// scalar settings that viper may override, keyed by config key with their flag names.
var overridable = []struct{ key, flag, usage string }{
	{"network", "network", "Path to the network (CSV folder or .yaml file)"},
	{"snapshots", "snapshots", "Number of leading snapshots to optimize"},
	{"solver", "solver", "Solver backend name (see 'lopf-bench solvers')"},
	{"sample_interval", "sample-interval", "Memory sampling interval"},
	{"mem_output", "mem-output", "Write samples in mprof .dat format to this file"},
}

// RegisterFlags adds the overridable settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String("network", d.Network, overridable[0].usage)
	fs.Int("snapshots", d.Snapshots, overridable[1].usage)
	fs.String("solver", d.Solver, overridable[2].usage)
	fs.Duration("sample-interval", d.SampleInterval, overridable[3].usage)
	fs.String("mem-output", d.MemOutput, overridable[4].usage)
}

// LoadConfig reads path (optional) with strict field checking, then applies environment
// and flag overrides: flag > env > file > default. Solver params come from the file only,
// so their keys keep their case.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("network", cfg.Network)
	v.SetDefault("snapshots", cfg.Snapshots)
	v.SetDefault("solver", cfg.Solver)
	v.SetDefault("sample_interval", cfg.SampleInterval)
	v.SetDefault("mem_output", cfg.MemOutput)
	if flags != nil {
		for _, o := range overridable {
			if f := flags.Lookup(o.flag); f != nil {
				if err := v.BindPFlag(o.key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", o.flag, err)
				}
			}
		}
	}

	cfg.Network = v.GetString("network")
	cfg.Snapshots = v.GetInt("snapshots")
	cfg.Solver = v.GetString("solver")
	cfg.SampleInterval = v.GetDuration("sample_interval")
	cfg.MemOutput = v.GetString("mem_output")
	return &cfg, nil
}

// Validate checks that the run is fully specified.
func (c *Config) Validate() error {
	if c.Network == "" {
		return errors.New("network path is required")
	}
	if c.Snapshots <= 0 {
		return fmt.Errorf("snapshots must be positive, got %d", c.Snapshots)
	}
	if c.Solver == "" {
		return errors.New("solver name is required")
	}
	if c.SampleInterval < 0 {
		return fmt.Errorf("sample_interval must be non-negative, got %v", c.SampleInterval)
	}
	return nil
}
