package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbench/lopf-bench/bench"
	"github.com/gridbench/lopf-bench/internal/testutil"
	"github.com/gridbench/lopf-bench/network"
)

// withPaths sets the package-level config and presets paths for one test.
func withPaths(t *testing.T, config, presets string) {
	t.Helper()
	oldConfig, oldPresets := configPath, presetsPath
	configPath, presetsPath = config, presets
	t.Cleanup(func() { configPath, presetsPath = oldConfig, oldPresets })
}

func runFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	bench.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func yamlNetwork(t *testing.T, snapshots int) string {
	t.Helper()
	demand := make([]float64, snapshots)
	for i := range demand {
		demand[i] = 40 + float64(i)
	}
	path := filepath.Join(t.TempDir(), "single.yaml")
	require.NoError(t, testutil.SingleBus(demand).Save(path))
	return path
}

func TestRunBenchmark_PrintsReportAndWritesMprof(t *testing.T) {
	// GIVEN a YAML network, the repository presets and an mprof output path
	withPaths(t, "", filepath.Join("..", bench.DefaultPresetsPath))
	netPath := yamlNetwork(t, 12)
	datPath := filepath.Join(t.TempDir(), "mprof.dat")
	fs := runFlags(t, "--network", netPath, "--snapshots", "4", "--solver", "simplex",
		"--sample-interval", "5ms", "--mem-output", datPath)

	// WHEN the run command body executes
	var out bytes.Buffer
	err := runBenchmark(context.Background(), fs, false, &out)

	// THEN the report is on stdout and the samples are in mprof format
	require.NoError(t, err)
	assert.Contains(t, out.String(), "=== Memory Profile: lopf single.yaml snapshots=4 solver=simplex ===")
	data, err := os.ReadFile(datPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "CMDLINE lopf single.yaml snapshots=4 solver=simplex", lines[0])
	require.Greater(t, len(lines), 1)
	assert.True(t, strings.HasPrefix(lines[1], "MEM "))
}

func TestRunBenchmark_MissingNetwork_FailsButReports(t *testing.T) {
	withPaths(t, "", filepath.Join(t.TempDir(), "absent-defaults.yaml"))
	fs := runFlags(t, "--network", filepath.Join(t.TempDir(), "nope"), "--snapshots", "4", "--solver", "simplex")

	var out bytes.Buffer
	err := runBenchmark(context.Background(), fs, false, &out)

	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrUnloadable)
	assert.Contains(t, out.String(), "=== Memory Profile:")
}

func TestRunBenchmark_ExplicitPresetsMustExist(t *testing.T) {
	withPaths(t, "", filepath.Join(t.TempDir(), "absent-defaults.yaml"))
	fs := runFlags(t, "--network", yamlNetwork(t, 2), "--snapshots", "1", "--solver", "simplex")

	err := runBenchmark(context.Background(), fs, true, &bytes.Buffer{})

	assert.ErrorContains(t, err, "reading presets")
}

func TestRunBenchmark_ConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"network: "+yamlNetwork(t, 6)+"\nsnapshots: 3\nsolver: simplex\nsolver_params:\n  tolerance: 1e-9\n"), 0o644))
	withPaths(t, cfgPath, filepath.Join(t.TempDir(), "absent-defaults.yaml"))

	var out bytes.Buffer
	err := runBenchmark(context.Background(), runFlags(t), false, &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "snapshots=3 solver=simplex")
}

func TestConvertNetwork_CSVFolderToYAMLAndBack(t *testing.T) {
	// GIVEN a CSV folder
	src := testutil.WriteCSVFolder(t, testutil.TwoBus([]float64{10, 20, 30}))
	yamlPath := filepath.Join(t.TempDir(), "two-bus.yaml")
	csvPath := filepath.Join(t.TempDir(), "again")

	// WHEN converted to YAML and back
	require.NoError(t, convertNetwork(src, yamlPath))
	require.NoError(t, convertNetwork(yamlPath, csvPath))

	// THEN the content survives
	n, err := network.Open(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 3, n.Summary().Snapshots)
	assert.Equal(t, []float64{10, 20, 30}, n.Loads[0].PSetT)
	assert.Equal(t, 60.0, n.Lines[0].SNom)
}

func TestConvertNetwork_BadSource(t *testing.T) {
	err := convertNetwork(filepath.Join(t.TempDir(), "x.nc"), filepath.Join(t.TempDir(), "y.yaml"))
	assert.ErrorIs(t, err, network.ErrUnloadable)
}

func TestInspectNetwork(t *testing.T) {
	path := yamlNetwork(t, 5)

	var raw bytes.Buffer
	require.NoError(t, inspectNetwork(&raw, path, false, 0))
	assert.Contains(t, raw.String(), "5 snapshots")
	assert.Contains(t, raw.String(), "undefined p_nom_max: 1\n")

	var prepared bytes.Buffer
	require.NoError(t, inspectNetwork(&prepared, path, true, 2))
	assert.Contains(t, prepared.String(), "2 snapshots")
	assert.Contains(t, prepared.String(), "undefined p_nom_max: 0\n")
	assert.Contains(t, prepared.String(), "total weighting: 2 h\n")
}

func TestListSolvers(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listSolvers(&out))

	assert.Contains(t, out.String(), "simplex    built in\n")
	for _, name := range []string{"highs", "cbc", "glpk"} {
		assert.Contains(t, out.String(), name)
	}
}
