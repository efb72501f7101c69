package network_test

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridbench/lopf-bench/internal/testutil"
	"github.com/gridbench/lopf-bench/network"
)

func TestParseYAML_AbsentKeysTakeDefaults(t *testing.T) {
	data := []byte(`
name: tiny
snapshots: ["t0", {name: t1, weighting: 2}]
buses: [{name: b0}]
generators:
  - {name: g0, bus: b0, p_nom: 10}
  - {name: g1, bus: b0, p_nom: 10, p_nom_max: .nan}
lines: [{name: l0, bus0: b0, bus1: b0}]
`)
	n, err := network.ParseYAML(data)
	require.NoError(t, err)

	require.Len(t, n.Snapshots, 2)
	assert.Equal(t, network.Snapshot{Name: "t0", Weighting: 1}, n.Snapshots[0])
	assert.Equal(t, 2.0, n.Snapshots[1].Weighting)
	assert.True(t, math.IsInf(n.Generators[0].PNomMax, 1))
	assert.True(t, math.IsNaN(n.Generators[1].PNomMax))
	assert.Equal(t, 1.0, n.Generators[0].PMaxPu)
	assert.Equal(t, 1.0, n.Lines[0].SMaxPu)
}

func TestParseYAML_NullBound_IsUndefined(t *testing.T) {
	// GIVEN capacity bounds spelled as null, empty and explicit values
	data := []byte(`
buses: [{name: b0}]
generators:
  - {name: g0, bus: b0, p_nom_max: ~}
  - name: g1
    bus: b0
    p_nom_max:
  - {name: g2, bus: b0, p_nom_max: 25}
lines: [{name: l0, bus0: b0, bus1: b0, s_nom_max: null}]
links: [{name: k0, bus0: b0, bus1: b0, p_nom_max: ~}]
storage_units: [{name: s0, bus: b0, p_nom_max: ~}]
`)

	// WHEN parsed
	n, err := network.ParseYAML(data)
	require.NoError(t, err)

	// THEN null reads as undefined (NaN) and numbers are kept
	assert.True(t, math.IsNaN(n.Generators[0].PNomMax))
	assert.True(t, math.IsNaN(n.Generators[1].PNomMax))
	assert.Equal(t, 25.0, n.Generators[2].PNomMax)
	assert.True(t, math.IsNaN(n.Lines[0].SNomMax))
	assert.True(t, math.IsNaN(n.Links[0].PNomMax))
	assert.True(t, math.IsNaN(n.StorageUnits[0].PNomMax))
}

func TestParseYAML_UnknownKeys_Rejected(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"top level", "name: x\nbusses: []\n"},
		{"generator field", "generators: [{name: g0, bus: b0, pnom: 3}]\n"},
		{"line field", "lines: [{name: l0, bus0: a, bus1: b, snom: 3}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := network.ParseYAML([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestYAML_RoundTrip_PreservesNaNAndInf(t *testing.T) {
	// GIVEN a network with undefined and infinite bounds
	n := testutil.SingleBus([]float64{30, 60, 90})
	path := filepath.Join(t.TempDir(), "net.yaml")

	// WHEN written and loaded
	require.NoError(t, n.WriteYAML(path))
	loaded, err := network.LoadYAML(path)
	require.NoError(t, err)

	// THEN the model is identical
	if diff := cmp.Diff(n, loaded, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_DispatchesOnPathKind(t *testing.T) {
	n := testutil.TwoBus([]float64{10, 20})

	dir := testutil.WriteCSVFolder(t, n)
	fromCSV, err := network.Open(dir)
	require.NoError(t, err)
	assert.Len(t, fromCSV.Snapshots, 2)

	yamlPath := filepath.Join(t.TempDir(), "two-bus.yml")
	require.NoError(t, n.Save(yamlPath))
	fromYAML, err := network.Open(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "two-bus", fromYAML.Name)
	assert.Len(t, fromYAML.Lines, 1)
}

func TestLoad_UnloadablePaths_Fail(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does-not-exist.yaml")
	_, err := network.Open(missing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, network.ErrUnloadable))

	notNetwork := filepath.Join(dir, "model.nc")
	writeFile(t, dir, "model.nc", "CDF")
	_, err = network.Open(notNetwork)
	require.Error(t, err)
	assert.True(t, errors.Is(err, network.ErrUnloadable))
}

func TestLoad_InvalidNetwork_Fails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "buses: [{name: b0}]\ngenerators: [{name: g0, bus: b9}]\n")
	_, err := network.Open(filepath.Join(dir, "broken.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown bus")
}
