package internal_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/olehluchkiv/mastersort/internal/cluster"
	"github.com/olehluchkiv/mastersort/internal/graph"
	"github.com/olehluchkiv/mastersort/internal/partition"
	"github.com/olehluchkiv/mastersort/internal/report"
	"github.com/olehluchkiv/mastersort/internal/resolver"
	"github.com/olehluchkiv/mastersort/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testdataDir(parts ...string) string {
	return filepath.Join(append([]string{"..", "testdata"}, parts...)...)
}

// loadAll resolves input and loads every plugin document it names.
func loadAll(t *testing.T, input string) []graph.Provider {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	paths, err := resolver.Resolve(context.Background(), input, logger)
	require.NoError(t, err)

	var providers []graph.Provider
	for _, path := range paths {
		p, err := store.Load(path)
		require.NoError(t, err)
		providers = append(providers, p)
	}
	return providers
}

// roundTrip saves every unit and loads it back.
func roundTrip(t *testing.T, units []*graph.Plugin) []*graph.Plugin {
	t.Helper()
	dir := t.TempDir()
	var out []*graph.Plugin
	for _, u := range units {
		path := filepath.Join(dir, store.FileName(u.Name, store.FormatYAML, store.CompressionZstd))
		require.NoError(t, store.Save(path, u))
		back, err := store.Load(path)
		require.NoError(t, err)
		out = append(out, back)
	}
	return out
}

func TestIntegration_IdentityAndOverrides(t *testing.T) {
	providers := loadAll(t, testdataDir("plugins"))
	require.Len(t, providers, 2)

	results, err := partition.PartitionAll(context.Background(), providers, partition.NewPlugin, partition.DefaultOptions())
	require.NoError(t, err)

	dummy := results[0]
	require.Equal(t, graph.SourceID("Dummy.esp"), dummy.Source)
	require.Len(t, dummy.Units, 1)

	units := roundTrip(t, []*graph.Plugin{dummy.Units[0].Target})
	out := units[0]
	assert.Equal(t, graph.SourceID("Dummy.esp"), out.Name)

	input := providers[0].(*graph.Plugin)
	for _, rec := range input.Entries {
		got, ok := out.Lookup(rec.Key)
		require.True(t, ok, "record %s missing from output", rec.Key)
		assert.Equal(t, rec.Kind, got.Kind)
		assert.Equal(t, rec.Links, got.Links)
	}
	assert.Equal(t, input.Len(), out.Len())

	// DLCCoast.esm is only referenced, never overridden.
	for _, rec := range out.Entries {
		assert.NotEqual(t, graph.SourceID("DLCCoast.esm"), rec.Origin())
	}
	assert.Equal(t, []graph.SourceID{"DLCCoast.esm", "DLCRobot.esm", "Fallout4.esm"}, out.Masters())

	patch := results[1]
	assert.Equal(t, graph.SourceID("Patch.esp"), patch.Source)
	assert.Equal(t, 1, patch.Units[0].New)
	assert.Equal(t, 1, patch.Units[0].Overrides)
}

func TestIntegration_BinPacking(t *testing.T) {
	providers := loadAll(t, testdataDir("binpack", "Bins.esp.yaml"))
	opts := partition.DefaultOptions()
	opts.Cluster = cluster.Options{Limit: 10, Placement: cluster.PlaceAny}

	results, err := partition.PartitionAll(context.Background(), providers, partition.NewPlugin, opts)
	require.NoError(t, err)
	res := results[0]
	require.Len(t, res.Units, 5)

	var targets []*graph.Plugin
	for _, u := range res.Units {
		targets = append(targets, u.Target)
	}
	units := roundTrip(t, targets)

	total := 0
	for i, u := range units {
		assert.Equal(t, res.Units[i].Name, u.Name)
		assert.LessOrEqual(t, len(u.Masters()), 10, "unit %s", u.Name)
		assert.Equal(t, 2, u.Len(), "unit %s holds one wide and one narrow list", u.Name)
		total += u.Len()
	}
	assert.Equal(t, 10, total)

	s := report.FromResult(res, 10)
	assert.Contains(t, report.Text([]report.Summary{s}), "Bins_5.esp: 2 new, 0 overrides, 10/10 masters")
}

func TestIntegration_PrimaryPlacementRejectsBinPacking(t *testing.T) {
	providers := loadAll(t, testdataDir("binpack"))
	opts := partition.DefaultOptions()
	opts.Cluster.Limit = 10

	_, err := partition.PartitionAll(context.Background(), providers, partition.NewPlugin, opts)
	require.ErrorIs(t, err, cluster.ErrTooManyMasters)

	var tooMany *cluster.TooManyMastersError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, graph.SourceID("Bins.esp"), tooMany.Source)
	assert.Equal(t, 10, tooMany.Limit)
}
