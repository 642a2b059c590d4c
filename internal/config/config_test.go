package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/olehluchkiv/mastersort/internal/cluster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mastersort.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 255, cfg.Limit)
	assert.True(t, cfg.KeepLocalIDs)
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	path := writeConfig(t, `
limit: 10
placement: any
compression: zstd
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Limit)
	assert.Equal(t, "any", cfg.Placement)
	assert.Equal(t, "zstd", cfg.Compression)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched keys keep defaults
	assert.Equal(t, "yaml", cfg.Format)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.KeepLocalIDs)
	assert.Equal(t, "out", cfg.OutDir)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
limit: 0
placement: sideways
format: toml
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrInvalidLimit)
	assert.Contains(t, err.Error(), "unknown placement")
	assert.Contains(t, err.Error(), "unknown format")
}

func TestLoad_ReportsLogProblemsTogether(t *testing.T) {
	path := writeConfig(t, `
log:
  level: loud
  format: xml
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
	assert.Contains(t, err.Error(), "unknown log format")
}

func TestLoad_Malformed(t *testing.T) {
	path := writeConfig(t, "limit: [1, 2\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate_NothingToDo(t *testing.T) {
	cfg := Default()
	cfg.OutDir = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to do")

	cfg.Serve = true
	assert.NoError(t, cfg.Validate())
}

func TestPartitionOptions(t *testing.T) {
	cfg := Default()
	cfg.Limit = 42
	cfg.Placement = "any"
	cfg.KeepLocalIDs = false
	cfg.Jobs = 3

	opts, err := cfg.PartitionOptions()
	require.NoError(t, err)
	assert.Equal(t, 42, opts.Cluster.Limit)
	assert.Equal(t, cluster.PlaceAny, opts.Cluster.Placement)
	assert.False(t, opts.Materialize.KeepLocalIDs)
	assert.Equal(t, 3, opts.Jobs)
}
