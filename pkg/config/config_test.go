package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPassesValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejectsTooFewWorkers(t *testing.T) {
	cfg := Default()
	cfg.MaxWorkers = 2
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadBloomRate(t *testing.T) {
	cfg := Default()
	cfg.BloomFalsePositiveRate = 1.5
	assert.Error(t, cfg.Validate())
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cellardb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_workers: 5\ndata_dir: /tmp/cellardb\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxWorkers)
	assert.Equal(t, "/tmp/cellardb", cfg.DataDir)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().MaxWorkers, cfg.MaxWorkers)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cellardb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_workers: 5\n"), 0644))

	t.Setenv("CELLARDB_MAX_WORKERS", "8")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxWorkers)
}
