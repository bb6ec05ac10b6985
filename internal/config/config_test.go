package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.Worker)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8090, cfg.WebPort)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"worker": "codex", "max_iterations": 25}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "codex", cfg.Worker)
	assert.Equal(t, 25, cfg.MaxIterations)
	assert.Equal(t, "info", cfg.LogLevel, "unset fields keep their defaults")
	assert.Equal(t, "prd.json", cfg.PRDPath)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{worker`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveMaxIterations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_iterations": -3}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxIterations)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PROMPTLOOP_WORKER", "codex")
	t.Setenv("PROMPTLOOP_MAX_ITERATIONS", "3")
	t.Setenv("PROMPTLOOP_LOG_LEVEL", "debug")
	t.Setenv("PROMPTLOOP_LOG_PATH", "/tmp/custom-promptloop.log")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	assert.Equal(t, "codex", cfg.Worker)
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/custom-promptloop.log", cfg.LogPath)
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("PROMPTLOOP_MAX_ITERATIONS", "lots")
	t.Setenv("PROMPTLOOP_WEB_PORT", "99999")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, 8090, cfg.WebPort)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Worker = "codex"
	cfg.MaxIterations = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "codex", loaded.Worker)
	assert.Equal(t, 7, loaded.MaxIterations)
}
