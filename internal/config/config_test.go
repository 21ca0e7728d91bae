package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.AutosaveInterval())
	assert.Equal(t, 50, cfg.Session.HistoryLimit)
}

func TestLoadFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
storage:
  database: data/a.db
session:
  autosave_seconds: 30
`), 0o644))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ANNOTATOR_WORKERS=4\nANNOTATOR_LOG_LEVEL=debug\n"), 0o644))

	t.Setenv("ANNOTATOR_PORT", "9100")
	// already set, so the .env value must not win
	t.Setenv("ANNOTATOR_LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("ANNOTATOR_WORKERS") })

	cfg, err := Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "data/a.db", cfg.Storage.Database)
	assert.Equal(t, 30*time.Second, cfg.AutosaveInterval())
	assert.Equal(t, 4, cfg.Workers.Count)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "0.0.0.0:9100", cfg.Addr())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [1, 2"), 0o644))
	_, err := Load(bad)
	assert.Error(t, err)

	t.Setenv("ANNOTATOR_PORT", "eighty")
	_, err = Load("")
	assert.ErrorContains(t, err, "ANNOTATOR_PORT")

	t.Setenv("ANNOTATOR_PORT", "0")
	_, err = Load("")
	assert.ErrorContains(t, err, "invalid server port")
}
