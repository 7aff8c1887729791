package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsUsable(t *testing.T) {
	cfg := Default()
	require.NotEmpty(t, cfg.Server.SocketPath)
	require.Equal(t, 256, cfg.Orchestrator.BatchSize)
	require.True(t, cfg.Coverage.SuppressKnownUtilities)
	require.Contains(t, cfg.Coverage.KnownUtilities, "lodash")
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphkb.yaml")
	contents := `
server:
  socket_path: /tmp/custom.sock
orchestrator:
  strict_mode: true
  workers: 4
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.sock", cfg.Server.SocketPath)
	require.True(t, cfg.Orchestrator.StrictMode)
	require.Equal(t, 4, cfg.Orchestrator.Workers)
	// Unset fields retain Default() values.
	require.Equal(t, 256, cfg.Orchestrator.BatchSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
