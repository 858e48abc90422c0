package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  address: 0.0.0.0
  port: 7070
storage:
  type: ram
threads: 4
timeout_seconds: 360
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Server.Address)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 4, cfg.Threads)
	require.Equal(t, 360, cfg.TimeoutSeconds)
	require.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults.
	require.Equal(t, "mutex", cfg.Storage.Queue)
	require.Equal(t, 65536, cfg.MaxMessageSize)
	require.True(t, cfg.Server.HTTP.Enabled)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeFile(t, "server: [not a map")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadClientDefaults(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", cfg.Client.ServerAddress)
	require.Equal(t, 9090, cfg.Client.ServerPort)
}

func TestLoadClientOverlay(t *testing.T) {
	path := writeFile(t, `
client:
  server_address: broker.internal
  server_port: 7171
`)

	cfg, err := LoadClient(path)
	require.NoError(t, err)
	require.Equal(t, "broker.internal", cfg.Client.ServerAddress)
	require.Equal(t, 7171, cfg.Client.ServerPort)
}
