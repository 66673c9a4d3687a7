package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8000", cfg.Addr)
	require.Equal(t, 4000, cfg.MaxMessageBytes)
	require.Equal(t, 30*time.Second, cfg.GenerationTimeout)
	require.Equal(t, 30*time.Second, cfg.DisconnectGrace)
	require.Equal(t, "quantum-ai", cfg.DefaultModel)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9000\"\ngeneration_timeout: 5s\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, 5*time.Second, cfg.GenerationTimeout)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 4000, cfg.MaxMessageBytes, "unset fields keep their defaults")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9000\"\n"), 0o644))
	t.Setenv("CHATHUB_ADDR", ":7000")
	t.Setenv("CHATHUB_MAX_MESSAGE_BYTES", "100")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.Addr)
	require.Equal(t, 100, cfg.MaxMessageBytes)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
