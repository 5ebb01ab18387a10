package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, ModeAuto, cfg.Backend.Mode)
	assert.Equal(t, "localhost:6379", cfg.Backend.Redis.Addr())
	assert.Equal(t, time.Hour, cfg.Session.TTL())
	assert.Equal(t, "general", cfg.Defaults.Category)
	assert.Equal(t, "beginner", cfg.Defaults.Difficulty)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "askdeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9090"
backend:
  mode: embedded
  data_dir: /var/lib/askdeck
session:
  ttl_seconds: 120
defaults:
  category: support
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, ModeEmbedded, cfg.Backend.Mode)
	assert.Equal(t, "/var/lib/askdeck", cfg.Backend.DataDir)
	assert.Equal(t, 2*time.Minute, cfg.Session.TTL())
	assert.Equal(t, "support", cfg.Defaults.Category)
	// Untouched fields keep their defaults.
	assert.Equal(t, "beginner", cfg.Defaults.Difficulty)
	assert.Equal(t, 6379, cfg.Backend.Redis.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "askdeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9090\"\n"), 0o644))

	t.Setenv("ASKDECK_LISTEN_ADDR", ":7070")
	t.Setenv("ASKDECK_BACKEND", "redis")
	t.Setenv("ASKDECK_REDIS_PORT", "6380")
	t.Setenv("ASKDECK_SESSION_TTL", "60")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, ModeRedis, cfg.Backend.Mode)
	assert.Equal(t, 6380, cfg.Backend.Redis.Port)
	assert.Equal(t, time.Minute, cfg.Session.TTL())
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("ASKDECK_BACKEND", "bogus")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("ASKDECK_BACKEND", "auto")
	t.Setenv("ASKDECK_SESSION_TTL", "0")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("ASKDECK_SESSION_TTL", "notanumber")
	_, err = Load("")
	assert.NoError(t, err, "unparseable env value is ignored, default kept")
}
