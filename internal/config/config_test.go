package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()
	assert.Equal(t, "http://localhost:8000", cfg.Server)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 25, cfg.PageSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server: https://scheduler.example.org/
poll_interval: 10s
page_size: 50
log_level: debug
`), 0o600))

	t.Setenv("SCHEDCTL_PAGE_SIZE", "40")
	t.Setenv("SCHEDCTL_TIMEOUT", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://scheduler.example.org", cfg.Server)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 40, cfg.PageSize)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultClientConfig().PollInterval, cfg.PollInterval)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("SCHEDCTL_POLL_INTERVAL", "soon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_LeavesValidationToCaller(t *testing.T) {
	t.Setenv("SCHEDCTL_SERVER", "not-a-url")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "not-a-url", cfg.Server)
	assert.Error(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ClientConfig)
	}{
		{"empty server", func(c *ClientConfig) { c.Server = "" }},
		{"bad scheme", func(c *ClientConfig) { c.Server = "ftp://x" }},
		{"zero interval", func(c *ClientConfig) { c.PollInterval = 0 }},
		{"zero timeout", func(c *ClientConfig) { c.Timeout = 0 }},
		{"page size", func(c *ClientConfig) { c.PageSize = 101 }},
		{"negative rate", func(c *ClientConfig) { c.RatePerSec = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
