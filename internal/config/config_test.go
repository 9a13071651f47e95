package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.ActionTimeout)
	assert.Equal(t, "john@abv.bg", cfg.Seed.Email)
	assert.Equal(t, "123456", cfg.Seed.Password)
	assert.True(t, cfg.Browser.Headless)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("BOOKCHECK_BASE_URL", "http://books.test:8080/")
	t.Setenv("BOOKCHECK_PARALLEL", "2")
	t.Setenv("BOOKCHECK_SEED_EMAIL", "peter@abv.bg")

	cfg, err := NewConfigFromViper(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "http://books.test:8080", cfg.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, 2, cfg.Parallel)
	assert.Equal(t, "peter@abv.bg", cfg.Seed.Email)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("action_timeout: 3s\nscenario_timeout: 20s\nreport:\n  junit: out.xml\n"), 0o644))

	v := NewViper()
	require.NoError(t, ReadFile(v, path))
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.ActionTimeout)
	assert.Equal(t, 20*time.Second, cfg.ScenarioTimeout)
	assert.Equal(t, "out.xml", cfg.Report.JUnit)
}

func TestReadFileMissingExplicitPath(t *testing.T) {
	err := ReadFile(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.BaseURL = "" }},
		{"non-http scheme", func(c *Config) { c.BaseURL = "ftp://books.test" }},
		{"zero action timeout", func(c *Config) { c.ActionTimeout = 0 }},
		{"scenario shorter than action", func(c *Config) { c.ScenarioTimeout = time.Second }},
		{"zero parallel", func(c *Config) { c.Parallel = 0 }},
		{"negative rate", func(c *Config) { c.StartRate = -1 }},
		{"missing seed", func(c *Config) { c.Seed.Password = "" }},
		{"record without fps", func(c *Config) { c.Artifacts.Record = true; c.Artifacts.FPS = 0 }},
		{"unknown provider", func(c *Config) { c.Triage.Provider = "gemini" }},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
