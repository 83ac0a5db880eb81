package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/coach/rubric"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 90*24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, rubric.RoleAE, cfg.DefaultRole())
	assert.Equal(t, rubric.AllDimensions, cfg.DefaultDimensions())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown cache backend",
			mutate:  func(c *Config) { c.Cache.Backend = "redis" },
			wantErr: "cache.backend",
		},
		{
			name:    "nats backend without url",
			mutate:  func(c *Config) { c.Cache.Backend = "nats" },
			wantErr: "nats.url",
		},
		{
			name:    "events without url",
			mutate:  func(c *Config) { c.NATS.PublishEvents = true },
			wantErr: "publish_events",
		},
		{
			name:    "unknown default role",
			mutate:  func(c *Config) { c.Defaults.Role = "vp" },
			wantErr: "defaults.role",
		},
		{
			name:    "unknown default dimension",
			mutate:  func(c *Config) { c.Defaults.Dimensions = []string{"charisma"} },
			wantErr: "unknown dimension",
		},
		{
			name:    "missing rubrics dir",
			mutate:  func(c *Config) { c.Rubrics.Dir = "" },
			wantErr: "rubrics.dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coach.yaml")

	content := `
server:
  addr: ":9090"
nats:
  url: "nats://localhost:4222"
  publish_events: true
cache:
  backend: nats
  ttl: 720h
rubrics:
  dir: /etc/coach/rubrics
  watch: true
defaults:
  role: se
  dimensions: [discovery, engagement]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "nats", cfg.Cache.Backend)
	assert.Equal(t, 720*time.Hour, cfg.Cache.TTL)
	assert.True(t, cfg.Rubrics.Watch)
	assert.Equal(t, rubric.RoleSE, cfg.DefaultRole())
	assert.Equal(t, []rubric.Dimension{rubric.DimensionDiscovery, rubric.DimensionEngagement}, cfg.DefaultDimensions())

	// Unset fields keep their defaults
	assert.Equal(t, 4096, cfg.Cache.CompressThreshold)
	assert.Equal(t, 3*time.Minute, cfg.LLM.Timeout)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()

	base.Merge(&Config{
		Server:   ServerConfig{Addr: ":7000"},
		Defaults: DefaultsConfig{Role: "csm"},
	})

	assert.Equal(t, ":7000", base.Server.Addr)
	assert.Equal(t, rubric.RoleCSM, base.DefaultRole())
	// Untouched fields survive the merge
	assert.Equal(t, "memory", base.Cache.Backend)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "coach.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":9999"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", loaded.Server.Addr)
}
