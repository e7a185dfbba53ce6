package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Proximity.MaxResults)
	assert.Equal(t, "none", cfg.Proximity.WeightMode)
	assert.Equal(t, 4, cfg.Proximity.LimitDistance)
	assert.Equal(t, "none", cfg.Proximity.SummarizeMode)
	assert.False(t, cfg.Proximity.IncludeReferenceTerm)
	assert.Equal(t, 15, cfg.Proximity.TopN)
	assert.True(t, cfg.Proximity.Lemmatize)
	assert.False(t, cfg.Proximity.Stem)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proximityd.yaml")
	yamlDoc := `
server:
  port: 9000
proximity:
  weightMode: linear
  limitDistance: -1
  topN: 5
  stopWords: [iot, data]
  nodeSizeRange: [2, 8]
redis:
  cacheTTL: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))
	t.Setenv("TPN_PROXIMITY_TOP_N", "7")
	t.Setenv("TPN_REDIS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "linear", cfg.Proximity.WeightMode)
	assert.Equal(t, -1, cfg.Proximity.LimitDistance)
	assert.Equal(t, 7, cfg.Proximity.TopN)
	assert.Equal(t, []string{"iot", "data"}, cfg.Proximity.StopWords)
	assert.Equal(t, [2]float64{2, 8}, cfg.Proximity.NodeSizeRange)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 10, cfg.Proximity.MaxResults)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad weight mode", func(c *Config) { c.Proximity.WeightMode = "quadratic" }, false},
		{"bad summarize mode", func(c *Config) { c.Proximity.SummarizeMode = "mode" }, false},
		{"negative top n", func(c *Config) { c.Proximity.TopN = -1 }, false},
		{"limit below unbounded", func(c *Config) { c.Proximity.LimitDistance = -2 }, false},
		{"postgres source without postgres", func(c *Config) { c.Library.Source = "postgres" }, false},
		{"postgres source", func(c *Config) {
			c.Library.Source = "postgres"
			c.Postgres.Enabled = true
		}, true},
		{"unknown source", func(c *Config) { c.Library.Source = "s3" }, false},
		{"bolt source", func(c *Config) { c.Library.Source = "bolt" }, true},
		{"negative client rate", func(c *Config) { c.Server.ClientRatePerSecond = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
