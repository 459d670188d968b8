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

	assert.Equal(t, 30, cfg.Builder.WindowSize)
	assert.Equal(t, "symmetric", cfg.Builder.Context)
	assert.Equal(t, 1, cfg.Builder.Shards)
	assert.NoError(t, cfg.Builder.Validate())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "builder.yaml")
	yamlDoc := `
builder:
  windowSize: 4
  context: left
  weights: [0.25, 0.5, 0.75, 1, 1]
  shards: 3
postgres:
  schema: results
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("CC_SHARDS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Builder.WindowSize)
	assert.Equal(t, "left", cfg.Builder.Context)
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1, 1}, cfg.Builder.Weights)
	assert.Equal(t, 5, cfg.Builder.Shards)
	assert.Equal(t, "results", cfg.Postgres.Schema)
	// untouched sections keep their defaults
	assert.Equal(t, "postgres", cfg.Builder.Source)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuilderValidate(t *testing.T) {
	base := defaultConfig().Builder

	tests := []struct {
		name   string
		mutate func(*BuilderConfig)
	}{
		{"negative window", func(b *BuilderConfig) { b.WindowSize = -1 }},
		{"unknown context", func(b *BuilderConfig) { b.Context = "right" }},
		{"unknown weighting", func(b *BuilderConfig) { b.Weighting = "gaussian" }},
		{"zero shards", func(b *BuilderConfig) { b.Shards = 0 }},
		{"unknown source", func(b *BuilderConfig) { b.Source = "s3" }},
		{"zero page size", func(b *BuilderConfig) { b.PageSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base
			tt.mutate(&b)
			assert.Error(t, b.Validate())
		})
	}
}

func TestBuilderValidateExplicitWeightsIgnoreWeighting(t *testing.T) {
	b := defaultConfig().Builder
	b.Weighting = ""
	b.Weights = []float64{1}
	assert.NoError(t, b.Validate())
}

func TestShippedConfigIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "builder.yaml"))
	require.NoError(t, err)

	assert.NoError(t, cfg.Builder.Validate())
	assert.Equal(t, 4, cfg.Builder.Shards)
	assert.Equal(t, 5*time.Minute, cfg.Postgres.ConnMaxLifetime)
	assert.Equal(t, 24*time.Hour, cfg.Redis.CacheTTL)
}
