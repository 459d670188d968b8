package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/builder"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/cooccur"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/matrixfile"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/errors"
)

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	assert.NoError(t, validate(loadDefaults(t)))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad context", func(c *config.Config) { c.Builder.Context = "right" }},
		{"weights do not fit window", func(c *config.Config) {
			c.Builder.WindowSize = 4
			c.Builder.Weights = []float64{1, 1, 1}
		}},
		{"kafka without topic", func(c *config.Config) {
			c.Builder.Source = "kafka"
			c.Kafka.Topics.ConceptEvents = ""
		}},
		{"notify without topic", func(c *config.Config) {
			c.Builder.Notify = true
			c.Kafka.Topics.BuildCompleted = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			tt.mutate(cfg)
			err := validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
			assert.Equal(t, apperrors.ExitConfig, apperrors.ExitCode(err))
		})
	}
}

func TestBuilderConfigMapping(t *testing.T) {
	got := builderConfig(config.BuilderConfig{WindowSize: 6, Context: "left", Weights: []float64{1}, Weighting: "uniform"})
	assert.Equal(t, builder.Config{WindowSize: 6, Context: builder.ContextLeft, Weights: []float64{1}, Weighting: "uniform"}, got)
}

func sample() *cooccur.Matrix {
	acc := cooccur.NewAccumulator(2)
	acc.Add(0, 1, 0.5)
	return acc.Export([]string{"1", "2"})
}

func TestWriteMatrixExplicitPath(t *testing.T) {
	out := filepath.Join(t.TempDir(), "run.cooc")
	path, err := writeMatrix(sample(), matrixfile.Meta{Name: "x"}, "unused", out)
	require.NoError(t, err)
	assert.Equal(t, out, path)

	m, meta, err := matrixfile.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, m.NNZ())
	assert.Equal(t, "x", meta.Name)
}

func TestWriteMatrixOutputDir(t *testing.T) {
	dir := t.TempDir()
	path, err := writeMatrix(sample(), matrixfile.Meta{Name: "nightly"}, dir, "")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, matrixfile.Extension, filepath.Ext(path))
}

func TestCompletedEvent(t *testing.T) {
	id := uuid.New()
	b := config.BuilderConfig{BuildName: "nightly", WindowSize: 30, Context: "symmetric", Persist: true}
	stats := builder.Stats{Periods: 10, Events: 42, Duration: 1500 * time.Millisecond}

	ev := completedEvent(id, b, "/data/m.cooc", sample(), stats)
	assert.Equal(t, id.String(), ev.BuildID)
	assert.Equal(t, "nightly", ev.Name)
	assert.Equal(t, 2, ev.Dim)
	assert.Equal(t, 1, ev.Entries)
	assert.Equal(t, int64(10), ev.Periods)
	assert.Equal(t, int64(1500), ev.DurationMS)
	assert.True(t, ev.Persisted)
	assert.False(t, ev.FinishedAt.IsZero())
}
