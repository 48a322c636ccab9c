package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caption.yaml")
	yaml := `
data:
  dataset: flickr30k
  batch_size: 16
model:
  embed_dim: 100
optimizer:
  name: sgd
  lr: 0.05
  momentum: 0.9
trainer:
  epochs: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "flickr30k", cfg.Data.Dataset)
	assert.Equal(t, 16, cfg.Data.BatchSize)
	assert.Equal(t, 100, cfg.Model.EmbedDim)
	assert.Equal(t, "sgd", cfg.Optimizer.Name)
	assert.InDelta(t, 0.05, cfg.Optimizer.LR, 1e-9)
	assert.Equal(t, 3, cfg.Trainer.Epochs)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Scheduler, cfg.Scheduler)
	assert.Equal(t, Default().Data.ImageSize, cfg.Data.ImageSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty dataset", func(c *Config) { c.Data.Dataset = "" }},
		{"zero batch size", func(c *Config) { c.Data.BatchSize = 0 }},
		{"negative image size", func(c *Config) { c.Data.ImageSize = -1 }},
		{"split sums past one", func(c *Config) { c.Data.TrainFrac = 0.9; c.Data.ValFrac = 0.2 }},
		{"zero embed dim", func(c *Config) { c.Model.EmbedDim = 0 }},
		{"dropout of one", func(c *Config) { c.Model.Dropout = 1 }},
		{"unknown optimizer", func(c *Config) { c.Optimizer.Name = "adagrad" }},
		{"zero lr", func(c *Config) { c.Optimizer.LR = 0 }},
		{"factor of one", func(c *Config) { c.Scheduler.Factor = 1 }},
		{"negative patience", func(c *Config) { c.Scheduler.Patience = -1 }},
		{"zero epochs", func(c *Config) { c.Trainer.Epochs = 0 }},
		{"tracking without dir", func(c *Config) { c.Tracker.Enabled = true; c.Tracker.Dir = "" }},
		{"zero log cadence", func(c *Config) { c.Tracker.LogEvery = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
