// Package config loads and validates the training configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full configuration of a training run.
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Model     ModelConfig     `mapstructure:"model"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Trainer   TrainerConfig   `mapstructure:"trainer"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
}

// DataConfig selects the dataset and batching behavior.
type DataConfig struct {
	Dataset   string  `mapstructure:"dataset"` // flickr8k or flickr30k
	Dir       string  `mapstructure:"dir"`     // dataset root directory
	BatchSize int     `mapstructure:"batch_size"`
	ImageSize int     `mapstructure:"image_size"`
	TrainFrac float64 `mapstructure:"train_frac"`
	ValFrac   float64 `mapstructure:"val_frac"`
	Seed      int64   `mapstructure:"seed"`
}

// ModelConfig sizes the caption network.
type ModelConfig struct {
	EmbedDim    int     `mapstructure:"embed_dim"`
	Features    int     `mapstructure:"features"` // shared image/text feature width
	Dropout     float64 `mapstructure:"dropout"`
	GlovePath   string  `mapstructure:"glove_path"` // GloVe text file for prepare
	MaxDecode   int     `mapstructure:"max_decode"` // greedy decode cap, 0 = vocab max len
	SampleCount int     `mapstructure:"sample_count"`
}

// OptimizerConfig selects and tunes the optimizer.
type OptimizerConfig struct {
	Name     string  `mapstructure:"name"` // adam or sgd
	LR       float64 `mapstructure:"lr"`
	Momentum float64 `mapstructure:"momentum"` // sgd only
	Beta1    float64 `mapstructure:"beta1"`    // adam only
	Beta2    float64 `mapstructure:"beta2"`    // adam only
}

// SchedulerConfig tunes the reduce-on-plateau schedule over val loss.
type SchedulerConfig struct {
	Factor   float64 `mapstructure:"factor"`
	Patience int     `mapstructure:"patience"`
	MinLR    float64 `mapstructure:"min_lr"`
}

// TrainerConfig controls the fit loop.
type TrainerConfig struct {
	Epochs        int    `mapstructure:"epochs"`
	CheckpointDir string `mapstructure:"checkpoint_dir"`
	Seed          int64  `mapstructure:"seed"`
}

// TrackerConfig controls experiment tracking.
type TrackerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Dir      string `mapstructure:"dir"`
	Name     string `mapstructure:"name"`
	Endpoint string `mapstructure:"endpoint"`  // optional HTTP push target
	LogEvery int    `mapstructure:"log_every"` // epochs between tracker logs
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Data: DataConfig{
			Dataset:   "flickr8k",
			Dir:       "data",
			BatchSize: 64,
			ImageSize: 299,
			TrainFrac: 0.8,
			ValFrac:   0.1,
			Seed:      42,
		},
		Model: ModelConfig{
			EmbedDim:    200,
			Features:    256,
			Dropout:     0.5,
			MaxDecode:   0,
			SampleCount: 4,
		},
		Optimizer: OptimizerConfig{
			Name:  "adam",
			LR:    1e-3,
			Beta1: 0.9,
			Beta2: 0.999,
		},
		Scheduler: SchedulerConfig{
			Factor:   0.1,
			Patience: 10,
			MinLR:    1e-6,
		},
		Trainer: TrainerConfig{
			Epochs:        10,
			CheckpointDir: "checkpoints",
			Seed:          42,
		},
		Tracker: TrackerConfig{
			Enabled:  true,
			Dir:      "runs",
			Name:     "caption",
			LogEvery: 1,
		},
	}
}

// Load reads the config file at path, layered over Default. An empty path
// loads the defaults only; environment variables with the CAPTION_ prefix
// override either.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("CAPTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section for out-of-range values.
func (c Config) Validate() error {
	if c.Data.Dataset == "" {
		return fmt.Errorf("data.dataset is required")
	}
	if c.Data.BatchSize <= 0 {
		return fmt.Errorf("data.batch_size must be > 0, got %d", c.Data.BatchSize)
	}
	if c.Data.ImageSize <= 0 {
		return fmt.Errorf("data.image_size must be > 0, got %d", c.Data.ImageSize)
	}
	if c.Data.TrainFrac <= 0 || c.Data.ValFrac < 0 || c.Data.TrainFrac+c.Data.ValFrac >= 1 {
		return fmt.Errorf("data split fractions must satisfy 0 < train, 0 <= val, train+val < 1, got train=%v val=%v",
			c.Data.TrainFrac, c.Data.ValFrac)
	}
	if c.Model.EmbedDim <= 0 {
		return fmt.Errorf("model.embed_dim must be > 0, got %d", c.Model.EmbedDim)
	}
	if c.Model.Features <= 0 {
		return fmt.Errorf("model.features must be > 0, got %d", c.Model.Features)
	}
	if c.Model.Dropout < 0 || c.Model.Dropout >= 1 {
		return fmt.Errorf("model.dropout must be in [0, 1), got %v", c.Model.Dropout)
	}
	if c.Model.SampleCount < 0 {
		return fmt.Errorf("model.sample_count must be >= 0, got %d", c.Model.SampleCount)
	}
	switch c.Optimizer.Name {
	case "adam", "sgd":
	default:
		return fmt.Errorf("optimizer.name must be adam or sgd, got %q", c.Optimizer.Name)
	}
	if c.Optimizer.LR <= 0 {
		return fmt.Errorf("optimizer.lr must be > 0, got %v", c.Optimizer.LR)
	}
	if c.Scheduler.Factor <= 0 || c.Scheduler.Factor >= 1 {
		return fmt.Errorf("scheduler.factor must be in (0, 1), got %v", c.Scheduler.Factor)
	}
	if c.Scheduler.Patience < 0 {
		return fmt.Errorf("scheduler.patience must be >= 0, got %d", c.Scheduler.Patience)
	}
	if c.Scheduler.MinLR < 0 {
		return fmt.Errorf("scheduler.min_lr must be >= 0, got %v", c.Scheduler.MinLR)
	}
	if c.Trainer.Epochs <= 0 {
		return fmt.Errorf("trainer.epochs must be > 0, got %d", c.Trainer.Epochs)
	}
	if c.Tracker.Enabled && c.Tracker.Dir == "" {
		return fmt.Errorf("tracker.dir is required when tracking is enabled")
	}
	if c.Tracker.LogEvery <= 0 {
		return fmt.Errorf("tracker.log_every must be > 0, got %d", c.Tracker.LogEvery)
	}
	return nil
}
