package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/born-ml/caption/internal/config"
	"github.com/born-ml/caption/internal/dataset"
	"github.com/born-ml/caption/internal/glove"
	"github.com/born-ml/caption/internal/model"
	"github.com/born-ml/caption/internal/track"
	"github.com/born-ml/caption/internal/train"
)

// captionBackend is the backend every command trains and evaluates on.
type captionBackend = *autodiff.Backend[*cpu.Backend]

// session bundles everything built from config that train and eval share.
type session struct {
	cfg     config.Config
	ds      *dataset.Dataset
	vocab   *glove.Vocabulary
	module  *train.Module[*cpu.Backend]
	backend captionBackend
}

// newSession opens the dataset, loads the prepare artifacts, and constructs
// the network. Missing artifacts fail here with the prepare hint.
func newSession(cfg config.Config) (*session, error) {
	ds, err := dataset.Open(cfg.Data.Dataset, cfg.Data.Dir)
	if err != nil {
		return nil, err
	}

	vocab, err := glove.LoadVocabulary(ds.Dir())
	if err != nil {
		return nil, err
	}

	backend := autodiff.New(cpu.New())
	net, err := model.NewCaptionNet[captionBackend](model.CaptionNetConfig{
		Image: model.ImageEncoderConfig{
			ImageSize:     cfg.Data.ImageSize,
			ImageFeatures: cfg.Model.Features,
			DropoutRate:   float32(cfg.Model.Dropout),
		},
		Text: model.GloveLSTMConfig{
			EmbedDim:     cfg.Model.EmbedDim,
			TextFeatures: cfg.Model.Features,
			DropoutRate:  float32(cfg.Model.Dropout),
		},
		VocabSize: vocab.Size(),
	}, ds.Dir(), backend)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:     cfg,
		ds:      ds,
		vocab:   vocab,
		module:  train.NewModule(net, vocab, backend),
		backend: backend,
	}, nil
}

// loader builds a batch loader over the given image indices.
func (s *session) loader(indices []int, shuffle bool) *dataset.Loader[captionBackend] {
	samples := dataset.Expand(s.ds, indices, s.vocab)
	return dataset.NewLoader(samples, dataset.LoaderConfig{
		BatchSize: s.cfg.Data.BatchSize,
		MaxLen:    s.vocab.MaxLen(),
		ImageSize: s.cfg.Data.ImageSize,
		Shuffle:   shuffle,
		Seed:      s.cfg.Data.Seed,
	}, s.backend)
}

// tracker builds the configured tracker, or a no-op when disabled.
func (s *session) tracker(logger *log.Logger) (track.Tracker, error) {
	if !s.cfg.Tracker.Enabled {
		return track.Noop{}, nil
	}
	return track.NewRun(s.cfg.Tracker.Dir, s.cfg.Tracker.Name, s.cfg.Tracker.Endpoint, logger)
}

func newTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train the caption model",
		Long: `
Train fits the caption network on the prepared dataset: each epoch trains
over the train split, validates, logs metrics and qualitative validation
samples to the run tracker, steps the learning rate scheduler on validation
loss, and writes a checkpoint. A final test pass runs after the last epoch.
		`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := newSession(cfg)
			if err != nil {
				return err
			}

			logger := log.Default()
			tracker, err := s.tracker(logger)
			if err != nil {
				return err
			}
			defer tracker.Finish()

			trainIdx, valIdx, testIdx := s.ds.Split(cfg.Data.TrainFrac, cfg.Data.ValFrac, cfg.Data.Seed)
			logger.Info("split dataset",
				"train", len(trainIdx), "val", len(valIdx), "test", len(testIdx),
				"vocab", s.vocab.Size(), "max_len", s.vocab.MaxLen(),
			)

			opt, err := train.NewOptimizer(cfg.Optimizer, s.module.Net().Parameters(), s.backend)
			if err != nil {
				return err
			}

			trainer := train.New(cfg, s.module, opt, tracker, logger, s.backend)
			if err := trainer.Fit(ctx, s.loader(trainIdx, true), s.loader(valIdx, false)); err != nil {
				return err
			}
			if err := trainer.Test(ctx, s.loader(testIdx, false)); err != nil {
				return err
			}

			logger.Info("done", "val/acc_best", s.module.BestValAcc())
			return nil
		},
	}
}
