package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/born/tensor"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/born-ml/caption/internal/dataset"
	"github.com/born-ml/caption/internal/track"
	"github.com/born-ml/caption/internal/train"
)

func newEvalCmd() *cobra.Command {
	var (
		weights string
		image   string
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate trained weights",
		Long: `
Eval restores a checkpoint and either runs the full test split, reporting
loss and next-token accuracy, or captions a single image with --image.
		`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if weights == "" {
				return fmt.Errorf("a weights file is required: set --weights")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := newSession(cfg)
			if err != nil {
				return err
			}
			if err := train.LoadWeights(weights, s.module.Net(), s.backend); err != nil {
				return err
			}

			logger := log.Default()
			logger.Info("restored weights", "path", weights)

			if image != "" {
				caption, err := captionImage(s, image)
				if err != nil {
					return err
				}
				fmt.Println(caption)
				return nil
			}

			_, _, testIdx := s.ds.Split(cfg.Data.TrainFrac, cfg.Data.ValFrac, cfg.Data.Seed)
			trainer := train.New(cfg, s.module, nil, track.Noop{}, logger, s.backend)
			return trainer.Test(ctx, s.loader(testIdx, false))
		},
	}

	cmd.Flags().StringVarP(&weights, "weights", "w", "", "checkpoint file to evaluate")
	cmd.Flags().StringVarP(&image, "image", "i", "", "caption a single image instead of the test split")
	return cmd
}

// captionImage greedily decodes one caption for the image at path.
func captionImage(s *session, path string) (string, error) {
	pixels, err := dataset.LoadImage(path, s.cfg.Data.ImageSize)
	if err != nil {
		return "", err
	}
	img, err := tensor.FromSlice[float32](pixels, dataset.ImageShape(1, s.cfg.Data.ImageSize), s.backend)
	if err != nil {
		return "", err
	}

	maxLen := s.cfg.Model.MaxDecode
	if maxLen <= 0 {
		maxLen = s.vocab.MaxLen()
	}

	s.module.Net().SetTraining(false)
	return s.module.Net().GreedySearch(img, s.vocab, maxLen), nil
}
