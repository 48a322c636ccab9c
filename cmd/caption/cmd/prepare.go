package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/born-ml/caption/internal/dataset"
	"github.com/born-ml/caption/internal/glove"
)

// newPrepareCmd builds the offline preparation step: scan the caption table,
// build the vocabulary, and project the GloVe embeddings onto it.
func newPrepareCmd() *cobra.Command {
	var glovePath string

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Build vocabulary and embedding artifacts for a dataset",
		Long: `
Prepare scans the dataset's caption table, builds the vocabulary in
first-seen order, and writes two artifacts next to the dataset:

  vocab.json                    the vocabulary and max caption length
  embedding_matrix.safetensors  GloVe vectors projected onto the vocabulary

Training requires both artifacts and fails with a hint pointing here when
they are missing.
		`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if glovePath != "" {
				cfg.Model.GlovePath = glovePath
			}
			if cfg.Model.GlovePath == "" {
				return fmt.Errorf("a GloVe embeddings file is required: set model.glove_path or --glove")
			}

			ds, err := dataset.Open(cfg.Data.Dataset, cfg.Data.Dir)
			if err != nil {
				return err
			}
			log.Info("loaded dataset", "name", ds.Name(), "images", ds.Len(), "rows", ds.Rows())

			vocab := glove.Build(ds.Captions())
			log.Info("built vocabulary", "size", vocab.Size(), "max_len", vocab.MaxLen())

			matrix, err := glove.ParseEmbeddingsFile(cfg.Model.GlovePath, vocab, cfg.Model.EmbedDim)
			if err != nil {
				return err
			}

			if err := glove.SaveVocabulary(ds.Dir(), vocab); err != nil {
				return err
			}
			if err := glove.SaveEmbedding(ds.Dir(), matrix, vocab.Size(), cfg.Model.EmbedDim); err != nil {
				return err
			}

			log.Info("wrote artifacts", "dir", ds.Dir(), "embed_dim", cfg.Model.EmbedDim)
			return nil
		},
	}

	cmd.Flags().StringVar(&glovePath, "glove", "", "GloVe embeddings text file (overrides model.glove_path)")
	return cmd
}
