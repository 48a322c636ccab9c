// Package cmd contains the commands of the caption CLI.
package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/born-ml/caption/internal/config"
)

// rootArgs holds flags shared by all subcommands.
type rootArgs struct {
	configPath string
	verbose    bool
}

var rootFlags rootArgs

var rootCmd = &cobra.Command{
	Use:   "caption",
	Short: "Train and evaluate an image captioning model",
	Long: `
Train and evaluate an LSTM image captioning model over the Flickr caption
datasets, with GloVe word embeddings and greedy decoding.

A run happens in two steps: "caption prepare" builds the vocabulary and
embedding matrix artifacts from the raw dataset, then "caption train" fits
the model against them.
	`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if rootFlags.verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.configPath, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newPrepareCmd())
	rootCmd.AddCommand(newTrainCmd())
	rootCmd.AddCommand(newEvalCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig reads the configured file, or the defaults when none is given.
func loadConfig() (config.Config, error) {
	return config.Load(rootFlags.configPath)
}
