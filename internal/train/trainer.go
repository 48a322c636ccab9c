package train

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/tensor"
	"github.com/charmbracelet/log"

	"github.com/born-ml/caption/internal/config"
	"github.com/born-ml/caption/internal/dataset"
	"github.com/born-ml/caption/internal/track"
)

// Trainer drives a Module through epochs of training and validation, then an
// optional test pass.
type Trainer[B tensor.Backend] struct {
	cfg     config.Config
	module  *Module[B]
	opt     Optimizer
	sched   *Plateau
	tracker track.Tracker
	logger  *log.Logger
	backend *autodiff.Backend[B]
}

// New assembles a trainer. The tracker may be track.Noop when tracking is
// disabled.
func New[B tensor.Backend](
	cfg config.Config,
	module *Module[B],
	opt Optimizer,
	tracker track.Tracker,
	logger *log.Logger,
	backend *autodiff.Backend[B],
) *Trainer[B] {
	return &Trainer[B]{
		cfg:     cfg,
		module:  module,
		opt:     opt,
		sched:   NewPlateau(cfg.Scheduler),
		tracker: tracker,
		logger:  logger,
		backend: backend,
	}
}

// Fit trains for the configured number of epochs, validating after each one.
// Each epoch logs metrics to the tracker, decodes qualitative validation
// samples, steps the plateau scheduler on validation loss, and writes a
// checkpoint. Fit stops early when ctx is cancelled.
func (t *Trainer[B]) Fit(ctx context.Context, trainLoader, valLoader *dataset.Loader[*autodiff.Backend[B]]) error {
	if t.cfg.Trainer.CheckpointDir != "" {
		if err := os.MkdirAll(t.cfg.Trainer.CheckpointDir, 0o755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	for epoch := 1; epoch <= t.cfg.Trainer.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		trainLoss, trainAcc, err := t.trainEpoch(ctx, trainLoader)
		if err != nil {
			return err
		}

		valLoss, valAcc, err := t.evalPass(ctx, PhaseVal, valLoader)
		if err != nil {
			return err
		}
		best := t.module.FinishVal()

		t.logger.Info("epoch",
			"epoch", epoch,
			"train/loss", trainLoss, "train/acc", trainAcc,
			"val/loss", valLoss, "val/acc", valAcc,
			"val/acc_best", best,
			"lr", t.opt.GetLR(),
		)

		if t.shouldLog(epoch) {
			if err := t.tracker.LogMetrics(epoch, map[string]float64{
				"train/loss":   trainLoss,
				"train/acc":    trainAcc,
				"val/loss":     valLoss,
				"val/acc":      valAcc,
				"val/acc_best": best,
				"lr":           float64(t.opt.GetLR()),
			}); err != nil {
				return err
			}

			if err := t.logSamples(PhaseVal); err != nil {
				return err
			}
		}

		if t.sched.Step(valLoss, t.opt) {
			t.logger.Info("reduced learning rate", "lr", t.opt.GetLR())
		}

		if err := t.checkpoint(epoch); err != nil {
			return err
		}
	}
	return nil
}

// Test runs one evaluation pass over the test loader, logging metrics and
// qualitative samples under the test/ prefix.
func (t *Trainer[B]) Test(ctx context.Context, testLoader *dataset.Loader[*autodiff.Backend[B]]) error {
	loss, acc, err := t.evalPass(ctx, PhaseTest, testLoader)
	if err != nil {
		return err
	}

	t.logger.Info("test", "test/loss", loss, "test/acc", acc)
	if err := t.tracker.LogMetrics(t.cfg.Trainer.Epochs, map[string]float64{
		"test/loss": loss,
		"test/acc":  acc,
	}); err != nil {
		return err
	}
	return t.logSamples(PhaseTest)
}

// shouldLog applies the tracker cadence. The final epoch always logs so a run
// never ends without its last metrics.
func (t *Trainer[B]) shouldLog(epoch int) bool {
	every := t.cfg.Tracker.LogEvery
	if every <= 1 || epoch == t.cfg.Trainer.Epochs {
		return true
	}
	return epoch%every == 0
}

func (t *Trainer[B]) trainEpoch(ctx context.Context, loader *dataset.Loader[*autodiff.Backend[B]]) (loss, acc float64, err error) {
	t.module.StartPhase(PhaseTrain)
	loader.Reset()
	for loader.Scan() {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		if _, err := t.module.TrainStep(t.opt, loader.Batch()); err != nil {
			return 0, 0, err
		}
	}
	if err := loader.Err(); err != nil {
		return 0, 0, err
	}
	loss, acc = t.module.Metrics(PhaseTrain)
	return loss, acc, nil
}

func (t *Trainer[B]) evalPass(ctx context.Context, phase Phase, loader *dataset.Loader[*autodiff.Backend[B]]) (loss, acc float64, err error) {
	t.module.StartPhase(phase)
	loader.Reset()
	for loader.Scan() {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		t.module.EvalStep(phase, loader.Batch())
	}
	if err := loader.Err(); err != nil {
		return 0, 0, err
	}
	loss, acc = t.module.Metrics(phase)
	return loss, acc, nil
}

func (t *Trainer[B]) logSamples(phase Phase) error {
	maxLen := t.cfg.Model.MaxDecode
	if maxLen <= 0 {
		maxLen = t.module.Vocab().MaxLen()
	}
	rows, err := t.module.Samples(phase, t.cfg.Model.SampleCount, t.cfg.Data.ImageSize, maxLen)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return t.tracker.LogTable(string(phase)+"_samples", []string{"image", "caption"}, rows)
}

func (t *Trainer[B]) checkpoint(epoch int) error {
	if t.cfg.Trainer.CheckpointDir == "" {
		return nil
	}
	path := filepath.Join(t.cfg.Trainer.CheckpointDir, fmt.Sprintf("epoch-%03d.safetensors", epoch))
	meta := map[string]string{"epoch": fmt.Sprintf("%d", epoch)}
	if err := SaveWeights(path, t.module.Net(), meta); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	t.logger.Debug("saved checkpoint", "path", path)
	return nil
}
