// Package train runs the caption network through train/val/test phases with
// metric bookkeeping, learning rate scheduling, and qualitative sampling.
package train

import (
	"fmt"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/caption/internal/dataset"
	"github.com/born-ml/caption/internal/glove"
	"github.com/born-ml/caption/internal/metrics"
	"github.com/born-ml/caption/internal/model"
)

// Phase is one of the three evaluation contexts of a run.
type Phase string

const (
	PhaseTrain Phase = "train"
	PhaseVal   Phase = "val"
	PhaseTest  Phase = "test"
)

// phaseMetrics accumulates loss and next-token accuracy within one phase.
type phaseMetrics struct {
	loss metrics.Mean
	acc  *metrics.Accuracy
}

func (p *phaseMetrics) reset() {
	p.loss.Reset()
	p.acc.Reset()
}

// Module couples the caption network with its loss and per-phase metric
// state. One Module lives for the whole run; phases reset their own metrics
// at each boundary while the best validation accuracy survives across epochs.
type Module[B tensor.Backend] struct {
	backend *autodiff.Backend[B]
	net     *model.CaptionNet[*autodiff.Backend[B]]
	vocab   *glove.Vocabulary

	phases     map[Phase]*phaseMetrics
	valAccBest metrics.Max

	// image paths of the most recent batch per phase, for qualitative
	// sampling at phase end
	lastPaths map[Phase][]string
}

// NewModule wraps a constructed network. Accuracy is sized by the
// vocabulary, which also drives greedy decoding.
func NewModule[B tensor.Backend](
	net *model.CaptionNet[*autodiff.Backend[B]],
	vocab *glove.Vocabulary,
	backend *autodiff.Backend[B],
) *Module[B] {
	phases := make(map[Phase]*phaseMetrics, 3)
	for _, p := range []Phase{PhaseTrain, PhaseVal, PhaseTest} {
		phases[p] = &phaseMetrics{acc: metrics.NewAccuracy(vocab.Size())}
	}
	return &Module[B]{
		backend:   backend,
		net:       net,
		vocab:     vocab,
		phases:    phases,
		lastPaths: make(map[Phase][]string, 3),
	}
}

// Net returns the wrapped network.
func (m *Module[B]) Net() *model.CaptionNet[*autodiff.Backend[B]] {
	return m.net
}

// Vocab returns the vocabulary the module decodes with.
func (m *Module[B]) Vocab() *glove.Vocabulary {
	return m.vocab
}

// StartPhase resets the phase's metrics and switches the network's training
// mode. Starting the train phase also resets the validation metrics, so
// pre-fit sanity passes never leak into the tracked best accuracy.
func (m *Module[B]) StartPhase(phase Phase) {
	m.phases[phase].reset()
	delete(m.lastPaths, phase)
	if phase == PhaseTrain {
		m.phases[PhaseVal].reset()
	}
	m.net.SetTraining(phase == PhaseTrain)
}

// TrainStep runs one optimization step: forward, cross entropy, backward
// through the tape, optimizer update. It returns the batch loss.
func (m *Module[B]) TrainStep(opt Optimizer, batch *dataset.Batch[*autodiff.Backend[B]]) (float32, error) {
	tape := m.backend.Tape()
	if !tape.IsRecording() {
		tape.StartRecording()
	}

	opt.ZeroGrad()

	logits := m.net.Forward(batch.Images, batch.Seqs)
	lossRaw := m.backend.CrossEntropy(logits.Raw(), batch.Targets.Raw())
	lossValue := lossRaw.AsFloat32()[0]

	outputGrad, err := tensor.NewRaw(lossRaw.Shape(), lossRaw.DType(), m.backend.Device())
	if err != nil {
		return 0, fmt.Errorf("failed to create loss gradient: %w", err)
	}
	outputGrad.AsFloat32()[0] = 1.0

	grads := tape.Backward(outputGrad, m.backend)
	opt.Step(grads)
	tape.Clear()

	m.observe(PhaseTrain, lossValue, logits, batch)
	return lossValue, nil
}

// EvalStep runs one forward pass without gradients and accumulates the
// phase's metrics.
func (m *Module[B]) EvalStep(phase Phase, batch *dataset.Batch[*autodiff.Backend[B]]) float32 {
	tape := m.backend.Tape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()

	logits := m.net.Forward(batch.Images, batch.Seqs)
	lossRaw := m.backend.CrossEntropy(logits.Raw(), batch.Targets.Raw())
	lossValue := lossRaw.AsFloat32()[0]

	m.observe(phase, lossValue, logits, batch)
	return lossValue
}

func (m *Module[B]) observe(phase Phase, loss float32, logits *tensor.Tensor[float32, *autodiff.Backend[B]], batch *dataset.Batch[*autodiff.Backend[B]]) {
	pm := m.phases[phase]
	pm.loss.Update(float64(loss))
	metrics.UpdateLogits(pm.acc, logits, batch.Targets)
	m.lastPaths[phase] = batch.Paths
}

// Metrics returns the phase's mean loss and accuracy so far.
func (m *Module[B]) Metrics(phase Phase) (loss, acc float64) {
	pm := m.phases[phase]
	return pm.loss.Compute(), pm.acc.Compute()
}

// FinishVal folds the current validation accuracy into the best-so-far and
// returns the best. Best never decreases within a run.
func (m *Module[B]) FinishVal() float64 {
	_, acc := m.Metrics(PhaseVal)
	m.valAccBest.Update(acc)
	return m.valAccBest.Compute()
}

// BestValAcc returns the best validation accuracy observed so far.
func (m *Module[B]) BestValAcc() float64 {
	return m.valAccBest.Compute()
}

// Samples greedily decodes captions for the first count distinct images of
// the phase's most recent batch, decoding at most maxLen tokens. Rows are
// (image path, decoded caption) pairs; a nil slice means the phase saw no
// batches.
func (m *Module[B]) Samples(phase Phase, count, imageSize, maxLen int) ([][]string, error) {
	paths := m.lastPaths[phase]
	if len(paths) == 0 || count <= 0 {
		return nil, nil
	}

	// prefix expansion repeats each image many times per batch
	distinct := make([]string, 0, count)
	seen := make(map[string]bool, count)
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		distinct = append(distinct, p)
		if len(distinct) == count {
			break
		}
	}

	tape := m.backend.Tape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()
	wasTraining := phase == PhaseTrain
	m.net.SetTraining(false)
	defer m.net.SetTraining(wasTraining)

	rows := make([][]string, 0, len(distinct))
	for _, path := range distinct {
		pixels, err := dataset.LoadImage(path, imageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample image: %w", err)
		}
		img, err := tensor.FromSlice[float32](pixels, dataset.ImageShape(1, imageSize), m.backend)
		if err != nil {
			return nil, fmt.Errorf("failed to create sample tensor: %w", err)
		}
		caption := m.net.GreedySearch(img, m.vocab, maxLen)
		rows = append(rows, []string{path, caption})
	}
	return rows, nil
}
