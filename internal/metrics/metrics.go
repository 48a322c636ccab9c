// Package metrics provides the accumulate-then-log metric primitives the
// training loop uses: running means for loss, best-value tracking for
// validation accuracy, and multiclass accuracy accumulated across batches.
//
// All metrics follow the same lifecycle: Update per batch, Compute at phase
// end, Reset at phase boundaries.
package metrics

import (
	"fmt"

	"github.com/born-ml/born/tensor"
)

// Mean accumulates a running mean over scalar updates. Used for averaging
// loss across the batches of a phase.
type Mean struct {
	sum   float64
	count int
}

// Update adds one observation.
func (m *Mean) Update(value float64) {
	m.sum += value
	m.count++
}

// Compute returns the mean of all observations since the last Reset, or 0
// when there are none.
func (m *Mean) Compute() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// Count returns the number of observations since the last Reset.
func (m *Mean) Count() int {
	return m.count
}

// Reset clears the accumulator.
func (m *Mean) Reset() {
	m.sum = 0
	m.count = 0
}

// Max tracks the maximum value seen across updates. Used for best-so-far
// validation accuracy: Compute never decreases between Resets.
type Max struct {
	best float64
	seen bool
}

// Update observes a value, keeping it if it beats the current best.
func (m *Max) Update(value float64) {
	if !m.seen || value > m.best {
		m.best = value
		m.seen = true
	}
}

// Compute returns the best value observed since the last Reset, or 0 when
// there are none.
func (m *Max) Compute() float64 {
	if !m.seen {
		return 0
	}
	return m.best
}

// Reset clears the tracker.
func (m *Max) Reset() {
	m.best = 0
	m.seen = false
}

// Accuracy accumulates multiclass accuracy across batches: correct and total
// prediction counts over the full phase, not a mean of per-batch rates, so
// uneven batch sizes do not skew the result.
type Accuracy struct {
	numClasses int
	correct    int
	total      int
}

// NewAccuracy creates an accuracy metric for numClasses classes (the
// vocabulary size for caption training).
func NewAccuracy(numClasses int) *Accuracy {
	if numClasses <= 0 {
		panic(fmt.Sprintf("metrics.NewAccuracy: numClasses must be positive, got %d", numClasses))
	}
	return &Accuracy{numClasses: numClasses}
}

// Update counts correct predictions in one batch of class indices.
//
// Panics when preds and targets differ in length or a value falls outside
// [0, numClasses).
func (a *Accuracy) Update(preds, targets []int32) {
	if len(preds) != len(targets) {
		panic(fmt.Sprintf("metrics.Accuracy: %d predictions vs %d targets", len(preds), len(targets)))
	}
	for i := range preds {
		if preds[i] < 0 || int(preds[i]) >= a.numClasses || targets[i] < 0 || int(targets[i]) >= a.numClasses {
			panic(fmt.Sprintf("metrics.Accuracy: class index out of range [0, %d)", a.numClasses))
		}
		if preds[i] == targets[i] {
			a.correct++
		}
	}
	a.total += len(preds)
}

// UpdateLogits is Update over raw model outputs: predictions are the argmax
// of logits [batch, numClasses] against targets [batch].
func UpdateLogits[B tensor.Backend](
	a *Accuracy,
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) {
	preds := logits.Argmax(1)
	a.Update(preds.Data(), targets.Data())
}

// Compute returns accuracy in [0, 1] since the last Reset, or 0 when no
// predictions were observed.
func (a *Accuracy) Compute() float64 {
	if a.total == 0 {
		return 0
	}
	return float64(a.correct) / float64(a.total)
}

// Reset clears the counts.
func (a *Accuracy) Reset() {
	a.correct = 0
	a.total = 0
}
