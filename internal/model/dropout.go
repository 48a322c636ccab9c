// Package model implements the caption-generation network: a convolutional
// image encoder and a GloVe+LSTM text encoder merged into a next-token
// decoder over the caption vocabulary.
//
// All modules follow Born's nn conventions: generic over tensor.Backend,
// panicking on shape violations in forward paths, returning errors from
// construction and serialization.
package model

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Dropout randomly zeroes elements during training with probability p and
// scales the survivors by 1/(1-p), so evaluation needs no rescaling
// (inverted dropout).
//
// Born does not ship a dropout layer yet, so the pipeline carries its own.
// In evaluation mode Forward is the identity.
type Dropout[B tensor.Backend] struct {
	p        float32
	training bool
	rng      *rand.Rand
}

// NewDropout creates a Dropout layer with drop probability p in [0, 1).
// The layer starts in training mode.
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("Dropout: probability must be in [0, 1), got %v", p))
	}
	//nolint:gosec // math/rand is appropriate for dropout masks
	return &Dropout[B]{p: p, training: true, rng: rand.New(rand.NewSource(rand.Int63()))}
}

// SetTraining switches between training (masking) and evaluation (identity)
// behavior.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Seed reseeds the mask generator, for reproducible tests.
func (d *Dropout[B]) Seed(seed int64) {
	d.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // reproducibility, not security
}

// Forward applies the dropout mask in training mode and passes the input
// through unchanged otherwise.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return input
	}

	scale := 1.0 / (1.0 - d.p)
	maskData := make([]float32, input.NumElements())
	for i := range maskData {
		if d.rng.Float32() >= d.p {
			maskData[i] = scale
		}
	}

	mask, err := tensor.FromSlice[float32](maskData, input.Shape(), input.Backend())
	if err != nil {
		panic(fmt.Sprintf("Dropout: failed to create mask: %v", err))
	}

	return input.Mul(mask)
}

// Parameters returns an empty slice (dropout has no trainable parameters).
func (d *Dropout[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// StateDict returns an empty map (dropout has no state to serialize).
func (d *Dropout[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for dropout.
func (d *Dropout[B]) LoadStateDict(_ map[string]*tensor.RawTensor) error {
	return nil
}
