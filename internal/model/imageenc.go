package model

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// ImageEncoderConfig configures the convolutional image encoder.
type ImageEncoderConfig struct {
	ImageSize     int     // input side length (default 299)
	ImageFeatures int     // output feature size (default 256)
	DropoutRate   float32 // dropout before the projection (default 0.5)
}

func (c ImageEncoderConfig) withDefaults() ImageEncoderConfig {
	if c.ImageSize == 0 {
		c.ImageSize = 299
	}
	if c.ImageFeatures == 0 {
		c.ImageFeatures = 256
	}
	if c.DropoutRate == 0 {
		c.DropoutRate = 0.5
	}
	return c
}

// ImageEncoder maps an RGB image batch [batch, 3, size, size] to a feature
// vector [batch, image_features]: two strided conv/pool blocks followed by a
// dropout-regularized linear projection.
type ImageEncoder[B tensor.Backend] struct {
	conv1 *nn.Conv2D[B]
	pool1 *nn.MaxPool2D[B]
	conv2 *nn.Conv2D[B]
	pool2 *nn.MaxPool2D[B]
	relu  *nn.ReLU[B]
	drop  *Dropout[B]
	proj  *nn.Linear[B]

	cfg     ImageEncoderConfig
	flatDim int
}

// NewImageEncoder creates the encoder for cfg.ImageSize inputs.
func NewImageEncoder[B tensor.Backend](cfg ImageEncoderConfig, backend B) *ImageEncoder[B] {
	cfg = cfg.withDefaults()

	// Spatial dims through the stack: conv k3 s2 p1, pool k2 s2, twice.
	convOut := func(in int) int { return (in+2-3)/2 + 1 }
	poolOut := func(in int) int { return (in-2)/2 + 1 }
	side := poolOut(convOut(cfg.ImageSize))
	side = poolOut(convOut(side))
	flatDim := 32 * side * side

	return &ImageEncoder[B]{
		conv1:   nn.NewConv2D[B](3, 16, 3, 3, 2, 1, true, backend),
		pool1:   nn.NewMaxPool2D[B](2, 2, backend),
		conv2:   nn.NewConv2D[B](16, 32, 3, 3, 2, 1, true, backend),
		pool2:   nn.NewMaxPool2D[B](2, 2, backend),
		relu:    nn.NewReLU[B](),
		drop:    NewDropout[B](cfg.DropoutRate),
		proj:    nn.NewLinear[B](flatDim, cfg.ImageFeatures, backend),
		cfg:     cfg,
		flatDim: flatDim,
	}
}

// Features returns the output feature size.
func (e *ImageEncoder[B]) Features() int {
	return e.cfg.ImageFeatures
}

// SetTraining switches dropout between masking and identity.
func (e *ImageEncoder[B]) SetTraining(training bool) {
	e.drop.SetTraining(training)
}

// Forward encodes [batch, 3, size, size] images into
// [batch, image_features].
func (e *ImageEncoder[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != 3 {
		panic(fmt.Sprintf("ImageEncoder.Forward: expected input [batch, 3, H, W], got shape %v", shape))
	}

	x := e.relu.Forward(e.conv1.Forward(input))
	x = e.pool1.Forward(x)
	x = e.relu.Forward(e.conv2.Forward(x))
	x = e.pool2.Forward(x)

	x = x.Reshape(shape[0], e.flatDim)
	x = e.drop.Forward(x)
	return e.relu.Forward(e.proj.Forward(x))
}

// Parameters returns all trainable parameters.
func (e *ImageEncoder[B]) Parameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0)
	params = append(params, e.conv1.Parameters()...)
	params = append(params, e.conv2.Parameters()...)
	params = append(params, e.proj.Parameters()...)
	return params
}

// StateDict returns a map of parameter names to raw tensors.
func (e *ImageEncoder[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for name, raw := range e.conv1.StateDict() {
		stateDict["conv1."+name] = raw
	}
	for name, raw := range e.conv2.StateDict() {
		stateDict["conv2."+name] = raw
	}
	for name, raw := range e.proj.StateDict() {
		stateDict["proj."+name] = raw
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (e *ImageEncoder[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for prefix, mod := range map[string]interface {
		LoadStateDict(map[string]*tensor.RawTensor) error
	}{
		"conv1.": e.conv1,
		"conv2.": e.conv2,
		"proj.":  e.proj,
	} {
		sub := make(map[string]*tensor.RawTensor)
		for name, raw := range stateDict {
			if len(name) > len(prefix) && name[:len(prefix)] == prefix {
				sub[name[len(prefix):]] = raw
			}
		}
		if err := mod.LoadStateDict(sub); err != nil {
			return fmt.Errorf("failed to load %s: %w", prefix[:len(prefix)-1], err)
		}
	}
	return nil
}
