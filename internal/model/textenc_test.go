package model

import (
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
)

func TestGloveLSTMForwardShape(t *testing.T) {
	backend := cpu.New()
	weight := tensor.Randn[float32](tensor.Shape{10, testEmbedDim}, backend)

	enc := NewGloveLSTMFromWeight(GloveLSTMConfig{
		EmbedDim:     testEmbedDim,
		TextFeatures: testFeatures,
	}, weight, backend)
	enc.SetTraining(false)

	seq := tensor.Zeros[int32](tensor.Shape{5, 3}, backend)
	out := enc.Forward(seq)

	assert.Equal(t, []int{3, testFeatures}, []int(out.Shape()))
	assert.Equal(t, testFeatures, enc.Features())
	assert.Equal(t, 10, enc.VocabSize())
}

func TestGloveLSTMEmbeddingFrozen(t *testing.T) {
	backend := cpu.New()
	weight := tensor.Randn[float32](tensor.Shape{10, testEmbedDim}, backend)

	enc := NewGloveLSTMFromWeight(GloveLSTMConfig{
		EmbedDim:     testEmbedDim,
		TextFeatures: testFeatures,
	}, weight, backend)

	for _, p := range enc.Parameters() {
		assert.NotContains(t, p.Name(), "embed",
			"the pretrained embedding must not be exposed to the optimizer")
	}

	// The embedding still round-trips through the state dict.
	_, ok := enc.StateDict()["embed.weight"]
	assert.True(t, ok)
}

func TestImageEncoderForwardShape(t *testing.T) {
	backend := cpu.New()
	enc := NewImageEncoder[*cpu.Backend](ImageEncoderConfig{
		ImageSize:     testImageSize,
		ImageFeatures: testFeatures,
	}, backend)
	enc.SetTraining(false)

	in := tensor.Randn[float32](tensor.Shape{2, 3, testImageSize, testImageSize}, backend)
	out := enc.Forward(in)
	assert.Equal(t, []int{2, testFeatures}, []int(out.Shape()))
}
