package model

import (
	"strings"
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/caption/internal/dataset"
	"github.com/born-ml/caption/internal/glove"
)

const (
	testImageSize = 16
	testEmbedDim  = 6
	testFeatures  = 8
)

// newTestNet builds a small caption network over an in-memory embedding.
func newTestNet(t *testing.T) (*CaptionNet[*cpu.Backend], *glove.Vocabulary, *cpu.Backend) {
	t.Helper()

	backend := cpu.New()
	vocab := glove.Build([]string{
		"startseq a dog runs endseq",
		"startseq a cat sleeps endseq",
	})

	weight := tensor.Randn[float32](tensor.Shape{vocab.Size(), testEmbedDim}, backend)
	net, err := NewCaptionNetFromWeight(CaptionNetConfig{
		Image: ImageEncoderConfig{
			ImageSize:     testImageSize,
			ImageFeatures: testFeatures,
		},
		Text: GloveLSTMConfig{
			EmbedDim:     testEmbedDim,
			TextFeatures: testFeatures,
		},
	}, weight, backend)
	require.NoError(t, err)
	net.SetTraining(false)
	return net, vocab, backend
}

func TestCaptionNetForwardShape(t *testing.T) {
	net, vocab, backend := newTestNet(t)

	const batch, seqLen = 3, 5
	images := tensor.Randn[float32](dataset.ImageShape(batch, testImageSize), backend)
	seqs := tensor.Zeros[int32](tensor.Shape{seqLen, batch}, backend)

	logits := net.Forward(images, seqs)
	assert.Equal(t, []int{batch, vocab.Size()}, []int(logits.Shape()))
}

func TestCaptionNetFeatureMismatch(t *testing.T) {
	backend := cpu.New()
	weight := tensor.Randn[float32](tensor.Shape{4, testEmbedDim}, backend)

	_, err := NewCaptionNetFromWeight(CaptionNetConfig{
		Image: ImageEncoderConfig{ImageSize: testImageSize, ImageFeatures: 8},
		Text:  GloveLSTMConfig{EmbedDim: testEmbedDim, TextFeatures: 16},
	}, weight, backend)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must match")
}

func TestCaptionNetMissingArtifacts(t *testing.T) {
	_, err := NewCaptionNet[*cpu.Backend](CaptionNetConfig{
		Image: ImageEncoderConfig{ImageSize: testImageSize, ImageFeatures: testFeatures},
		Text:  GloveLSTMConfig{EmbedDim: testEmbedDim, TextFeatures: testFeatures},
	}, t.TempDir(), cpu.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "caption prepare",
		"construction without prepared artifacts must point at the prepare step")
}

func TestGreedySearch(t *testing.T) {
	net, vocab, backend := newTestNet(t)

	image := tensor.Randn[float32](dataset.ImageShape(1, testImageSize), backend)
	caption := net.GreedySearch(image, vocab, vocab.MaxLen())

	words := strings.Fields(caption)
	assert.LessOrEqual(t, len(words), vocab.MaxLen())
	for _, w := range words {
		assert.NotEqual(t, dataset.StartToken, w)
		assert.NotEqual(t, dataset.EndToken, w)
		assert.NotEqual(t, glove.PadWord, w)
		_, known := vocab.Index(w)
		assert.True(t, known, "decoded word %q must come from the vocabulary", w)
	}
}

func TestGreedySearchDeterministic(t *testing.T) {
	net, vocab, backend := newTestNet(t)

	image := tensor.Randn[float32](dataset.ImageShape(1, testImageSize), backend)
	first := net.GreedySearch(image, vocab, vocab.MaxLen())
	second := net.GreedySearch(image, vocab, vocab.MaxLen())
	assert.Equal(t, first, second)
}

func TestGreedySearchValidation(t *testing.T) {
	net, vocab, backend := newTestNet(t)

	batch := tensor.Randn[float32](dataset.ImageShape(2, testImageSize), backend)
	assert.Panics(t, func() { net.GreedySearch(batch, vocab, 5) },
		"decoding is defined for a single image")
}

func TestCaptionNetStateDictRoundTrip(t *testing.T) {
	net, _, backend := newTestNet(t)
	other, _, _ := newTestNet(t)

	require.NoError(t, other.LoadStateDict(net.StateDict()))

	images := tensor.Randn[float32](dataset.ImageShape(2, testImageSize), backend)
	seqs := tensor.Zeros[int32](tensor.Shape{4, 2}, backend)

	assert.InDeltaSlice(t,
		net.Forward(images, seqs).Data(),
		other.Forward(images, seqs).Data(), 1e-5)
}

func TestCaptionNetParametersExcludeEmbedding(t *testing.T) {
	net, _, _ := newTestNet(t)

	for _, p := range net.Parameters() {
		assert.NotContains(t, p.Name(), "embed",
			"the pretrained embedding must stay frozen")
	}
}
