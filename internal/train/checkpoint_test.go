package train

import (
	"path/filepath"
	"testing"

	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/caption/internal/dataset"
)

func TestWeightsRoundTrip(t *testing.T) {
	src, backend := newTestModule(t)
	dst, _ := newTestModule(t)

	path := filepath.Join(t.TempDir(), "weights.safetensors")
	require.NoError(t, SaveWeights(path, src.Net(), map[string]string{"epoch": "3"}))
	require.NoError(t, LoadWeights(path, dst.Net(), backend))

	src.Net().SetTraining(false)
	dst.Net().SetTraining(false)

	images := tensor.Randn[float32](dataset.ImageShape(2, testImageSize), backend)
	seqs := tensor.Zeros[int32](tensor.Shape{4, 2}, backend)

	assert.InDeltaSlice(t,
		src.Net().Forward(images, seqs).Data(),
		dst.Net().Forward(images, seqs).Data(), 1e-5)
}

func TestLoadWeightsMissingFile(t *testing.T) {
	m, backend := newTestModule(t)
	err := LoadWeights(filepath.Join(t.TempDir(), "nope.safetensors"), m.Net(), backend)
	assert.Error(t, err)
}
