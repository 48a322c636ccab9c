package model

import (
	"testing"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ones(t *testing.T, n int) *tensor.Tensor[float32, *cpu.Backend] {
	t.Helper()
	data := make([]float32, n)
	for i := range data {
		data[i] = 1
	}
	out, err := tensor.FromSlice(data, tensor.Shape{n}, cpu.New())
	require.NoError(t, err)
	return out
}

func TestDropoutEvalIsIdentity(t *testing.T) {
	d := NewDropout[*cpu.Backend](0.5)
	d.SetTraining(false)

	in := ones(t, 64)
	out := d.Forward(in)
	assert.Equal(t, in.Data(), out.Data())
}

func TestDropoutTrainMasksAndScales(t *testing.T) {
	d := NewDropout[*cpu.Backend](0.5)
	d.Seed(1)

	out := d.Forward(ones(t, 1024))

	zeros, scaled := 0, 0
	for _, v := range out.Data() {
		switch v {
		case 0:
			zeros++
		case 2:
			scaled++
		default:
			t.Fatalf("unexpected value %v: inverted dropout yields 0 or 1/(1-p)", v)
		}
	}
	// Roughly half should drop; allow a wide margin for mask randomness.
	assert.Greater(t, zeros, 256)
	assert.Greater(t, scaled, 256)
}

func TestDropoutZeroRate(t *testing.T) {
	d := NewDropout[*cpu.Backend](0)
	in := ones(t, 8)
	assert.Equal(t, in.Data(), d.Forward(in).Data())
}

func TestNewDropoutInvalidRate(t *testing.T) {
	assert.Panics(t, func() { NewDropout[*cpu.Backend](1) })
	assert.Panics(t, func() { NewDropout[*cpu.Backend](-0.1) })
}
