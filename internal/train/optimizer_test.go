package train

import (
	"testing"

	"github.com/born-ml/born/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/caption/internal/config"
)

// fakeOpt records learning rate changes without touching parameters.
type fakeOpt struct {
	lr    float32
	steps int
}

func (f *fakeOpt) Step(map[*tensor.RawTensor]*tensor.RawTensor) { f.steps++ }
func (f *fakeOpt) ZeroGrad()                                    {}
func (f *fakeOpt) GetLR() float32                               { return f.lr }
func (f *fakeOpt) SetLR(lr float32)                             { f.lr = lr }

func TestPlateauReducesAfterPatience(t *testing.T) {
	sched := NewPlateau(config.SchedulerConfig{Factor: 0.1, Patience: 2, MinLR: 1e-6})
	opt := &fakeOpt{lr: 1.0}

	assert.False(t, sched.Step(1.0, opt), "first observation sets the baseline")
	assert.False(t, sched.Step(1.0, opt), "stall 1 of patience 2")
	assert.False(t, sched.Step(1.0, opt), "stall 2 of patience 2")
	assert.True(t, sched.Step(1.0, opt), "stall 3 exceeds patience")
	assert.InDelta(t, 0.1, float64(opt.lr), 1e-9)
}

func TestPlateauResetsOnImprovement(t *testing.T) {
	sched := NewPlateau(config.SchedulerConfig{Factor: 0.5, Patience: 1, MinLR: 1e-6})
	opt := &fakeOpt{lr: 1.0}

	sched.Step(1.0, opt)
	sched.Step(1.0, opt)
	assert.False(t, sched.Step(0.5, opt), "improvement clears the stall counter")
	sched.Step(0.6, opt)
	assert.False(t, sched.Step(0.6, opt), "one stall within patience")
	assert.InDelta(t, 1.0, float64(opt.lr), 1e-9)
}

func TestPlateauRespectsMinLR(t *testing.T) {
	sched := NewPlateau(config.SchedulerConfig{Factor: 0.1, Patience: 0, MinLR: 0.05})
	opt := &fakeOpt{lr: 0.1}

	sched.Step(1.0, opt)
	assert.True(t, sched.Step(1.0, opt))
	assert.InDelta(t, 0.05, float64(opt.lr), 1e-9, "reduction clamps at min_lr")

	assert.False(t, sched.Step(1.0, opt), "at min_lr there is nothing left to reduce")
	assert.InDelta(t, 0.05, float64(opt.lr), 1e-9)
}

func TestNewOptimizer(t *testing.T) {
	backend := testBackend()

	adam, err := NewOptimizer(config.OptimizerConfig{Name: "adam", LR: 0.01, Beta1: 0.9, Beta2: 0.999}, nil, backend)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, float64(adam.GetLR()), 1e-9)

	sgd, err := NewOptimizer(config.OptimizerConfig{Name: "sgd", LR: 0.1, Momentum: 0.9}, nil, backend)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, float64(sgd.GetLR()), 1e-9)

	_, err = NewOptimizer(config.OptimizerConfig{Name: "adagrad", LR: 0.1}, nil, backend)
	assert.Error(t, err)
}
