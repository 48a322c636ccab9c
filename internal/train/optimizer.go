package train

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/optim"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/caption/internal/config"
)

// Optimizer is an optimizer whose learning rate can be rescheduled mid-run.
type Optimizer interface {
	optim.Optimizer
	SetLR(lr float32)
}

// NewOptimizer builds the configured optimizer over the parameters.
func NewOptimizer[B tensor.Backend](cfg config.OptimizerConfig, params []*nn.Parameter[B], backend B) (Optimizer, error) {
	switch cfg.Name {
	case "adam":
		return optim.NewAdam(params, optim.AdamConfig{
			LR:    float32(cfg.LR),
			Betas: [2]float32{float32(cfg.Beta1), float32(cfg.Beta2)},
			Eps:   1e-8,
		}, backend), nil
	case "sgd":
		return optim.NewSGD(params, optim.SGDConfig{
			LR:       float32(cfg.LR),
			Momentum: float32(cfg.Momentum),
		}, backend), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Name)
	}
}

// Plateau reduces the learning rate by a factor when the monitored value
// stops improving for patience epochs, never below MinLR.
type Plateau struct {
	factor   float64
	patience int
	minLR    float64

	best  float64
	seen  bool
	stall int
}

// NewPlateau creates a scheduler from its config.
func NewPlateau(cfg config.SchedulerConfig) *Plateau {
	return &Plateau{
		factor:   cfg.Factor,
		patience: cfg.Patience,
		minLR:    cfg.MinLR,
	}
}

// Step observes one epoch's monitored value and rescales the optimizer's
// learning rate if the value has stalled. It reports whether a reduction
// happened.
func (p *Plateau) Step(value float64, opt Optimizer) bool {
	if !p.seen || value < p.best {
		p.best = value
		p.seen = true
		p.stall = 0
		return false
	}

	p.stall++
	if p.stall <= p.patience {
		return false
	}

	p.stall = 0
	lr := float64(opt.GetLR()) * p.factor
	if lr < p.minLR {
		lr = p.minLR
	}
	if lr == float64(opt.GetLR()) {
		return false
	}
	opt.SetLR(float32(lr))
	return true
}
