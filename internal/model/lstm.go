package model

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// LSTM is a single-layer long short-term memory recurrent layer.
//
// Born's nn package has no recurrent modules, so this layer is built from
// Born primitives. Per timestep t, with input x_t and previous state
// (h_{t-1}, c_{t-1}):
//
//	i_t = sigmoid(x_t @ Wi^T + h_{t-1} @ Ui^T + bi)   // input gate
//	f_t = sigmoid(x_t @ Wf^T + h_{t-1} @ Uf^T + bf)   // forget gate
//	g_t = tanh   (x_t @ Wg^T + h_{t-1} @ Ug^T + bg)   // cell candidate
//	o_t = sigmoid(x_t @ Wo^T + h_{t-1} @ Uo^T + bo)   // output gate
//	c_t = f_t * c_{t-1} + i_t * g_t
//	h_t = o_t * tanh(c_t)
//
// Input is time-major: [seq_len, batch, input_size]. Forward returns the
// final hidden state h_T with shape [batch, hidden_size], which is what the
// text encoder consumes.
//
// Weights use Xavier initialization like Born's Linear; biases start at zero.
type LSTM[B tensor.Backend] struct {
	inputSize  int
	hiddenSize int

	// Input projections, each [hidden_size, input_size].
	wi, wf, wg, wo *nn.Parameter[B]
	// Recurrent projections, each [hidden_size, hidden_size].
	ui, uf, ug, uo *nn.Parameter[B]
	// Gate biases, each [hidden_size].
	bi, bf, bg, bo *nn.Parameter[B]

	sigmoid *nn.Sigmoid[B]
	tanh    *nn.Tanh[B]
	backend B
}

// NewLSTM creates an LSTM layer.
func NewLSTM[B tensor.Backend](inputSize, hiddenSize int, backend B) *LSTM[B] {
	if inputSize <= 0 || hiddenSize <= 0 {
		panic(fmt.Sprintf("LSTM: sizes must be positive, got input=%d hidden=%d", inputSize, hiddenSize))
	}

	inW := func(name string) *nn.Parameter[B] {
		shape := tensor.Shape{hiddenSize, inputSize}
		return nn.NewParameter(name, nn.Xavier(inputSize, hiddenSize, shape, backend))
	}
	recW := func(name string) *nn.Parameter[B] {
		shape := tensor.Shape{hiddenSize, hiddenSize}
		return nn.NewParameter(name, nn.Xavier(hiddenSize, hiddenSize, shape, backend))
	}
	bias := func(name string) *nn.Parameter[B] {
		return nn.NewParameter(name, nn.Zeros(tensor.Shape{hiddenSize}, backend))
	}

	return &LSTM[B]{
		inputSize:  inputSize,
		hiddenSize: hiddenSize,
		wi:         inW("weight_ii"),
		wf:         inW("weight_if"),
		wg:         inW("weight_ig"),
		wo:         inW("weight_io"),
		ui:         recW("weight_hi"),
		uf:         recW("weight_hf"),
		ug:         recW("weight_hg"),
		uo:         recW("weight_ho"),
		bi:         bias("bias_i"),
		bf:         bias("bias_f"),
		bg:         bias("bias_g"),
		bo:         bias("bias_o"),
		sigmoid:    nn.NewSigmoid[B](),
		tanh:       nn.NewTanh[B](),
		backend:    backend,
	}
}

// HiddenSize returns the hidden state dimension.
func (l *LSTM[B]) HiddenSize() int {
	return l.hiddenSize
}

// Forward runs the recurrence over a time-major input
// [seq_len, batch, input_size] and returns the final hidden state
// [batch, hidden_size].
func (l *LSTM[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("LSTM.Forward: expected 3D input [seq, batch, features], got shape %v", shape))
	}
	if shape[2] != l.inputSize {
		panic(fmt.Sprintf("LSTM.Forward: expected input size %d, got %d", l.inputSize, shape[2]))
	}

	seqLen, batch := shape[0], shape[1]

	h := tensor.Zeros[float32](tensor.Shape{batch, l.hiddenSize}, input.Backend())
	c := tensor.Zeros[float32](tensor.Shape{batch, l.hiddenSize}, input.Backend())

	steps := input.Chunk(seqLen, 0)
	for _, step := range steps {
		x := step.Squeeze(0) // [batch, input_size]

		i := l.sigmoid.Forward(l.gate(x, h, l.wi, l.ui, l.bi))
		f := l.sigmoid.Forward(l.gate(x, h, l.wf, l.uf, l.bf))
		g := l.tanh.Forward(l.gate(x, h, l.wg, l.ug, l.bg))
		o := l.sigmoid.Forward(l.gate(x, h, l.wo, l.uo, l.bo))

		c = f.Mul(c).Add(i.Mul(g))
		h = o.Mul(l.tanh.Forward(c))
	}

	return h
}

// gate computes x @ W^T + h @ U^T + b for one gate.
func (l *LSTM[B]) gate(x, h *tensor.Tensor[float32, B], w, u, b *nn.Parameter[B]) *tensor.Tensor[float32, B] {
	xw := x.MatMul(w.Tensor().Transpose())
	hu := h.MatMul(u.Tensor().Transpose())
	return xw.Add(hu).Add(b.Tensor())
}

// Parameters returns all trainable parameters.
func (l *LSTM[B]) Parameters() []*nn.Parameter[B] {
	return []*nn.Parameter[B]{
		l.wi, l.wf, l.wg, l.wo,
		l.ui, l.uf, l.ug, l.uo,
		l.bi, l.bf, l.bg, l.bo,
	}
}

// StateDict returns a map of parameter names to raw tensors.
func (l *LSTM[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, p := range l.Parameters() {
		stateDict[p.Name()] = p.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (l *LSTM[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, p := range l.Parameters() {
		raw, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("missing %s in state dict", p.Name())
		}
		if !raw.Shape().Equal(p.Tensor().Shape()) {
			return fmt.Errorf("%s shape mismatch: expected %v, got %v", p.Name(), p.Tensor().Shape(), raw.Shape())
		}
		copy(p.Tensor().Data(), raw.AsFloat32())
	}
	return nil
}
