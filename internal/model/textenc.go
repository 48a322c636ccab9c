package model

import (
	"fmt"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/caption/internal/glove"
)

// GloveLSTMConfig configures the text encoder.
type GloveLSTMConfig struct {
	EmbedDim     int     // GloVe vector size (default 200)
	TextFeatures int     // LSTM hidden size (default 256)
	DropoutRate  float32 // dropout after embedding lookup (default 0.5)
}

// withDefaults fills zero fields with the values the pipeline was tuned with.
func (c GloveLSTMConfig) withDefaults() GloveLSTMConfig {
	if c.EmbedDim == 0 {
		c.EmbedDim = glove.DefaultEmbedDim
	}
	if c.TextFeatures == 0 {
		c.TextFeatures = 256
	}
	if c.DropoutRate == 0 {
		c.DropoutRate = 0.5
	}
	return c
}

// GloveLSTM encodes a token sequence into a fixed-size text representation:
// pretrained GloVe embedding lookup, dropout, and an LSTM whose final hidden
// state is the encoding.
//
// The embedding matrix is loaded from the prepared artifact and kept frozen:
// Parameters() exposes only the LSTM weights, so optimizers never touch the
// pretrained vectors.
type GloveLSTM[B tensor.Backend] struct {
	embed *nn.Embedding[B]
	drop  *Dropout[B]
	lstm  *LSTM[B]
	cfg   GloveLSTMConfig
}

// NewGloveLSTM constructs the text encoder, loading the embedding matrix
// artifact from datasetDir.
//
// Fails when the artifact is missing (run "caption prepare" first) or when
// its width does not match cfg.EmbedDim.
func NewGloveLSTM[B tensor.Backend](cfg GloveLSTMConfig, datasetDir string, backend B) (*GloveLSTM[B], error) {
	cfg = cfg.withDefaults()

	weight, err := glove.LoadEmbedding(datasetDir, backend)
	if err != nil {
		return nil, err
	}
	if weight.Shape()[1] != cfg.EmbedDim {
		return nil, fmt.Errorf("embedding matrix dim %d does not match configured embed dim %d", weight.Shape()[1], cfg.EmbedDim)
	}

	return &GloveLSTM[B]{
		embed: nn.NewEmbeddingWithWeight(weight),
		drop:  NewDropout[B](cfg.DropoutRate),
		lstm:  NewLSTM[B](cfg.EmbedDim, cfg.TextFeatures, backend),
		cfg:   cfg,
	}, nil
}

// NewGloveLSTMFromWeight constructs the text encoder from an in-memory
// embedding matrix. Used by tests and by callers that manage artifacts
// themselves.
func NewGloveLSTMFromWeight[B tensor.Backend](cfg GloveLSTMConfig, weight *tensor.Tensor[float32, B], backend B) *GloveLSTM[B] {
	cfg = cfg.withDefaults()
	return &GloveLSTM[B]{
		embed: nn.NewEmbeddingWithWeight(weight),
		drop:  NewDropout[B](cfg.DropoutRate),
		lstm:  NewLSTM[B](cfg.EmbedDim, cfg.TextFeatures, backend),
		cfg:   cfg,
	}
}

// Features returns the size of the text representation.
func (g *GloveLSTM[B]) Features() int {
	return g.cfg.TextFeatures
}

// VocabSize returns the number of rows in the embedding matrix.
func (g *GloveLSTM[B]) VocabSize() int {
	return g.embed.NumEmbed
}

// SetTraining switches dropout between masking and identity.
func (g *GloveLSTM[B]) SetTraining(training bool) {
	g.drop.SetTraining(training)
}

// Forward encodes a time-major index sequence [seq_len, batch] into
// [batch, text_features].
func (g *GloveLSTM[B]) Forward(sequence *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	if len(sequence.Shape()) != 2 {
		panic(fmt.Sprintf("GloveLSTM.Forward: expected 2D input [seq, batch], got shape %v", sequence.Shape()))
	}

	out := g.embed.Forward(sequence) // [seq, batch, embed_dim]
	out = g.drop.Forward(out)
	return g.lstm.Forward(out) // [batch, text_features]
}

// Parameters returns the trainable parameters: the LSTM weights only. The
// pretrained embedding stays frozen.
func (g *GloveLSTM[B]) Parameters() []*nn.Parameter[B] {
	return g.lstm.Parameters()
}

// StateDict returns parameter names to raw tensors, embedding included so a
// checkpoint is self-contained.
func (g *GloveLSTM[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	stateDict["embed.weight"] = g.embed.Weight.Tensor().Raw()
	for name, raw := range g.lstm.StateDict() {
		stateDict["lstm."+name] = raw
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (g *GloveLSTM[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	embedRaw, ok := stateDict["embed.weight"]
	if !ok {
		return fmt.Errorf("missing embed.weight in state dict")
	}
	if !embedRaw.Shape().Equal(g.embed.Weight.Tensor().Shape()) {
		return fmt.Errorf("embed.weight shape mismatch: expected %v, got %v",
			g.embed.Weight.Tensor().Shape(), embedRaw.Shape())
	}
	copy(g.embed.Weight.Tensor().Data(), embedRaw.AsFloat32())

	lstmState := make(map[string]*tensor.RawTensor)
	for name, raw := range stateDict {
		if len(name) > 5 && name[:5] == "lstm." {
			lstmState[name[5:]] = raw
		}
	}
	if err := g.lstm.LoadStateDict(lstmState); err != nil {
		return fmt.Errorf("failed to load lstm: %w", err)
	}
	return nil
}
