package model

import (
	"fmt"
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/caption/internal/dataset"
	"github.com/born-ml/caption/internal/glove"
)

// CaptionNetConfig configures the full caption-generation network.
type CaptionNetConfig struct {
	Image ImageEncoderConfig
	Text  GloveLSTMConfig

	// VocabSize sizes the output logits. Zero means "use the embedding
	// matrix row count".
	VocabSize int
}

// CaptionNet is the merge-architecture caption generator: image features and
// text features are added, passed through a hidden layer, and projected to
// next-token logits over the vocabulary.
type CaptionNet[B tensor.Backend] struct {
	image *ImageEncoder[B]
	text  *GloveLSTM[B]
	relu  *nn.ReLU[B]
	fc    *nn.Linear[B]
	out   *nn.Linear[B]

	vocabSize int
}

// NewCaptionNet constructs the network, loading the text encoder's embedding
// artifact from datasetDir. Fails fast when the artifact is missing.
func NewCaptionNet[B tensor.Backend](cfg CaptionNetConfig, datasetDir string, backend B) (*CaptionNet[B], error) {
	text, err := NewGloveLSTM[B](cfg.Text, datasetDir, backend)
	if err != nil {
		return nil, err
	}
	return newCaptionNet(cfg, text, backend)
}

// NewCaptionNetFromWeight constructs the network from an in-memory embedding
// matrix, bypassing artifact loading. Used by tests.
func NewCaptionNetFromWeight[B tensor.Backend](cfg CaptionNetConfig, weight *tensor.Tensor[float32, B], backend B) (*CaptionNet[B], error) {
	return newCaptionNet(cfg, NewGloveLSTMFromWeight(cfg.Text, weight, backend), backend)
}

func newCaptionNet[B tensor.Backend](cfg CaptionNetConfig, text *GloveLSTM[B], backend B) (*CaptionNet[B], error) {
	image := NewImageEncoder[B](cfg.Image, backend)
	if image.Features() != text.Features() {
		return nil, fmt.Errorf("image features (%d) and text features (%d) must match for the merge step",
			image.Features(), text.Features())
	}

	vocabSize := cfg.VocabSize
	if vocabSize == 0 {
		vocabSize = text.VocabSize()
	}

	features := text.Features()
	return &CaptionNet[B]{
		image:     image,
		text:      text,
		relu:      nn.NewReLU[B](),
		fc:        nn.NewLinear[B](features, features, backend),
		out:       nn.NewLinear[B](features, vocabSize, backend),
		vocabSize: vocabSize,
	}, nil
}

// VocabSize returns the size of the output distribution.
func (n *CaptionNet[B]) VocabSize() int {
	return n.vocabSize
}

// SetTraining propagates train/eval mode to the dropout layers.
func (n *CaptionNet[B]) SetTraining(training bool) {
	n.image.SetTraining(training)
	n.text.SetTraining(training)
}

// Forward computes next-token logits [batch, vocab_size] from an image batch
// [batch, 3, H, W] and a time-major token sequence [seq_len, batch].
func (n *CaptionNet[B]) Forward(
	image *tensor.Tensor[float32, B],
	sequence *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	imgFeat := n.image.Forward(image)   // [batch, features]
	txtFeat := n.text.Forward(sequence) // [batch, features]

	merged := n.relu.Forward(n.fc.Forward(imgFeat.Add(txtFeat)))
	return n.out.Forward(merged)
}

// GreedySearch decodes a caption for a single image [1, 3, H, W]: starting
// from the start sentinel, it repeatedly picks the highest-probability next
// token until the end sentinel or maxLen tokens.
//
// Sequences are pre-padded to maxLen with the padding index, matching how
// training sequences are laid out. Returns the decoded words without
// sentinels, joined by spaces.
func (n *CaptionNet[B]) GreedySearch(image *tensor.Tensor[float32, B], vocab *glove.Vocabulary, maxLen int) string {
	if shape := image.Shape(); len(shape) != 4 || shape[0] != 1 {
		panic(fmt.Sprintf("GreedySearch: expected a single image [1, 3, H, W], got shape %v", shape))
	}

	startID, ok := vocab.Index(dataset.StartToken)
	if !ok {
		panic(fmt.Sprintf("GreedySearch: vocabulary is missing %q", dataset.StartToken))
	}
	endID, _ := vocab.Index(dataset.EndToken)

	prefix := []int32{startID}
	words := make([]string, 0, maxLen)

	for step := 0; step < maxLen; step++ {
		seqData := make([]int32, maxLen)
		copy(seqData[maxLen-len(prefix):], prefix) // pre-padding

		seq, err := tensor.FromSlice[int32](seqData, tensor.Shape{maxLen, 1}, image.Backend())
		if err != nil {
			panic(fmt.Sprintf("GreedySearch: failed to create sequence: %v", err))
		}

		logits := n.Forward(image, seq) // [1, vocab_size]
		next := logits.Argmax(1).At(0)

		if next == endID {
			break
		}
		prefix = append(prefix, next)
		if len(prefix) > maxLen {
			break
		}
		if w := vocab.Word(next); w != "" && w != glove.PadWord {
			words = append(words, w)
		}
	}

	return strings.Join(words, " ")
}

// Parameters returns all trainable parameters (the frozen embedding
// excluded).
func (n *CaptionNet[B]) Parameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0)
	params = append(params, n.image.Parameters()...)
	params = append(params, n.text.Parameters()...)
	params = append(params, n.fc.Parameters()...)
	params = append(params, n.out.Parameters()...)
	return params
}

// StateDict returns a map of parameter names to raw tensors.
func (n *CaptionNet[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for name, raw := range n.image.StateDict() {
		stateDict["image."+name] = raw
	}
	for name, raw := range n.text.StateDict() {
		stateDict["text."+name] = raw
	}
	for name, raw := range n.fc.StateDict() {
		stateDict["fc."+name] = raw
	}
	for name, raw := range n.out.StateDict() {
		stateDict["out."+name] = raw
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (n *CaptionNet[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	split := func(prefix string) map[string]*tensor.RawTensor {
		sub := make(map[string]*tensor.RawTensor)
		for name, raw := range stateDict {
			if strings.HasPrefix(name, prefix) {
				sub[name[len(prefix):]] = raw
			}
		}
		return sub
	}

	if err := n.image.LoadStateDict(split("image.")); err != nil {
		return fmt.Errorf("failed to load image encoder: %w", err)
	}
	if err := n.text.LoadStateDict(split("text.")); err != nil {
		return fmt.Errorf("failed to load text encoder: %w", err)
	}
	if err := n.fc.LoadStateDict(split("fc.")); err != nil {
		return fmt.Errorf("failed to load fc: %w", err)
	}
	if err := n.out.LoadStateDict(split("out.")); err != nil {
		return fmt.Errorf("failed to load out: %w", err)
	}
	return nil
}
