package glove

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/born-ml/born/loader"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/caption/internal/safetensors"
)

// Artifact filenames under the dataset directory.
const (
	EmbeddingFile = "embedding_matrix.safetensors"
	VocabFile     = "vocab.json"
)

// EmbeddingTensor is the tensor name the embedding matrix is stored under.
const EmbeddingTensor = "embedding.weight"

// prepareHint is appended to missing-artifact errors so the user knows which
// step produces the files.
const prepareHint = `run "caption prepare" first`

// vocabFile is the on-disk JSON layout of the vocabulary artifact. Size is
// persisted explicitly: the training module reads it without rebuilding the
// word list.
type vocabFile struct {
	Size   int      `json:"size"`
	MaxLen int      `json:"max_len"`
	Words  []string `json:"words"`
}

// SaveVocabulary writes the vocabulary artifact to dir.
func SaveVocabulary(dir string, v *Vocabulary) error {
	data, err := json.MarshalIndent(vocabFile{
		Size:   v.Size(),
		MaxLen: v.MaxLen(),
		Words:  v.words,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode vocabulary: %w", err)
	}
	path := filepath.Join(dir, VocabFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write vocabulary: %w", err)
	}
	return nil
}

// LoadVocabulary reads the vocabulary artifact from dir.
//
// A missing file is a construction error: the artifacts are built offline by
// the prepare step.
func LoadVocabulary(dir string) (*Vocabulary, error) {
	path := filepath.Join(dir, VocabFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("vocabulary artifact %s does not exist: %s", path, prepareHint)
		}
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}

	var vf vocabFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("failed to decode vocabulary %s: %w", path, err)
	}
	if len(vf.Words) != vf.Size {
		return nil, fmt.Errorf("corrupt vocabulary %s: size %d but %d words", path, vf.Size, len(vf.Words))
	}

	v := &Vocabulary{
		words:  vf.Words,
		index:  make(map[string]int32, len(vf.Words)),
		maxLen: vf.MaxLen,
	}
	for i, w := range vf.Words {
		v.index[w] = int32(i)
	}
	return v, nil
}

// VocabSize reads only the persisted vocabulary-size scalar from dir.
func VocabSize(dir string) (int, error) {
	v, err := LoadVocabulary(dir)
	if err != nil {
		return 0, err
	}
	return v.Size(), nil
}

// SaveEmbedding writes the embedding matrix artifact to dir in SafeTensors
// format, readable by Born's model loader.
func SaveEmbedding(dir string, matrix []float32, vocabSize, dim int) error {
	if len(matrix) != vocabSize*dim {
		return fmt.Errorf("embedding matrix has %d values, want %d (%d x %d)", len(matrix), vocabSize*dim, vocabSize, dim)
	}

	path := filepath.Join(dir, EmbeddingFile)
	err := safetensors.Write(path, []safetensors.Entry{{
		Name:  EmbeddingTensor,
		Shape: []int{vocabSize, dim},
		Data:  matrix,
	}}, map[string]string{"producer": "caption prepare"})
	if err != nil {
		return fmt.Errorf("failed to write embedding artifact: %w", err)
	}
	return nil
}

// LoadEmbedding reads the embedding matrix artifact from dir as a tensor on
// backend.
//
// A missing file is a construction error instructing the user to run the
// prepare step, mirroring the vocabulary artifact.
func LoadEmbedding[B tensor.Backend](dir string, backend B) (*tensor.Tensor[float32, B], error) {
	path := filepath.Join(dir, EmbeddingFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("embedding artifact %s does not exist: %s", path, prepareHint)
	}

	model, err := loader.OpenModel(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding artifact: %w", err)
	}
	defer model.Close()

	raw, err := model.LoadTensor(EmbeddingTensor, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s from %s: %w", EmbeddingTensor, path, err)
	}
	if len(raw.Shape()) != 2 {
		return nil, fmt.Errorf("embedding matrix must be 2D, got shape %v", raw.Shape())
	}

	return tensor.New[float32, B](raw, backend), nil
}
