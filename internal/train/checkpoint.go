package train

import (
	"fmt"

	"github.com/born-ml/born/loader"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/caption/internal/safetensors"
)

// stateDictModule is any module that round-trips its parameters through a
// state dictionary.
type stateDictModule interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// SaveWeights writes the module's state dictionary to path as SafeTensors.
func SaveWeights(path string, module stateDictModule, metadata map[string]string) error {
	state := module.StateDict()
	entries := make([]safetensors.Entry, 0, len(state))
	for name, raw := range state {
		entries = append(entries, safetensors.Entry{
			Name:  name,
			Shape: []int(raw.Shape()),
			Data:  raw.AsFloat32(),
		})
	}
	if err := safetensors.Write(path, entries, metadata); err != nil {
		return fmt.Errorf("failed to save weights: %w", err)
	}
	return nil
}

// LoadWeights reads a SafeTensors weight file into the module. Every tensor
// in the file is loaded; the module rejects missing or misshaped entries.
func LoadWeights[B tensor.Backend](path string, module stateDictModule, backend B) error {
	model, err := loader.OpenModel(path)
	if err != nil {
		return fmt.Errorf("failed to open weights %s: %w", path, err)
	}
	defer model.Close()

	state := make(map[string]*tensor.RawTensor)
	for _, name := range model.TensorNames() {
		raw, err := model.LoadTensor(name, backend)
		if err != nil {
			return fmt.Errorf("failed to load tensor %s from %s: %w", name, path, err)
		}
		state[name] = raw
	}

	if err := module.LoadStateDict(state); err != nil {
		return fmt.Errorf("failed to restore weights from %s: %w", path, err)
	}
	return nil
}
