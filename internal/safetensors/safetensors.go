// Package safetensors writes float32 tensors in the SafeTensors format, the
// format Born's model loader reads back.
//
// File layout:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw bytes, little endian]
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// Entry is one named tensor to write.
type Entry struct {
	Name  string
	Shape []int
	Data  []float32
}

type headerEntry struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Write writes the tensors to path. Entries are laid out in name order so
// the output is deterministic; metadata may be nil.
func Write(path string, entries []Entry, metadata map[string]string) error {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	header := make(map[string]any, len(sorted)+1)
	if metadata != nil {
		header["__metadata__"] = metadata
	}

	var offset int64
	for _, e := range sorted {
		want := 1
		for _, dim := range e.Shape {
			want *= dim
		}
		if len(e.Data) != want {
			return fmt.Errorf("tensor %q has %d values, want %d for shape %v", e.Name, len(e.Data), want, e.Shape)
		}
		if _, dup := header[e.Name]; dup {
			return fmt.Errorf("duplicate tensor name %q", e.Name)
		}

		byteSize := int64(len(e.Data)) * 4
		header[e.Name] = headerEntry{
			DType:       "F32",
			Shape:       e.Shape,
			DataOffsets: [2]int64{offset, offset + byteSize},
		}
		offset += byteSize
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := binary.Write(file, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range sorted {
		data := make([]byte, len(e.Data)*4)
		for i, v := range e.Data {
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
		}
		if _, err := file.Write(data); err != nil {
			return fmt.Errorf("failed to write tensor %q: %w", e.Name, err)
		}
	}
	return nil
}
