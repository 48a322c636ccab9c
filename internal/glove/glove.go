package glove

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultEmbedDim matches the glove.6B.200d distribution the pipeline was
// tuned with.
const DefaultEmbedDim = 200

// ParseEmbeddings reads GloVe text-format vectors and assembles the
// embedding matrix for vocab.
//
// Each input line is "word v1 v2 ... vDim". Words outside the vocabulary are
// ignored; vocabulary words missing from the GloVe file keep a zero row.
// The returned slice has length vocab.Size()*dim, row-major.
func ParseEmbeddings(r io.Reader, vocab *Vocabulary, dim int) ([]float32, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}

	matrix := make([]float32, vocab.Size()*dim)

	scanner := bufio.NewScanner(r)
	// GloVe lines for large dims exceed the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != dim+1 {
			return nil, fmt.Errorf("malformed vector at line %d: got %d values, want %d", line, len(fields)-1, dim)
		}

		id, ok := vocab.Index(fields[0])
		if !ok {
			continue
		}

		row := matrix[int(id)*dim : (int(id)+1)*dim]
		for i, field := range fields[1:] {
			val, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid value at line %d, column %d: %w", line, i+2, err)
			}
			row[i] = float32(val)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read embeddings: %w", err)
	}

	return matrix, nil
}

// ParseEmbeddingsFile is ParseEmbeddings reading from a file path.
func ParseEmbeddingsFile(path string, vocab *Vocabulary, dim int) ([]float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embeddings file: %w", err)
	}
	defer file.Close()
	return ParseEmbeddings(file, vocab, dim)
}
