package glove

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmbeddings(t *testing.T) {
	v := Build([]string{"startseq a dog endseq"})
	glove := strings.Join([]string{
		"a 0.1 0.2",
		"dog 0.3 0.4",
		"zebra 0.5 0.6", // not in vocabulary, ignored
	}, "\n")

	matrix, err := ParseEmbeddings(strings.NewReader(glove), v, 2)
	require.NoError(t, err)
	require.Len(t, matrix, v.Size()*2)

	aID, _ := v.Index("a")
	assert.Equal(t, []float32{0.1, 0.2}, matrix[aID*2:aID*2+2])

	dogID, _ := v.Index("dog")
	assert.Equal(t, []float32{0.3, 0.4}, matrix[dogID*2:dogID*2+2])

	// Vocabulary words absent from the GloVe file keep zero rows, as does
	// the padding slot.
	startID, _ := v.Index("startseq")
	assert.Equal(t, []float32{0, 0}, matrix[startID*2:startID*2+2])
	assert.Equal(t, []float32{0, 0}, matrix[0:2])
}

func TestParseEmbeddingsMalformed(t *testing.T) {
	v := Build([]string{"startseq a endseq"})

	_, err := ParseEmbeddings(strings.NewReader("a 0.1 0.2 0.3"), v, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")

	_, err = ParseEmbeddings(strings.NewReader("a 0.1 oops"), v, 2)
	require.Error(t, err)
}

func TestParseEmbeddingsBadDim(t *testing.T) {
	v := Build(nil)
	_, err := ParseEmbeddings(strings.NewReader(""), v, 0)
	assert.Error(t, err)
}

func TestParseEmbeddingsSkipsBlankLines(t *testing.T) {
	v := Build([]string{"startseq a endseq"})

	matrix, err := ParseEmbeddings(strings.NewReader("\na 1 2\n\n"), v, 2)
	require.NoError(t, err)

	aID, _ := v.Index("a")
	assert.Equal(t, []float32{1, 2}, matrix[aID*2:aID*2+2])
}
