package glove

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	v := Build([]string{
		"startseq a dog runs endseq",
		"startseq a cat sleeps endseq",
	})

	// Index 0 is padding; words follow in first-seen order.
	assert.Equal(t, PadWord, v.Word(0))
	assert.Equal(t, "startseq", v.Word(1))
	assert.Equal(t, "a", v.Word(2))
	assert.Equal(t, "dog", v.Word(3))

	// pad + startseq, a, dog, runs, endseq, cat, sleeps
	assert.Equal(t, 8, v.Size())
	assert.Equal(t, 5, v.MaxLen())
}

func TestBuildDeterministic(t *testing.T) {
	captions := []string{
		"startseq the quick brown fox endseq",
		"startseq the lazy dog endseq",
	}
	a := Build(captions)
	b := Build(captions)

	require.Equal(t, a.Size(), b.Size())
	for id := int32(0); int(id) < a.Size(); id++ {
		assert.Equal(t, a.Word(id), b.Word(id))
	}
}

func TestEncodeDecode(t *testing.T) {
	v := Build([]string{"startseq a dog runs endseq"})

	ids := v.Encode("startseq a dog endseq")
	require.Len(t, ids, 4)
	assert.Equal(t, []string{"startseq", "a", "dog", "endseq"}, v.Decode(ids))
}

func TestEncodeSkipsUnknown(t *testing.T) {
	v := Build([]string{"startseq a dog endseq"})

	ids := v.Encode("startseq a zebra endseq")
	assert.Len(t, ids, 3, "unknown words are dropped, not mapped to padding")
	for _, id := range ids {
		assert.NotZero(t, id)
	}
}

func TestDecodeDropsPadding(t *testing.T) {
	v := Build([]string{"startseq a dog endseq"})

	id, ok := v.Index("dog")
	require.True(t, ok)
	assert.Equal(t, []string{"dog"}, v.Decode([]int32{0, 0, id}))
}

func TestWordOutOfRange(t *testing.T) {
	v := Build(nil)
	assert.Equal(t, "", v.Word(99))
	assert.Equal(t, "", v.Word(-1))
}
