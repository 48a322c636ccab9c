package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase and wrap",
			input: "A Dog Runs",
			want:  "startseq a dog runs endseq",
		},
		{
			name:  "punctuation stripped",
			input: "a dog, running; fast!",
			want:  "startseq a dog running fast endseq",
		},
		{
			name:  "numeric tokens dropped",
			input: "two dogs 2 dogs",
			want:  "startseq two dogs dogs endseq",
		},
		{
			name:  "mixed alphanumeric tokens dropped",
			input: "dog no1 runs",
			want:  "startseq dog runs endseq",
		},
		{
			name:  "extra whitespace collapsed",
			input: "  a   dog\truns  ",
			want:  "startseq a dog runs endseq",
		},
		{
			name:  "empty caption keeps sentinels",
			input: "...",
			want:  "startseq endseq",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preprocess(tt.input))
		})
	}
}

func TestPreprocessDeterministic(t *testing.T) {
	input := "A man, riding a horse; at high-speed!"
	first := Preprocess(input)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Preprocess(input))
	}
}

func TestPreprocessNoPunctuation(t *testing.T) {
	out := Preprocess(`"Don't stop!" said the child's mother...`)
	for _, tok := range strings.Fields(out) {
		assert.True(t, alphabetic(tok), "token %q should be alphabetic", tok)
	}
}
