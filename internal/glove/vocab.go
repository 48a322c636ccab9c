// Package glove builds and persists the precomputed text artifacts the
// caption model consumes: a word vocabulary derived from the caption corpus
// and a pretrained GloVe embedding matrix aligned to it.
//
// Both artifacts are produced offline by the prepare step and must exist
// before model construction. Construction fails fast with an instruction to
// run prepare when they are missing.
package glove

import (
	"strings"
)

// PadWord occupies vocabulary index 0 so that sequence padding never
// collides with a real word.
const PadWord = "<pad>"

// Vocabulary maps caption words to dense indices and back.
//
// Index 0 is reserved for padding. Words are indexed in first-seen corpus
// order, which keeps vocabulary construction deterministic for a fixed
// caption table.
type Vocabulary struct {
	words  []string
	index  map[string]int32
	maxLen int
}

// Build constructs a vocabulary from preprocessed captions.
//
// Captions are split on spaces; every distinct token (including the
// start/end sentinels) receives an index in first-seen order. maxLen records
// the longest caption in tokens, which sizes the padded training sequences.
func Build(captions []string) *Vocabulary {
	v := &Vocabulary{
		words: []string{PadWord},
		index: map[string]int32{PadWord: 0},
	}

	for _, caption := range captions {
		tokens := strings.Fields(caption)
		if len(tokens) > v.maxLen {
			v.maxLen = len(tokens)
		}
		for _, tok := range tokens {
			if _, ok := v.index[tok]; ok {
				continue
			}
			v.index[tok] = int32(len(v.words))
			v.words = append(v.words, tok)
		}
	}

	return v
}

// Size returns the number of vocabulary entries including the padding slot.
// This is the scalar persisted alongside the embedding matrix and consumed
// to size the classification metrics.
func (v *Vocabulary) Size() int {
	return len(v.words)
}

// MaxLen returns the longest caption length, in tokens, seen during Build.
func (v *Vocabulary) MaxLen() int {
	return v.maxLen
}

// Index returns the index for word, and whether the word is known.
func (v *Vocabulary) Index(word string) (int32, bool) {
	id, ok := v.index[word]
	return id, ok
}

// Word returns the word at index id, or the empty string when id is out of
// range.
func (v *Vocabulary) Word(id int32) string {
	if id < 0 || int(id) >= len(v.words) {
		return ""
	}
	return v.words[id]
}

// Encode maps a preprocessed caption to vocabulary indices. Unknown words
// are skipped, matching the behavior of the tokenizer the artifacts were
// prepared with.
func (v *Vocabulary) Encode(caption string) []int32 {
	tokens := strings.Fields(caption)
	ids := make([]int32, 0, len(tokens))
	for _, tok := range tokens {
		if id, ok := v.index[tok]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Decode maps indices back to words, dropping padding.
func (v *Vocabulary) Decode(ids []int32) []string {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if w := v.Word(id); w != "" {
			words = append(words, w)
		}
	}
	return words
}
