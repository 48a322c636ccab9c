package dataset

import (
	"strings"
	"unicode"
)

// Sentinel tokens marking caption boundaries for the sequence model.
const (
	StartToken = "startseq"
	EndToken   = "endseq"
)

// CaptionsPerImage is the fixed number of caption rows per image in the
// Flickr caption tables.
const CaptionsPerImage = 5

// Preprocess normalizes a raw caption into the token stream the text encoder
// consumes.
//
// Steps, in order:
//  1. Drop every rune that is not a letter, digit, or whitespace.
//  2. Split on whitespace.
//  3. Lowercase each token.
//  4. Drop tokens containing anything but letters (numbers, mixed tokens).
//  5. Wrap the result with StartToken / EndToken.
//
// The transformation is deterministic: the same raw text always yields the
// same output. It is applied exactly once, at load time, by Open.
func Preprocess(text string) string {
	var filtered strings.Builder
	filtered.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			filtered.WriteRune(r)
		}
	}

	tokens := strings.Fields(filtered.String())
	words := make([]string, 0, len(tokens)+2)
	words = append(words, StartToken)
	for _, tok := range tokens {
		if !alphabetic(tok) {
			continue
		}
		words = append(words, strings.ToLower(tok))
	}
	words = append(words, EndToken)

	return strings.Join(words, " ")
}

// alphabetic reports whether s is non-empty and contains letters only.
func alphabetic(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
