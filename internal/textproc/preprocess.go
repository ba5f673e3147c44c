// Package textproc normalizes raw document text before it is handed to an
// embedding model and splits long documents into overlapping word windows.
package textproc

import (
	"regexp"
	"strings"
)

// DefaultMaxChars is the character budget applied by Preprocess when the
// caller passes a non-positive limit.
const DefaultMaxChars = 2000

var (
	spaceRe      = regexp.MustCompile(`\s+`)
	disallowedRe = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.,;:!?]`)
)

// Preprocess collapses whitespace, replaces characters outside of the allowed
// set with spaces, truncates the text to maxChars and lower-cases it.
//
// When truncation is needed the cut is moved back to the last sentence
// boundary if one exists in the trailing 20% of the budget.
func Preprocess(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	text = spaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	text = disallowedRe.ReplaceAllString(text, " ")

	runes := []rune(text)
	if len(runes) > maxChars {
		truncated := runes[:maxChars]
		cut := len(truncated)
		if idx := lastIndexRune(truncated, '.'); idx >= 0 && float64(idx) > float64(maxChars)*0.8 {
			cut = idx + 1
		}
		text = string(truncated[:cut])
	}

	return strings.ToLower(text)
}

// CountWords returns the number of whitespace separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
