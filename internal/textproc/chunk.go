package textproc

import "strings"

const (
	// DefaultChunkWords matches the maximum sequence length of the default model.
	DefaultChunkWords = 512
	// DefaultChunkOverlap is the number of words shared by adjacent chunks.
	DefaultChunkOverlap = 50
)

// Chunk is a contiguous slice of a document's words.
type Chunk struct {
	// Start is the index of the first word of the chunk in the document.
	Start int
	Words []string
}

// Text joins the chunk words with single spaces.
func (c Chunk) Text() string {
	return strings.Join(c.Words, " ")
}

// End returns the index one past the last word of the chunk.
func (c Chunk) End() int {
	return c.Start + len(c.Words)
}

// Split breaks text into windows of at most maxWords words. Adjacent windows
// share overlapWords words. A text that fits into one window is returned as a
// single chunk; an empty text yields no chunks.
func Split(text string, maxWords, overlapWords int) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	if maxWords <= 0 {
		maxWords = DefaultChunkWords
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	if overlapWords >= maxWords {
		overlapWords = maxWords - 1
	}

	if len(words) <= maxWords {
		return []Chunk{{Start: 0, Words: words}}
	}

	step := maxWords - overlapWords
	chunks := make([]Chunk, 0, len(words)/step+1)
	for start := 0; ; start += step {
		end := min(start+maxWords, len(words))
		chunks = append(chunks, Chunk{Start: start, Words: words[start:end]})
		if end == len(words) {
			break
		}
	}

	return chunks
}

// Texts returns the text of every chunk produced by Split.
func Texts(text string, maxWords, overlapWords int) []string {
	chunks := Split(text, maxWords, overlapWords)
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text())
	}
	return texts
}
