package ingestion_engine

import (
	"strings"
)

// Chunker splits text into fixed-size windows that share Overlap characters
// with their predecessor. Sizes count runes, so multi-byte text is never cut
// inside a character.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker requires size > overlap >= 0 so every window advances.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= overlap || overlap < 0 {
		return nil, ErrInvalidChunkConfig
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split emits text[start:start+size] trimmed, advancing by size-overlap until
// start passes the end. Chunks that trim to nothing are dropped. The result
// depends only on (text, size, overlap).
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := c.size - c.overlap

	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+c.size, len(runes))
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}
