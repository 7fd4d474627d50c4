package usecases

import (
	"fmt"
	"strings"

	"github.com/0xcro3dile/sibila-go/internal/domain/entities"
)

// DefaultMaxChars is the default chunk window in characters.
const DefaultMaxChars = 1500

// DefaultOverlap is the default number of characters shared by consecutive chunks.
const DefaultOverlap = 150

// Chunker splits normalized text into overlapping fixed-size windows.
type Chunker struct {
	maxChars int
	overlap  int
}

// NewChunker validates the window. Zero values select the defaults;
// anything violating 0 <= overlap < maxChars is rejected.
func NewChunker(maxChars, overlap int) (*Chunker, error) {
	if maxChars == 0 {
		maxChars = DefaultMaxChars
		if overlap == 0 {
			overlap = DefaultOverlap
		}
	}
	if maxChars < 0 || overlap < 0 || overlap >= maxChars {
		return nil, fmt.Errorf("%w: chunk window max_chars=%d overlap=%d", entities.ErrInvalidInput, maxChars, overlap)
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}, nil
}

// MaxChars returns the window size.
func (c *Chunker) MaxChars() int { return c.maxChars }

// Overlap returns the overlap size.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks text with the configured window.
func (c *Chunker) Split(text string) []string {
	return ChunkText(text, c.maxChars, c.overlap)
}

// ChunkText splits text into windows of at most maxChars characters where
// each window starts overlap characters before the previous one ended.
// Lengths are counted in runes. Blank text yields no chunks.
// Callers must guarantee 0 <= overlap < maxChars (see NewChunker).
func ChunkText(text string, maxChars, overlap int) []string {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}
	runes := []rune(t)
	n := len(runes)

	var chunks []string
	start := 0
	for start < n {
		end := start + maxChars
		if end > n {
			end = n
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}
