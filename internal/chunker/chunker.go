// Package chunker splits raw document text into bounded, overlapping segments
// suitable for embedding. Splitting is a pure function of its inputs: the same
// text and parameters always produce the same chunk boundaries, so re-ingesting
// a document never shifts its chunk identities.
package chunker

import (
	"fmt"

	"github.com/briefbase/briefbase-go/internal/rag"
)

// Chunk is one contiguous slice of a document's text. Offsets are byte
// offsets into the source string, so Content == text[Start:End] holds for any
// input; a boundary may fall inside a multi-byte rune for non-ASCII text.
type Chunk struct {
	// Index is the zero-based ordinal position within the document.
	Index int

	// Start is the byte offset of the chunk's first byte in the source text.
	Start int

	// End is the byte offset one past the chunk's last byte.
	// Invariant: 0 <= Start < End <= len(text).
	End int

	// Content is the literal substring text[Start:End].
	Content string
}

// Config holds the chunking parameters.
type Config struct {
	// Size is the target maximum number of bytes per chunk. Must be > 0.
	Size int

	// Overlap is the number of bytes shared between consecutive chunks.
	// Must satisfy 0 <= Overlap < Size. Overlap preserves context that would
	// otherwise be lost when text is split mid-sentence, improving retrieval
	// recall at chunk boundaries.
	Overlap int
}

// Validate checks the chunking parameters, returning rag.ErrInvalidConfig
// (wrapped) when they cannot produce a terminating chunk sequence.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunker: size must be > 0, got %d: %w", c.Size, rag.ErrInvalidConfig)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunker: overlap must be >= 0, got %d: %w", c.Overlap, rag.ErrInvalidConfig)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("chunker: overlap %d must be smaller than size %d: %w", c.Overlap, c.Size, rag.ErrInvalidConfig)
	}
	return nil
}

// Split divides text into chunks of at most cfg.Size bytes where each chunk
// after the first starts cfg.Overlap bytes before the previous chunk's end
// (clamped so every chunk starts at least one byte after its predecessor).
// The chunks cover the full text with no gaps and the final chunk always ends
// at len(text).
//
// Empty text yields zero chunks and no error. Text shorter than cfg.Size
// yields exactly one chunk spanning the whole text.
func Split(text string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(text) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	start := 0
	for {
		end := start + cfg.Size
		if end > len(text) {
			end = len(text)
		}

		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Start:   start,
			End:     end,
			Content: text[start:end],
		})

		if end == len(text) {
			return chunks, nil
		}

		next := end - cfg.Overlap
		if next <= start {
			// Guarantee forward progress for degenerate size/overlap pairs.
			next = start + 1
		}
		start = next
	}
}
