// Package budget provides token budget estimation and evidence trimming for
// the brief generator. Because briefbase supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/briefbase/briefbase-go/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving room
	// for the generated brief itself.
	DefaultMaxContextTokens = 6000

	// perChunkOverhead covers the citation header and framing each evidence
	// chunk gets when rendered into the prompt.
	perChunkOverhead = 16
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TrimEvidence drops retrieved chunks from the tail of results until the
// estimated token count of reservedTokens (system prompt + question) plus the
// remaining evidence fits within maxTokens. Results are expected in ranked
// order, so trimming removes the least relevant evidence first.
//
// If even a single chunk does not fit, the empty slice is returned — the
// generator should fail loudly rather than prompt with truncated evidence.
func TrimEvidence(results []rag.SearchResult, reservedTokens, maxTokens int) []rag.SearchResult {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}

	total := reservedTokens
	kept := make([]rag.SearchResult, 0, len(results))
	for _, r := range results {
		cost := Estimate(r.Content) + perChunkOverhead
		if total+cost > maxTokens {
			break
		}
		total += cost
		kept = append(kept, r)
	}
	return kept
}
