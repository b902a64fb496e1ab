// Package briefs turns retrieval results into research briefs: the generator
// retrieves grounding evidence for a topic, fits it into the model's context
// budget, and prompts an LLM to draft a brief whose claims cite the evidence
// chunks they came from. This is the primary consumer of the retrieval core.
package briefs

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/briefbase/briefbase-go/internal/budget"
	"github.com/briefbase/briefbase-go/internal/rag"
)

// systemPrompt instructs the model to stay inside the provided evidence and
// cite every claim with the bracketed evidence numbers.
const systemPrompt = `You are a research assistant for a content-marketing team.
Write a concise research brief on the given topic using ONLY the numbered
evidence excerpts provided. Every factual claim must cite its supporting
excerpt with its bracketed number, e.g. [2]. If the evidence does not cover
an aspect of the topic, say so rather than inventing facts.`

// Citation links one claim-supporting excerpt back to its stored chunk.
type Citation struct {
	// Ref is the bracketed number used in the brief text (1-based).
	Ref int `json:"ref"`

	// DocID identifies the source document.
	DocID string `json:"doc_id"`

	// ChunkIndex is the chunk's position within the source document.
	ChunkIndex int `json:"chunk_index"`

	// Excerpt is the chunk text the model was shown.
	Excerpt string `json:"excerpt"`

	// Score is the retrieval similarity score for this excerpt.
	Score float64 `json:"score"`
}

// Brief is a generated research brief with its grounding evidence.
type Brief struct {
	// Topic is the caller-supplied subject of the brief.
	Topic string `json:"topic"`

	// Content is the model-written brief text with inline [n] citations.
	Content string `json:"content"`

	// Citations lists the evidence excerpts in the order they were numbered.
	Citations []Citation `json:"citations"`
}

// Config holds the generator settings.
type Config struct {
	// TopK is the number of chunks retrieved per topic. Defaults to 8 if zero.
	TopK int

	// MaxContextTokens caps the estimated prompt size. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Generator produces grounded research briefs from a retriever and a chat model.
type Generator struct {
	// retriever supplies the grounding evidence.
	retriever rag.Retriever

	// chatModel drafts the brief text.
	chatModel model.BaseChatModel

	// cfg holds the resolved generator configuration.
	cfg *Config
}

// NewGenerator constructs a Generator from the given retriever and chat model.
func NewGenerator(retriever rag.Retriever, chatModel model.BaseChatModel, cfg *Config) (*Generator, error) {
	if retriever == nil {
		return nil, fmt.Errorf("briefs: retriever must not be nil")
	}
	if chatModel == nil {
		return nil, fmt.Errorf("briefs: chat model must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 8
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	return &Generator{retriever: retriever, chatModel: chatModel, cfg: cfg}, nil
}

// Generate retrieves evidence for topic and drafts a cited brief.
// A topic with no retrievable evidence fails — a brief with zero grounding
// would be indistinguishable from model hallucination.
func (g *Generator) Generate(ctx context.Context, topic string) (*Brief, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("briefs: topic must not be empty: %w", rag.ErrInvalidConfig)
	}

	results, err := g.retriever.Retrieve(ctx, topic, g.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("briefs: retrieval failed for %q: %w", topic, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("briefs: no evidence found for %q — ingest sources first", topic)
	}

	reserved := budget.Estimate(systemPrompt) + budget.Estimate(topic)
	evidence := budget.TrimEvidence(results, reserved, g.cfg.MaxContextTokens)
	if len(evidence) == 0 {
		return nil, fmt.Errorf("briefs: evidence for %q does not fit the context budget", topic)
	}

	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(renderPrompt(topic, evidence)),
	}

	resp, err := g.chatModel.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("briefs: generation failed for %q: %w", topic, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("briefs: model returned an empty brief for %q", topic)
	}

	citations := make([]Citation, 0, len(evidence))
	for i, r := range evidence {
		citations = append(citations, Citation{
			Ref:        i + 1,
			DocID:      r.DocID,
			ChunkIndex: r.ChunkIndex,
			Excerpt:    r.Content,
			Score:      r.Score,
		})
	}

	return &Brief{
		Topic:     topic,
		Content:   resp.Content,
		Citations: citations,
	}, nil
}

// renderPrompt formats the topic and numbered evidence block for the model.
func renderPrompt(topic string, evidence []rag.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\nEvidence:\n", topic)
	for i, r := range evidence {
		fmt.Fprintf(&b, "[%d] (doc %s, chunk %d) %s\n\n", i+1, r.DocID, r.ChunkIndex, r.Content)
	}
	b.WriteString("Write the brief now.")
	return b.String()
}
