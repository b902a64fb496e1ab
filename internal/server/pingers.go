package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/briefbase/briefbase-go/internal/rag"
)

// StorePinger probes a chunk store that reports its own reachability.
// Both the SQLite and Qdrant stores satisfy the embedded interface.
type StorePinger struct {
	// store is the chunk store to probe.
	store interface {
		Ping(ctx context.Context) error
		Name() string
	}
}

// NewStorePinger constructs a StorePinger for the given store.
func NewStorePinger(store interface {
	Ping(ctx context.Context) error
	Name() string
}) *StorePinger {
	return &StorePinger{store: store}
}

// Name returns the store's dependency label (e.g. "sqlite", "qdrant").
func (p *StorePinger) Name() string { return p.store.Name() }

// Ping delegates to the store's own reachability check.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

// EmbedderPinger probes the embedding backend by embedding a single short
// string. Embedding calls are cheap compared to chat completions, so this is
// an acceptable readiness cost.
type EmbedderPinger struct {
	// embedder is the embedding backend to probe.
	embedder rag.Embedder
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder and
// backend name.
func NewEmbedderPinger(e rag.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds one token and verifies a non-empty vector comes back.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}

// PingerName derives a readiness label from the embedding backend env setting,
// falling back to "embedder" when unset.
func PingerName(backend string) string {
	backend = strings.TrimSpace(strings.ToLower(backend))
	if backend == "" {
		return "embedder"
	}
	return backend
}
