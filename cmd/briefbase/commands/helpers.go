package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/briefbase/briefbase-go/internal/embedder"
	"github.com/briefbase/briefbase-go/internal/ingest"
	"github.com/briefbase/briefbase-go/internal/rag"
	"github.com/briefbase/briefbase-go/internal/store"
)

// pingableStore is the store surface the commands need: the full ChunkStore
// plus the reachability probe used by readiness checks.
type pingableStore interface {
	rag.ChunkStore
	Ping(ctx context.Context) error
	Name() string
}

// buildStore opens the chunk store selected by VECTOR_BACKEND: the embedded
// SQLite index (default) or a Qdrant cluster. The caller owns Close.
func buildStore(ctx context.Context, log *slog.Logger) (pingableStore, error) {
	backend := getEnvOrDefault("VECTOR_BACKEND", "sqlite")

	switch backend {
	case "sqlite":
		dbPath := os.Getenv("BRIEFBASE_DB")
		if dbPath == "" {
			var err error
			dbPath, err = store.DefaultDBPath()
			if err != nil {
				return nil, fmt.Errorf("could not resolve default DB path: %w", err)
			}
		}
		st, err := store.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open index at %s: %w", dbPath, err)
		}
		log.Info("sqlite index opened", slog.String("path", dbPath))
		return st, nil

	case "qdrant":
		host := getEnvOrDefault("QDRANT_HOST", "localhost")
		port := getEnvInt("QDRANT_PORT", 6334)
		collection := getEnvOrDefault("QDRANT_COLLECTION", "briefbase-chunks")
		embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
		vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

		st, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       host,
			Port:       port,
			Collection: collection,
			VectorSize: vectorSize,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
		}
		log.Info("qdrant store ready",
			slog.String("host", host),
			slog.Int("port", port),
			slog.String("collection", collection),
		)
		return st, nil

	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND %q — valid values: sqlite, qdrant", backend)
	}
}

// buildEmbedder validates the embedding configuration and constructs the
// retrying embedder from the environment.
func buildEmbedder(log *slog.Logger) (rag.Embedder, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("provider", embeddingBackend()))
	return emb, nil
}

// buildPipeline constructs the ingestion pipeline with chunking parameters
// from CHUNK_SIZE / CHUNK_OVERLAP.
func buildPipeline(emb rag.Embedder, st rag.ChunkStore) (*ingest.Pipeline, error) {
	return ingest.NewPipeline(emb, st, &ingest.Config{
		ChunkSize:    getEnvInt("CHUNK_SIZE", 0),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 0),
	})
}

// embeddingBackend resolves the effective embedding backend name.
func embeddingBackend() string {
	return getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
