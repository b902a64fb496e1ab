package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/briefbase/briefbase-go/internal/logging"
	"github.com/briefbase/briefbase-go/internal/rag"
)

// NewIngestCmd constructs the `briefbase ingest` command, which indexes one
// document from a file, a URL, or stdin.
func NewIngestCmd() *cobra.Command {
	var docID string
	var title string
	var filePath string
	var url string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index a document into the search index",
		Long: `Chunk, embed, and store one document. Re-ingesting an existing doc ID
replaces its chunks atomically — readers never see a mix of old and new.

The document body comes from --file, --url, or stdin (in that order of
precedence). When --id is omitted it is derived from the file name or URL.

Environment variables:
  BRIEFBASE_DB         SQLite index path (default: ~/.briefbase/index.db)
  VECTOR_BACKEND       sqlite (default) or qdrant
  EMBEDDING_PROVIDER   ollama (default), openai, azure
  CHUNK_SIZE           characters per chunk (default: 1000)
  CHUNK_OVERLAP        characters shared between chunks (default: 100)

Examples:
  briefbase ingest --file blog/launch-post.md
  briefbase ingest --id style-guide --file docs/style.md --title "Style guide"
  briefbase ingest --url https://example.com/whitepaper --id whitepaper
  cat notes.txt | briefbase ingest --id meeting-notes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			st, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = st.Close() }()

			pipeline, err := buildPipeline(emb, st)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			var result rag.IngestResult
			switch {
			case url != "":
				if docID == "" {
					docID = deriveDocID(url)
				}
				result, err = pipeline.IngestURL(ctx, docID, title, url)

			case filePath != "":
				data, readErr := os.ReadFile(filePath)
				if readErr != nil {
					return fmt.Errorf("ingest: failed to read %s: %w", filePath, readErr)
				}
				if docID == "" {
					docID = deriveDocID(filePath)
				}
				result, err = pipeline.Ingest(ctx, rag.Document{
					ID:      docID,
					Title:   title,
					RawText: string(data),
				})

			default:
				if docID == "" {
					return fmt.Errorf("ingest: --id is required when reading from stdin")
				}
				data, readErr := readAll(cmd)
				if readErr != nil {
					return fmt.Errorf("ingest: failed to read stdin: %w", readErr)
				}
				result, err = pipeline.Ingest(ctx, rag.Document{
					ID:      docID,
					Title:   title,
					RawText: data,
				})
			}
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("document ingested",
				slog.String("doc_id", result.DocID),
				slog.Int("chunks_stored", result.ChunksStored),
			)
			fmt.Printf("ingested %s (%d chunks)\n", result.DocID, result.ChunksStored)
			return nil
		},
	}

	cmd.Flags().StringVar(&docID, "id", "", "Stable document identifier (derived from file/URL when omitted)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Human-readable document title")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Path of the file to index")
	cmd.Flags().StringVarP(&url, "url", "u", "", "URL to fetch and index")

	return cmd
}

// deriveDocID turns a file path or URL into a stable document identifier:
// the last path segment without its extension, lowercased.
func deriveDocID(source string) string {
	base := filepath.Base(strings.TrimRight(source, "/"))
	if i := strings.Index(base, "?"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ToLower(base)
}

// readAll reads the command's stdin to a string.
func readAll(cmd *cobra.Command) (string, error) {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
