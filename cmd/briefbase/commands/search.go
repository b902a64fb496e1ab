package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/briefbase/briefbase-go/internal/logging"
	"github.com/briefbase/briefbase-go/internal/rag"
)

// NewSearchCmd constructs the `briefbase search` command, which runs a
// semantic query against the index and prints the ranked matches.
func NewSearchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index for chunks similar to a query",
		Long: `Embed the query and return the top-K most similar indexed chunks,
ranked by cosine similarity. Ties are broken deterministically by chunk
position and document ID.

Examples:
  briefbase search "Q3 product launch messaging"
  briefbase search --top-k 10 "pricing page objections"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			query := strings.Join(args, " ")

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			st, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer func() { _ = st.Close() }()

			retriever, err := rag.NewRetriever(emb, st)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			results, err := retriever.Retrieve(ctx, query, topK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(results) == 0 {
				fmt.Println("no matches — is anything ingested yet?")
				return nil
			}

			for i, r := range results {
				fmt.Printf("%2d. [%.4f] %s #%d\n    %s\n",
					i+1, r.Score, r.DocID, r.ChunkIndex, snippet(r.Content, 160))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of results to return")

	return cmd
}

// snippet returns s flattened to one line and truncated to max characters.
func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
