package commands

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/briefbase/briefbase-go/internal/briefs"
	"github.com/briefbase/briefbase-go/internal/logging"
	"github.com/briefbase/briefbase-go/internal/provider"
	"github.com/briefbase/briefbase-go/internal/rag"
	"github.com/briefbase/briefbase-go/internal/tracing"
)

// NewBriefCmd constructs the `briefbase brief` command, which generates a
// cited research brief for a topic from the indexed content.
func NewBriefCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "brief <topic>",
		Short: "Generate a cited research brief for a topic",
		Long: `Retrieve the most relevant indexed chunks for the topic and prompt the
configured chat model (MODEL_PROVIDER) to draft a research brief. Every
claim in the brief cites the evidence chunk it came from.

Examples:
  briefbase brief "developer onboarding friction"
  MODEL_PROVIDER=openai briefbase brief --top-k 12 "competitor pricing moves"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			topic := strings.Join(args, " ")

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
			}

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("brief: %w", err)
			}

			st, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("brief: %w", err)
			}
			defer func() { _ = st.Close() }()

			retriever, err := rag.NewRetriever(emb, st)
			if err != nil {
				return fmt.Errorf("brief: %w", err)
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("brief: failed to initialise model provider: %w", err)
			}

			generator, err := briefs.NewGenerator(retriever, chatModel, &briefs.Config{
				TopK:             topK,
				MaxContextTokens: getEnvInt("BRIEF_MAX_CONTEXT_TOKENS", 0),
			})
			if err != nil {
				return fmt.Errorf("brief: %w", err)
			}

			brief, err := generator.Generate(ctx, topic)
			if err != nil {
				return fmt.Errorf("brief: %w", err)
			}

			fmt.Println(brief.Content)
			fmt.Println("\nSources:")
			for _, c := range brief.Citations {
				fmt.Printf("  [%d] %s #%d (score %.4f)\n", c.Ref, c.DocID, c.ChunkIndex, c.Score)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 8, "Number of evidence chunks to retrieve")

	return cmd
}
