package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/briefbase/briefbase-go/internal/briefs"
	"github.com/briefbase/briefbase-go/internal/logging"
	"github.com/briefbase/briefbase-go/internal/provider"
	"github.com/briefbase/briefbase-go/internal/rag"
	"github.com/briefbase/briefbase-go/internal/server"
	"github.com/briefbase/briefbase-go/internal/tracing"
)

// NewServeCmd constructs the `briefbase serve` command, which starts the HTTP
// ingestion and search API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var noBriefs bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the briefbase HTTP API",
		Long: `Start the briefbase HTTP server on localhost.

The server exposes:
  POST /ingest       index a document (chunk, embed, store)
  GET  /search       semantic search over indexed chunks
  POST /api/briefs   generate a cited research brief for a topic
  GET  /api/health   liveness probe
  GET  /api/ready    readiness probe (store + embedder reachability)
  GET  /metrics      Prometheus metrics

Examples:
  briefbase serve
  briefbase serve --port 9090
  VECTOR_BACKEND=qdrant briefbase serve
  briefbase serve --no-briefs   # search-only, no chat model needed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			host, port = resolveBind(cmd, host, port)

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting",
				slog.String("embedding_provider", embeddingBackend()),
				slog.String("vector_backend", getEnvOrDefault("VECTOR_BACKEND", "sqlite")),
			)

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			st, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = st.Close() }()

			pipeline, err := buildPipeline(emb, st)
			if err != nil {
				return fmt.Errorf("serve: failed to create pipeline: %w", err)
			}

			retriever, err := rag.NewRetriever(emb, st)
			if err != nil {
				return fmt.Errorf("serve: failed to create retriever: %w", err)
			}

			// Brief generation needs a chat model. It is optional: a failed
			// provider init degrades the server to search-only rather than
			// refusing to start.
			var briefer *briefs.Generator
			if noBriefs {
				log.Info("brief generation disabled via --no-briefs")
			} else {
				chatModel, cmErr := provider.NewFromEnv(ctx)
				if cmErr != nil {
					log.Warn("brief generation unavailable — chat model init failed",
						slog.Any("error", cmErr),
					)
				} else {
					briefer, err = briefs.NewGenerator(retriever, chatModel, &briefs.Config{
						TopK:             getEnvInt("BRIEF_TOP_K", 0),
						MaxContextTokens: getEnvInt("BRIEF_MAX_CONTEXT_TOKENS", 0),
					})
					if err != nil {
						return fmt.Errorf("serve: failed to create brief generator: %w", err)
					}
					log.Info("brief generator initialised",
						slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")),
					)
				}
			}

			pingers := []server.Pinger{
				server.NewStorePinger(st),
				server.NewEmbedderPinger(emb, server.PingerName(embeddingBackend())),
			}

			cfg := &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("BRIEFBASE_API_KEY"),
			}

			var srv *server.Server
			if briefer != nil {
				srv, err = server.New(pipeline, retriever, briefer, cfg)
			} else {
				srv, err = server.New(pipeline, retriever, nil, cfg)
			}
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().BoolVar(&noBriefs, "no-briefs", false, "Disable brief generation (no chat model required)")

	return cmd
}

// resolveBind applies SERVER_HOST / SERVER_PORT from the environment (set by
// the YAML config layer when the server section is present) for any bind flag
// the user did not pass explicitly. Flags always win over config.
func resolveBind(cmd *cobra.Command, host string, port int) (string, int) {
	if !cmd.Flags().Changed("host") {
		host = getEnvOrDefault("SERVER_HOST", host)
	}
	if !cmd.Flags().Changed("port") {
		port = getEnvInt("SERVER_PORT", port)
	}
	return host, port
}
