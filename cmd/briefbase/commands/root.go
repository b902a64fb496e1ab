// Package commands defines all Cobra CLI commands for the briefbase binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/briefbase/briefbase-go/internal/audit"
	"github.com/briefbase/briefbase-go/internal/config"
	"github.com/briefbase/briefbase-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "briefbase",
		Short: "briefbase — retrieval-backed research briefs for content teams",
		Long: `briefbase indexes your published content and internal documents into a
semantic search index, then answers queries and drafts research briefs
grounded in that content.

Documents are chunked with overlap, embedded via a configurable provider
(ollama, openai, azure), and stored in an embedded SQLite index or a Qdrant
cluster (VECTOR_BACKEND=qdrant).

Configuration comes from environment variables or a YAML config file
(~/.briefbase/config.yaml). See 'briefbase --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.briefbase/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewBriefCmd(),
		NewVersionCmd(),
	)

	return root
}
