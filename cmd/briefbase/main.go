// Command briefbase is the entry point for the briefbase retrieval service.
// It provides a CLI interface (via Cobra) and an HTTP server that exposes the
// document ingestion and semantic search API.
package main

import (
	"fmt"
	"os"

	"github.com/briefbase/briefbase-go/cmd/briefbase/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
