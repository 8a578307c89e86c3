// Package main provides the CLI entry point for the ayd RAG service.
//
// ayd ingests documents into a pgvector-backed index, answers questions
// against that index with a language model, and evaluates pipeline quality
// with an LLM-as-judge scoring run.
//
// # Basic Usage
//
// Ingest documents:
//
//	ayd ingest --index tenant-a docs/report.md docs/notes.txt
//
// Ask a question:
//
//	ayd query --index tenant-a "what does the report conclude?"
//
// Evaluate a retrieval workflow:
//
//	ayd eval --index tenant-a --workflow selfcheck
//
// # Environment Variables
//
//   - AYD_CONFIG: Path to configuration file (default: ayd.yaml)
//   - OPENAI_API_KEY: API key, expanded inside the config file
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := buildRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ayd",
		Short: "ayd - retrieval-augmented generation service",
		Long: `ayd ingests documents into a vector index, answers queries by
retrieving relevant chunks and invoking a language model, and evaluates
pipeline quality against a synthetic Q&A set.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildIngestCmd(),
		buildQueryCmd(),
		buildEvalCmd(),
		buildCollectionCmd(),
	)

	return rootCmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("AYD_CONFIG"); env != "" {
		return env
	}
	return "ayd.yaml"
}
