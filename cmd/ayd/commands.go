// commands.go contains the cobra command definitions and their flag
// configurations. Each builder creates a command and wires it to its
// handler in handlers.go.
package main

import (
	"github.com/spf13/cobra"
)

func buildIngestCmd() *cobra.Command {
	var (
		configPath   string
		index        string
		preprocessed bool
		noCorrection bool
		archive      bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest documents into the vector index",
		Long: `Parse, chunk, quality-gate, embed, and store documents.

Chunks that fail the lexicon quality gate are rewritten by the correction
model before indexing. Pass --preprocessed for CSV exports that are already
chunked; those skip parsing, sanitization, and correction.`,
		Example: `  # Ingest two documents for one tenant index
  ayd ingest --index tenant-a report.md notes.txt

  # Ingest an already-chunked CSV export
  ayd ingest --index tenant-a --preprocessed chunks.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), ingestOptions{
				configPath:   resolveConfigPath(configPath),
				index:        index,
				paths:        args,
				preprocessed: preprocessed,
				noCorrection: noCorrection,
				archive:      archive,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&index, "index", "i", "", "Collection index the documents belong to")
	cmd.Flags().BoolVar(&preprocessed, "preprocessed", false, "Treat inputs as already-chunked CSV exports")
	cmd.Flags().BoolVar(&noCorrection, "no-correction", false, "Skip the quality gate and correction pass")
	cmd.Flags().BoolVar(&archive, "archive", false, "Also upload the raw files to object storage")
	cmd.MarkFlagRequired("index")

	return cmd
}

func buildQueryCmd() *cobra.Command {
	var (
		configPath string
		index      string
		workflow   string
		topK       int
		showSource bool
	)

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Answer a question against the vector index",
		Example: `  # Direct retrieval and generation
  ayd query --index tenant-a "what does the report conclude?"

  # Self-checking workflow
  ayd query --index tenant-a --workflow selfcheck "who signed the contract?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), queryOptions{
				configPath: resolveConfigPath(configPath),
				index:      index,
				workflow:   workflow,
				question:   args[0],
				topK:       topK,
				showSource: showSource,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&index, "index", "i", "", "Collection index to search")
	cmd.Flags().StringVarP(&workflow, "workflow", "w", "direct", "Retrieval workflow: direct or selfcheck")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default from config)")
	cmd.Flags().BoolVar(&showSource, "sources", false, "Print the retrieved source chunks")
	cmd.MarkFlagRequired("index")

	return cmd
}

func buildEvalCmd() *cobra.Command {
	var (
		configPath string
		index      string
		workflow   string
		samples    int
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a retrieval workflow against a synthetic Q&A set",
		Long: `Build a synthetic question/answer set from stored chunks, run the
workflow over it, and score retrieval, faithfulness, and correctness.
Results are printed and recorded to the tracking server when configured.`,
		Example: `  ayd eval --index tenant-a --workflow direct --samples 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), evalOptions{
				configPath: resolveConfigPath(configPath),
				index:      index,
				workflow:   workflow,
				samples:    samples,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&index, "index", "i", "", "Collection index to evaluate")
	cmd.Flags().StringVarP(&workflow, "workflow", "w", "direct", "Retrieval workflow: direct or selfcheck")
	cmd.Flags().IntVarP(&samples, "samples", "n", 30, "Number of source chunks to sample")
	cmd.MarkFlagRequired("index")

	return cmd
}

func buildCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage the vector collection",
	}
	cmd.AddCommand(buildCollectionIndexCmd(), buildCollectionClearCmd())
	return cmd
}

func buildCollectionIndexCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "create-index [field]",
		Short: "Create a payload field index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionIndex(cmd.Context(), resolveConfigPath(configPath), args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func buildCollectionClearCmd() *cobra.Command {
	var (
		configPath string
		index      string
		purge      bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all records for one collection index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionClear(cmd.Context(), resolveConfigPath(configPath), index, purge)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&index, "index", "i", "", "Collection index to clear")
	cmd.Flags().BoolVar(&purge, "purge-files", false, "Also remove archived files from object storage")
	cmd.MarkFlagRequired("index")

	return cmd
}
