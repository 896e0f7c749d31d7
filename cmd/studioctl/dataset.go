package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pageblocks/api/internal/export"
)

var exportType string

var importCmd = &cobra.Command{
	Use:   "import <file.ndjson|->",
	Short: "Create or replace documents from an NDJSON file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var in io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				fatal("Failed to open dataset", err)
			}
			defer f.Close()
			in = f
		}
		docs, err := export.ReadNDJSON(in)
		if err != nil {
			fatal("Failed to read dataset", err)
		}

		ctx := context.Background()
		rt := openRuntime(ctx)
		defer rt.Close()

		result, err := rt.Service.Import(ctx, docs)
		if err != nil {
			fatal("Import failed", err)
		}
		logger.Info().Str("transaction_id", result.TransactionID).Int("documents", len(result.Documents)).Msg("dataset imported")
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write documents as NDJSON to the export bucket",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		rt := openRuntime(ctx)
		defer rt.Close()

		result, err := rt.Service.Export(ctx, export.Request{Type: exportType})
		if err != nil {
			fatal("Export failed", err)
		}
		printJSON(result)
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Push every reusable page block into the search index",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		rt := openRuntime(ctx)
		defer rt.Close()

		count, err := rt.Service.Reindex(ctx)
		if err != nil {
			fatal("Reindex failed", err)
		}
		logger.Info().Int("documents", count).Msg("search index rebuilt")
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportType, "type", "", "Only export documents of this type")
	rootCmd.AddCommand(importCmd, exportCmd, reindexCmd)
}
