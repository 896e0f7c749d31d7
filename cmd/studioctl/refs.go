package main

import (
	"context"

	"github.com/spf13/cobra"
)

var refsRevalidate bool

var refsCmd = &cobra.Command{
	Use:   "refs <document-id>",
	Short: "Count the documents referencing a document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		rt := openRuntime(ctx)
		defer rt.Close()

		summary, err := rt.Service.References(ctx, args[0], refsRevalidate)
		if err != nil {
			fatal("Failed to count references", err)
		}
		printJSON(summary)
	},
}

func init() {
	refsCmd.Flags().BoolVar(&refsRevalidate, "revalidate", false, "Bypass the reference count cache")
	rootCmd.AddCommand(refsCmd)
}
