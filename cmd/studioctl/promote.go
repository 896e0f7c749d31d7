package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pageblocks/api/internal/app"
	"pageblocks/api/internal/store"
)

var (
	promoteField      string
	promoteKey        string
	promoteTitle      string
	promoteSequential bool
)

var promoteCmd = &cobra.Command{
	Use:   "promote <document-id>",
	Short: "Turn a block into a reusable page block",
	Long: `Copy the block stored at <field>[_key=="<key>"] of the document into a new
reusable page block and replace it with a reference.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if promoteKey == "" {
			fmt.Println("Error: --key is required")
			cmd.Usage()
			return
		}

		var opts []app.OpenOption
		if promoteSequential {
			opts = append(opts, app.WithSequentialWrites())
		}
		ctx := context.Background()
		rt := openRuntime(ctx, opts...)
		defer rt.Close()

		doc, err := rt.Store.GetDocument(ctx, args[0])
		if err != nil {
			fatal("Failed to read document", err)
		}
		raw, err := store.Get(doc, store.KeyedPath(promoteField, promoteKey))
		if err != nil {
			fatal("Block not found", err)
		}
		value, _ := raw.(map[string]any)

		outcome, err := rt.Service.Promote(ctx, args[0], app.PromoteInput{
			Field: promoteField,
			Key:   promoteKey,
			Value: value,
			Title: promoteTitle,
		})
		if err != nil {
			fatal("Promotion failed", err)
		}
		printJSON(outcome)
	},
}

func init() {
	promoteCmd.Flags().StringVar(&promoteField, "field", "content", "Array field holding the block")
	promoteCmd.Flags().StringVar(&promoteKey, "key", "", "The _key of the block (required)")
	promoteCmd.Flags().StringVar(&promoteTitle, "title", "", "Title of the new reusable block")
	promoteCmd.Flags().BoolVar(&promoteSequential, "sequential", false, "Write the new document and the patch separately")
	rootCmd.AddCommand(promoteCmd)
}
