package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pageblocks/api/internal/app"
	"pageblocks/api/internal/config"
	"pageblocks/api/internal/logging"
)

var (
	verbose     bool
	memoryStore bool
	logger      zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "studioctl",
	Short: "Operate the page blocks document store",
	Long: `studioctl promotes page blocks into reusable documents, reports reference
counts and moves datasets in and out of the store. It reads the same
environment variables as the API server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.Console(os.Stderr, verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&memoryStore, "memory", false, "Use an in-memory store instead of DATABASE_URL")
}

func loadConfig() config.Config {
	cfg := config.Load()
	if memoryStore {
		cfg.StoreBackend = "memory"
	}
	return cfg
}

func openRuntime(ctx context.Context, opts ...app.OpenOption) *app.Runtime {
	rt, err := app.Open(ctx, loadConfig(), logger, opts...)
	if err != nil {
		fatal("Failed to open store", err)
	}
	return rt
}
