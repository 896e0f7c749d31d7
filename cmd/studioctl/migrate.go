package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pageblocks/api/internal/store"
)

var rollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			fatal("Failed to connect", err)
		}
		defer db.Close()

		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			fatal("Migration failed", err)
		}
		logger.Info().Str("dir", cfg.MigrationsDir).Msg("migrations applied")
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the most recent migrations",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			fatal("Failed to connect", err)
		}
		defer db.Close()

		reverted, err := store.RollbackMigrations(ctx, db, cfg.MigrationsDir, rollbackSteps)
		for _, version := range reverted {
			fmt.Printf("reverted %s\n", version)
		}
		if err != nil {
			fatal("Rollback failed", err)
		}
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations are applied",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			fatal("Failed to connect", err)
		}
		defer db.Close()

		states, err := store.MigrationStatus(ctx, db, cfg.MigrationsDir)
		if err != nil {
			fatal("Failed to read migration status", err)
		}
		for _, state := range states {
			mark := " "
			if state.Applied {
				mark = "x"
			}
			fmt.Printf("[%s] %s\n", mark, state.Version)
		}
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "Number of migrations to revert")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
