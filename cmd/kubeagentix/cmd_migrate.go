package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy conversations from the legacy store into the current one",
	Long: `Copy conversations from the legacy store into the current one.
Conversations already present in the current store are left alone, and the
legacy store is never modified. Every command that opens the store runs this
step too; use this command to run it on its own and see the result.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		backend, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		ctx := context.Background()
		before, err := store.List(ctx)
		if err != nil {
			return err
		}
		store.MigrateLegacy(ctx)
		after, err := store.List(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Migrated %d conversation(s) from %q into %q.\n", len(after)-len(before), cfg.Store.LegacyName, store.Name())
		return nil
	},
}
