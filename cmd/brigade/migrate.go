package main

import (
	"fmt"

	"github.com/cuemby/brigade/pkg/config"
	"github.com/cuemby/brigade/pkg/storage"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL schema",
	Long: `Apply the embedded PostgreSQL schema. Statements are idempotent, so
running migrate against an up-to-date database is a no-op. The bolt
driver creates its buckets on open and needs no migration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if printOnly, _ := cmd.Flags().GetBool("print"); printOnly {
			fmt.Print(storage.Schema())
			return nil
		}
		if cfg.Storage.Driver != config.DriverPostgres {
			return fmt.Errorf("migrate requires the postgres storage driver (have %q)", cfg.Storage.Driver)
		}

		ctx := cmd.Context()
		store, err := storage.NewPostgresStore(ctx, cfg.Storage.Postgres.ConnString())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return err
		}
		fmt.Println("✓ Schema applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("print", false, "Print the schema instead of applying it")
}
