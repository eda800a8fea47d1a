package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/libris-io/libris/internal/config"
	"github.com/libris-io/libris/libstore/oteladapters"
	"github.com/libris-io/libris/libstore/postgresengine"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long:  "Applies the schema statements. Every statement is idempotent, so migrate can run on every deploy.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			db, err := config.OpenSQLDB(cmd.Context(), cfg.Postgres)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			logger := oteladapters.NewSlogBridgeLoggerWithHandler(
				slog.NewJSONHandler(os.Stdout, nil))

			options := storeOptions(cfg, logger)

			store, err := postgresengine.NewStoreFromSQLDB(db, options...)
			if err != nil {
				return err
			}

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "schema migrated")

			return nil
		},
	}
}
