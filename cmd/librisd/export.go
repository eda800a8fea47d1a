package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/libris-io/libris/internal/config"
	"github.com/libris-io/libris/internal/export"
	"github.com/libris-io/libris/libstore/oteladapters"
	"github.com/libris-io/libris/libstore/postgresengine"
)

func newExportLedgerCmd(configPath *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export-ledger",
		Short: "Export the borrow ledger as a parquet file",
		Long: `Writes every borrowing, joined with user and book attributes,
to a parquet file for offline reporting.`,
		Example: `  librisd export-ledger --output ledger.parquet`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			pool, err := config.NewPGXPool(cmd.Context(), cfg.Postgres)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := oteladapters.NewSlogBridgeLoggerWithHandler(
				slog.NewJSONHandler(os.Stdout, nil))

			store, err := postgresengine.NewStoreFromPGXPool(pool, storeOptions(cfg, logger)...)
			if err != nil {
				return err
			}

			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}

			exporter := export.NewExporter(store, export.WithLogger(logger))

			rows, err := exporter.WriteLedger(cmd.Context(), file)
			if err != nil {
				_ = file.Close()
				return err
			}

			if err := file.Close(); err != nil {
				return fmt.Errorf("closing %s: %w", output, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d ledger rows to %s\n", rows, output)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "ledger.parquet", "output file path")

	return cmd
}
