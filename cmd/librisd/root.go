package main

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "librisd",
		Short:   "Library lending service",
		Long:    "librisd serves the library catalog and lending API, runs schema migrations, and exports the borrow ledger.",
		Version: version,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newMigrateCmd(&configPath))
	cmd.AddCommand(newExportLedgerCmd(&configPath))

	return cmd
}
