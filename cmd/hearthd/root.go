package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the hearthd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hearthd",
		Short: "Hearthd - a home state daemon",
		Long: `Hearthd is a home automation state daemon: a validated entity state
machine with an event bus, a REST API, PostgreSQL history, and
declarative scene manifests.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewValidateScenesCmd())

	return cmd
}
