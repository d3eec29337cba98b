// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hearthd/hearthd/internal/config"
	"github.com/hearthd/hearthd/internal/recorder"
)

// migrateOptions holds the migrate subcommand flags.
type migrateOptions struct {
	dsn    string
	status bool
	down   bool
	steps  int
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Run all pending database migrations against the PostgreSQL history
database. With --status, print applied and pending versions instead.

The connection string is taken from --dsn, then recorder.dsn in the
config file, then the DATABASE_URL environment variable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "PostgreSQL connection string")
	cmd.Flags().BoolVar(&opts.status, "status", false, "print applied and pending migrations")
	cmd.Flags().BoolVar(&opts.down, "down", false, "roll back all migrations, dropping history data")
	cmd.Flags().IntVar(&opts.steps, "steps", 0, "apply n migrations up (negative rolls back)")

	return cmd
}

func runMigrate(cmd *cobra.Command, opts *migrateOptions) error {
	dsn, err := resolveDSN(opts.dsn)
	if err != nil {
		return err
	}

	m, err := recorder.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Debug("error closing migrator", "error", closeErr)
		}
	}()

	switch {
	case opts.status:
		return printMigrationStatus(cmd, m)
	case opts.down:
		cmd.Println("Rolling back all migrations...")
		if err := m.Down(); err != nil {
			return err
		}
		cmd.Println("Rollback completed successfully")
	case opts.steps != 0:
		cmd.Printf("Applying %d migration step(s)...\n", opts.steps)
		if err := m.Steps(opts.steps); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
	default:
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
	}
	return nil
}

// resolveDSN picks the database connection string: the --dsn flag, then
// recorder.dsn from the config file, then DATABASE_URL.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return "", err
	}
	if cfg.Recorder.DSN != "" {
		return cfg.Recorder.DSN, nil
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn, nil
	}

	return "", oops.Code("CONFIG_INVALID").
		Errorf("database connection string is required: set --dsn, recorder.dsn, or DATABASE_URL")
}

func printMigrationStatus(cmd *cobra.Command, m *recorder.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	cmd.Printf("Current version: %d (dirty: %v)\n", version, dirty)
	cmd.Printf("Applied: %d\n", len(applied))
	for _, v := range applied {
		cmd.Printf("  %06d\n", v)
	}
	cmd.Printf("Pending: %d\n", len(pending))
	for _, v := range pending {
		cmd.Printf("  %06d\n", v)
	}
	return nil
}
