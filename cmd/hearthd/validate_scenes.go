// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hearthd/hearthd/internal/config"
	"github.com/hearthd/hearthd/internal/scene"
)

// NewValidateScenesCmd creates the validate-scenes subcommand.
func NewValidateScenesCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "validate-scenes [file...]",
		Short: "Validate scene manifests without starting the daemon",
		Long: `Validates scene manifests against the schema and this build's engine
version. Files given as arguments are checked one by one; with no
arguments the whole scenes directory is loaded the way serve would
load it, including the duplicate-name check.
Does NOT start the daemon or require a database connection.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch scene errors early:
  hearthd validate-scenes
  hearthd validate-scenes scenes/evening.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateScenes(dir, args)
		},
	}

	cmd.Flags().StringVar(&dir, "scenes-dir", "", "scene manifest directory (default: from config)")

	return cmd
}

func runValidateScenes(dir string, files []string) error {
	if len(files) > 0 {
		var errors []string
		for _, path := range files {
			if _, err := scene.Load(path, version); err != nil {
				errors = append(errors, fmt.Sprintf("  %s: %v", path, err))
			}
		}
		if len(errors) > 0 {
			for _, e := range errors {
				slog.Error("scene validation failed", "detail", e)
			}
			return fmt.Errorf("validation failed: %d of %d scene files invalid", len(errors), len(files))
		}
		slog.Info("all scenes valid", "count", len(files))
		return nil
	}

	if dir == "" {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return err
		}
		dir = cfg.Scenes.Dir
	}

	manifests, err := scene.LoadDir(dir, version)
	if err != nil {
		return err
	}
	slog.Info("all scenes valid", "dir", dir, "count", len(manifests))
	return nil
}
