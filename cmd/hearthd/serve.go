// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hearthd/hearthd/internal/api"
	"github.com/hearthd/hearthd/internal/config"
	"github.com/hearthd/hearthd/internal/core"
	"github.com/hearthd/hearthd/internal/entityfilter"
	"github.com/hearthd/hearthd/internal/logging"
	"github.com/hearthd/hearthd/internal/observability"
	"github.com/hearthd/hearthd/internal/recorder"
	"github.com/hearthd/hearthd/internal/scene"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the hearthd daemon",
		Long: `Start the daemon: the entity state machine and event bus, the REST
API, the metrics/health endpoint, and, when enabled, the state
recorder. Scene manifests are loaded at startup and the configured
scenes applied.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	cmd.Flags().String("api-addr", "127.0.0.1:8123", "REST API listen address")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address")
	cmd.Flags().String("log-format", "text", "log format (text or json)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().Bool("recorder", false, "enable the state recorder")
	cmd.Flags().String("dsn", "", "PostgreSQL connection string for the recorder (empty = in-memory)")
	cmd.Flags().String("scenes-dir", "", "scene manifest directory (default: XDG config dir)")

	return cmd
}

// runServeWithDeps starts the daemon with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}

	// Set up default factories
	if deps.StateStoreFactory == nil {
		deps.StateStoreFactory = func(ctx context.Context, dsn string) (recorder.StateStore, error) {
			if dsn == "" {
				return recorder.NewMemoryStateStore(), nil
			}
			return recorder.NewPostgresStateStore(ctx, dsn)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(addr string, h *api.Handlers, logger *slog.Logger) APIServer {
			return api.NewServer(addr, h, logger)
		}
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("hearthd", version, cfg.Log.Format, cfg.Log.Level)

	slog.Info("starting hearthd",
		"version", version,
		"api_addr", cfg.Server.APIAddr,
		"metrics_addr", cfg.Server.MetricsAddr,
		"recorder", cfg.Recorder.Enabled,
	)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := core.NewBus()
	machine := core.NewMachine(bus)

	// Start the recorder before anything writes states so scene
	// activations land in history too.
	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		store, err := deps.StateStoreFactory(ctx, cfg.Recorder.DSN)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("operation", "open state store").Wrap(err)
		}
		defer store.Close()

		filter, err := entityfilter.New(cfg.Recorder.Filter)
		if err != nil {
			return err
		}

		rec = recorder.New(store, filter, cfg.Recorder.Options())
		if err := rec.Start(bus); err != nil {
			return err
		}

		backend := "postgres"
		if cfg.Recorder.DSN == "" {
			backend = "memory"
		}
		slog.Info("recorder started", "backend", backend, "keep", cfg.Recorder.Keep)

		if cfg.Recorder.Keep > 0 {
			go purgeLoop(ctx, rec, cfg.Recorder.Keep)
		}
	}

	if err := applyConfiguredScenes(ctx, cfg, machine); err != nil {
		if rec != nil {
			stopRecorder(rec)
		}
		return err
	}

	// Observability server: metrics registry plus liveness/readiness.
	ready := func() bool { return true }
	if rec != nil {
		ready = func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Second)
			defer pingCancel()
			return rec.Ping(pingCtx) == nil
		}
	}
	obsServer := deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, ready)
	core.RegisterMetrics(obsServer.Registry())
	recorder.RegisterMetrics(obsServer.Registry())
	api.RegisterMetrics(obsServer.Registry())

	obsErrChan, err := obsServer.Start()
	if err != nil {
		if rec != nil {
			stopRecorder(rec)
		}
		return oops.With("server", "observability").Wrap(err)
	}
	// Monitor observability server errors - cancel context on error
	go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	slog.Info("observability server started", "addr", obsServer.Addr())

	var history api.HistorySource
	if rec != nil {
		history = rec
	}
	apiServer := deps.APIServerFactory(cfg.Server.APIAddr, api.NewHandlers(machine, bus, history), slog.Default())
	apiErrChan, err := apiServer.Start()
	if err != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			slog.Warn("failed to stop observability server during cleanup", "error", stopErr)
		}
		if rec != nil {
			stopRecorder(rec)
		}
		return oops.With("server", "api").Wrap(err)
	}
	// Monitor API server errors - cancel context on error
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("hearthd started")
	slog.Info("hearthd ready",
		"api_addr", apiServer.Addr(),
		"metrics_addr", obsServer.Addr(),
	)

	// Wait for shutdown signal or server failure
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown: API first so no new writes arrive, then the
	// recorder so its queue drains, then observability.
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	if rec != nil {
		if err := rec.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping recorder", "error", err)
		}
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// applyConfiguredScenes loads the scenes directory and applies the
// scenes named in the config, in order.
func applyConfiguredScenes(ctx context.Context, cfg *config.Config, machine *core.Machine) error {
	if len(cfg.Scenes.Apply) == 0 {
		return nil
	}

	manifests, err := scene.LoadDir(cfg.Scenes.Dir, version)
	if err != nil {
		return err
	}
	byName := make(map[string]*scene.Manifest, len(manifests))
	for _, m := range manifests {
		byName[m.Name] = m
	}

	for _, name := range cfg.Scenes.Apply {
		m, ok := byName[name]
		if !ok {
			return oops.Code("SCENE_INVALID").
				With("scene", name).
				With("dir", cfg.Scenes.Dir).
				Errorf("scene not found")
		}
		applied, err := m.Apply(ctx, machine)
		if err != nil {
			return err
		}
		slog.Info("scene applied", "scene", name, "entities", applied)
	}
	return nil
}

// purgeLoop deletes history older than the retention window, once at
// startup and then daily.
func purgeLoop(ctx context.Context, rec *recorder.Recorder, keep time.Duration) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		purgeCtx, purgeCancel := context.WithTimeout(ctx, time.Minute)
		purged, err := rec.Purge(purgeCtx, keep)
		purgeCancel()
		if err != nil {
			slog.Warn("history purge failed", "error", err)
		} else if purged > 0 {
			slog.Info("history purged", "states", purged)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// stopRecorder stops the recorder during startup cleanup.
func stopRecorder(rec *recorder.Recorder) {
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := rec.Stop(stopCtx); err != nil {
		slog.Warn("failed to stop recorder during cleanup", "error", err)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// This ensures that server failures trigger graceful shutdown of the entire process.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
