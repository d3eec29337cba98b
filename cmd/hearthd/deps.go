package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hearthd/hearthd/internal/api"
	"github.com/hearthd/hearthd/internal/observability"
	"github.com/hearthd/hearthd/internal/recorder"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StateStoreFactory opens the recorder's backing store. An empty DSN
	// opens the in-memory store.
	// Default: recorder.NewPostgresStateStore / recorder.NewMemoryStateStore
	StateStoreFactory func(ctx context.Context, dsn string) (recorder.StateStore, error)

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// APIServerFactory creates the REST API server.
	// Default: api.NewServer
	APIServerFactory func(addr string, h *api.Handlers, logger *slog.Logger) APIServer
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Registry() *prometheus.Registry
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// APIServer interface wraps the methods used from api.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}
