// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

// Package config loads the daemon configuration from defaults, a YAML
// file, and command-line flags.
package config

import (
	"time"

	"github.com/samber/oops"

	"github.com/hearthd/hearthd/internal/entityfilter"
	"github.com/hearthd/hearthd/internal/recorder"
)

// ServerConfig holds the listen addresses.
type ServerConfig struct {
	// APIAddr is the REST API listen address.
	APIAddr string `koanf:"api_addr"`
	// MetricsAddr is the observability (metrics + health) listen address.
	MetricsAddr string `koanf:"metrics_addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Format is "text" or "json".
	Format string `koanf:"format"`
	// Level is "debug", "info", "warn", or "error".
	Level string `koanf:"level"`
}

// RecorderConfig holds state persistence settings.
type RecorderConfig struct {
	// Enabled turns state recording on.
	Enabled bool `koanf:"enabled"`
	// DSN is the PostgreSQL connection string. Empty records to memory.
	DSN string `koanf:"dsn"`
	// CommitInterval is how often partial batches are flushed.
	CommitInterval time.Duration `koanf:"commit_interval"`
	// QueueSize bounds the in-flight event queue.
	QueueSize int `koanf:"queue_size"`
	// MaxBatch flushes a batch early once it holds this many rows.
	MaxBatch int `koanf:"max_batch"`
	// Keep is the retention window for recorded states. Zero disables
	// purging.
	Keep time.Duration `koanf:"keep"`
	// Filter limits which entities are recorded.
	Filter entityfilter.Config `koanf:"filter"`
}

// Options converts the recorder settings to worker options.
func (c RecorderConfig) Options() recorder.Options {
	return recorder.Options{
		CommitInterval: c.CommitInterval,
		QueueSize:      c.QueueSize,
		MaxBatch:       c.MaxBatch,
	}
}

// ScenesConfig holds scene manifest settings.
type ScenesConfig struct {
	// Dir is the directory scanned for scene manifests.
	Dir string `koanf:"dir"`
	// Apply lists scene names applied at startup, in order.
	Apply []string `koanf:"apply"`
}

// Config is the full daemon configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Recorder RecorderConfig `koanf:"recorder"`
	Scenes   ScenesConfig   `koanf:"scenes"`
}

var logFormats = map[string]bool{"text": true, "json": true}

var logLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks settings that would make the daemon misbehave quietly.
// The recorder filter is compiled to surface bad glob patterns here
// instead of at first use.
func (c *Config) Validate() error {
	if c.Server.APIAddr == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "server.api_addr").
			Errorf("listen address must not be empty")
	}
	if c.Server.MetricsAddr == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "server.metrics_addr").
			Errorf("listen address must not be empty")
	}
	if !logFormats[c.Log.Format] {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.format").
			With("value", c.Log.Format).
			Errorf("log format must be \"text\" or \"json\"")
	}
	if !logLevels[c.Log.Level] {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.level").
			With("value", c.Log.Level).
			Errorf("unknown log level")
	}
	if c.Recorder.CommitInterval < 0 {
		return oops.Code("CONFIG_INVALID").
			With("key", "recorder.commit_interval").
			With("value", c.Recorder.CommitInterval.String()).
			Errorf("commit interval must not be negative")
	}
	if c.Recorder.QueueSize < 0 {
		return oops.Code("CONFIG_INVALID").
			With("key", "recorder.queue_size").
			With("value", c.Recorder.QueueSize).
			Errorf("queue size must not be negative")
	}
	if c.Recorder.MaxBatch < 0 {
		return oops.Code("CONFIG_INVALID").
			With("key", "recorder.max_batch").
			With("value", c.Recorder.MaxBatch).
			Errorf("max batch must not be negative")
	}
	if c.Recorder.Keep < 0 {
		return oops.Code("CONFIG_INVALID").
			With("key", "recorder.keep").
			With("value", c.Recorder.Keep.String()).
			Errorf("retention window must not be negative")
	}
	// The filter error keeps its own code so callers can tell a bad
	// glob from other config mistakes.
	if _, err := entityfilter.New(c.Recorder.Filter); err != nil {
		return oops.With("key", "recorder.filter").Wrap(err)
	}
	return nil
}
