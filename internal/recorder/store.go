// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

// Package recorder persists state changes to durable storage and serves
// history queries over what it stored.
package recorder

import (
	"context"
	"time"
)

// StoredState is one persisted state row.
type StoredState struct {
	EntityID      string
	State         string
	Attributes    []byte
	LastChanged   time.Time
	LastUpdated   time.Time
	ContextID     string
	ContextUserID string
	RecordedAt    time.Time
}

// StateStore persists state rows and answers history queries.
type StateStore interface {
	// InsertStates writes a batch of state rows.
	InsertStates(ctx context.Context, states []StoredState) error
	// History returns rows for one entity recorded at or after since,
	// oldest first, capped at limit.
	History(ctx context.Context, entityID string, since time.Time, limit int) ([]StoredState, error)
	// PurgeBefore deletes rows recorded before cutoff and reports how many.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the store's resources.
	Close()
}
