// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package recorder

import (
	"context"
	"sync"
	"time"
)

// MemoryStateStore is an in-memory StateStore. It backs the recorder when no
// database is configured and stands in for PostgreSQL in tests.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states []StoredState
}

// NewMemoryStateStore creates a new in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

// InsertStates appends the rows to the in-memory log.
func (s *MemoryStateStore) InsertStates(_ context.Context, states []StoredState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, states...)
	return nil
}

// History returns rows for entityID recorded at or after since, oldest first.
func (s *MemoryStateStore) History(_ context.Context, entityID string, since time.Time, limit int) ([]StoredState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []StoredState
	for _, st := range s.states {
		if st.EntityID != entityID || st.RecordedAt.Before(since) {
			continue
		}
		result = append(result, st)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// PurgeBefore deletes rows recorded before cutoff.
func (s *MemoryStateStore) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.states[:0]
	var purged int64
	for _, st := range s.states {
		if st.RecordedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, st)
	}
	s.states = kept
	return purged, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStateStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStateStore) Close() {}

// Count returns the number of stored rows.
func (s *MemoryStateStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
