// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// poolIface abstracts pgxpool.Pool so tests can substitute pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
	Close()
}

const insertStateSQL = `INSERT INTO states (entity_id, state, attributes, last_changed, last_updated, context_id, context_user_id, recorded_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// PostgresStateStore implements StateStore using PostgreSQL.
type PostgresStateStore struct {
	pool poolIface
}

// NewPostgresStateStore connects to PostgreSQL and verifies the connection.
// The initial ping retries with exponential backoff so the process survives
// a database that is still starting up.
func NewPostgresStateStore(ctx context.Context, dsn string) (*PostgresStateStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_UNAVAILABLE").With("operation", "create connection pool").Wrap(err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_UNAVAILABLE").With("operation", "ping database").Wrap(err)
	}

	return &PostgresStateStore{pool: pool}, nil
}

// newPostgresStateStoreWithPool wires an existing pool, used by tests.
func newPostgresStateStoreWithPool(pool poolIface) *PostgresStateStore {
	return &PostgresStateStore{pool: pool}
}

// InsertStates writes all rows in one round trip using a pgx batch.
func (s *PostgresStateStore) InsertStates(ctx context.Context, states []StoredState) error {
	if len(states) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, st := range states {
		// Empty user ID is stored as NULL
		var userID any
		if st.ContextUserID != "" {
			userID = st.ContextUserID
		}
		batch.Queue(insertStateSQL,
			st.EntityID,
			st.State,
			st.Attributes,
			st.LastChanged,
			st.LastUpdated,
			st.ContextID,
			userID,
			st.RecordedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	var execErr error
	for range states {
		if _, err := results.Exec(); err != nil && execErr == nil {
			execErr = err
		}
	}
	if closeErr := results.Close(); closeErr != nil && execErr == nil {
		execErr = closeErr
	}
	if execErr != nil {
		return wrapStoreError(execErr, "insert states")
	}
	return nil
}

// History returns rows for entityID recorded at or after since, oldest first.
func (s *PostgresStateStore) History(ctx context.Context, entityID string, since time.Time, limit int) ([]StoredState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, state, attributes, last_changed, last_updated, context_id, COALESCE(context_user_id, ''), recorded_at
		 FROM states
		 WHERE entity_id = $1 AND recorded_at >= $2
		 ORDER BY recorded_at
		 LIMIT $3`,
		entityID, since, limit)
	if err != nil {
		return nil, wrapStoreError(err, "query history")
	}
	defer rows.Close()

	var states []StoredState
	for rows.Next() {
		var st StoredState
		if err := rows.Scan(
			&st.EntityID,
			&st.State,
			&st.Attributes,
			&st.LastChanged,
			&st.LastUpdated,
			&st.ContextID,
			&st.ContextUserID,
			&st.RecordedAt,
		); err != nil {
			return nil, oops.Code("STORE_QUERY_FAILED").With("operation", "scan history row").Wrap(err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("STORE_QUERY_FAILED").With("operation", "iterate history rows").Wrap(err)
	}
	return states, nil
}

// PurgeBefore deletes rows recorded before cutoff.
func (s *PostgresStateStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM states WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, wrapStoreError(err, "purge states")
	}
	return tag.RowsAffected(), nil
}

// Ping verifies the database is reachable.
func (s *PostgresStateStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.Code("STORE_UNAVAILABLE").With("operation", "ping database").Wrap(err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStateStore) Close() {
	s.pool.Close()
}

// wrapStoreError classifies a database error. A missing states table gets a
// hint pointing at the migrate command, everything else is a plain query
// failure.
func wrapStoreError(err error, operation string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return oops.Code("STORE_SCHEMA_MISSING").
			With("operation", operation).
			With("hint", "run 'hearthd migrate' to create the states table").
			Wrap(err)
	}
	return oops.Code("STORE_QUERY_FAILED").With("operation", operation).Wrap(err)
}
