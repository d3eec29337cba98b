// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package recorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/hearthd/hearthd/internal/core"
	"github.com/hearthd/hearthd/internal/entityfilter"
	"github.com/hearthd/hearthd/pkg/errutil"
)

// Default worker tuning. Overridable through Options.
const (
	DefaultCommitInterval = time.Second
	DefaultQueueSize      = 1024
	DefaultMaxBatch       = 256

	flushTimeout = 10 * time.Second
)

// Options tunes the recorder worker.
type Options struct {
	// CommitInterval is how often a partial batch is flushed.
	CommitInterval time.Duration
	// QueueSize is the capacity of the internal event queue. Events
	// arriving while the queue is full are dropped.
	QueueSize int
	// MaxBatch flushes the batch early once it reaches this many rows.
	MaxBatch int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.CommitInterval <= 0 {
		out.CommitInterval = DefaultCommitInterval
	}
	if out.QueueSize <= 0 {
		out.QueueSize = DefaultQueueSize
	}
	if out.MaxBatch <= 0 {
		out.MaxBatch = DefaultMaxBatch
	}
	return out
}

// Recorder subscribes to state changes and persists them in batches.
//
// Entity removals (events whose new state is nil) and entities rejected by
// the filter are not recorded.
type Recorder struct {
	store  StateStore
	filter *entityfilter.Filter
	opts   Options

	bus      *core.Bus
	sub      chan core.Event
	queue    chan core.Event
	stopped  chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

// New creates a Recorder writing to store. A nil filter records everything.
func New(store StateStore, filter *entityfilter.Filter, opts Options) *Recorder {
	opts = (&opts).withDefaults()
	return &Recorder{
		store:   store,
		filter:  filter,
		opts:    opts,
		queue:   make(chan core.Event, opts.QueueSize),
		stopped: make(chan struct{}),
	}
}

// Start subscribes to the bus and launches the worker.
func (r *Recorder) Start(bus *core.Bus) error {
	if !r.running.CompareAndSwap(false, true) {
		return oops.Errorf("recorder already running")
	}

	r.bus = bus
	r.sub = bus.Subscribe(core.EventStateChanged)
	go r.pump()
	go r.run()

	slog.Info("recorder started",
		"commit_interval", r.opts.CommitInterval,
		"queue_size", r.opts.QueueSize,
		"max_batch", r.opts.MaxBatch,
	)
	return nil
}

// Stop unsubscribes from the bus, drains the queue, flushes the final batch,
// and waits for the worker to exit or ctx to expire.
func (r *Recorder) Stop(ctx context.Context) error {
	if !r.running.Load() {
		return nil
	}
	r.stopOnce.Do(func() {
		r.bus.Unsubscribe(core.EventStateChanged, r.sub)
	})

	select {
	case <-r.stopped:
		slog.Info("recorder stopped")
		return nil
	case <-ctx.Done():
		return oops.With("operation", "stop recorder").Wrap(ctx.Err())
	}
}

// History returns persisted rows for entityID recorded at or after since,
// oldest first, capped at limit.
func (r *Recorder) History(ctx context.Context, entityID string, since time.Time, limit int) ([]StoredState, error) {
	return r.store.History(ctx, entityID, since, limit)
}

// Purge removes rows older than the keep window and reports how many.
func (r *Recorder) Purge(ctx context.Context, keep time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-keep)
	purged, err := r.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	RecordStatesPurged(purged)
	if purged > 0 {
		slog.Info("purged recorded states", "purged", purged, "cutoff", cutoff)
	}
	return purged, nil
}

// Ping reports whether the backing store is reachable.
func (r *Recorder) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// pump moves events from the bus subscription into the bounded queue,
// dropping when the worker cannot keep up. Closing the subscription closes
// the queue, which in turn stops the worker.
func (r *Recorder) pump() {
	defer close(r.queue)
	for ev := range r.sub {
		select {
		case r.queue <- ev:
		default:
			RecordStateDropped("queue_full")
			slog.Warn("recorder queue full, dropping state change",
				"queue_size", cap(r.queue),
			)
		}
	}
}

// run batches queued events and flushes on the commit interval, when the
// batch fills, and once more on shutdown.
func (r *Recorder) run() {
	defer close(r.stopped)

	ticker := time.NewTicker(r.opts.CommitInterval)
	defer ticker.Stop()

	batch := make([]StoredState, 0, r.opts.MaxBatch)
	for {
		select {
		case ev, ok := <-r.queue:
			if !ok {
				r.flush(batch)
				return
			}
			if row := r.rowFromEvent(ev); row != nil {
				batch = append(batch, *row)
				if len(batch) >= r.opts.MaxBatch {
					batch = r.flush(batch)
				}
			}
		case <-ticker.C:
			batch = r.flush(batch)
		}
	}
}

// flush writes the batch and returns an empty slice reusing its capacity.
// A failed flush drops the batch so memory cannot grow unbounded while the
// store is down.
func (r *Recorder) flush(batch []StoredState) []StoredState {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	start := time.Now()
	if err := r.store.InsertStates(ctx, batch); err != nil {
		RecordFlush("error", time.Since(start).Seconds())
		StatesDropped.WithLabelValues("flush_failed").Add(float64(len(batch)))
		errutil.LogError(slog.Default(), "recorder flush failed", err)
		return batch[:0]
	}
	RecordFlush("ok", time.Since(start).Seconds())
	return batch[:0]
}

// rowFromEvent converts a state_changed event into a row, or nil when the
// event carries no new state or the entity is filtered out.
func (r *Recorder) rowFromEvent(ev core.Event) *StoredState {
	data, ok := ev.Data.(core.StateChangedData)
	if !ok || data.NewState == nil {
		return nil
	}
	if r.filter != nil && !r.filter.Matches(data.EntityID) {
		return nil
	}

	st := data.NewState
	attrsJSON, err := json.Marshal(st.Attributes)
	if err != nil {
		RecordStateDropped("marshal_failed")
		slog.Warn("cannot marshal attributes, dropping state change",
			"entity_id", st.EntityID,
			"error", err,
		)
		return nil
	}

	RecordStateRecorded(st.Domain)
	return &StoredState{
		EntityID:      st.EntityID,
		State:         st.State,
		Attributes:    attrsJSON,
		LastChanged:   st.LastChanged,
		LastUpdated:   st.LastUpdated,
		ContextID:     st.Context.ID.String(),
		ContextUserID: st.Context.UserID,
		RecordedAt:    time.Now().UTC(),
	}
}
