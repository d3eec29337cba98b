// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

//go:build integration

package recorder_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hearthd/hearthd/internal/recorder"
)

// setupPostgresContainer starts a PostgreSQL container, migrates the schema,
// and returns a connected store.
func setupPostgresContainer() (*recorder.PostgresStateStore, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("hearthd_test"),
		postgres.WithUsername("hearthd"),
		postgres.WithPassword("hearthd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := recorder.NewMigrator(connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		return nil, nil, err
	}

	store, err := recorder.NewPostgresStateStore(ctx, connStr)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		store.Close()
		_ = container.Terminate(ctx)
	}

	return store, cleanup, nil
}

var _ = Describe("PostgresStateStore", func() {
	var store *recorder.PostgresStateStore
	var cleanup func()

	BeforeEach(func() {
		var err error
		store, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("InsertStates", func() {
		It("round-trips state rows", func() {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Microsecond)
			row := recorder.StoredState{
				EntityID:      "light.kitchen",
				State:         "on",
				Attributes:    []byte(`{"brightness":128,"friendly_name":"Kitchen"}`),
				LastChanged:   now,
				LastUpdated:   now,
				ContextID:     "01K2ZYXWVUTSRQPONMLKJIHGFE",
				ContextUserID: "user-7",
				RecordedAt:    now,
			}

			Expect(store.InsertStates(ctx, []recorder.StoredState{row})).To(Succeed())

			rows, err := store.History(ctx, "light.kitchen", time.Time{}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].State).To(Equal("on"))
			Expect(rows[0].ContextID).To(Equal(row.ContextID))
			Expect(rows[0].ContextUserID).To(Equal("user-7"))
			Expect(rows[0].Attributes).To(MatchJSON(`{"brightness":128,"friendly_name":"Kitchen"}`))
			Expect(rows[0].LastChanged).To(BeTemporally("~", now, time.Millisecond))
			Expect(rows[0].RecordedAt).To(BeTemporally("~", now, time.Millisecond))
		})

		It("stores empty user IDs as NULL and reads them back empty", func() {
			ctx := context.Background()
			now := time.Now().UTC()
			row := recorder.StoredState{
				EntityID:    "sensor.outdoor_temp",
				State:       "21.5",
				Attributes:  []byte(`{}`),
				LastChanged: now,
				LastUpdated: now,
				ContextID:   "01K2ZYXWVUTSRQPONMLKJIHGFE",
				RecordedAt:  now,
			}

			Expect(store.InsertStates(ctx, []recorder.StoredState{row})).To(Succeed())

			rows, err := store.History(ctx, "sensor.outdoor_temp", time.Time{}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].ContextUserID).To(BeEmpty())
		})
	})

	Describe("History", func() {
		var base time.Time

		BeforeEach(func() {
			ctx := context.Background()
			base = time.Now().UTC().Add(-time.Hour)
			var batch []recorder.StoredState
			for i, state := range []string{"on", "off", "on"} {
				batch = append(batch, recorder.StoredState{
					EntityID:    "light.kitchen",
					State:       state,
					Attributes:  []byte(`{}`),
					LastChanged: base,
					LastUpdated: base,
					ContextID:   "ctx",
					RecordedAt:  base.Add(time.Duration(i) * time.Minute),
				})
			}
			Expect(store.InsertStates(ctx, batch)).To(Succeed())
		})

		It("returns rows oldest first", func() {
			rows, err := store.History(context.Background(), "light.kitchen", time.Time{}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0].State).To(Equal("on"))
			Expect(rows[1].State).To(Equal("off"))
			Expect(rows[2].State).To(Equal("on"))
		})

		It("honors since", func() {
			rows, err := store.History(context.Background(), "light.kitchen", base.Add(time.Minute), 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
		})

		It("honors limit", func() {
			rows, err := store.History(context.Background(), "light.kitchen", time.Time{}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
		})
	})

	Describe("PurgeBefore", func() {
		It("removes only rows older than the cutoff", func() {
			ctx := context.Background()
			now := time.Now().UTC()
			Expect(store.InsertStates(ctx, []recorder.StoredState{
				{EntityID: "light.kitchen", State: "on", Attributes: []byte(`{}`),
					LastChanged: now, LastUpdated: now, ContextID: "ctx", RecordedAt: now.Add(-48 * time.Hour)},
				{EntityID: "light.kitchen", State: "off", Attributes: []byte(`{}`),
					LastChanged: now, LastUpdated: now, ContextID: "ctx", RecordedAt: now},
			})).To(Succeed())

			purged, err := store.PurgeBefore(ctx, now.Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(purged).To(Equal(int64(1)))

			rows, err := store.History(ctx, "light.kitchen", time.Time{}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].State).To(Equal("off"))
		})
	})

	Describe("Ping", func() {
		It("succeeds against a live database", func() {
			Expect(store.Ping(context.Background())).To(Succeed())
		})
	})
})
