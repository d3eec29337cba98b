// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

//go:build integration

package daemon_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hearthd/hearthd/internal/api"
	"github.com/hearthd/hearthd/internal/core"
	"github.com/hearthd/hearthd/internal/recorder"
)

func TestDaemon(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Daemon Integration Suite")
}

// testEnv wires the full daemon stack against a real PostgreSQL
// instance: state machine and bus, recorder with a postgres store, and
// the REST API served over HTTP.
type testEnv struct {
	ctx       context.Context
	container testcontainers.Container
	store     *recorder.PostgresStateStore
	bus       *core.Bus
	machine   *core.Machine
	rec       *recorder.Recorder
	server    *httptest.Server
	client    *http.Client
}

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupDaemonTestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})

func setupDaemonTestEnv() (*testEnv, error) {
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
		return nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	migrator, err := recorder.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}
	if err := migrator.Close(); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	store, err := recorder.NewPostgresStateStore(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	bus := core.NewBus()
	machine := core.NewMachine(bus)

	// A short commit interval keeps the Eventually blocks snappy.
	rec := recorder.New(store, nil, recorder.Options{
		CommitInterval: 50 * time.Millisecond,
	})
	if err := rec.Start(bus); err != nil {
		store.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers := api.NewHandlers(machine, bus, rec)
	server := httptest.NewServer(api.NewRouter(handlers, logger))

	return &testEnv{
		ctx:       ctx,
		container: container,
		store:     store,
		bus:       bus,
		machine:   machine,
		rec:       rec,
		server:    server,
		client:    server.Client(),
	}, nil
}

func (e *testEnv) cleanup() {
	if e.server != nil {
		e.server.Close()
	}
	if e.rec != nil {
		stopCtx, cancel := context.WithTimeout(e.ctx, 5*time.Second)
		_ = e.rec.Stop(stopCtx)
		cancel()
	}
	if e.store != nil {
		e.store.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(e.ctx)
	}
}

// post sends a JSON body and returns the response with its body already
// read and closed.
func (e *testEnv) post(path, body string) (*http.Response, []byte) {
	GinkgoHelper()
	resp, err := e.client.Post(e.server.URL+path, "application/json", strings.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, data
}

func (e *testEnv) get(path string) (*http.Response, []byte) {
	GinkgoHelper()
	resp, err := e.client.Get(e.server.URL + path)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, data
}

func (e *testEnv) delete(path string) (*http.Response, []byte) {
	GinkgoHelper()
	req, err := http.NewRequest(http.MethodDelete, e.server.URL+path, nil)
	Expect(err).NotTo(HaveOccurred())
	resp, err := e.client.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, data
}
