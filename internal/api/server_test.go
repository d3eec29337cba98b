// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearthd/internal/api"
	"github.com/hearthd/hearthd/internal/core"
)

func newTestServer(t *testing.T) *api.Server {
	t.Helper()
	bus := core.NewBus()
	machine := core.NewMachine(bus)
	handlers := api.NewHandlers(machine, bus, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewServer("127.0.0.1:0", handlers, logger)
}

func TestServerServesAPI(t *testing.T) {
	server := newTestServer(t)

	errCh, err := server.Start()
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, server.Stop(ctx))
	}()

	resp, err := http.Get("http://" + server.Addr() + "/api/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "API running.", body["message"])

	select {
	case serveErr := <-errCh:
		t.Fatalf("unexpected server error: %v", serveErr)
	default:
	}
}

func TestServerDoubleStartFails(t *testing.T) {
	server := newTestServer(t)

	_, err := server.Start()
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, server.Stop(ctx))
	}()

	_, err = server.Start()
	assert.Error(t, err)
}

func TestServerStopWithoutStart(t *testing.T) {
	server := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx))
}

func TestServerErrorChannelClosesOnStop(t *testing.T) {
	server := newTestServer(t)

	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case serveErr, open := <-errCh:
		assert.False(t, open, "expected closed channel, got error: %v", serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("error channel did not close after Stop")
	}
}

func TestServerBadAddress(t *testing.T) {
	bus := core.NewBus()
	machine := core.NewMachine(bus)
	handlers := api.NewHandlers(machine, bus, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := api.NewServer("127.0.0.1:-1", handlers, logger)

	_, err := server.Start()
	assert.Error(t, err)
}
