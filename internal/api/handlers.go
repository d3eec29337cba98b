// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearthd/hearthd/internal/attrval"
	"github.com/hearthd/hearthd/internal/core"
	"github.com/hearthd/hearthd/internal/recorder"
)

// defaultHistoryLimit caps history responses when the client does not
// ask for a limit.
const defaultHistoryLimit = 100

// HistorySource answers entity history queries. *recorder.Recorder
// satisfies it; a nil source means the recorder is disabled and
// /api/history answers 503.
type HistorySource interface {
	History(ctx context.Context, entityID string, since time.Time, limit int) ([]recorder.StoredState, error)
}

// Handlers serves the REST surface over the state machine, the event
// bus, and the recorder.
type Handlers struct {
	machine *core.Machine
	bus     *core.Bus
	history HistorySource
}

// NewHandlers creates the API handlers. history may be nil when the
// recorder is disabled.
func NewHandlers(machine *core.Machine, bus *core.Bus, history HistorySource) *Handlers {
	return &Handlers{
		machine: machine,
		bus:     bus,
		history: history,
	}
}

// Root handles GET /api/.
func (h *Handlers) Root(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "API running.")
}

// ListStates handles GET /api/states.
func (h *Handlers) ListStates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.machine.All())
}

// GetState handles GET /api/states/{entityID}.
func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	s := h.machine.Get(chi.URLParam(r, "entityID"))
	if s == nil {
		writeMessage(w, http.StatusNotFound, "Entity not found.")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type setStateRequest struct {
	State      *string        `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// SetState handles POST /api/states/{entityID}. It creates or updates
// an entity, answering 201 with a Location header for a new one and 200
// for an existing one.
func (h *Handlers) SetState(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")

	var req setStateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.State == nil {
		writeMessage(w, http.StatusBadRequest, "No state specified.")
		return
	}

	attributes, err := attrval.MapFromNative(req.Attributes)
	if err != nil {
		writeError(w, err)
		return
	}

	existed := h.machine.Get(entityID) != nil
	s, err := h.machine.Set(entityID, *req.State, attributes)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if !existed {
		status = http.StatusCreated
		w.Header().Set("Location", "/api/states/"+entityID)
	}
	writeJSON(w, status, s)
}

// DeleteState handles DELETE /api/states/{entityID}.
func (h *Handlers) DeleteState(w http.ResponseWriter, r *http.Request) {
	if !h.machine.Remove(chi.URLParam(r, "entityID")) {
		writeMessage(w, http.StatusNotFound, "Entity not found.")
		return
	}
	writeMessage(w, http.StatusOK, "Entity removed.")
}

type eventListeners struct {
	Event         string `json:"event"`
	ListenerCount int    `json:"listener_count"`
}

// ListEvents handles GET /api/events, reporting subscriber counts per
// event type in a stable order.
func (h *Handlers) ListEvents(w http.ResponseWriter, _ *http.Request) {
	counts := h.bus.ListenerCounts()
	out := make([]eventListeners, 0, len(counts))
	for eventType, n := range counts {
		out = append(out, eventListeners{Event: string(eventType), ListenerCount: n})
	}
	slices.SortFunc(out, func(a, b eventListeners) int {
		return strings.Compare(a.Event, b.Event)
	})
	writeJSON(w, http.StatusOK, out)
}

// FireEvent handles POST /api/events/{eventType}. The body, when
// present, must be a JSON object and becomes the event data.
func (h *Handlers) FireEvent(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "eventType")

	var data map[string]any
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(&data)
	if err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, "Event data should be valid JSON.")
		return
	}

	h.bus.Fire(core.Event{
		Type:      core.EventType(eventType),
		TimeFired: time.Now(),
		Context:   core.NewContext(),
		Data:      data,
	})
	writeMessage(w, http.StatusOK, "Event "+eventType+" fired.")
}

// historyEntry is one recorded state row in its wire shape.
type historyEntry struct {
	EntityID    string          `json:"entity_id"`
	State       string          `json:"state"`
	Attributes  json.RawMessage `json:"attributes"`
	LastChanged time.Time       `json:"last_changed"`
	LastUpdated time.Time       `json:"last_updated"`
	RecordedAt  time.Time       `json:"recorded_at"`
	ContextID   string          `json:"context_id"`
}

// History handles GET /api/history/{entityID}. Optional query
// parameters: since (RFC 3339) and limit.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeMessage(w, http.StatusServiceUnavailable, "Recorder is not enabled.")
		return
	}
	entityID := chi.URLParam(r, "entityID")

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid since timestamp.")
			return
		}
		since = t
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeMessage(w, http.StatusBadRequest, "Invalid limit.")
			return
		}
		limit = n
	}

	rows, err := h.history.History(r.Context(), entityID, since, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]historyEntry, len(rows))
	for i, row := range rows {
		attributes := row.Attributes
		if len(attributes) == 0 {
			attributes = []byte("{}")
		}
		out[i] = historyEntry{
			EntityID:    row.EntityID,
			State:       row.State,
			Attributes:  attributes,
			LastChanged: row.LastChanged,
			LastUpdated: row.LastUpdated,
			RecordedAt:  row.RecordedAt,
			ContextID:   row.ContextID,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
