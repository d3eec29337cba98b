// Package core contains the state machine, event bus, and state types
// that make up the engine.
package core

import "time"

// EventType identifies the kind of event.
type EventType string

const (
	// EventStateChanged fires when an entity's state or attributes took
	// a new value, when an entity first appears, and (with a nil new
	// state) when one is removed.
	EventStateChanged EventType = "state_changed"

	// EventStateReported fires instead of EventStateChanged when a
	// write carried exactly the values already stored.
	EventStateReported EventType = "state_reported"

	// MatchAll subscribes to every event type.
	MatchAll EventType = "*"
)

// eventsExcludedFromMatchAll lists high-volume event types that MatchAll
// subscribers do not receive; they must be subscribed to explicitly.
var eventsExcludedFromMatchAll = map[EventType]bool{
	EventStateReported: true,
}

// Event is something that happened in the engine.
type Event struct {
	Type      EventType
	TimeFired time.Time
	Context   Context
	Data      any
}

// StateChangedData is the payload of EventStateChanged. OldState is nil
// for a brand-new entity, NewState is nil for a removed one.
type StateChangedData struct {
	EntityID string `json:"entity_id"`
	OldState *State `json:"old_state"`
	NewState *State `json:"new_state"`
}

// StateReportedData is the payload of EventStateReported.
type StateReportedData struct {
	EntityID        string    `json:"entity_id"`
	NewState        *State    `json:"new_state"`
	OldLastReported time.Time `json:"old_last_reported"`
}
