// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/hearthd/hearthd/internal/attrs"
)

// Storage limits for states.
const (
	MaxEntityIDLength = 255
	MaxStateLength    = 255
)

// ErrStateTooLong reports a state value over MaxStateLength bytes.
var ErrStateTooLong = errors.New("state value exceeds maximum length")

// ValidateState checks that a state value fits the storage limit. Empty
// states are fine; "unknown" and "unavailable" are ordinary values here.
func ValidateState(state string) error {
	if len(state) > MaxStateLength {
		return oops.Code("INVALID_STATE").
			With("state_length", len(state)).
			With("max_length", MaxStateLength).
			Wrap(ErrStateTooLong)
	}
	return nil
}

// State is one entity's state at a point in time. States are immutable
// once published: a write produces a new *State, never edits one in
// place, so readers may hold a State without locking.
type State struct {
	EntityID   string
	Domain     string
	ObjectID   string
	State      string
	Attributes attrs.Map

	// LastChanged is when State last took a new value; LastReported is
	// when this entity was last written at all; LastUpdated is when
	// State or Attributes last took a new value.
	LastChanged  time.Time
	LastReported time.Time
	LastUpdated  time.Time

	Context Context
}

// Name returns the friendly_name attribute when present, otherwise the
// object ID with underscores spaced out.
func (s *State) Name() string {
	if v, ok := s.Attributes["friendly_name"]; ok {
		if nv, ok := v.(interface{ Native() (any, error) }); ok {
			if n, err := nv.Native(); err == nil {
				if name, ok := n.(string); ok {
					return name
				}
			}
		}
	}
	return strings.ReplaceAll(s.ObjectID, "_", " ")
}

// withLastReported returns a copy with a fresh report timestamp.
func (s *State) withLastReported(t time.Time) *State {
	ns := *s
	ns.LastReported = t
	return &ns
}

type stateJSON struct {
	EntityID     string      `json:"entity_id"`
	State        string      `json:"state"`
	Attributes   attrs.Map   `json:"attributes"`
	LastChanged  time.Time   `json:"last_changed"`
	LastReported time.Time   `json:"last_reported"`
	LastUpdated  time.Time   `json:"last_updated"`
	Context      contextJSON `json:"context"`
}

// MarshalJSON renders the state in its wire shape, with empty context
// fields as null.
func (s *State) MarshalJSON() ([]byte, error) {
	attributes := s.Attributes
	if attributes == nil {
		attributes = attrs.Map{}
	}
	return json.Marshal(stateJSON{
		EntityID:     s.EntityID,
		State:        s.State,
		Attributes:   attributes,
		LastChanged:  s.LastChanged,
		LastReported: s.LastReported,
		LastUpdated:  s.LastUpdated,
		Context:      s.Context.wire(),
	})
}
