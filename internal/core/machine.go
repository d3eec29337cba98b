// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package core

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/hearthd/hearthd/internal/attrs"
	"github.com/hearthd/hearthd/internal/entityid"
)

// ErrEntityReserved is returned by Reserve when the entity already
// exists or is already reserved.
var ErrEntityReserved = errors.New("entity already exists or is reserved")

// Machine holds the current state of every entity and publishes state
// transitions on its bus.
type Machine struct {
	mu           sync.RWMutex
	states       map[string]*State
	domainIndex  map[string]map[string]*State
	reservations map[string]struct{}
	bus          *Bus
}

// NewMachine creates a state machine publishing on bus.
func NewMachine(bus *Bus) *Machine {
	return &Machine{
		states:       make(map[string]*State),
		domainIndex:  make(map[string]map[string]*State),
		reservations: make(map[string]struct{}),
		bus:          bus,
	}
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ctx         Context
	hasCtx      bool
	forceUpdate bool
	now         time.Time
}

// WithContext attributes the write to an existing origin context
// instead of generating a fresh one.
func WithContext(ctx Context) SetOption {
	return func(o *setOptions) {
		o.ctx = ctx
		o.hasCtx = true
	}
}

// WithForceUpdate makes a write with an unchanged state value fire
// state_changed anyway.
func WithForceUpdate() SetOption {
	return func(o *setOptions) { o.forceUpdate = true }
}

// WithTimestamp pins the write's wall-clock time, mainly for replaying
// recorded history and for tests.
func WithTimestamp(t time.Time) SetOption {
	return func(o *setOptions) { o.now = t }
}

// Set records a new state for an entity and fires the matching event.
//
// This is the engine's hottest path, ordered to do the least work that
// decides the outcome: identifier validation (byte scans, no regex),
// state length check, then a single attribute comparison against the
// stored state. A write carrying exactly the stored values only bumps
// LastReported and fires state_reported; a write with equal attributes
// but a new state value reuses the stored attribute map on the new
// State, so the next comparison wins on map identity.
//
// Attribute maps are borrowed and must not be mutated after Set.
func (m *Machine) Set(entityID, newState string, attributes attrs.Map, opts ...SetOption) (*State, error) {
	if len(entityID) > MaxEntityIDLength || !entityid.Valid(entityID) {
		RecordInvalidEntityID()
		return nil, oops.Code("INVALID_ENTITY_ID").
			With("entity_id", entityID).
			Wrap(entityid.ErrInvalidEntityID)
	}
	if err := ValidateState(newState); err != nil {
		return nil, oops.With("entity_id", entityID).Wrap(err)
	}
	domain, objectID, _ := entityid.Cut(entityID)
	if attributes == nil {
		attributes = attrs.Map{}
	}

	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	now := o.now
	if now.IsZero() {
		now = time.Now()
	}
	eventCtx := o.ctx
	if !o.hasCtx {
		eventCtx = NewContext()
	}

	m.mu.Lock()
	old := m.states[entityID]

	var sameState, sameAttr bool
	if old != nil {
		sameState = old.State == newState && !o.forceUpdate
		var err error
		sameAttr, err = attrs.Equal(old.Attributes, attributes)
		if err != nil {
			m.mu.Unlock()
			return nil, oops.With("entity_id", entityID).Wrap(err)
		}
	}

	if sameState && sameAttr {
		ns := old.withLastReported(now)
		m.index(ns)
		m.mu.Unlock()

		RecordStateReported(domain)
		m.bus.Fire(Event{
			Type:      EventStateReported,
			TimeFired: now,
			Context:   eventCtx,
			Data: StateReportedData{
				EntityID:        entityID,
				NewState:        ns,
				OldLastReported: old.LastReported,
			},
		})
		return ns, nil
	}

	if sameAttr {
		// Attributes are equal but not the same map: keep the stored
		// one so the next comparison short-circuits on identity.
		attributes = old.Attributes
	}

	lastChanged := now
	if old != nil && sameState {
		lastChanged = old.LastChanged
	}

	ns := &State{
		EntityID:     entityID,
		Domain:       domain,
		ObjectID:     objectID,
		State:        newState,
		Attributes:   attributes,
		LastChanged:  lastChanged,
		LastReported: now,
		LastUpdated:  now,
		Context:      eventCtx,
	}
	m.index(ns)
	delete(m.reservations, entityID)
	total := len(m.states)
	m.mu.Unlock()

	RecordStateChanged(domain)
	RecordStateCount(total)
	m.bus.Fire(Event{
		Type:      EventStateChanged,
		TimeFired: now,
		Context:   eventCtx,
		Data: StateChangedData{
			EntityID: entityID,
			OldState: old,
			NewState: ns,
		},
	})
	return ns, nil
}

// index stores a state in the primary map and the per-domain index.
// Callers hold the write lock.
func (m *Machine) index(s *State) {
	m.states[s.EntityID] = s
	byDomain := m.domainIndex[s.Domain]
	if byDomain == nil {
		byDomain = make(map[string]*State)
		m.domainIndex[s.Domain] = byDomain
	}
	byDomain[s.EntityID] = s
}

// Remove deletes an entity and fires state_changed with a nil new
// state. It reports whether the entity existed.
func (m *Machine) Remove(entityID string) bool {
	m.mu.Lock()
	old, ok := m.states[entityID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.states, entityID)
	byDomain := m.domainIndex[old.Domain]
	delete(byDomain, entityID)
	if len(byDomain) == 0 {
		delete(m.domainIndex, old.Domain)
	}
	total := len(m.states)
	m.mu.Unlock()

	RecordStateRemoved(old.Domain)
	RecordStateCount(total)
	m.bus.Fire(Event{
		Type:      EventStateChanged,
		TimeFired: time.Now(),
		Context:   NewContext(),
		Data: StateChangedData{
			EntityID: entityID,
			OldState: old,
			NewState: nil,
		},
	})
	return true
}

// Get returns the current state for an entity, or nil. The lookup is
// exact: identifiers are never case-folded.
func (m *Machine) Get(entityID string) *State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[entityID]
}

// IsState reports whether an entity exists and currently has the given
// state value.
func (m *Machine) IsState(entityID, state string) bool {
	s := m.Get(entityID)
	return s != nil && s.State == state
}

// All returns current states, filtered to the given domains when any
// are named, sorted by entity ID.
func (m *Machine) All(domains ...string) []*State {
	m.mu.RLock()
	var states []*State
	if len(domains) == 0 {
		states = make([]*State, 0, len(m.states))
		for _, s := range m.states {
			states = append(states, s)
		}
	} else {
		for _, domain := range domains {
			for _, s := range m.domainIndex[domain] {
				states = append(states, s)
			}
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(states, func(a, b *State) int {
		return strings.Compare(a.EntityID, b.EntityID)
	})
	return states
}

// EntityIDs returns the known entity IDs, filtered to the given domains
// when any are named, sorted.
func (m *Machine) EntityIDs(domains ...string) []string {
	m.mu.RLock()
	var ids []string
	if len(domains) == 0 {
		ids = make([]string, 0, len(m.states))
		for id := range m.states {
			ids = append(ids, id)
		}
	} else {
		for _, domain := range domains {
			for id := range m.domainIndex[domain] {
				ids = append(ids, id)
			}
		}
	}
	m.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Count reports how many entities currently have a state, filtered to
// the given domains when any are named.
func (m *Machine) Count(domains ...string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(domains) == 0 {
		return len(m.states)
	}
	n := 0
	for _, domain := range domains {
		n += len(m.domainIndex[domain])
	}
	return n
}

// Reserve claims an entity ID ahead of its first Set, failing if the
// entity already exists or is already reserved. The first Set clears
// the reservation.
func (m *Machine) Reserve(entityID string) error {
	if !entityid.Valid(entityID) {
		return oops.Code("INVALID_ENTITY_ID").
			With("entity_id", entityID).
			Wrap(entityid.ErrInvalidEntityID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.states[entityID]; exists {
		return oops.Code("ENTITY_RESERVED").
			With("entity_id", entityID).
			Wrap(ErrEntityReserved)
	}
	if _, reserved := m.reservations[entityID]; reserved {
		return oops.Code("ENTITY_RESERVED").
			With("entity_id", entityID).
			Wrap(ErrEntityReserved)
	}
	m.reservations[entityID] = struct{}{}
	return nil
}

// Available reports whether an entity ID has neither a state nor a
// reservation.
func (m *Machine) Available(entityID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.states[entityID]; exists {
		return false
	}
	_, reserved := m.reservations[entityID]
	return !reserved
}
