// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package core

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewULID generates a new ULID.
func NewULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// ParseULID parses a ULID string.
func ParseULID(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("invalid ULID %q: %w", s, err)
	}
	return id, nil
}

// Context ties a state write and the events it fires back to their
// origin. A write triggered by another event carries that event's
// context ID as ParentID; a write made on behalf of an API caller
// carries a UserID.
type Context struct {
	ID       ulid.ULID
	ParentID string
	UserID   string
}

// NewContext returns a fresh origin context.
func NewContext() Context {
	return Context{ID: NewULID()}
}

// Child returns a context derived from c for follow-on writes.
func (c Context) Child() Context {
	return Context{ID: NewULID(), ParentID: c.ID.String(), UserID: c.UserID}
}

type contextJSON struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`
	UserID   *string `json:"user_id"`
}

// wire renders the context for JSON payloads, with absent fields null.
func (c Context) wire() contextJSON {
	w := contextJSON{ID: c.ID.String()}
	if c.ParentID != "" {
		w.ParentID = &c.ParentID
	}
	if c.UserID != "" {
		w.UserID = &c.UserID
	}
	return w
}
