// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

// Package entityid validates and splits entity identifiers of the form
// "domain.object_id", such as "light.kitchen" or "sensor.outdoor_temp".
//
// These functions sit on the engine's hottest path: every state write
// validates its identifier first. All checks are single forward byte
// scans with no regular expressions and no allocation. Identifiers are
// byte-oriented ASCII; case folding is deliberately absent, so uppercase
// input is rejected, never normalized.
package entityid

import (
	"errors"
	"strings"

	"github.com/samber/oops"
)

// MaxDomainLength is the maximum length of a domain in bytes.
const MaxDomainLength = 64

// ErrInvalidEntityID reports a string that cannot be split into a domain
// and an object ID.
var ErrInvalidEntityID = errors.New("invalid entity identifier")

// ValidDomain reports whether domain is well formed: 1 to MaxDomainLength
// bytes of lowercase ASCII letters, digits, and underscores, with no two
// underscores adjacent. Unlike object IDs, domains may begin or end with
// an underscore.
func ValidDomain(domain string) bool {
	if len(domain) == 0 || len(domain) > MaxDomainLength {
		return false
	}
	prevUnderscore := false
	for i := 0; i < len(domain); i++ {
		c := domain[i]
		switch {
		case c == '_':
			if prevUnderscore {
				return false
			}
			prevUnderscore = true
		case 'a' <= c && c <= 'z', '0' <= c && c <= '9':
			prevUnderscore = false
		default:
			return false
		}
	}
	return true
}

// ValidObjectID reports whether objectID is well formed: non-empty
// lowercase ASCII letters, digits, and underscores, neither beginning nor
// ending with an underscore. Adjacent interior underscores are allowed,
// so "tv__remote" is a valid object ID even though "tv__remote" would not
// be a valid domain.
func ValidObjectID(objectID string) bool {
	if len(objectID) == 0 {
		return false
	}
	if objectID[0] == '_' || objectID[len(objectID)-1] == '_' {
		return false
	}
	for i := 0; i < len(objectID); i++ {
		c := objectID[i]
		if !('a' <= c && c <= 'z') && !('0' <= c && c <= '9') && c != '_' {
			return false
		}
	}
	return true
}

// Valid reports whether entityID is a well-formed entity identifier: a
// valid domain and a valid object ID separated by a dot. Only the first
// dot splits; any later dots would land in the object ID and fail its
// character check there.
func Valid(entityID string) bool {
	dot := strings.IndexByte(entityID, '.')
	if dot < 0 {
		return false
	}
	return ValidDomain(entityID[:dot]) && ValidObjectID(entityID[dot+1:])
}

// Cut splits entityID at the first dot. It succeeds whenever both sides
// are non-empty and performs no character validation, so callers needing
// well-formed parts must check Valid themselves: "Light.room" cuts
// cleanly yet is not a valid identifier. The returned strings are views
// into entityID, not copies.
func Cut(entityID string) (domain, objectID string, ok bool) {
	dot := strings.IndexByte(entityID, '.')
	if dot <= 0 || dot == len(entityID)-1 {
		return "", "", false
	}
	return entityID[:dot], entityID[dot+1:], true
}

// Split is the erroring form of Cut. When entityID has no dot or an
// empty side it returns ErrInvalidEntityID wrapped with the offending
// string under code INVALID_ENTITY_ID.
func Split(entityID string) (domain, objectID string, err error) {
	domain, objectID, ok := Cut(entityID)
	if !ok {
		return "", "", oops.Code("INVALID_ENTITY_ID").
			With("entity_id", entityID).
			Wrap(ErrInvalidEntityID)
	}
	return domain, objectID, nil
}
