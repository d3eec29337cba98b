// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

// Package attrs compares entity attribute mappings.
//
// The state engine calls Equal once per state write to decide whether an
// entity's attributes changed, so the comparison is ordered to exit as
// cheaply as possible: map identity first, then size, and only then a
// key-by-key scan. The package never inspects attribute values itself;
// value semantics (null, numbers, nested collections) belong to the
// Value implementation, which the scan merely delegates to.
//
// Maps are always borrowed: nothing here mutates, copies, or retains
// them.
package attrs

import "reflect"

// Value is an attribute value that knows how to compare itself to
// another. Implementations define their own equality semantics; an error
// means the two values could not be compared at all, which is distinct
// from comparing unequal.
type Value interface {
	Equal(other Value) (bool, error)
}

// Map is an attribute mapping keyed by attribute name.
type Map map[string]Value

// Equal reports whether a and b hold equal attributes.
//
// The checks run strictly in order: if a and b share the same underlying
// map the result is true without reading a single value, which also
// keeps Equal reflexive when a map holds values that fail to compare
// even to themselves. If the sizes differ the result is false, again
// without touching values. Only then are keys scanned, stopping at the
// first missing key, unequal value, or value error. Value errors are
// returned to the caller untouched.
func Equal(a, b Map) (bool, error) {
	if sameMap(a, b) {
		return true, nil
	}
	if len(a) != len(b) {
		return false, nil
	}
	for key, av := range a {
		bv, ok := b[key]
		if !ok {
			return false, nil
		}
		eq, err := valueEqual(av, bv)
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}

// sameMap reports whether a and b are the same map, not merely equal
// ones. Two nil maps compare as the same.
func sameMap(a, b Map) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// valueEqual compares two attribute values: nil handling, then identity,
// then the values' own Equal. Identity only short-circuits for
// pointer-shaped values; value-shaped implementations are copied when
// boxed, so their equality always goes through Equal.
func valueEqual(a, b Value) (bool, error) {
	if a == nil || b == nil {
		return a == b, nil
	}
	if identical(a, b) {
		return true, nil
	}
	return a.Equal(b)
}

// identical reports whether a and b box the very same underlying object.
// Interface equality (==) would panic on uncomparable dynamic types, so
// the check goes through reflect and only claims identity for kinds
// with a meaningful address.
func identical(a, b Value) bool {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	default:
		return false
	}
}
