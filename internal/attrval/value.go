// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

// Package attrval implements attribute values on top of go-cty's dynamic
// type system.
//
// cty gives the engine the attribute semantics the comparator itself
// refuses to define: numbers are arbitrary precision (so 1 and 1.0 are
// the same number), strings/bools/nulls are distinct types that never
// coerce, and tuples and objects compare structurally. The one case cty
// cannot decide is a comparison against an unknown value, which surfaces
// as a COMPARISON_FAILED error rather than a verdict.
package attrval

import (
	"encoding/json"
	"fmt"

	"github.com/samber/oops"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/hearthd/hearthd/internal/attrs"
)

// Value wraps a cty value and satisfies attrs.Value. The zero Value is
// null.
type Value struct {
	raw cty.Value
}

// Wrap adapts a raw cty value. cty.NilVal is normalized to null so the
// result is always safe to compare and serialize.
func Wrap(raw cty.Value) Value {
	return Value{raw: raw}
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{raw: cty.BoolVal(b)} }

// String returns a string value.
func String(s string) Value { return Value{raw: cty.StringVal(s)} }

// Int returns a whole-number value.
func Int(i int64) Value { return Value{raw: cty.NumberIntVal(i)} }

// Float returns a fractional-number value. Int and Float produce the
// same kind of number: Int(1) equals Float(1).
func Float(f float64) Value { return Value{raw: cty.NumberFloatVal(f)} }

// List returns a sequence value preserving each element's own type.
func List(vals ...Value) Value {
	if len(vals) == 0 {
		return Value{raw: cty.EmptyTupleVal}
	}
	elems := make([]cty.Value, len(vals))
	for i, v := range vals {
		elems[i] = v.cty()
	}
	return Value{raw: cty.TupleVal(elems)}
}

// Object returns a mapping value preserving each field's own type.
func Object(fields map[string]Value) Value {
	if len(fields) == 0 {
		return Value{raw: cty.EmptyObjectVal}
	}
	elems := make(map[string]cty.Value, len(fields))
	for name, v := range fields {
		elems[name] = v.cty()
	}
	return Value{raw: cty.ObjectVal(elems)}
}

// Raw returns the underlying cty value.
func (v Value) Raw() cty.Value { return v.cty() }

// cty returns the underlying value with cty.NilVal normalized to null,
// keeping every method safe on the zero Value.
func (v Value) cty() cty.Value {
	if v.raw.Type() == cty.NilType {
		return cty.NullVal(cty.DynamicPseudoType)
	}
	return v.raw
}

// Equal implements attrs.Value. Values of a foreign attrs.Value
// implementation compare unequal rather than erroring; only a comparison
// cty cannot resolve (an unknown on either side) is an error.
func (v Value) Equal(other attrs.Value) (bool, error) {
	ov, ok := other.(Value)
	if !ok {
		return false, nil
	}
	a, b := v.cty(), ov.cty()
	if !a.IsWhollyKnown() || !b.IsWhollyKnown() {
		return false, oops.Code("COMPARISON_FAILED").
			With("left", a.GoString()).
			With("right", b.GoString()).
			Errorf("cannot compare unknown values")
	}
	eq := a.Equals(b)
	if eq.IsMarked() {
		eq, _ = eq.Unmark()
	}
	if !eq.IsKnown() {
		return false, oops.Code("COMPARISON_FAILED").
			With("left", a.GoString()).
			With("right", b.GoString()).
			Errorf("comparison did not resolve to a verdict")
	}
	return eq.True(), nil
}

// MarshalJSON serializes the value in its natural JSON shape, so
// attribute maps embed cleanly in state payloads.
func (v Value) MarshalJSON() ([]byte, error) {
	c := v.cty()
	if c.Type() == cty.DynamicPseudoType {
		// Only null carries the dynamic pseudo-type; ctyjson would
		// wrap it in a type annotation.
		return []byte("null"), nil
	}
	return ctyjson.Marshal(c, c.Type())
}

// Native converts the value back to plain Go data: nil, bool, float64,
// string, []any, and map[string]any.
func (v Value) Native() (any, error) {
	c := v.cty()
	if c.IsNull() {
		return nil, nil
	}
	if !c.IsKnown() {
		return nil, oops.Code("COMPARISON_FAILED").
			Errorf("unknown value has no native form")
	}
	ty := c.Type()
	switch {
	case ty == cty.Bool:
		return c.True(), nil
	case ty == cty.Number:
		f, _ := c.AsBigFloat().Float64()
		return f, nil
	case ty == cty.String:
		return c.AsString(), nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := make([]any, 0, c.LengthInt())
		for it := c.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			n, err := Wrap(ev).Native()
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, c.LengthInt())
		for it := c.ElementIterator(); it.Next(); {
			kv, ev := it.Element()
			n, err := Wrap(ev).Native()
			if err != nil {
				return nil, err
			}
			out[kv.AsString()] = n
		}
		return out, nil
	default:
		return nil, oops.Code("UNSUPPORTED_ATTRIBUTE").
			With("type", ty.FriendlyName()).
			Errorf("no native form for %s", ty.FriendlyName())
	}
}

// FromNative converts JSON-shaped Go data (as produced by encoding/json
// and yaml decoding) into a Value. Sequences become tuples and mappings
// become objects, so heterogeneous collections round-trip.
func FromNative(native any) (Value, error) {
	switch x := native.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint64:
		return Value{raw: cty.NumberUIntVal(x)}, nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case json.Number:
		n, err := cty.ParseNumberVal(x.String())
		if err != nil {
			return Value{}, oops.Code("UNSUPPORTED_ATTRIBUTE").
				With("number", x.String()).
				Wrap(err)
		}
		return Value{raw: n}, nil
	case []any:
		elems := make([]Value, len(x))
		for i, e := range x {
			v, err := FromNative(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return List(elems...), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for name, e := range x {
			v, err := FromNative(e)
			if err != nil {
				return Value{}, oops.With("attribute", name).Wrap(err)
			}
			fields[name] = v
		}
		return Object(fields), nil
	default:
		return Value{}, oops.Code("UNSUPPORTED_ATTRIBUTE").
			With("type", fmt.Sprintf("%T", native)).
			Errorf("unsupported attribute value type %T", native)
	}
}

// MapFromNative converts a plain attribute mapping into an attrs.Map.
func MapFromNative(native map[string]any) (attrs.Map, error) {
	m := make(attrs.Map, len(native))
	for key, nv := range native {
		v, err := FromNative(nv)
		if err != nil {
			return nil, oops.With("attribute", key).Wrap(err)
		}
		m[key] = v
	}
	return m, nil
}

// MapToNative converts an attrs.Map of attrval values back to plain Go
// data. Foreign attrs.Value implementations are rejected.
func MapToNative(m attrs.Map) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for key, av := range m {
		v, ok := av.(Value)
		if !ok {
			return nil, oops.Code("UNSUPPORTED_ATTRIBUTE").
				With("attribute", key).
				Errorf("attribute %q is not an attrval value", key)
		}
		n, err := v.Native()
		if err != nil {
			return nil, oops.With("attribute", key).Wrap(err)
		}
		out[key] = n
	}
	return out, nil
}
