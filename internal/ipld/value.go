// Package ipld implements the self-describing recursive data model
// described by the core spec: null, bool, integer, float, string,
// bytes, list, map, and link(CID). Values are canonically encoded by
// this package's DAG-CBOR and DAG-JSON codecs; CID computation hashes
// the DAG-CBOR form.
package ipld

import (
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"
)

// Kind discriminates the sum type a Value holds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindLink:
		return "link"
	default:
		return "invalid"
	}
}

// Value is the closed IPLD value sum. The zero Value has KindInvalid;
// IsNull reports false for it.
//
// Integer is represented internally as int64. The spec names an
// i128-range integer class; the supported subset here is everything
// that fits int64 (all of s8..s64 and u8..u32 from the WIT mapping
// table, plus u64 values under 2^63). See DESIGN.md for the rationale.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	by   []byte
	list []Value
	m    map[string]Value
	keys []string // caller-provided order; AsMap returns them sorted
	link cid.Cid
}

// Null returns the Null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a signed integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float64.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a UTF-8 string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Bytes wraps a byte string.
func Bytes(b []byte) Value { return Value{kind: KindBytes, by: append([]byte(nil), b...)} }

// List wraps an ordered list of values.
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Map wraps a string-keyed map. AsMap, and therefore both the DAG-CBOR
// and DAG-JSON encodings, return the keys in sorted order regardless of
// the order the caller passed.
func Map(keys []string, values map[string]Value) Value {
	return Value{kind: KindMap, keys: append([]string(nil), keys...), m: values}
}

// MapFromGo builds a Map value from a plain Go map, sorting keys for determinism.
func MapFromGo(m map[string]Value) Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Map(keys, m)
}

// Link wraps a CID reference to another value.
func Link(c cid.Cid) Value { return Value{kind: KindLink, link: c} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool)      { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)      { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)  { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool)  { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)   { return v.by, v.kind == KindBytes }
func (v Value) AsList() ([]Value, bool)   { return v.list, v.kind == KindList }
func (v Value) AsLink() (cid.Cid, bool)   { return v.link, v.kind == KindLink }

// AsMap returns the map's values and its keys in canonical (sorted)
// order, so callers iterating for encoding purposes get a stable result.
func (v Value) AsMap() (map[string]Value, []string, bool) {
	if v.kind != KindMap {
		return nil, nil, false
	}
	keys := make([]string, len(v.keys))
	copy(keys, v.keys)
	sort.Strings(keys)
	return v.m, keys, true
}

// MapGet looks up a single key in a Map value.
func (v Value) MapGet(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	val, ok := v.m[key]
	return val, ok
}

// IsNull reports whether v is the Null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Equal reports deep, kind-aware equality. Two Map values are equal
// regardless of key insertion order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBytes:
		return string(v.by) == string(o.by)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, val := range v.m {
			ov, ok := o.m[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	case KindLink:
		return v.link.Equals(o.link)
	default:
		return false
	}
}

// GoString renders a debug form, used in error messages and test output.
func (v Value) GoString() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.by))
	case KindList:
		return fmt.Sprintf("list(%d)", len(v.list))
	case KindMap:
		return fmt.Sprintf("map(%d)", len(v.m))
	case KindLink:
		return v.link.String()
	default:
		return "invalid"
	}
}
