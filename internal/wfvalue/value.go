// Package wfvalue implements the tagged dynamic value carried through
// workflow step outputs, globals, hook inputs and tool parameters.
//
// The engine is consumed by callers who hand it opaque data: a step's
// output might be a string, a number, a nested map of tool results, or
// nothing at all. Rather than threading interface{} through every
// component, each boundary (JSON import/export, schema validation, tool
// invocation) converts through Value so the core stays statically typed.
package wfvalue

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind tags the underlying shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "array"
	case KindMap:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an immutable tagged union over the five primitive shapes plus
// null. Zero value is Null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list []Value
	m    map[string]Value
}

// Null returns the absent value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List wraps a slice of values, copying the input.
func List(items ...Value) Value {
	cp := append([]Value(nil), items...)
	return Value{kind: KindList, list: cp}
}

// Map wraps a string-keyed map of values, copying the input.
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// Kind reports the tag of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value carries no data.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload, if the kind matches.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns the numeric payload, if the kind matches.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.n, true
}

// AsString returns the string payload, if the kind matches.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsList returns a copy of the list payload, if the kind matches.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return append([]Value(nil), v.list...), true
}

// AsMap returns a copy of the map payload, if the kind matches.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	cp := make(map[string]Value, len(v.m))
	for k, val := range v.m {
		cp[k] = val
	}
	return cp, true
}

// Get performs a dotted-path lookup through nested maps, e.g. "a.b.c".
// It returns the zero Value and false if any segment is missing or not
// a map.
func (v Value) Get(path string) (Value, bool) {
	if path == "" {
		return v, true
	}
	current := v
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			segment := path[start:i]
			m, ok := current.AsMap()
			if !ok {
				return Value{}, false
			}
			next, ok := m[segment]
			if !ok {
				return Value{}, false
			}
			current = next
			start = i + 1
		}
	}
	return current, true
}

// Equal performs a structural, order-sensitive comparison for lists and
// key-set comparison for maps.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, val := range v.m {
			ov, ok := other.m[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// FromAny converts an arbitrary Go value obtained from JSON decoding (or
// similar dynamic sources) into a Value. Unsupported types are wrapped as
// their fmt.Sprintf string form rather than causing an error, matching the
// source system's permissive "unknown" semantics.
func FromAny(v interface{}) Value {
	switch val := v.(type) {
	case nil:
		return Null()
	case Value:
		return val
	case bool:
		return Bool(val)
	case float64:
		return Number(val)
	case int:
		return Number(float64(val))
	case int64:
		return Number(float64(val))
	case string:
		return String(val)
	case []interface{}:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = FromAny(item)
		}
		return List(items...)
	case map[string]interface{}:
		m := make(map[string]Value, len(val))
		for k, item := range val {
			m[k] = FromAny(item)
		}
		return Map(m)
	default:
		return String(fmt.Sprintf("%v", val))
	}
}

// ToAny converts the value back into a plain interface{} tree suitable for
// json.Marshal or callers expecting dynamic data.
func (v Value) ToAny() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, item := range v.m {
			out[k] = item.ToAny()
		}
		return out
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// String renders a stable, human-readable form primarily for logging.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindNumber:
		return fmt.Sprintf("%g", v.n)
	case KindString:
		return v.s
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return fmt.Sprintf("%v", parts)
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, v.m[k].String()))
		}
		return fmt.Sprintf("%v", parts)
	}
	return ""
}
