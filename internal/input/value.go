// Package input defines the flat query-input object consumed by the
// compiler and the adapters that build it from HTTP query strings and
// cloud-function events.
//
// The object is a tree of ordered maps whose leaves are strings or string
// lists, which is exactly what bracketed query keys decode to:
//
//	filter[users][age]=>18&filter[users][age]=<65&include=posts
//
// becomes
//
//	{filter: {users: {age: [">18", "<65"]}}, include: "posts"}
//
// Key order is preserved everywhere because encounter order is observable in
// the compiled output (OR groups, sort terms, include siblings).
package input

// Kind discriminates the shape held by a Value.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "none"
	}
}

// Value is one node of the query-input tree.
type Value struct {
	kind Kind
	str  string
	list []string
	m    *Map
}

// String wraps a scalar value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// List wraps repeated values for one key.
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Nested wraps a map value.
func Nested(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// Kind returns the shape of the value.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether the value is absent.
func (v Value) IsZero() bool { return v.kind == KindNone }

// Str returns the scalar, or "" for other shapes.
func (v Value) Str() string { return v.str }

// Strings returns the value as a list: a scalar becomes a singleton and a map
// yields nil.
func (v Value) Strings() []string {
	switch v.kind {
	case KindString:
		return []string{v.str}
	case KindList:
		return v.list
	}
	return nil
}

// Map returns the nested map, or nil for other shapes.
func (v Value) Map() *Map {
	if v.kind != KindMap {
		return nil
	}
	return v.m
}

// Map is an insertion-ordered string-keyed map of Values.
// The zero value is not usable; a nil *Map behaves as an empty map for reads.
type Map struct {
	keys []string
	vals map[string]Value
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

// Set stores v under key. A key keeps the position of its first insertion.
func (m *Map) Set(key string, v Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// SetString is shorthand for Set(key, String(s)).
func (m *Map) SetString(key, s string) {
	m.Set(key, String(s))
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Append adds s under key: an absent key becomes a scalar, a scalar becomes
// a two-element list and a list grows.
func (m *Map) Append(key, s string) bool {
	cur, ok := m.vals[key]
	if !ok {
		m.Set(key, String(s))
		return true
	}
	switch cur.kind {
	case KindString:
		m.vals[key] = Value{kind: KindList, list: []string{cur.str, s}}
	case KindList:
		m.vals[key] = Value{kind: KindList, list: append(cur.list, s)}
	default:
		return false
	}
	return true
}
