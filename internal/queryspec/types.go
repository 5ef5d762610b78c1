package queryspec

import (
	"encoding/json"

	"github.com/roach88/jsonapiq/internal/operator"
)

// OrKey is the key under which the disjunction list is encoded inside a
// predicate object. Field names never start with '$', so it cannot collide.
const OrKey = "$or"

// FieldPredicate maps operators to their operand for one field.
//
// List operators (in, notIn, between, notBetween) always hold []any; every
// other operator holds a single value, which may be nil.
//
// A nil FieldPredicate stored in Where.Fields is the equality-to-null marker:
// the field must be NULL.
type FieldPredicate map[operator.Operator]any

// Clone returns a deep copy of p; list operands are copied.
func (p FieldPredicate) Clone() FieldPredicate {
	if p == nil {
		return nil
	}
	out := make(FieldPredicate, len(p))
	for op, v := range p {
		if list, ok := v.([]any); ok {
			cp := make([]any, len(list))
			copy(cp, list)
			out[op] = cp
			continue
		}
		out[op] = v
	}
	return out
}

// OrEntry is one member of the global disjunction: a join-qualified field
// reference ("$users.email$") with its operator map.
type OrEntry struct {
	Field string
	Ops   FieldPredicate
}

// MarshalJSON encodes the entry as {"$users.email$": {"like": "%x%"}}.
func (e OrEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]FieldPredicate{e.Field: e.Ops})
}

// Where is a predicate tree: AND-combined field predicates plus a flat list
// of OR-combined join-qualified predicates.
//
// Semantics:
//
//	<field1 preds> AND <field2 preds> AND (<or1> OR <or2> OR ...)
type Where struct {
	Fields map[string]FieldPredicate
	Or     []OrEntry
}

// IsEmpty reports whether the predicate constrains nothing.
func (w *Where) IsEmpty() bool {
	return w == nil || (len(w.Fields) == 0 && len(w.Or) == 0)
}

// MarshalJSON encodes field predicates as top-level keys and the disjunction
// under OrKey, omitted when empty.
func (w Where) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(w.Fields)+1)
	for field, pred := range w.Fields {
		if pred == nil {
			out[field] = nil
			continue
		}
		out[field] = pred
	}
	if len(w.Or) > 0 {
		out[OrKey] = w.Or
	}
	return json.Marshal(out)
}

// IncludeNode requests one related resource, optionally filtered and
// projected, with nested inclusions.
type IncludeNode struct {
	Relation   string        `json:"association"`
	Required   bool          `json:"required"`
	Attributes []string      `json:"attributes,omitempty"`
	Where      *Where        `json:"where,omitempty"`
	Include    []IncludeNode `json:"include,omitempty"`
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortTerm orders results by one field, optionally of a related resource.
// Path is empty when the field belongs to the default resource.
type SortTerm struct {
	Path      []string
	Field     string
	Direction Direction
}

// Segments returns the engine form [...path, field, direction].
func (s SortTerm) Segments() []string {
	out := make([]string, 0, len(s.Path)+2)
	out = append(out, s.Path...)
	out = append(out, s.Field, string(s.Direction))
	return out
}

// MarshalJSON encodes the term as its segment list.
func (s SortTerm) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Segments())
}

// QuerySpec is the compiled query handed to the execution engine.
type QuerySpec struct {
	Where      Where         `json:"where"`
	Include    []IncludeNode `json:"include,omitempty"`
	Attributes []string      `json:"attributes,omitempty"`
	Order      []SortTerm    `json:"order,omitempty"`
	Limit      *int          `json:"limit,omitempty"`
	Offset     *int          `json:"offset,omitempty"`
}

// ToMap converts the spec to plain JSON-shaped Go values (map[string]any,
// []any, string, float64, nil) for canonical encoding and comparison.
func (q *QuerySpec) ToMap() (map[string]any, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
