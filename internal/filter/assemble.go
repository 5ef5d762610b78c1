package filter

import (
	"github.com/roach88/jsonapiq/internal/queryspec"
)

// Scope identifies the resource that owns a set of conditions.
type Scope struct {
	// Path is the resource path the conditions were registered under
	// ("users", "posts", "posts.comments").
	Path string

	// Default is true when Path is the default resource.
	Default bool

	// DefaultResource names the default resource; OR references of default
	// conditions are qualified with it.
	DefaultResource string
}

// QualifiedField returns the join-qualified reference for field, such as
// "$users.email$" or "$posts.comments.body$".
func (s Scope) QualifiedField(field string) string {
	owner := s.Path
	if s.Default {
		owner = s.DefaultResource
	}
	return "$" + owner + "." + field + "$"
}

// Assemble folds conditions into the resource's AND predicate and a delta of
// OR entries. The delta is never part of the returned predicate: callers
// merge it into the pass's global disjunction with MergeOr.
//
// AND semantics per field:
//   - list operators accumulate into one list per operator
//   - other operators set their operand (last write wins)
//   - a null operand on any other operator replaces the whole field entry
//     with the null marker
//
// OR semantics: one entry per qualified field; list operators accumulate,
// other operators overwrite.
func Assemble(conds []Condition, scope Scope) (queryspec.Where, []queryspec.OrEntry) {
	where := queryspec.Where{Fields: make(map[string]queryspec.FieldPredicate)}
	var delta []queryspec.OrEntry

	for _, c := range conds {
		if c.Or {
			delta = addOr(delta, scope.QualifiedField(c.Field), c)
			continue
		}
		addAnd(where.Fields, c)
	}
	return where, delta
}

func addAnd(fields map[string]queryspec.FieldPredicate, c Condition) {
	if !c.Operator.IsList() && c.Value == nil {
		fields[c.Field] = nil
		return
	}

	pred := fields[c.Field]
	if pred == nil {
		pred = make(queryspec.FieldPredicate)
		fields[c.Field] = pred
	}
	setOperand(pred, c)
}

func addOr(entries []queryspec.OrEntry, qualified string, c Condition) []queryspec.OrEntry {
	for i := range entries {
		if entries[i].Field == qualified {
			setOperand(entries[i].Ops, c)
			return entries
		}
	}
	ops := make(queryspec.FieldPredicate)
	setOperand(ops, c)
	return append(entries, queryspec.OrEntry{Field: qualified, Ops: ops})
}

// setOperand stores c's operand in pred, appending for list operators.
func setOperand(pred queryspec.FieldPredicate, c Condition) {
	if !c.Operator.IsList() {
		pred[c.Operator] = c.Value
		return
	}
	list, _ := pred[c.Operator].([]any)
	pred[c.Operator] = append(list, c.Values...)
}

// MergeOr merges delta into dst, keeping at most one entry per qualified
// field. dst is not aliased by the result's new entries.
func MergeOr(dst, delta []queryspec.OrEntry) []queryspec.OrEntry {
	for _, d := range delta {
		idx := -1
		for i := range dst {
			if dst[i].Field == d.Field {
				idx = i
				break
			}
		}
		if idx < 0 {
			dst = append(dst, queryspec.OrEntry{Field: d.Field, Ops: d.Ops.Clone()})
			continue
		}
		for op, v := range d.Ops {
			if list, ok := v.([]any); ok && op.IsList() {
				cur, _ := dst[idx].Ops[op].([]any)
				merged := make([]any, 0, len(cur)+len(list))
				merged = append(merged, cur...)
				dst[idx].Ops[op] = append(merged, list...)
				continue
			}
			dst[idx].Ops[op] = v
		}
	}
	return dst
}

// Build parses and assembles every filter registered under scope.Path.
// A resource without filters yields an empty predicate and no delta.
func Build(c *Canonical, scope Scope) (queryspec.Where, []queryspec.OrEntry, error) {
	fields := c.Fields(scope.Path)
	var conds []Condition
	for _, f := range fields.Keys() {
		raw, _ := fields.Get(f)
		parsed, err := ParseField(f, raw)
		if err != nil {
			return queryspec.Where{}, nil, err
		}
		conds = append(conds, parsed...)
	}
	where, delta := Assemble(conds, scope)
	return where, delta, nil
}
