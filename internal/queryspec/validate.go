package queryspec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/jsonapiq/internal/operator"
)

// ValidationResult reports structural problems found in a QuerySpec.
//
// A spec produced by the compiler is always valid; Validate exists for specs
// built or edited by hand and as a test oracle.
type ValidationResult struct {
	// Valid is true when no problems were found.
	Valid bool

	// Problems lists every violated invariant, in traversal order.
	Problems []string
}

// Validate checks the invariants every execution backend relies on:
//  1. Operators belong to the closed set and are comparisons, not connectives
//  2. List operators carry a non-empty list; other operators carry a scalar
//  3. Sugar operators (contains, startsWith, endsWith) have been lowered to like
//  4. Relation names are unique among siblings and never empty
//  5. At most one OR entry per qualified field, each "$path.field$" shaped
//  6. Sort directions are asc or desc; limit and offset are non-negative
//
// Validate is a pure function with no side effects.
func Validate(q *QuerySpec) ValidationResult {
	v := &validator{problems: []string{}}
	if q == nil {
		v.addProblem("nil query spec")
	} else {
		v.validateWhere("where", &q.Where)
		v.validateIncludes("include", q.Include)
		v.validateOrder(q.Order)
		if q.Limit != nil && *q.Limit < 0 {
			v.addProblem("limit %d is negative", *q.Limit)
		}
		if q.Offset != nil && *q.Offset < 0 {
			v.addProblem("offset %d is negative", *q.Offset)
		}
	}
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateWhere(at string, w *Where) {
	if w == nil {
		return
	}
	fields := make([]string, 0, len(w.Fields))
	for f := range w.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if f == "" {
			v.addProblem("%s: empty field name", at)
		}
		v.validatePredicate(fmt.Sprintf("%s.%s", at, f), w.Fields[f])
	}

	seen := make(map[string]bool, len(w.Or))
	for i, e := range w.Or {
		loc := fmt.Sprintf("%s.%s[%d]", at, OrKey, i)
		if seen[e.Field] {
			v.addProblem("%s: duplicate OR entry for %s", loc, e.Field)
		}
		seen[e.Field] = true
		if !isQualified(e.Field) {
			v.addProblem("%s: %q is not a qualified field reference", loc, e.Field)
		}
		v.validatePredicate(loc, e.Ops)
	}
}

func (v *validator) validatePredicate(at string, p FieldPredicate) {
	for op, val := range p {
		known, ok := operator.Lookup(string(op))
		if !ok || known != op {
			v.addProblem("%s: unknown operator %q", at, op)
			continue
		}
		if op.IsLogical() {
			v.addProblem("%s: logical operator %q used as comparison", at, op)
		}
		switch op {
		case operator.Contains, operator.StartsWith, operator.EndsWith:
			v.addProblem("%s: operator %q must be lowered to like", at, op)
		}
		list, isList := val.([]any)
		if op.IsList() && (!isList || len(list) == 0) {
			v.addProblem("%s: operator %q requires a non-empty list", at, op)
		}
		if !op.IsList() && isList {
			v.addProblem("%s: operator %q requires a single value", at, op)
		}
	}
}

func (v *validator) validateIncludes(at string, nodes []IncludeNode) {
	seen := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		loc := fmt.Sprintf("%s[%d]", at, i)
		if n.Relation == "" {
			v.addProblem("%s: empty relation name", loc)
		}
		if seen[n.Relation] {
			v.addProblem("%s: duplicate sibling relation %q", loc, n.Relation)
		}
		seen[n.Relation] = true
		if n.Where != nil {
			if len(n.Where.Or) > 0 {
				v.addProblem("%s: OR entries must be lifted to the root predicate", loc)
			}
			v.validateWhere(loc+".where", n.Where)
		}
		v.validateIncludes(loc+".include", n.Include)
	}
}

func (v *validator) validateOrder(order []SortTerm) {
	for i, t := range order {
		if t.Field == "" {
			v.addProblem("order[%d]: empty field", i)
		}
		if t.Direction != Asc && t.Direction != Desc {
			v.addProblem("order[%d]: invalid direction %q", i, t.Direction)
		}
	}
}

// isQualified reports whether ref has the "$path.field$" shape.
func isQualified(ref string) bool {
	if len(ref) < 5 || !strings.HasPrefix(ref, "$") || !strings.HasSuffix(ref, "$") {
		return false
	}
	inner := ref[1 : len(ref)-1]
	dot := strings.LastIndexByte(inner, '.')
	return dot > 0 && dot < len(inner)-1
}
