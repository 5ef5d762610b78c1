// Package operator holds the closed set of filter operators, the shorthand
// prefix table, and the scalar coercions applied to every filter value.
//
// All tables are immutable package state; every function here is pure and
// safe for concurrent use.
package operator

import (
	"strings"
)

// Operator is a filter operator name as understood by the downstream
// query-execution engine.
//
// contains, startsWith and endsWith are surface syntax only: ApplyPatternWrapping
// always rewrites them to Like before they reach a compiled QuerySpec.
type Operator string

const (
	And        Operator = "and"
	Or         Operator = "or"
	Eq         Operator = "eq"
	Ne         Operator = "ne"
	In         Operator = "in"
	NotIn      Operator = "notIn"
	Lt         Operator = "lt"
	Gt         Operator = "gt"
	Gte        Operator = "gte"
	Lte        Operator = "lte"
	Between    Operator = "between"
	NotBetween Operator = "notBetween"
	Like       Operator = "like"
	NotLike    Operator = "notLike"
	Contains   Operator = "contains"
	StartsWith Operator = "startsWith"
	EndsWith   Operator = "endsWith"
)

// All lists every valid operator in declaration order.
var All = []Operator{
	And, Or, Eq, Ne, In, NotIn, Lt, Gt, Gte, Lte,
	Between, NotBetween, Like, NotLike, Contains, StartsWith, EndsWith,
}

// byLowerName maps the lower-cased spelling of every operator to its
// canonical casing. Built once from All so the mapping is total.
var byLowerName = func() map[string]Operator {
	m := make(map[string]Operator, len(All))
	for _, op := range All {
		m[strings.ToLower(string(op))] = op
	}
	return m
}()

// Lookup resolves an operator name case-insensitively ("notin", "NotIn" and
// "notIn" all resolve to NotIn). Unmapped names report false; callers must
// reject them rather than pass them through.
func Lookup(name string) (Operator, bool) {
	op, ok := byLowerName[strings.ToLower(name)]
	return op, ok
}

// IsList reports whether the operator always carries a list of values.
func (o Operator) IsList() bool {
	switch o {
	case In, NotIn, Between, NotBetween:
		return true
	}
	return false
}

// IsLogical reports whether the operator is a connective rather than a
// field comparison.
func (o Operator) IsLogical() bool {
	return o == And || o == Or
}

// IsPattern reports whether the operator compiles to a LIKE pattern.
func (o Operator) IsPattern() bool {
	switch o {
	case Like, NotLike, Contains, StartsWith, EndsWith:
		return true
	}
	return false
}

func (o Operator) String() string {
	return string(o)
}
