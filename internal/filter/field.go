package filter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/jsonapiq/internal/input"
	"github.com/roach88/jsonapiq/internal/operator"
)

// orPrefix marks a condition for OR-routing, either on an operator key
// ("orLike") or on a camel-cased field name ("orEmail").
const orPrefix = "or"

// reservedPrefix starts queryspec.OrKey and the qualified OR field names.
const reservedPrefix = "$"

// Condition is one parsed comparison on one field.
//
// List operators (in, notIn, between, notBetween) carry Values; every other
// operator carries Value, which is nil for a "null" literal.
type Condition struct {
	Field    string
	Operator operator.Operator
	Value    any
	Values   []any
	Or       bool
}

// entry is one operator key of the explicit-map shape before validation.
type entry struct {
	key   string
	value input.Value
}

// ParseField converts the raw filter value of one field into conditions, in
// encounter order.
//
// Accepted shapes:
//
//	"active"                 eq active
//	"active,pending"         in [active pending]
//	">18"                    gt 18 (shorthand prefix)
//	[">18", "<65"]           gt 18, lt 65 (repeated keys)
//	{gte: "18", orLike: "x"} explicit operators; an "or" prefix OR-routes
//
// A field named "or" followed by an upper-case letter ("orEmail") OR-routes
// every condition and is reported under its remainder ("email").
//
// Field names starting with '$' are reserved for the encoded disjunction
// and are rejected.
func ParseField(field string, raw input.Value) ([]Condition, error) {
	if strings.HasPrefix(field, reservedPrefix) {
		return nil, &MalformedFilterError{Field: field, Message: "field names starting with " + reservedPrefix + " are reserved"}
	}
	field, fieldOr := splitOrField(field)

	entries, err := explicitEntries(field, raw)
	if err != nil {
		return nil, err
	}

	var out []Condition
	for _, e := range entries {
		op, isOr, err := resolveOperator(field, e.key)
		if err != nil {
			return nil, err
		}
		isOr = isOr || fieldOr

		elems, err := normalizeValues(field, op, e.value)
		if err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			continue
		}

		if op.IsList() {
			values := make([]any, 0, len(elems))
			for _, el := range elems {
				_, v := operator.ApplyPatternWrapping(op, operator.CoerceLiteral(el))
				values = append(values, v)
			}
			out = append(out, Condition{Field: field, Operator: op, Values: values, Or: isOr})
			continue
		}

		for _, el := range elems {
			finalOp, v := operator.ApplyPatternWrapping(op, operator.CoerceLiteral(el))
			out = append(out, Condition{Field: field, Operator: finalOp, Value: v, Or: isOr})
		}
	}
	return out, nil
}

// explicitEntries rewrites every accepted shape into the explicit-map shape.
func explicitEntries(field string, raw input.Value) ([]entry, error) {
	switch raw.Kind() {
	case input.KindString:
		s := raw.Str()
		def := operator.Eq
		if strings.Contains(s, ",") {
			def = operator.In
		}
		op, v := operator.DecodeShorthand(s, def)
		return []entry{{key: string(op), value: input.String(v)}}, nil

	case input.KindList:
		var order []operator.Operator
		grouped := make(map[operator.Operator][]string)
		for _, el := range raw.Strings() {
			op, v := operator.DecodeShorthand(el, operator.Eq)
			if _, seen := grouped[op]; !seen {
				order = append(order, op)
			}
			grouped[op] = append(grouped[op], v)
		}
		entries := make([]entry, 0, len(order))
		for _, op := range order {
			vals := grouped[op]
			if len(vals) == 1 {
				entries = append(entries, entry{key: string(op), value: input.String(vals[0])})
				continue
			}
			entries = append(entries, entry{key: string(op), value: input.List(vals...)})
		}
		return entries, nil

	case input.KindMap:
		m := raw.Map()
		entries := make([]entry, 0, m.Len())
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			entries = append(entries, entry{key: k, value: v})
		}
		return entries, nil
	}
	return nil, &MalformedFilterError{Field: field, Message: "empty filter value"}
}

// resolveOperator validates an operator key, stripping an "or" prefix.
func resolveOperator(field, key string) (operator.Operator, bool, error) {
	op, ok := operator.Lookup(key)
	isOr := false
	if !ok && len(key) > len(orPrefix) && strings.EqualFold(key[:len(orPrefix)], orPrefix) {
		op, ok = operator.Lookup(key[len(orPrefix):])
		isOr = ok
	}
	if !ok || op.IsLogical() {
		return "", false, &UnknownOperatorError{Field: field, Operator: key}
	}
	return op, isOr, nil
}

// normalizeValues turns one operator's raw value into its element list.
// Lists drop blank entries; scalars split on commas for list operators.
func normalizeValues(field string, op operator.Operator, v input.Value) ([]string, error) {
	switch v.Kind() {
	case input.KindList:
		return nonBlank(v.Strings()), nil
	case input.KindString:
		if op.IsList() {
			return nonBlank(strings.Split(v.Str(), ",")), nil
		}
		return []string{v.Str()}, nil
	}
	return nil, &MalformedFilterError{
		Field:   field,
		Message: "operator " + string(op) + " expects a value or list, got " + v.Kind().String(),
	}
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitOrField strips a camel-case "or" prefix from a field name:
// "orEmail" -> ("email", true). "order" and "origin" are left alone.
func splitOrField(field string) (string, bool) {
	if !strings.HasPrefix(field, orPrefix) || len(field) == len(orPrefix) {
		return field, false
	}
	rest := field[len(orPrefix):]
	r, size := utf8.DecodeRuneInString(rest)
	if !unicode.IsUpper(r) {
		return field, false
	}
	return string(unicode.ToLower(r)) + rest[size:], true
}
