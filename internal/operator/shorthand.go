package operator

import (
	"fmt"
	"strings"
)

// shorthand maps a leading value character to the operator it implies.
var shorthand = map[byte]Operator{
	'<':  Lt,
	'>':  Gt,
	'~':  Like,
	'!':  Ne,
	':':  Between,
	'/':  StartsWith,
	'\\': EndsWith,
}

// DecodeShorthand strips a leading shorthand character from raw and returns
// the operator it implies. Values without one return (def, raw).
//
//	DecodeShorthand(">18", Eq)    // Gt, "18"
//	DecodeShorthand("active", Eq) // Eq, "active"
func DecodeShorthand(raw string, def Operator) (Operator, string) {
	if raw == "" {
		return def, raw
	}
	if op, ok := shorthand[raw[0]]; ok {
		return op, raw[1:]
	}
	return def, raw
}

// Shorthand returns the prefix character for op, if it has one.
func Shorthand(op Operator) (byte, bool) {
	for c, o := range shorthand {
		if o == op {
			return c, true
		}
	}
	return 0, false
}

// CoerceLiteral maps boolean literals to 1/0 and the literal "null" (any
// case) to nil. Everything else is returned unchanged.
func CoerceLiteral(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		switch {
		case val == "true":
			return 1
		case val == "false":
			return 0
		case strings.EqualFold(val, "null"):
			return nil
		}
	}
	return v
}

// ApplyPatternWrapping rewrites pattern sugar into LIKE patterns:
//
//	contains   -> like "%v%"
//	like       -> like "%v%"
//	notLike    -> notLike "%v%"
//	startsWith -> like "v%"
//	endsWith   -> like "%v"
//
// Other operators are returned unchanged, as is a nil value.
func ApplyPatternWrapping(op Operator, v any) (Operator, any) {
	if v == nil {
		if op == Contains || op == StartsWith || op == EndsWith {
			return Like, nil
		}
		return op, nil
	}
	if !op.IsPattern() {
		return op, v
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	switch op {
	case Contains, Like:
		return Like, "%" + s + "%"
	case NotLike:
		return NotLike, "%" + s + "%"
	case StartsWith:
		return Like, s + "%"
	case EndsWith:
		return Like, "%" + s
	}
	return op, v
}
