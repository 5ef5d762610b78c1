package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/jsonapiq/internal/canonical"
)

// AssertionError is returned when an expectation fails.
type AssertionError struct {
	Field    string // expectation name, e.g. "where"
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateExpect compares a result against the scenario's expectations.
// Returns a slice of error messages for failed expectations.
func EvaluateExpect(result *Result, expect Expect) []string {
	var errors []string
	fail := func(err error) {
		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	if expect.Rejects() {
		if !result.Rejected() {
			fail(&AssertionError{
				Field:    "error_code",
				Expected: expect.ErrorCode,
				Actual:   "accepted: " + result.SpecJSON,
			})
		} else if result.ErrorCode != expect.ErrorCode {
			fail(&AssertionError{
				Field:    "error_code",
				Expected: expect.ErrorCode,
				Actual:   result.ErrorCode + ": " + result.Error,
			})
		}
		return errors
	}

	if result.Rejected() {
		fail(&AssertionError{
			Field:    "error_code",
			Expected: "query accepted",
			Actual:   result.ErrorCode + ": " + result.Error,
		})
		return errors
	}

	checks := []struct {
		field    string
		expected any
	}{
		{"where", expect.Where},
		{"include", expect.Include},
		{"attributes", expect.Attributes},
		{"order", expect.Order},
	}
	for _, c := range checks {
		if c.expected == nil {
			continue
		}
		fail(assertEqual(c.field, c.expected, result.Spec[c.field]))
	}
	if expect.Limit != nil {
		fail(assertEqual("limit", *expect.Limit, result.Spec["limit"]))
	}
	if expect.Offset != nil {
		fail(assertEqual("offset", *expect.Offset, result.Spec["offset"]))
	}

	if expect.SQL != "" {
		if result.SQL != expect.SQL {
			fail(&AssertionError{Field: "sql", Expected: expect.SQL, Actual: result.SQL})
		}
		if expect.Args != nil {
			fail(assertEqual("args", expect.Args, result.Args))
		}
	}
	return errors
}

// assertEqual compares two values in JSON form. Empty lists and objects
// equal an absent value.
func assertEqual(field string, expected, actual any) error {
	exp, err := normalize(expected)
	if err != nil {
		return fmt.Errorf("expect.%s: %w", field, err)
	}
	act, err := normalize(actual)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if isEmpty(exp) && isEmpty(act) {
		return nil
	}
	if reflect.DeepEqual(exp, act) {
		return nil
	}
	return &AssertionError{Field: field, Expected: describe(exp), Actual: describe(act)}
}

// normalize converts v to the values encoding/json produces when decoding
// into any, so YAML integers and compiled float64s compare equal.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

func describe(v any) string {
	if v == nil {
		return "(absent)"
	}
	data, err := canonical.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
