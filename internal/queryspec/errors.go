package queryspec

import "errors"

// ErrInvalidQuery is matched (errors.Is) by every error that rejects a
// compilation pass because of its input.
var ErrInvalidQuery = errors.New("invalid query")

// ErrorCode categorizes input errors for reporting.
type ErrorCode string

const (
	// CodeUnknownOperator: an explicit filter key names no known operator.
	CodeUnknownOperator ErrorCode = "UNKNOWN_OPERATOR"

	// CodeMalformedFilter: a filter value has a shape no parser accepts.
	CodeMalformedFilter ErrorCode = "MALFORMED_FILTER"

	// CodeMalformedInteger: limit or offset is not a non-negative integer.
	CodeMalformedInteger ErrorCode = "MALFORMED_INTEGER"

	// CodeUnboundedRecursion: an include path is deeper than allowed.
	CodeUnboundedRecursion ErrorCode = "UNBOUNDED_RECURSION"

	// CodeInvalidSort: a sort term has an unknown direction or empty field.
	CodeInvalidSort ErrorCode = "INVALID_SORT"
)

// CodedError is implemented by every input error so callers can report a
// stable code without knowing the concrete type.
type CodedError interface {
	error
	Code() ErrorCode
}

// CodeOf returns the code of the first CodedError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var ce CodedError
	if errors.As(err, &ce) {
		return ce.Code(), true
	}
	return "", false
}
