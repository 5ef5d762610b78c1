package filter

import (
	"fmt"

	"github.com/roach88/jsonapiq/internal/queryspec"
)

// UnknownOperatorError reports an explicit filter key that is not a known
// comparison operator, with or without an "or" prefix.
type UnknownOperatorError struct {
	Field    string
	Operator string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("%s: field %q: unknown operator %q", e.Code(), e.Field, e.Operator)
}

// Code implements queryspec.CodedError.
func (e *UnknownOperatorError) Code() queryspec.ErrorCode { return queryspec.CodeUnknownOperator }

// Is matches queryspec.ErrInvalidQuery.
func (e *UnknownOperatorError) Is(target error) bool { return target == queryspec.ErrInvalidQuery }

// MalformedFilterError reports a filter value with an unusable shape, such
// as a map nested below an operator key.
type MalformedFilterError struct {
	Field   string
	Message string
}

func (e *MalformedFilterError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", e.Code(), e.Field, e.Message)
}

// Code implements queryspec.CodedError.
func (e *MalformedFilterError) Code() queryspec.ErrorCode { return queryspec.CodeMalformedFilter }

// Is matches queryspec.ErrInvalidQuery.
func (e *MalformedFilterError) Is(target error) bool { return target == queryspec.ErrInvalidQuery }
