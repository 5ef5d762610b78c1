package compiler

import (
	"fmt"

	"github.com/roach88/jsonapiq/internal/queryspec"
)

// MalformedIntegerError reports a limit or offset that is not a
// non-negative decimal integer.
type MalformedIntegerError struct {
	Param string
	Value string
}

func (e *MalformedIntegerError) Error() string {
	return fmt.Sprintf("%s: %s %q is not a non-negative integer", e.Code(), e.Param, e.Value)
}

// Code implements queryspec.CodedError.
func (e *MalformedIntegerError) Code() queryspec.ErrorCode { return queryspec.CodeMalformedInteger }

// Is matches queryspec.ErrInvalidQuery.
func (e *MalformedIntegerError) Is(target error) bool { return target == queryspec.ErrInvalidQuery }
