package harness

import (
	"fmt"

	"github.com/roach88/jsonapiq/internal/queryspec"
)

// outcome is the result of one compilation of a scenario query: a spec
// with its canonical form, or the code of the input error that rejected it.
type outcome struct {
	spec      *queryspec.QuerySpec
	specJSON  string
	hash      string
	errorCode string
	err       string
}

// Result is the outcome of running one scenario.
type Result struct {
	Pass   bool   `json:"pass"`
	PassID string `json:"pass_id"`

	// Accepted queries carry Spec in JSON form, its canonical encoding and
	// fingerprint. Rejected ones carry ErrorCode and Error instead.
	Spec        map[string]any `json:"spec,omitempty"`
	SpecJSON    string         `json:"spec_json,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	Error       string         `json:"error,omitempty"`

	SQL  string `json:"sql,omitempty"`
	Args []any  `json:"args,omitempty"`

	// Errors lists failed expectations.
	Errors []string `json:"errors,omitempty"`
}

func newResult(passID string, o outcome) (*Result, error) {
	r := &Result{
		Pass:      true,
		PassID:    passID,
		ErrorCode: o.errorCode,
		Error:     o.err,
		Errors:    []string{},
	}
	if o.spec == nil {
		return r, nil
	}
	spec, err := o.spec.ToMap()
	if err != nil {
		return nil, err
	}
	r.Spec, r.SpecJSON, r.Fingerprint = spec, o.specJSON, o.hash
	return r, nil
}

// Failf records a failed expectation.
func (r *Result) Failf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Rejected reports whether the query was rejected.
func (r *Result) Rejected() bool {
	return r.ErrorCode != ""
}
