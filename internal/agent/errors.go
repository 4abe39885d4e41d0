package agent

import "errors"

// ErrEmptyCompletion is returned by an LLMClient whose provider answered
// without any text.
var ErrEmptyCompletion = errors.New("llm returned no content")

// ResponseError means the LLM answered but the answer was not a valid patch:
// not JSON, not matching the schema, or failing Spec validation.
type ResponseError struct {
	Err error
}

func (e *ResponseError) Error() string { return "invalid agent response: " + e.Err.Error() }
func (e *ResponseError) Unwrap() error { return e.Err }

// UnavailableError means the LLM call itself failed: quota, outage, timeout
// or a rejected request.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string { return "agent unavailable: " + e.Err.Error() }
func (e *UnavailableError) Unwrap() error { return e.Err }
