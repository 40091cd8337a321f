package wishlist

import (
	"errors"
	"fmt"
)

// ErrRequestFailed is the only failure kind surfaced to the presentation layer. Any non-200
// status and any transport failure unwraps to it.
var ErrRequestFailed = errors.New("request failed")

// RequestError records which request failed and the HTTP status, when there was one
type RequestError struct {
	Op     string
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

// Unwrap exposes ErrRequestFailed and the transport error, if any
func (e *RequestError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRequestFailed, e.Err}
	}
	return []error{ErrRequestFailed}
}

func statusError(op string, status int) error {
	return &RequestError{Op: op, Status: status}
}

func transportError(op string, err error) error {
	return &RequestError{Op: op, Err: err}
}
