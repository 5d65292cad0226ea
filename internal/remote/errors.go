package remote

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned by every platform call made before Login or
// after Logout.
var ErrNoSession = errors.New("remote: not logged in")

// APIError is a non-success response from the attendance platform.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote: %s %s: %s", e.Method, e.Endpoint, e.Status)
	}
	return fmt.Sprintf("remote: %s %s: %s: %s", e.Method, e.Endpoint, e.Status, e.Body)
}

// DataShapeError reports a response field that is missing or cannot be
// interpreted. Eligibility depends on these fields, so they are never
// skipped silently.
type DataShapeError struct {
	Endpoint string
	Field    string
	Value    string
	Err      error
}

func (e *DataShapeError) Error() string {
	msg := fmt.Sprintf("remote: %s: bad field %s", e.Endpoint, e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" (%q)", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataShapeError) Unwrap() error { return e.Err }
