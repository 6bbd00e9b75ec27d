// Package apperr defines the error kinds the cashier surfaces to the operator.
//
// Every failure is terminal for the attempted operation only. The operator
// retries by repeating the action; nothing here retries on its own.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies where a failure originated.
type Kind int

// Kind values.
const (
	// KindValidation is a local precondition failure; it never reaches the network.
	KindValidation Kind = iota + 1
	// KindTransport means no response was received from the backend.
	KindTransport
	// KindBackend is a non-200 response from the backend.
	KindBackend
	// KindRecognition is a camera, detection or capture failure local to the capture loop.
	KindRecognition
)

// StatusNoResponse is the status code reported when the transport failed.
const StatusNoResponse = 0

// networkErrorMessage is shown for every transport failure.
const networkErrorMessage = "Network error"

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindBackend:
		return "backend"
	case KindRecognition:
		return "recognition"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by cashier operations.
type Error struct {
	Kind   Kind
	Op     string
	Status int    // HTTP status, StatusNoResponse for transport failures
	Detail string // operator-facing text, verbatim from the backend when it sent one
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a local precondition error.
func Validation(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Detail: msg}
}

// Transport returns an error for a request that got no response.
func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Status: StatusNoResponse, Detail: networkErrorMessage, Err: err}
}

// Backend returns an error for a non-200 backend response. detail may be empty.
func Backend(op string, status int, detail string) *Error {
	return &Error{Kind: KindBackend, Op: op, Status: status, Detail: detail}
}

// Recognition returns a capture-loop failure.
func Recognition(op, msg string, err error) *Error {
	return &Error{Kind: KindRecognition, Op: op, Detail: msg, Err: err}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// Status returns the HTTP status carried by err, or StatusNoResponse.
func Status(err error) int {
	if e, ok := As(err); ok {
		return e.Status
	}
	return StatusNoResponse
}

// Message returns the text to show the operator for err: the detail verbatim
// when one is present, otherwise fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok && e.Detail != "" {
		return e.Detail
	}
	return fallback
}

// WithFallback makes sure err carries an operator message, filling in
// fallback when it has none. Errors that are not *Error become backend errors.
func WithFallback(err error, op, fallback string) error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		if e.Detail != "" {
			return err
		}
		cp := *e
		cp.Detail = fallback
		return &cp
	}
	return &Error{Kind: KindBackend, Op: op, Detail: fallback, Err: err}
}
