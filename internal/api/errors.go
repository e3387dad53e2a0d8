package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a call failed.
type Kind int

const (
	// KindConnection means the request never got an HTTP response.
	KindConnection Kind = iota + 1

	// KindStatus means the server answered with a non-2xx status.
	KindStatus

	// KindValidation means the request was rejected before being sent.
	KindValidation

	// KindDecode means a 2xx response body could not be understood.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindStatus:
		return "status"
	case KindValidation:
		return "validation"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// connectionMessage is shown whenever the server could not be reached.
const connectionMessage = "connection error"

// Error is returned by every Client method. Message is suitable for showing
// to the user as-is.
type Error struct {
	Kind Kind

	// Op names the call, e.g. "list bugs".
	Op string

	// Status is the HTTP status code for KindStatus errors.
	Status int

	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail returns a longer description for logs.
func (e *Error) Detail() string {
	switch {
	case e.Kind == KindStatus:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

// IsUnauthorized reports whether err is a 401 response from the API.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindStatus && apiErr.Status == http.StatusUnauthorized
}

// IsConnection reports whether err is a transport failure.
func IsConnection(err error) bool {
	return kindOf(err) == KindConnection
}

// IsValidation reports whether err was raised before any request was sent.
func IsValidation(err error) bool {
	return kindOf(err) == KindValidation
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func kindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

func validationError(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}
