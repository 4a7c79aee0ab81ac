// Package fault defines the application error taxonomy shared by the
// catalog services. Every error surfaced to a caller carries a stable
// code and a class that the transport layer maps onto a status.
package fault

import (
	"errors"
	"fmt"
)

// Class partitions faults by how a caller should treat them.
type Class int

const (
	// ClassValidation marks malformed, missing, or out-of-range input.
	ClassValidation Class = iota
	// ClassUnauthorized marks missing, malformed, expired, or unrecognized credentials.
	ClassUnauthorized
	// ClassForbidden marks an authenticated caller lacking permission.
	ClassForbidden
	// ClassNotFound marks a well-formed identifier with no matching record.
	ClassNotFound
	// ClassConflict marks uniqueness violations.
	ClassConflict
	// ClassUnavailable marks backend degradation; input may be perfectly valid.
	ClassUnavailable
)

// Fault is a coded application error. The cause, when present, is kept
// for logs and never rendered to callers.
type Fault struct {
	Code    string
	Message string
	Class   Class
	cause   error
}

func (f *Fault) Error() string {
	if f.cause == nil {
		return fmt.Sprintf("%s: %s", f.Code, f.Message)
	}
	return fmt.Sprintf("%s: %s: %v", f.Code, f.Message, f.cause)
}

func (f *Fault) Unwrap() error {
	return f.cause
}

// Is matches faults by code so sentinel comparison works across wrapping.
func (f *Fault) Is(target error) bool {
	var other *Fault
	if !errors.As(target, &other) {
		return false
	}
	return f.Code == other.Code
}

// New constructs a Fault with the given class, code, and caller-safe message.
func New(class Class, code, message string) *Fault {
	return &Fault{Code: code, Message: message, Class: class}
}

// Wrap attaches an internal cause to a copy of the fault.
func Wrap(f *Fault, cause error) *Fault {
	return &Fault{Code: f.Code, Message: f.Message, Class: f.Class, cause: cause}
}

// From extracts the Fault from an error chain.
func From(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Validation is shorthand for a validation-class fault.
func Validation(code, message string) *Fault {
	return New(ClassValidation, code, message)
}

// Conflict is shorthand for a conflict-class fault.
func Conflict(code, message string) *Fault {
	return New(ClassConflict, code, message)
}

// NotFound is shorthand for a not-found-class fault.
func NotFound(code, message string) *Fault {
	return New(ClassNotFound, code, message)
}

// Unauthorized is shorthand for an unauthorized-class fault.
func Unauthorized(code, message string) *Fault {
	return New(ClassUnauthorized, code, message)
}

// Unavailable wraps a backend failure without leaking its text to callers.
func Unavailable(cause error) *Fault {
	return &Fault{
		Code:    "ServiceUnavailable",
		Message: "storage backend unavailable",
		Class:   ClassUnavailable,
		cause:   cause,
	}
}
