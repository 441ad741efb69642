// Package apierr defines the tagged error taxonomy used across the planner,
// reference updater and executor (spec §7). Every error a caller needs to
// branch on carries a Code; free-text explanations never substitute for it.
package apierr

import (
	"errors"
	"fmt"
)

// Code tags the class of failure. Callers should switch on Code, never on
// the error string.
type Code string

const (
	CodeInvalidRequest           Code = "invalid_request"
	CodeNotFound                 Code = "not_found"
	CodeUnsupported               Code = "unsupported"
	CodeStalePlan                Code = "stale_plan"
	CodePermissionDenied          Code = "permission_denied"
	CodeConflict                  Code = "conflict"
	CodeRequiresForce             Code = "requires_force"
	CodeLspUnavailable            Code = "lsp_unavailable"
	CodeInternal                  Code = "internal"
	CodeCriticalInconsistentState Code = "critical_inconsistent_state"
	CodeRolledBack                Code = "rolled_back"
)

// Error is the structured error type propagated by every core subsystem.
type Error struct {
	Code    Code
	Message string
	// Context carries structured fields (file, kind, paths, ...) so the
	// caller has enough to reproduce or render the failure.
	Context map[string]any
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is allows errors.Is(err, &apierr.Error{Code: apierr.CodeX}) style
// matching via a sentinel comparison on Code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// New builds an Error with the given code and message.
func New(code Code, message string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(message, args...)}
}

// Wrap builds an Error that carries an underlying cause.
func Wrap(code Code, err error, message string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(message, args...), Wrapped: err}
}

// WithContext attaches structured context fields and returns the receiver
// for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the Code from err, or "" if err is not (or does not wrap)
// an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err is (or wraps) an *Error with the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
