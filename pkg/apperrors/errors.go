// Package apperrors provides the typed error taxonomy returned by every core
// operation. Each error carries a Kind (the coarse class callers branch on)
// and a Code (the precise reason, used to pick a localized message).
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the coarse error class.
type Kind string

const (
	KindValidation       Kind = "VALIDATION_ERROR"
	KindNotFound         Kind = "NOT_FOUND"
	KindExpired          Kind = "EXPIRED"
	KindIdentityMismatch Kind = "IDENTITY_MISMATCH"
	KindConflict         Kind = "CONFLICT"
	KindAuthorization    Kind = "FORBIDDEN"
	KindStore            Kind = "STORE_ERROR"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Kind     Kind
	Code     Code
	Message  string            // internal message, for logs
	Metadata map[string]string // template values for localized messages
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Message != "" {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code, or by kind when target is one of the Kind sentinels
// (an Error without a code).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return e.Kind == t.Kind
	}
	return e.Code == t.Code
}

// Kind sentinels for errors.Is.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrExpired          = &Error{Kind: KindExpired}
	ErrIdentityMismatch = &Error{Kind: KindIdentityMismatch}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrAuthorization    = &Error{Kind: KindAuthorization}
	ErrStore            = &Error{Kind: KindStore}
)

// New creates a domain error.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(kind Kind, code Code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// WithMetadata returns a copy of e carrying metadata for message templating.
func (e *Error) WithMetadata(kv ...string) *Error {
	cp := *e
	cp.Metadata = make(map[string]string, len(e.Metadata)+len(kv)/2)
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		cp.Metadata[kv[i]] = kv[i+1]
	}
	return &cp
}

// Store wraps a persistence failure. Domain errors pass through untouched so
// that a store may itself report NotFound or Conflict.
func Store(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var de *Error
	if errors.As(cause, &de) {
		return cause
	}
	return Wrap(KindStore, CodeStoreFailure, op, cause)
}

// As extracts the domain error from err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf returns the kind of err. Errors outside the taxonomy are reported as
// KindStore since they can only come from transport or persistence.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if de, ok := As(err); ok {
		return de.Kind
	}
	return KindStore
}

// CodeOf returns the code of err, or CodeStoreFailure for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeStoreFailure
}

// HTTPStatus maps a kind to the HTTP status the API answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExpired:
		return http.StatusGone
	case KindIdentityMismatch, KindAuthorization:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// HasCode reports whether err's chain carries a domain error with code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// Retryable reports whether the caller may simply retry the operation.
// A token collision qualifies since every attempt draws a new token; other
// conflicts need a fresh read first.
func Retryable(err error) bool {
	return KindOf(err) == KindStore || HasCode(err, CodeTokenCollision)
}
