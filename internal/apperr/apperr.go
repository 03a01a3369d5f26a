// Package apperr defines the coded errors surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class.
type Code string

const (
	CodeInvalidRequest    Code = "INVALID_REQUEST"    // 400
	CodeMissingCapability Code = "MISSING_CAPABILITY" // 400
	CodeInvalidCron       Code = "INVALID_CRON"       // 400
	CodePaymentRequired   Code = "PAYMENT_REQUIRED"   // 402
	CodeForbidden         Code = "FORBIDDEN"          // 403
	CodeNotFound          Code = "NOT_FOUND"          // 404
	CodeSlugCollision     Code = "SLUG_COLLISION"     // 409
	CodeInternal          Code = "INTERNAL"           // 500
	CodeUnavailable       Code = "UNAVAILABLE"        // 503
)

// Error is a structured error with code, HTTP status and details.
type Error struct {
	Code    Code           `json:"code"`
	Status  int            `json:"-"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for bad input.
func NewInvalidRequest(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Status: http.StatusBadRequest, Message: msg}
}

// NewMissingCapability creates a 400 error listing unmet categories.
func NewMissingCapability(slug string, missing []string) *Error {
	return &Error{
		Code:    CodeMissingCapability,
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("skill %s has missing or insufficient access for: %v", slug, missing),
		Details: map[string]any{"skill": slug, "missing": missing},
	}
}

// NewInvalidCron creates a 400 error carrying the parser's reason verbatim.
func NewInvalidCron(reason string) *Error {
	return &Error{
		Code:    CodeInvalidCron,
		Status:  http.StatusBadRequest,
		Message: reason,
	}
}

// NewPaymentRequired creates a 402 error.
func NewPaymentRequired() *Error {
	return &Error{
		Code:    CodePaymentRequired,
		Status:  http.StatusPaymentRequired,
		Message: "an active plan is required to run skills",
	}
}

// NewForbidden creates a 403 error.
func NewForbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Status: http.StatusForbidden, Message: msg}
}

// NewNotFound creates a 404 error.
func NewNotFound(what, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("%s not found: %s", what, id),
		Details: map[string]any{"identifier": id},
	}
}

// NewSlugCollision creates a 409 error. Only seen when suffix retries run out.
func NewSlugCollision(base string, cause error) *Error {
	return &Error{
		Code:    CodeSlugCollision,
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("could not allocate a unique slug for %q", base),
		cause:   cause,
	}
}

// NewUnavailable creates a 503 error for persistence outages; callers retry.
func NewUnavailable(cause error) *Error {
	return &Error{
		Code:    CodeUnavailable,
		Status:  http.StatusServiceUnavailable,
		Message: "storage temporarily unavailable, retry later",
		cause:   cause,
	}
}

// NewInternal creates a 500 error.
func NewInternal(cause error) *Error {
	return &Error{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "internal error",
		cause:   cause,
	}
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// From converts any error into an *Error, defaulting to internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewInternal(err)
}
