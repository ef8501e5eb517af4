package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for logging and metrics; Status and Code drive
// the HTTP response.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindThrottled    Kind = "throttled"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Error is the structured failure type surfaced by the auth core. Every
// failure carries a stable machine-readable Code and the HTTP status it
// should map to, so handlers never invent statuses ad hoc.
type Error struct {
	Kind    Kind   `json:"-"`
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// RetryAfter is set only for throttling errors (seconds).
	RetryAfter int `json:"retry_after,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// As unwraps err into *Error if possible.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Status: 400, Code: code, Message: message}
}

func Throttled(code, message string, retryAfter int) *Error {
	return &Error{Kind: KindThrottled, Status: 429, Code: code, Message: message, RetryAfter: retryAfter}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Status: 404, Code: code, Message: message}
}

func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Status: 401, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Status: 409, Code: code, Message: message}
}

func Internal(message string) *Error {
	return &Error{Kind: KindInternal, Status: 500, Code: "INTERNAL", Message: message}
}
