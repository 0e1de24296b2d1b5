package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeInvalid            ErrorCode = "INVALID"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	ErrCodeInternal           ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches two domain errors by code and message so wrapped sentinels
// still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrTaskNotFound     = NewError(ErrCodeNotFound, "task not found")
	ErrLedgerNotFound   = NewError(ErrCodeNotFound, "ledger not found")
	ErrLedgerExists     = NewError(ErrCodeConflict, "ledger already exists")
	ErrLedgerConflict   = NewError(ErrCodeConflict, "ledger was modified concurrently")
	ErrForbidden        = NewError(ErrCodeForbidden, "task belongs to another user")
	ErrUnauthorized     = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload   = NewError(ErrCodeInvalid, "invalid payload")
	ErrEmptyTitle       = NewError(ErrCodeInvalid, "task title cannot be empty")
	ErrInvalidPriority  = NewError(ErrCodeInvalid, "priority must be one of low, medium, high")
	ErrStoreUnavailable = NewError(ErrCodeStoreUnavailable, "record store unavailable")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// AsStoreError classifies an error returned by a record store. Domain errors
// pass through untouched, anything else becomes STORE_UNAVAILABLE.
func AsStoreError(err error) error {
	if err == nil {
		return nil
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return err
	}
	return WrapError(ErrCodeStoreUnavailable, ErrStoreUnavailable.Message, err)
}
