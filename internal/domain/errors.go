package domain

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors returned by the store and engine.
type ErrorCode string

const (
	// ErrCodeValidation marks a request rejected before any write. Not retryable.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotFound marks a reference to a missing record. It is a kind
	// of validation failure and is not retryable.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConflict marks a serialization failure or a lost optimistic
	// version check. The caller should retry.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Error is the typed error for every failure a caller can act on.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed, e.g. "add line".
	Op string

	// Field names the violated constraint or the missing entity, when known.
	Field string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a VALIDATION error for field.
func Validation(op, field, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Op:      op,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFound returns a NOT_FOUND error for the entity with the given id.
func NotFound(op, entity string, id any) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Op:      op,
		Field:   entity,
		Message: fmt.Sprintf("%s %v does not exist", entity, id),
	}
}

// Conflict returns a CONFLICT error wrapping cause.
func Conflict(op, message string, cause error) *Error {
	return &Error{
		Code:    ErrCodeConflict,
		Op:      op,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsValidation reports whether err rejected the request before any write.
// A reference to a missing item or document is a validation failure too;
// it keeps the NOT_FOUND code so callers can tell it apart.
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case ErrCodeValidation, ErrCodeNotFound:
		return true
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsConflict reports whether err is a CONFLICT error.
func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflict
}

// IsRetryable reports whether the caller may retry the same request.
// Only conflicts are transient.
func IsRetryable(err error) bool {
	return IsConflict(err)
}
