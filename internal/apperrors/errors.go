// Package apperrors defines the error taxonomy shared by the server and the
// client: validation, not found, capacity, conflict and transient failures.
// Every concrete error wraps one of the sentinels so callers can branch with
// errors.Is regardless of which layer produced it.
package apperrors

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrCapacity   = errors.New("room is full")
	ErrConflict   = errors.New("conflict")
	ErrTransient  = errors.New("temporary failure")
)

// Error carries a human readable message on top of a sentinel kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// NotFound returns an ErrNotFound with the given message.
func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

// Capacity returns an ErrCapacity with the given message.
func Capacity(msg string) error { return &Error{Kind: ErrCapacity, Message: msg} }

// Conflict returns an ErrConflict with the given message.
func Conflict(msg string) error { return &Error{Kind: ErrConflict, Message: msg} }

// Transient returns an ErrTransient with the given message.
func Transient(msg string) error { return &Error{Kind: ErrTransient, Message: msg} }

// ValidationError collects every field violation of a payload.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records msg for field unless the field already has a message.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = msg
}

// Empty reports whether no violation was recorded.
func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

// OrNil returns e when it holds violations and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Message extracts the user facing message of err.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Error()
	}
	return err.Error()
}
