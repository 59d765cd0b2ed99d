// Package result defines the uniform success/error envelope returned by
// every public repository operation. Callers branch on Success instead of
// handling raw errors; the error taxonomy is carried in Kind.
package result

import (
	"errors"
	"time"
)

// Kind classifies a failed operation.
type Kind string

const (
	KindUnavailable Kind = "unavailable" // backend disabled or misconfigured, detected before I/O
	KindNotFound    Kind = "not_found"
	KindTransient   Kind = "transient" // network/store error during read/write/batch
	KindPartial     Kind = "partial"   // subset of a batch failed
	KindInvalid     Kind = "invalid"   // rejected input
)

// Error is a kinded error suitable for wrapping through store internals.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Errf constructs a kinded error.
func Errf(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf extracts the Kind from an error chain, defaulting to transient.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindTransient
}

// Result is the envelope crossing the public boundary: either Data or Error
// is set, never both, and Timestamp records when the operation finished.
type Result[T any] struct {
	Success   bool      `json:"success"`
	Data      T         `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Kind      Kind      `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Success: true, Data: v, Timestamp: time.Now().UTC()}
}

// Fail wraps an error, classifying it via KindOf.
func Fail[T any](err error) Result[T] {
	return Result[T]{
		Success:   false,
		Error:     err.Error(),
		Kind:      KindOf(err),
		Timestamp: time.Now().UTC(),
	}
}

// Wrap converts the conventional (value, error) pair into an envelope.
func Wrap[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Ok(v)
}
