package auth

import "fmt"

// ErrorKind classifies a failed Result.
type ErrorKind int

const (
	KindNone         ErrorKind = iota
	KindValidation             // rejected before any network or storage call
	KindBackend                // success=false, message comes from the server
	KindUnreachable            // transport failure, timeout or non-401 HTTP error
	KindUnauthorized           // 401 or no token for a protected call
	KindBusy                   // another mutating operation is in flight
	KindCanceled               // caller stopped waiting
	KindStorage                // the secure store could not be written
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindBackend:
		return "backend"
	case KindUnreachable:
		return "unreachable"
	case KindUnauthorized:
		return "unauthorized"
	case KindBusy:
		return "busy"
	case KindCanceled:
		return "canceled"
	case KindStorage:
		return "storage"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Void is the value of a Result that carries none.
type Void struct{}

// Result is either Ok(value) or Err(kind, message).
type Result[T any] struct {
	value   T
	kind    ErrorKind
	message string
	cause   error
}

func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

func Err[T any](kind ErrorKind, message string) Result[T] {
	return Result[T]{kind: kind, message: message}
}

func errWithCause[T any](kind ErrorKind, message string, cause error) Result[T] {
	return Result[T]{kind: kind, message: message, cause: cause}
}

func (r Result[T]) IsOk() bool {
	return r.kind == KindNone
}

// Value returns the ok value, or the zero value for an Err.
func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) Kind() ErrorKind {
	return r.kind
}

// Message is the user-facing text of an Err.
func (r Result[T]) Message() string {
	return r.message
}

// Error returns nil for Ok, otherwise a *ResultError.
func (r Result[T]) Error() error {
	if r.IsOk() {
		return nil
	}
	return &ResultError{Kind: r.kind, Message: r.message, Cause: r.cause}
}

type ResultError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ResultError) Error() string {
	return e.Kind.String() + ": " + e.Message
}

func (e *ResultError) Unwrap() error {
	return e.Cause
}
