package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Storage errors
	ErrKeyNotFound       = errors.New("key not found")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrCorruptBlob       = errors.New("corrupt persisted blob")
	ErrUnsupportedSchema = errors.New("unsupported schema version")
	ErrSealFailed        = errors.New("sealed value could not be opened")

	// Transport errors
	ErrNoToken      = errors.New("no bearer token for request scope")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnreachable  = errors.New("backend unreachable")
	ErrHTTPStatus   = errors.New("unexpected http status")
	ErrBadEnvelope  = errors.New("malformed response envelope")

	// Backend reported failures (success: false)
	ErrBackendRejected = errors.New("backend rejected request")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnsupported    = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors, nil when all are nil
func Join(errs ...error) error {
	return errors.Join(errs...)
}
