package types

import (
	"errors"
	"fmt"
)

// Domain errors. Callers match them with errors.Is.
var (
	// ErrValidation marks missing or malformed caller input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks an attempt to start a cycle while one is active, or
	// a duplicate username/email.
	ErrConflict = errors.New("conflict")

	// ErrNotFound marks an unknown user, task or row for the caller.
	ErrNotFound = errors.New("not found")

	// ErrExpiredCycle marks a mutation dated after the task's cycle end.
	ErrExpiredCycle = errors.New("task cycle has ended")

	// ErrPersistence marks a failed store operation. The surrounding
	// transaction has been rolled back.
	ErrPersistence = errors.New("persistence failure")

	// ErrDuplicateRace marks a uniqueness violation on a completion key.
	// The completion engine resolves it by re-reading; it never leaves
	// the core.
	ErrDuplicateRace = errors.New("completion row already exists")

	// ErrUnauthorized marks bad credentials or a missing/invalid token.
	ErrUnauthorized = errors.New("unauthorized")
)

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Config validation errors.
var (
	ErrDriverEmpty      = errors.New("driver must not be empty")
	ErrDriverUnknown    = errors.New("unknown driver")
	ErrDSNEmpty         = errors.New("dsn must not be empty for postgres")
	ErrScheduleInvalid  = errors.New("invalid rollover schedule")
	ErrDurationInvalid  = errors.New("duration must be positive")
	ErrJWTSecretMissing = errors.New("jwt secret must not be empty")
)

// OpError ties an error kind from this package to the operation that
// failed and its underlying cause. errors.Is matches Kind and Err.
type OpError struct {
	Kind error
	Op   string
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds an OpError of the given kind with a formatted cause.
func Errorf(kind error, op, format string, args ...any) error {
	return &OpError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Persistence wraps a store failure. Domain errors pass through untouched
// so that a NotFound from inside a transaction keeps its kind.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &OpError{Kind: ErrPersistence, Op: op, Err: err}
}

// IsDomainError reports whether err already carries one of the kinds above.
func IsDomainError(err error) bool {
	for _, kind := range []error{
		ErrValidation, ErrConflict, ErrNotFound, ErrExpiredCycle,
		ErrPersistence, ErrDuplicateRace, ErrUnauthorized,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
