package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Concrete error values returned by the store match these via errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// NotFoundError is returned when a mutation addresses an id that does not exist.
type NotFoundError struct {
	Kind Kind
	ID   int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a rejected duplicate natural key.
type ConflictError struct {
	Kind Kind
	Key  string
	Err  error
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Kind, e.Key)
}

// Is matches ErrConflict.
func (e ConflictError) Is(target error) bool { return target == ErrConflict }

// Unwrap exposes the store error that triggered the conflict.
func (e ConflictError) Unwrap() error { return e.Err }

// Invalid wraps ErrInvalidArgument with a formatted message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err denotes a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err denotes a duplicate natural key.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
