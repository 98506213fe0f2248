package core

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTitle      = errors.New("empty title")
	ErrEmptyName       = errors.New("empty name")
	ErrTooLong         = errors.New("too long")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrAmountTooLarge  = fmt.Errorf("%w: exceeds the per-transaction limit", ErrInvalidAmount)
	ErrTotalOverflow   = fmt.Errorf("%w: running total out of range", ErrInvalidAmount)
	ErrInvalidKind     = errors.New("invalid transaction type")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidColor    = errors.New("invalid color")
	ErrInvalidSymbol   = errors.New("invalid symbol")
	ErrUnknownCategory = errors.New("unknown category")
)

// ValidationError reports bad user input. Nothing is mutated when it is returned.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError for field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// NotFoundError reports an operation on an id that is no longer present.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// SyncError reports a durability call that failed after all attempts.
// It is logged and never returned to the caller of a ledger operation.
type SyncError struct {
	Op       string
	Kind     string
	ID       string
	Attempts int
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s %s/%s failed after %d attempt(s): %v", e.Op, e.Kind, e.ID, e.Attempts, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
