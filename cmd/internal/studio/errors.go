package studio

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("studio: invalid input")
	ErrNotFound     = errors.New("studio: not found")
	ErrConflict     = errors.New("studio: conflict")
)

// ConflictError reports a uniqueness violation on a logical field ("number_year", "guild").
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// ValidationError is a user-facing input problem. Msg is safe to show verbatim.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string { return e.Msg }

func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
