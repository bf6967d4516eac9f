package compiler

import (
	"errors"
	"fmt"
)

var (
	// ErrTooManyArguments is returned when more arguments than placeholders are given.
	ErrTooManyArguments = errors.New("malformed query: too many arguments")
	// ErrNotEnoughArguments is returned when fewer arguments than placeholders are given.
	ErrNotEnoughArguments = errors.New("malformed query: not enough arguments")
	// ErrTooFewArguments is an alias of ErrNotEnoughArguments.
	ErrTooFewArguments = ErrNotEnoughArguments
	// ErrInvalidTemplate is returned when a template cannot be tokenized.
	ErrInvalidTemplate = errors.New("malformed query: invalid template")
)

// MismatchError reports a placeholder/argument count mismatch.
type MismatchError struct {
	Placeholders int
	Arguments    int
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v (%d placeholders, %d arguments)", e.Unwrap(), e.Placeholders, e.Arguments)
}

// Unwrap returns ErrTooManyArguments or ErrNotEnoughArguments.
func (e *MismatchError) Unwrap() error {
	if e.Arguments > e.Placeholders {
		return ErrTooManyArguments
	}
	return ErrNotEnoughArguments
}

