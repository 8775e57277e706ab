package sink

import (
	"errors"
	"fmt"
)

// Error is a sink communication failure.
type Error struct {
	// Op is the client operation, e.g. "append_rows".
	Op     string
	Target Target
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("sink %s %s: %v", e.Op, e.Target, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsSinkError returns true if err is or wraps a *Error.
func IsSinkError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
