/*
errors.go - Error types for the IMU calculator

PURPOSE:
  Sentinel errors plus a structured wrapper carrying which field of the
  property details was rejected. Callers match with errors.Is/errors.As;
  the HTTP layer maps ErrInvalidInput to a client error.
*/
package imu

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when property details cannot produce a
	// valid calculation (non-positive or non-numeric rendita).
	ErrInvalidInput = errors.New("invalid imu input")
)

// InvalidInputError carries the offending field and value.
type InvalidInputError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid imu input: %s=%v (%s)", e.Field, e.Value, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// IsInvalidInput reports whether err is an input-validation failure.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
