package fit

import "errors"

var (
	// ErrInvalidDimensions is returned when a width or height is not strictly positive.
	ErrInvalidDimensions = errors.New("fit: dimensions must be positive")
	// ErrUnknownMode is returned for a mode other than cover or contain.
	ErrUnknownMode = errors.New("fit: unknown mode")
)
