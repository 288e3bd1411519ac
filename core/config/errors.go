package config

import "errors"

var (
	// ErrNilConfig is returned when Load receives a nil pointer.
	ErrNilConfig = errors.New("config pointer is nil")

	// ErrParseFailed wraps environment parsing failures, typically a missing
	// required variable or a value that does not fit the field type.
	ErrParseFailed = errors.New("failed to parse environment variables")
)
