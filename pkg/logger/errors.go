package logger

import "errors"

var (
	// ErrInvalidLevel is returned when the configured level is not one of debug, info, warn or error.
	ErrInvalidLevel = errors.New("logger: invalid level")

	// ErrInvalidFormat is returned when the configured format is neither json nor text.
	ErrInvalidFormat = errors.New("logger: invalid format")
)
