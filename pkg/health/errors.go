package health

import "errors"

var (
	// ErrCheckFailed is returned by Response.Err when at least one probe check failed.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout marks a check that was still running when the probe deadline passed.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckPanicked marks a check that panicked. The panic is contained to the probe.
	ErrCheckPanicked = errors.New("health: check panicked")
)
