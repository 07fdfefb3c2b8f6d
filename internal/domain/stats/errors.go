package stats

import "errors"

// Sentinel errors returned by the engine.
var (
	// ErrNoActiveShift is returned by operations that need an open shift.
	ErrNoActiveShift = errors.New("no active shift")

	// ErrShiftActive is returned when a shift is already open.
	ErrShiftActive = errors.New("a shift is already active")

	// ErrInvalidWindow is returned for an unresolvable query window.
	ErrInvalidWindow = errors.New("invalid query window")
)
