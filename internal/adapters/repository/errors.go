package repository

import "errors"

// Sentinel kinds for persistence errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrActiveShiftExists = errors.New("a shift is already active")
	ErrShiftClosed       = errors.New("shift already closed")
)
