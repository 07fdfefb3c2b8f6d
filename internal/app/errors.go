package service

import "errors"

// Sentinel errors returned by the service.
var (
	// ErrNotStarted is returned when the service has not been started.
	ErrNotStarted = errors.New("service not started")

	// ErrInvalidRecord is returned for manual records that fail validation.
	ErrInvalidRecord = errors.New("invalid record")
)
