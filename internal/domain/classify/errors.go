package classify

import "errors"

// Sentinel kinds for rule loading errors.
var (
	ErrLoadRules    = errors.New("load rules failed")
	ErrInvalidRules = errors.New("invalid rules")
)
