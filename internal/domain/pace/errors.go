package pace

import "errors"

// Sentinel kinds for baseline resolution.
var (
	// ErrNoBaseline means the selection resolved to no usable shift; the
	// caller suppresses the comparison instead of failing the whole query.
	ErrNoBaseline = errors.New("no baseline available")
)
