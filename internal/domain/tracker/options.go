package tracker

import (
	"strings"
	"time"

	"github.com/erichter2018/rvutrack/pkg/logger"
)

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithMinStudyDuration sets the threshold below which a closed observation
// window is discarded instead of completed.
func WithMinStudyDuration(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= 0 {
			t.minDuration = d
		}
	}
}

// WithPlaceholderMarkers replaces the set of accession values that mean "no
// study currently open". Matching is case-insensitive.
func WithPlaceholderMarkers(markers ...string) Option {
	return func(t *Tracker) {
		t.placeholders = make(map[string]struct{}, len(markers))
		for _, m := range markers {
			t.placeholders[normalizeMarker(m)] = struct{}{}
		}
	}
}

// WithGroupKeyFunc installs the grouping hook applied to each completion.
func WithGroupKeyFunc(fn GroupKeyFunc) Option {
	return func(t *Tracker) {
		t.groupKey = fn
	}
}

// WithLogger sets a custom logger for the tracker.
func WithLogger(log logger.Logger) Option {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

func normalizeMarker(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
