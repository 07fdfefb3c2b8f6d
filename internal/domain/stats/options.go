package stats

import (
	"time"

	"github.com/erichter2018/rvutrack/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithGroupWindow sets how close two completions must finish to collapse
// into one multi-accession record.
func WithGroupWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.groupWindow = d
		}
	}
}

// WithTempFoldCutoff sets the combined RVU above which temporary records are
// folded into the next shift instead of discarded.
func WithTempFoldCutoff(rvu float64) Option {
	return func(e *Engine) {
		if rvu >= 0 {
			e.tempFoldCutoff = rvu
		}
	}
}

// WithEpsilon sets the on-pace band for pace comparisons.
func WithEpsilon(eps float64) Option {
	return func(e *Engine) {
		if eps > 0 {
			e.epsilon = eps
		}
	}
}

// WithGoalSpan sets the span a fixed-goal baseline ramps over when the
// selection does not carry one.
func WithGoalSpan(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.goalSpan = d
		}
	}
}

// WithCompensation sets the pay parameters.
func WithCompensation(c CompensationConfig) Option {
	return func(e *Engine) {
		e.comp = c
	}
}

// WithClock sets the time source, letting tests drive time deterministically.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}
