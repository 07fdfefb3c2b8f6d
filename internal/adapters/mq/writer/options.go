package writer

import (
	"time"

	"github.com/erichter2018/rvutrack/pkg/logger"
)

// Option applies a configuration option to a Writer.
type Option func(*Writer)

// WithName sets the writer's name, used for log attribution.
func WithName(name string) Option {
	return func(w *Writer) {
		if name != "" {
			w.name = name
		}
	}
}

// WithMaxAttempts bounds how many times one record is retried.
func WithMaxAttempts(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay and ceiling for exponential backoff.
func WithBackoff(base, max time.Duration) Option {
	return func(w *Writer) {
		if base > 0 && max >= base {
			w.backoffBase = base
			w.backoffMax = max
		}
	}
}

// WithNotify installs the exhaustion callback.
func WithNotify(fn NotifyFunc) Option {
	return func(w *Writer) {
		w.notify = fn
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(w *Writer) {
		if log != nil {
			w.log = log
		}
	}
}
