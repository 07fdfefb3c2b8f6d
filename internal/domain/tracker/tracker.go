// Package tracker turns the noisy "currently visible accession" stream into
// discrete completed-study events.
//
// The tracker is a two-state machine over a single optional slot: Idle, or
// Tracking exactly one accession. It deliberately does not implement grouping
// or shift policy; it exposes hooks (a grouping key function and a
// shift-active flag) and stamps their outcome onto each Completion so the
// ingestion step downstream can apply those rules.
//
// Tracker is not safe for concurrent use. The caller serializes Observe
// ticks behind its own mutex; one tick is one atomic transition.
package tracker

import (
	"context"
	"time"

	"github.com/erichter2018/rvutrack/internal/domain/model"
	"github.com/erichter2018/rvutrack/pkg/logger"
	"github.com/erichter2018/rvutrack/pkg/metrics"
)

// defaultMinStudyDuration discards windows shorter than this unless
// overridden; sub-threshold windows are accidental clicks, not reads.
const defaultMinStudyDuration = 10 * time.Second

// GroupKeyFunc derives a grouping key for a completion. Completions sharing a
// key may be collapsed into one multi-accession record by the consumer. A
// nil function or empty key disables grouping for that completion.
type GroupKeyFunc func(c model.Completion) string

// Tracker tracks at most one study at a time.
type Tracker struct {
	current      *model.TrackedStudy
	minDuration  time.Duration
	placeholders map[string]struct{}
	groupKey     GroupKeyFunc
	shiftActive  bool
	log          logger.Logger
}

// New creates a Tracker with configuration options.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		minDuration: defaultMinStudyDuration,
		placeholders: map[string]struct{}{
			"":             {},
			"no accession": {},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = logger.Get().Named("tracker")
	}
	return t
}

// SetShiftActive toggles the no-active-shift flag. Completions emitted while
// the flag is false are marked Temporary so the consumer routes them into a
// side buffer instead of the primary write path.
func (t *Tracker) SetShiftActive(active bool) {
	t.shiftActive = active
}

// Tracking returns a copy of the currently tracked study, if any.
func (t *Tracker) Tracking() (model.TrackedStudy, bool) {
	if t.current == nil {
		return model.TrackedStudy{}, false
	}
	return *t.current, true
}

// Observe processes one poll tick. It returns a Completion when the tick
// closed an observation window that met the minimum duration.
func (t *Tracker) Observe(ctx context.Context, obs model.Observation) (model.Completion, bool) {
	if t.isPlaceholder(obs.Accession) {
		// No study open: force-complete whatever was tracked.
		return t.complete(ctx, obs.ObservedAt)
	}

	if t.current != nil && obs.Accession == t.current.Accession {
		if obs.ObservedAt.Before(t.current.LastSeenAt) {
			t.log.Warn(ctx, "observation out of order; ignored",
				logger.Time("observed_at", obs.ObservedAt),
				logger.Time("last_seen_at", t.current.LastSeenAt),
			)
			metrics.RecordObservationMalformed()
			return model.Completion{}, false
		}
		t.current.LastSeenAt = obs.ObservedAt
		return model.Completion{}, false
	}

	// New accession. Reject malformed observations before touching state.
	if obs.Accession == "" {
		// Not a configured placeholder, yet no identifier to track.
		t.log.Warn(ctx, "observation with empty accession; ignored")
		metrics.RecordObservationMalformed()
		return model.Completion{}, false
	}
	if obs.ProcedureText == "" {
		t.log.Warn(ctx, "observation with empty procedure text; ignored",
			logger.String("accession_len", lenClass(obs.Accession)),
		)
		metrics.RecordObservationMalformed()
		return model.Completion{}, false
	}

	done, ok := t.complete(ctx, obs.ObservedAt)
	t.current = &model.TrackedStudy{
		Accession:     obs.Accession,
		FirstSeenAt:   obs.ObservedAt,
		LastSeenAt:    obs.ObservedAt,
		ProcedureText: obs.ProcedureText,
		PatientClass:  obs.PatientClass,
	}
	return done, ok
}

// Flush force-completes the current study, if any. Used at shift end and on
// shutdown so an open window is not lost.
func (t *Tracker) Flush(ctx context.Context, at time.Time) (model.Completion, bool) {
	return t.complete(ctx, at)
}

// complete closes the current window at the given instant and returns to
// Idle. Windows below the minimum duration are discarded silently.
func (t *Tracker) complete(ctx context.Context, at time.Time) (model.Completion, bool) {
	if t.current == nil {
		return model.Completion{}, false
	}
	cur := *t.current
	t.current = nil

	if at.Before(cur.LastSeenAt) {
		at = cur.LastSeenAt
	}
	if at.Sub(cur.FirstSeenAt) < t.minDuration {
		t.log.Debug(ctx, "sub-threshold study discarded",
			logger.Duration("duration", at.Sub(cur.FirstSeenAt)),
			logger.Duration("min", t.minDuration),
		)
		metrics.RecordStudyDiscarded()
		return model.Completion{}, false
	}

	c := model.Completion{
		Accession:     cur.Accession,
		ProcedureText: cur.ProcedureText,
		PatientClass:  cur.PatientClass,
		StartedAt:     cur.FirstSeenAt,
		FinishedAt:    at,
		Temporary:     !t.shiftActive,
	}
	if t.groupKey != nil {
		c.GroupKey = t.groupKey(c)
	}
	return c, true
}

func (t *Tracker) isPlaceholder(accession string) bool {
	_, ok := t.placeholders[normalizeMarker(accession)]
	return ok
}

// lenClass avoids logging raw accessions; only a coarse size is recorded.
func lenClass(accession string) string {
	if accession == "" {
		return "empty"
	}
	return "non-empty"
}
