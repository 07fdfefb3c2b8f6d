// Package stats aggregates completed-study records into live totals, rate
// windows, breakdowns, compensation figures, and pace comparisons.
//
// The engine owns the active shift and its in-memory record set. Records are
// fed in at ingest time, so live queries never depend on the persistence
// port being healthy; the store is consulted only for historical windows and
// baselines. Methods are not safe for concurrent use: the orchestrating
// service serializes every call behind its own mutex.
package stats

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/erichter2018/rvutrack/internal/adapters/repository"
	"github.com/erichter2018/rvutrack/internal/domain/model"
	"github.com/erichter2018/rvutrack/pkg/logger"
	"github.com/erichter2018/rvutrack/pkg/metrics"
)

// Default engine configuration constants.
const (
	defaultGroupWindow     = 60 * time.Second
	defaultTempFoldCutoff  = 5.0
	defaultGoalSpan        = 8 * time.Hour
	minElapsedForRateHours = 1.0 / 60.0
)

// Clock supplies the current time; injectable so tests drive time directly.
type Clock func() time.Time

// CompensationConfig holds the pay parameters applied to RVU output.
type CompensationConfig struct {
	RatePerRVU       float64
	BonusRatePerRVU  float64
	MonthlyTargetRVU float64
}

// Outcome tells the caller what to do with the record returned by Ingest.
type Outcome int

// Ingest outcomes.
const (
	// OutcomeStored means the record is new; persist it.
	OutcomeStored Outcome = iota
	// OutcomeMerged means the record was folded into an earlier group
	// member; re-persist the returned record under its existing ID.
	OutcomeMerged
	// OutcomeDeferred means no shift was active; the record is buffered
	// until the next shift start decides its fate. Nothing to persist yet.
	OutcomeDeferred
)

// Engine is the metrics/pace engine.
type Engine struct {
	store repository.Store
	clock Clock
	log   logger.Logger

	groupWindow    time.Duration
	tempFoldCutoff float64
	epsilon        float64
	goalSpan       time.Duration
	comp           CompensationConfig

	active  *model.Shift
	live    []model.StudyRecord
	pending []model.StudyRecord
	lastKey string
}

// New creates an engine over the given persistence port.
func New(store repository.Store, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		clock:          time.Now,
		groupWindow:    defaultGroupWindow,
		tempFoldCutoff: defaultTempFoldCutoff,
		goalSpan:       defaultGoalSpan,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get().Named("stats")
	}
	return e
}

// Active returns the active shift, if any.
func (e *Engine) Active() (model.Shift, bool) {
	if e.active == nil {
		return model.Shift{}, false
	}
	return *e.active, true
}

// LiveRecords returns a snapshot of the active shift's in-memory records.
func (e *Engine) LiveRecords() []model.StudyRecord {
	out := make([]model.StudyRecord, len(e.live))
	copy(out, e.live)
	return out
}

// PendingRecords returns a snapshot of buffered temporary records.
func (e *Engine) PendingRecords() []model.StudyRecord {
	out := make([]model.StudyRecord, len(e.pending))
	copy(out, e.pending)
	return out
}

// Resume reloads an open shift and its records from the store, typically
// after a process restart. It reports whether a shift was resumed.
func (e *Engine) Resume(ctx context.Context) (bool, error) {
	if e.active != nil {
		return false, ErrShiftActive
	}
	shifts, err := e.store.ListShifts(ctx, repository.ShiftFilter{ActiveOnly: true, Limit: 1})
	if err != nil {
		return false, err
	}
	if len(shifts) == 0 {
		return false, nil
	}
	shift := shifts[0]
	records, err := e.store.QueryRecords(ctx, repository.RecordFilter{ShiftID: shift.ID})
	if err != nil {
		return false, err
	}
	e.active = &shift
	e.live = records
	e.lastKey = ""
	e.publishGauges()
	e.log.Info(ctx, "resumed open shift",
		logger.String("shift_id", shift.ID),
		logger.Int("records", len(records)),
	)
	return true, nil
}

// StartShift opens a new shift. Temporary records buffered while no shift was
// active are folded in when their combined RVU exceeds the cutoff: the
// shift's effective start moves back to the earliest temporary record and the
// records attach to the shift. Below the cutoff they are discarded. Folded
// records are returned so the caller can persist them.
func (e *Engine) StartShift(ctx context.Context, name string, at time.Time) (model.Shift, []model.StudyRecord, error) {
	if e.active != nil {
		return model.Shift{}, nil, ErrShiftActive
	}

	shift, err := e.store.CreateShift(ctx, model.Shift{Name: name, Start: at})
	if err != nil {
		return model.Shift{}, nil, err
	}

	var folded []model.StudyRecord
	if len(e.pending) > 0 {
		var sum float64
		earliest := e.pending[0].StartedAt
		for _, rec := range e.pending {
			sum += rec.RVU
			if rec.StartedAt.Before(earliest) {
				earliest = rec.StartedAt
			}
		}
		if sum > e.tempFoldCutoff {
			shift.EffectiveStart = &earliest
			if err := e.store.UpdateShift(ctx, shift); err != nil {
				e.log.Warn(ctx, "could not persist effective start", logger.Error(err))
			}
			for _, rec := range e.pending {
				rec.ShiftID = shift.ID
				folded = append(folded, rec)
			}
			e.live = append(e.live, folded...)
			e.log.Info(ctx, "folded temporary records into shift",
				logger.String("shift_id", shift.ID),
				logger.Int("records", len(folded)),
				logger.Float64("rvu", sum),
				logger.Time("effective_start", earliest),
			)
		} else {
			e.log.Info(ctx, "discarded temporary records below fold cutoff",
				logger.Int("records", len(e.pending)),
				logger.Float64("rvu", sum),
				logger.Float64("cutoff", e.tempFoldCutoff),
			)
		}
		e.pending = nil
	}

	e.active = &shift
	e.lastKey = ""
	e.publishGauges()
	return shift, folded, nil
}

// EndShift closes the active shift and drops its in-memory records.
func (e *Engine) EndShift(ctx context.Context, at time.Time) (model.Shift, error) {
	if e.active == nil {
		return model.Shift{}, ErrNoActiveShift
	}
	shift, err := e.store.EndShift(ctx, e.active.ID, at)
	if err != nil {
		return model.Shift{}, err
	}
	e.active = nil
	e.live = nil
	e.lastKey = ""
	e.publishGauges()
	return shift, nil
}

// Ingest accepts one classified record. With an active shift the record joins
// the live set, merging into the previous record when both carry the same
// group key and finished within the group window: the merged record counts
// every accession but its RVU exactly once. Without an active shift the
// record is buffered as temporary.
func (e *Engine) Ingest(ctx context.Context, rec model.StudyRecord, groupKey string) (model.StudyRecord, Outcome) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.AccessionCount < 1 {
		rec.AccessionCount = 1
	}

	if e.active == nil {
		e.pending = append(e.pending, rec)
		e.log.Debug(ctx, "buffered temporary record",
			logger.String("study_type", rec.StudyType),
			logger.Int("pending", len(e.pending)),
		)
		return rec, OutcomeDeferred
	}

	rec.ShiftID = e.active.ID

	if e.mergeable(rec, groupKey) {
		last := &e.live[len(e.live)-1]
		last.AccessionCount += rec.AccessionCount
		last.FinishedAt = rec.FinishedAt
		last.DurationSeconds = int64(last.FinishedAt.Sub(last.StartedAt).Seconds())
		last.HasCriticalResult = last.HasCriticalResult || rec.HasCriticalResult
		if last.GroupID == "" {
			last.GroupID = uuid.NewString()
		}
		metrics.RecordStudyCompleted(rec.Source)
		e.publishGauges()
		return *last, OutcomeMerged
	}

	e.live = append(e.live, rec)
	e.lastKey = groupKey
	metrics.RecordStudyCompleted(rec.Source)
	e.publishGauges()
	return rec, OutcomeStored
}

// UpdateLiveRecord replaces the live copy of a corrected record, if the
// record belongs to the active shift. It reports whether a copy was replaced.
func (e *Engine) UpdateLiveRecord(rec model.StudyRecord) bool {
	for i := range e.live {
		if e.live[i].ID == rec.ID {
			e.live[i] = rec
			e.publishGauges()
			return true
		}
	}
	return false
}

// RemoveLiveRecord drops the live copy of a deleted record, if present.
func (e *Engine) RemoveLiveRecord(id string) bool {
	for i := range e.live {
		if e.live[i].ID == id {
			e.live = append(e.live[:i], e.live[i+1:]...)
			e.publishGauges()
			return true
		}
	}
	return false
}

// mergeable reports whether rec collapses into the newest live record.
func (e *Engine) mergeable(rec model.StudyRecord, groupKey string) bool {
	if groupKey == "" || groupKey != e.lastKey || len(e.live) == 0 {
		return false
	}
	last := e.live[len(e.live)-1]
	gap := rec.StartedAt.Sub(last.FinishedAt)
	return gap >= -e.groupWindow && gap <= e.groupWindow
}

// publishGauges pushes the live shift totals to the metrics registry.
func (e *Engine) publishGauges() {
	var sum float64
	var studies int
	for _, rec := range e.live {
		sum += rec.RVU
		studies += rec.AccessionCount
	}
	metrics.UpdateShiftRVU(sum)
	metrics.UpdateShiftStudyCount(studies)

	var perHour float64
	if e.active != nil {
		hours := e.clock().Sub(e.active.StartForRates()).Hours()
		if hours >= minElapsedForRateHours {
			perHour = sum / hours
		}
	}
	metrics.UpdateRVUPerHour(perHour)
}

// liveRVU sums the active shift's RVU.
func (e *Engine) liveRVU() float64 {
	var sum float64
	for _, rec := range e.live {
		sum += rec.RVU
	}
	return sum
}
