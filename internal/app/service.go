// Package service orchestrates the tracking pipeline behind one mutex
// boundary: observation ticks, shift lifecycle, classification and hashing,
// live aggregation, and the asynchronous persistence path. It implements the
// dependencies the HTTP API needs.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/erichter2018/rvutrack/internal/adapters/mq/queue"
	"github.com/erichter2018/rvutrack/internal/adapters/mq/writer"
	"github.com/erichter2018/rvutrack/internal/adapters/repository"
	"github.com/erichter2018/rvutrack/internal/domain/classify"
	"github.com/erichter2018/rvutrack/internal/domain/hash"
	"github.com/erichter2018/rvutrack/internal/domain/model"
	"github.com/erichter2018/rvutrack/internal/domain/pace"
	"github.com/erichter2018/rvutrack/internal/domain/stats"
	"github.com/erichter2018/rvutrack/internal/domain/tracker"
	"github.com/erichter2018/rvutrack/pkg/logger"
	"github.com/erichter2018/rvutrack/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultMinStudyDuration = 10 * time.Second
	defaultAccessionSalt    = "rvutrack-local"
	defaultGroupWindow      = 60 * time.Second
	defaultTempFoldCutoff   = 5.0
	defaultQueueSize        = 4096
	defaultWriterCount      = 2
	defaultPersistAttempts  = 5
	defaultBackoffBase      = 200 * time.Millisecond
	defaultBackoffMax       = 10 * time.Second
)

// Service wires the tracking pipeline together. All writes go through its
// mutex; reads take the read lock or an immutable snapshot, so the tick path
// never waits on slow consumers.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	tracker    *tracker.Tracker
	classifier *classify.Engine
	hasher     *hash.Hasher
	engine     *stats.Engine
	queue      *queue.InMemoryQueue
	pool       *writer.Pool
	watcher    *classify.Watcher

	minStudyDuration   time.Duration
	placeholderMarkers []string
	accessionSalt      string
	groupWindow        time.Duration
	tempFoldCutoff     float64
	paceEpsilon        float64
	goalSpan           time.Duration
	comp               stats.CompensationConfig
	queueSize          int
	writerCount        int
	persistMaxAttempts int
	persistBackoffBase time.Duration
	persistBackoffMax  time.Duration
	rulesPath          string
	rulesHotReload     bool
	clock              stats.Clock

	// displayCache maps hashed accessions to the last procedure text seen
	// for them. Process-lifetime only, cleared on every start, never stored.
	displayCache map[string]string

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence port. Defaults to the in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithMinStudyDuration sets the minimum observation window for a record.
func WithMinStudyDuration(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.minStudyDuration = d
		}
	}
}

// WithPlaceholderMarkers sets the accession values meaning "no study open".
func WithPlaceholderMarkers(markers []string) Option {
	return func(s *Service) {
		if markers != nil {
			s.placeholderMarkers = markers
		}
	}
}

// WithAccessionSalt sets the hashing salt.
func WithAccessionSalt(salt string) Option {
	return func(s *Service) {
		if salt != "" {
			s.accessionSalt = salt
		}
	}
}

// WithGroupWindow sets the multi-accession grouping window.
func WithGroupWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.groupWindow = d
		}
	}
}

// WithTempFoldCutoff sets the temporary-record fold cutoff in RVU.
func WithTempFoldCutoff(rvu float64) Option {
	return func(s *Service) {
		if rvu >= 0 {
			s.tempFoldCutoff = rvu
		}
	}
}

// WithPaceEpsilon sets the on-pace band.
func WithPaceEpsilon(eps float64) Option {
	return func(s *Service) {
		if eps > 0 {
			s.paceEpsilon = eps
		}
	}
}

// WithGoalSpan sets the default fixed-goal ramp span.
func WithGoalSpan(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.goalSpan = d
		}
	}
}

// WithCompensation sets the pay parameters.
func WithCompensation(c stats.CompensationConfig) Option {
	return func(s *Service) {
		s.comp = c
	}
}

// WithQueueSize bounds the record queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWriterCount sets the number of persistence writers.
func WithWriterCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.writerCount = count
		}
	}
}

// WithPersistRetry shapes the write retry policy.
func WithPersistRetry(maxAttempts int, base, max time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.persistMaxAttempts = maxAttempts
		}
		if base > 0 && max >= base {
			s.persistBackoffBase = base
			s.persistBackoffMax = max
		}
	}
}

// WithRulesFile names the classification rules file and whether to watch it.
func WithRulesFile(path string, hotReload bool) Option {
	return func(s *Service) {
		s.rulesPath = path
		s.rulesHotReload = hotReload
	}
}

// WithClock sets the time source.
func WithClock(clock stats.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		minStudyDuration:   defaultMinStudyDuration,
		placeholderMarkers: []string{"", "no accession"},
		accessionSalt:      defaultAccessionSalt,
		groupWindow:        defaultGroupWindow,
		tempFoldCutoff:     defaultTempFoldCutoff,
		goalSpan:           8 * time.Hour,
		queueSize:          defaultQueueSize,
		writerCount:        defaultWriterCount,
		persistMaxAttempts: defaultPersistAttempts,
		persistBackoffBase: defaultBackoffBase,
		persistBackoffMax:  defaultBackoffMax,
		clock:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the pipeline components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting tracking service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}

	table := classify.DefaultTable()
	if s.rulesPath != "" {
		loaded, err := classify.LoadFile(s.rulesPath)
		if err != nil {
			return fmt.Errorf("load classification rules: %w", err)
		}
		table = loaded
	}
	s.classifier = classify.New(classify.WithTable(table))

	if s.rulesHotReload && s.rulesPath != "" {
		w, err := classify.NewWatcher(s.classifier, s.rulesPath)
		if err != nil {
			return fmt.Errorf("watch classification rules: %w", err)
		}
		s.watcher = w
		s.watcher.Start(ctx)
	}

	s.hasher = hash.New(s.accessionSalt)
	s.tracker = tracker.New(
		tracker.WithMinStudyDuration(s.minStudyDuration),
		tracker.WithPlaceholderMarkers(s.placeholderMarkers...),
		tracker.WithGroupKeyFunc(completionGroupKey),
	)
	s.engine = stats.New(s.store,
		stats.WithGroupWindow(s.groupWindow),
		stats.WithTempFoldCutoff(s.tempFoldCutoff),
		stats.WithEpsilon(s.paceEpsilon),
		stats.WithGoalSpan(s.goalSpan),
		stats.WithCompensation(s.comp),
		stats.WithClock(s.clock),
	)
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = writer.NewPool(s.writerCount, s.queue, s.store,
		writer.WithMaxAttempts(s.persistMaxAttempts),
		writer.WithBackoff(s.persistBackoffBase, s.persistBackoffMax),
	)
	s.pool.Start(ctx)

	// The display cache never survives a restart.
	s.displayCache = make(map[string]string)

	resumed, err := s.engine.Resume(ctx)
	if err != nil {
		s.logger.Warn(ctx, "could not resume open shift", logger.Error(err))
	}
	s.tracker.SetShiftActive(resumed)

	s.started = true
	s.logger.Info(ctx, "tracking service started",
		logger.Int("writers", s.writerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("rules", s.classifier.RuleCount()),
		logger.Bool("resumed_shift", resumed),
	)
	return nil
}

// Stop gracefully shuts down the service, flushing the in-flight study first.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping tracking service...")

	if c, ok := s.tracker.Flush(ctx, s.clock()); ok {
		s.handleCompletion(ctx, c)
	}

	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	_ = s.queue.Close()
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "writer pool shutdown", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "tracking service stopped")
}

// Observe processes one poll tick. It returns the resulting record when the
// tick closed an observation window.
func (s *Service) Observe(ctx context.Context, obs model.Observation) (model.StudyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return model.StudyRecord{}, false
	}
	metrics.RecordObservation()

	completion, ok := s.tracker.Observe(ctx, obs)

	if tracked, tracking := s.tracker.Tracking(); tracking {
		s.displayCache[s.hasher.Hash(tracked.Accession)] = tracked.ProcedureText
	}

	if !ok {
		return model.StudyRecord{}, false
	}
	return s.handleCompletion(ctx, completion)
}

// StartShift opens a new shift at the current instant.
func (s *Service) StartShift(ctx context.Context, name string) (model.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return model.Shift{}, ErrNotStarted
	}

	shift, folded, err := s.engine.StartShift(ctx, name, s.clock())
	if err != nil {
		return model.Shift{}, err
	}
	s.tracker.SetShiftActive(true)

	for _, rec := range folded {
		if !s.queue.Enqueue(ctx, rec) {
			s.logger.Warn(ctx, "record queue rejected folded record",
				logger.String("record_id", rec.ID),
			)
		}
	}
	return shift, nil
}

// EndShift closes the active shift, flushing the in-flight study into it
// first so an open window is not lost.
func (s *Service) EndShift(ctx context.Context) (model.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return model.Shift{}, ErrNotStarted
	}

	now := s.clock()
	if c, ok := s.tracker.Flush(ctx, now); ok {
		s.handleCompletion(ctx, c)
	}

	shift, err := s.engine.EndShift(ctx, now)
	if err != nil {
		return model.Shift{}, err
	}
	s.tracker.SetShiftActive(false)
	return shift, nil
}

// AddManualRecord records a study entered by hand. The raw accession, when
// provided, is hashed and discarded. An empty study type is classified from
// the procedure text.
func (s *Service) AddManualRecord(ctx context.Context, rawAccession string, rec model.StudyRecord) (model.StudyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return model.StudyRecord{}, ErrNotStarted
	}
	if rec.Procedure == "" {
		return model.StudyRecord{}, fmt.Errorf("%w: procedure must not be empty", ErrInvalidRecord)
	}
	if rec.RVU < 0 {
		return model.StudyRecord{}, fmt.Errorf("%w: rvu must not be negative", ErrInvalidRecord)
	}
	if rec.FinishedAt.Before(rec.StartedAt) {
		return model.StudyRecord{}, fmt.Errorf("%w: finished before started", ErrInvalidRecord)
	}

	if rawAccession != "" {
		rec.AccessionHash = s.hasher.Hash(rawAccession)
	}
	if rec.StudyType == "" {
		res := s.classifier.Classify(rec.Procedure)
		rec.StudyType = res.StudyType
		if rec.RVU == 0 {
			rec.RVU = res.RVU
		}
	}
	if rec.DurationSeconds == 0 {
		rec.DurationSeconds = int64(rec.FinishedAt.Sub(rec.StartedAt).Seconds())
	}
	if rec.PatientClass == "" {
		rec.PatientClass = model.UnknownClass
	}
	if rec.Source == "" {
		rec.Source = model.SourceManual
	}

	rec, outcome := s.engine.Ingest(ctx, rec, "")
	if outcome != stats.OutcomeDeferred {
		if !s.queue.Enqueue(ctx, rec) {
			s.logger.Warn(ctx, "record queue rejected manual record",
				logger.String("record_id", rec.ID),
			)
		}
	}
	return rec, nil
}

// UpdateRecord rewrites a stored record after manual correction, keeping the
// live copy in step.
func (s *Service) UpdateRecord(ctx context.Context, rec model.StudyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	if err := s.store.UpdateRecord(ctx, rec); err != nil {
		return err
	}
	s.engine.UpdateLiveRecord(rec)
	return nil
}

// DeleteRecord removes a record, live copy included.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	if err := s.store.DeleteRecord(ctx, id); err != nil {
		return err
	}
	s.engine.RemoveLiveRecord(id)
	return nil
}

// Summary computes the windowed metrics view.
func (s *Service) Summary(ctx context.Context, w stats.Window) (stats.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return stats.Summary{}, ErrNotStarted
	}
	return s.engine.Summary(ctx, w)
}

// Pace compares the active shift against the selected baseline.
func (s *Service) Pace(ctx context.Context, sel pace.Selection) (pace.Comparison, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return pace.Comparison{}, ErrNotStarted
	}
	return s.engine.Pace(ctx, sel)
}

// Compensation computes the month-to-date pay view.
func (s *Service) Compensation(ctx context.Context) (stats.CompensationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return stats.CompensationSummary{}, ErrNotStarted
	}
	return s.engine.Compensation(ctx)
}

// Records returns records matching the filter, overlaying live records onto
// the store so a degraded store never hides the active shift.
func (s *Service) Records(ctx context.Context, f repository.RecordFilter) ([]model.StudyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	stored, err := s.store.QueryRecords(ctx, f)
	if err != nil {
		return nil, err
	}

	live := make([]model.StudyRecord, 0)
	for _, rec := range append(s.engine.LiveRecords(), s.engine.PendingRecords()...) {
		if recordMatches(f, rec) {
			live = append(live, rec)
		}
	}
	return overlayRecords(stored, live), nil
}

// Shifts returns shifts matching the filter, most recent first.
func (s *Service) Shifts(ctx context.Context, f repository.ShiftFilter) ([]model.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store.ListShifts(ctx, f)
}

// ActiveShift returns the active shift, if any.
func (s *Service) ActiveShift() (model.Shift, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return model.Shift{}, false
	}
	return s.engine.Active()
}

// Tracking returns the in-flight study, if any.
func (s *Service) Tracking() (model.TrackedStudy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return model.TrackedStudy{}, false
	}
	return s.tracker.Tracking()
}

// ProcedureForHash looks up the last procedure text seen for a hashed
// accession. Display-only; the cache is cleared on every start.
func (s *Service) ProcedureForHash(hashed string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, ok := s.displayCache[hashed]
	return text, ok
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]interface{}{
		"started":      s.started,
		"writer_count": s.writerCount,
		"queue_size":   s.queueSize,
	}
	if !s.started {
		return out
	}

	ctx := context.Background()
	out["queue_length"] = s.queue.Len(ctx)
	out["display_cache_size"] = len(s.displayCache)
	out["live_records"] = len(s.engine.LiveRecords())
	out["pending_records"] = len(s.engine.PendingRecords())

	if shift, ok := s.engine.Active(); ok {
		out["active_shift_id"] = shift.ID
	}
	if tracked, ok := s.tracker.Tracking(); ok {
		out["tracking_since"] = tracked.FirstSeenAt
	}
	return out
}

// handleCompletion classifies, hashes, and ingests one completion. Caller
// holds the write lock.
func (s *Service) handleCompletion(ctx context.Context, c model.Completion) (model.StudyRecord, bool) {
	res := s.classifier.Classify(c.ProcedureText)
	if res.Unknown() {
		metrics.RecordUnknownClassification()
		s.logger.Warn(ctx, "procedure did not match any classification rule",
			logger.String("procedure", c.ProcedureText),
		)
	}

	rec := model.StudyRecord{
		AccessionHash:   s.hasher.Hash(c.Accession),
		Procedure:       c.ProcedureText,
		StudyType:       res.StudyType,
		RVU:             res.RVU,
		StartedAt:       c.StartedAt,
		FinishedAt:      c.FinishedAt,
		DurationSeconds: int64(c.Duration().Seconds()),
		PatientClass:    c.PatientClass,
		AccessionCount:  1,
		Source:          model.SourceTracker,
	}

	rec, outcome := s.engine.Ingest(ctx, rec, c.GroupKey)
	if outcome != stats.OutcomeDeferred {
		if !s.queue.Enqueue(ctx, rec) {
			s.logger.Warn(ctx, "record queue rejected record; kept in memory only",
				logger.String("record_id", rec.ID),
			)
		}
	}
	return rec, true
}

// completionGroupKey collapses near-simultaneous completions of the same
// procedure text into one multi-accession record.
func completionGroupKey(c model.Completion) string {
	return strings.ToLower(strings.TrimSpace(c.ProcedureText))
}

// recordMatches applies a record filter outside the repository.
func recordMatches(f repository.RecordFilter, r model.StudyRecord) bool {
	if f.ShiftID != "" && r.ShiftID != f.ShiftID {
		return false
	}
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	if !f.From.IsZero() && r.FinishedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.FinishedAt.Before(f.To) {
		return false
	}
	return true
}

// overlayRecords merges live records over stored ones, de-duplicated by ID
// with the live copy winning, ordered by finish time.
func overlayRecords(stored, live []model.StudyRecord) []model.StudyRecord {
	seen := make(map[string]struct{}, len(live))
	for _, rec := range live {
		seen[rec.ID] = struct{}{}
	}
	out := make([]model.StudyRecord, 0, len(stored)+len(live))
	for _, rec := range stored {
		if _, dup := seen[rec.ID]; !dup {
			out = append(out, rec)
		}
	}
	out = append(out, live...)
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.Before(out[j].FinishedAt) })
	return out
}
