package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erichter2018/rvutrack/internal/domain/model"
)

// MemoryStore implements Store with plain maps. It backs tests and
// deployments that do not want a database file; contents vanish on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	shifts  map[string]model.Shift
	records map[string]model.StudyRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shifts:  make(map[string]model.Shift),
		records: make(map[string]model.StudyRecord),
	}
}

// CreateShift stores a new shift, enforcing the single-active-shift rule.
func (s *MemoryStore) CreateShift(ctx context.Context, shift model.Shift) (model.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shifts {
		if existing.Active() {
			return model.Shift{}, ErrActiveShiftExists
		}
	}
	if shift.ID == "" {
		shift.ID = uuid.NewString()
	}
	s.shifts[shift.ID] = shift
	return shift, nil
}

// UpdateShift rewrites a stored shift.
func (s *MemoryStore) UpdateShift(ctx context.Context, shift model.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shifts[shift.ID]; !ok {
		return ErrNotFound
	}
	s.shifts[shift.ID] = shift
	return nil
}

// EndShift closes an open shift.
func (s *MemoryStore) EndShift(ctx context.Context, shiftID string, at time.Time) (model.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, ok := s.shifts[shiftID]
	if !ok {
		return model.Shift{}, ErrNotFound
	}
	if !shift.Active() {
		return model.Shift{}, ErrShiftClosed
	}
	shift.End = &at
	s.shifts[shiftID] = shift
	return shift, nil
}

// AddRecord stores a record, assigning an ID when absent.
func (s *MemoryStore) AddRecord(ctx context.Context, rec model.StudyRecord) (model.StudyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.records[rec.ID] = rec
	return rec, nil
}

// UpdateRecord rewrites a stored record.
func (s *MemoryStore) UpdateRecord(ctx context.Context, rec model.StudyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; !ok {
		return ErrNotFound
	}
	s.records[rec.ID] = rec
	return nil
}

// DeleteRecord removes a record by ID.
func (s *MemoryStore) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// QueryRecords returns matching records ordered by finish time.
func (s *MemoryStore) QueryRecords(ctx context.Context, f RecordFilter) ([]model.StudyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.StudyRecord, 0)
	for _, r := range s.records {
		if f.matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.Before(out[j].FinishedAt) })
	return out, nil
}

// ListShifts returns matching shifts, most recent first.
func (s *MemoryStore) ListShifts(ctx context.Context, f ShiftFilter) ([]model.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Shift, 0)
	for _, sh := range s.shifts {
		if f.matches(sh) {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
