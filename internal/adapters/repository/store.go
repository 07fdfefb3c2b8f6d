// Package repository defines the persistence port for shifts and study
// records, plus its in-memory and SQLite implementations.
//
// The core treats this purely as an interface; schema compatibility and
// migration across legacy formats belong to the implementation.
package repository

import (
	"context"
	"time"

	"github.com/erichter2018/rvutrack/internal/domain/model"
)

// RecordFilter narrows QueryRecords. Zero values mean "no constraint".
// The time range is half-open: From inclusive, To exclusive, applied to the
// record's finish time.
type RecordFilter struct {
	ShiftID string
	From    time.Time
	To      time.Time
	Source  string
}

// ShiftFilter narrows ListShifts. Zero values mean "no constraint". The time
// range applies to the shift's start.
type ShiftFilter struct {
	From       time.Time
	To         time.Time
	ActiveOnly bool
	// Limit caps the result count; shifts are returned most recent first.
	Limit int
}

// Store is the persistence port consumed by the tracking pipeline and the
// metrics engine.
type Store interface {
	// CreateShift stores a new shift and assigns its ID. Fails with
	// ErrActiveShiftExists when a shift is still open.
	CreateShift(ctx context.Context, shift model.Shift) (model.Shift, error)

	// UpdateShift rewrites a stored shift (name, end, effective start).
	UpdateShift(ctx context.Context, shift model.Shift) error

	// EndShift closes an open shift at the given instant.
	EndShift(ctx context.Context, shiftID string, at time.Time) (model.Shift, error)

	// AddRecord stores a completed-study record, assigning an ID when the
	// record carries none. A record re-added under an existing ID replaces
	// the stored one, so re-persisting a grouped record is safe.
	AddRecord(ctx context.Context, rec model.StudyRecord) (model.StudyRecord, error)

	// UpdateRecord rewrites a stored record, e.g. after manual correction.
	UpdateRecord(ctx context.Context, rec model.StudyRecord) error

	// DeleteRecord removes a record by ID.
	DeleteRecord(ctx context.Context, id string) error

	// QueryRecords returns records matching the filter, ordered by finish
	// time ascending.
	QueryRecords(ctx context.Context, f RecordFilter) ([]model.StudyRecord, error)

	// ListShifts returns shifts matching the filter, most recent first.
	ListShifts(ctx context.Context, f ShiftFilter) ([]model.Shift, error)

	// Close releases any underlying resources.
	Close() error
}

func (f RecordFilter) matches(r model.StudyRecord) bool {
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

func (f ShiftFilter) matches(s model.Shift) bool {
	if f.ActiveOnly && !s.Active() {
		return false
	}
	if !f.From.IsZero() && s.Start.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !s.Start.Before(f.To) {
		return false
	}
	return true
}
