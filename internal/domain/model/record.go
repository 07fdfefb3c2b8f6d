package model

import "time"

// Record sources.
const (
	SourceTracker   = "tracker"
	SourceManual    = "manual"
	SourceSimulator = "simulator"
)

// StudyRecord is a billable productivity record. Immutable once created; the
// persistence port owns it after hand-off. The raw accession is replaced by
// its salted hash before the record exists.
type StudyRecord struct {
	ID                string       `json:"id"`
	ShiftID           string       `json:"shift_id,omitempty"`
	AccessionHash     string       `json:"accession_hash"`
	Procedure         string       `json:"procedure"`
	StudyType         string       `json:"study_type"`
	RVU               float64      `json:"rvu"`
	StartedAt         time.Time    `json:"started_at"`
	FinishedAt        time.Time    `json:"finished_at"`
	DurationSeconds   int64        `json:"duration_seconds"`
	PatientClass      PatientClass `json:"patient_class"`
	AccessionCount    int          `json:"accession_count"`
	GroupID           string       `json:"group_id,omitempty"`
	HasCriticalResult bool         `json:"has_critical_result"`
	Source            string       `json:"source"`
}

// Shift is one work period. At most one shift has End == nil at any time.
type Shift struct {
	ID    string     `json:"id"`
	Name  string     `json:"name,omitempty"`
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`

	// EffectiveStart is set when temporary records recorded before the shift
	// began are folded into it; pace and rate math use it instead of Start.
	EffectiveStart *time.Time `json:"effective_start,omitempty"`
}

// Active reports whether the shift is still open.
func (s Shift) Active() bool { return s.End == nil }

// StartForRates returns the timestamp rate and pace math should anchor on.
func (s Shift) StartForRates() time.Time {
	if s.EffectiveStart != nil {
		return *s.EffectiveStart
	}
	return s.Start
}
