// Package model contains domain models passed between layers.
package model

import "time"

// PatientClass identifies the care setting a study was ordered from.
type PatientClass string

// Patient class values reported by the observation feed.
const (
	Inpatient    PatientClass = "Inpatient"
	Outpatient   PatientClass = "Outpatient"
	ED           PatientClass = "ED"
	UnknownClass PatientClass = "Unknown"
)

// ParsePatientClass maps free-form feed values onto the known classes.
// Anything unrecognized collapses to UnknownClass.
func ParsePatientClass(s string) PatientClass {
	switch PatientClass(s) {
	case Inpatient, Outpatient, ED:
		return PatientClass(s)
	default:
		return UnknownClass
	}
}

// Observation is one snapshot of "what procedure is currently open".
// Observations are transient; they are never stored.
type Observation struct {
	Accession     string
	ProcedureText string
	PatientClass  PatientClass
	ObservedAt    time.Time
}

// TrackedStudy is the single in-flight study owned by the lifecycle tracker.
// Accession is never empty while a study is being tracked.
type TrackedStudy struct {
	Accession     string
	FirstSeenAt   time.Time
	LastSeenAt    time.Time
	ProcedureText string
	PatientClass  PatientClass
}

// Completion is emitted by the tracker when an observation window closes.
// Classification is deferred to the consumer so late context cannot rewrite
// an in-flight study.
type Completion struct {
	Accession     string
	ProcedureText string
	PatientClass  PatientClass
	StartedAt     time.Time
	FinishedAt    time.Time

	// GroupKey is produced by the pluggable grouping hook; consumers use it
	// to collapse near-simultaneous completions into one record.
	GroupKey string

	// Temporary marks a completion that happened while no shift was active.
	Temporary bool
}

// Duration returns the observation window length.
func (c Completion) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}
