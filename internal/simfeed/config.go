// Package simfeed drives a running service with a synthetic worklist feed:
// plausible reading sessions posted tick by tick to /observations.
package simfeed

import "time"

// Default simulation constants.
const (
	DefaultStudies      = 20
	DefaultMinReadTicks = 2
	DefaultMaxReadTicks = 6
	DefaultGapTicks     = 1
	DefaultTickSpacing  = 30 * time.Second
	DefaultTimeout      = 10 * time.Second
)

// Config holds configuration for the feed simulation.
type Config struct {
	BaseURL string // Base URL of the service

	// Studies is the number of reading sessions to simulate.
	Studies int

	// MinReadTicks and MaxReadTicks bound how many ticks a study stays
	// open. Tick spacing is synthetic, so more ticks means a longer read.
	MinReadTicks int
	MaxReadTicks int

	// GapTicks is the number of placeholder ticks between studies.
	GapTicks int

	// TickSpacing advances the synthetic observed_at clock per tick.
	TickSpacing time.Duration

	// Interval is the real-time delay between POSTs; zero floods.
	Interval time.Duration

	// StartShift starts a shift before feeding.
	StartShift bool

	Timeout time.Duration // HTTP request timeout
	Verbose bool          // Enable verbose logging
}

// Observation is one tick of the feed.
type Observation struct {
	Accession     string `json:"accession"`
	ProcedureText string `json:"procedure_text"`
	PatientClass  string `json:"patient_class"`
	ObservedAt    string `json:"observed_at"`
}

// Ack is the service's answer to a tick.
type Ack struct {
	Status    string `json:"status"`
	Completed bool   `json:"completed"`
	Record    *struct {
		StudyType string  `json:"study_type"`
		RVU       float64 `json:"rvu"`
	} `json:"record"`
}

// Stats holds simulation statistics.
type Stats struct {
	TicksSent        int
	StudiesOpened    int
	RecordsCompleted int
	Failed           int
	RVUSum           float64
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
