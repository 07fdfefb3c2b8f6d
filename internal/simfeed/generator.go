package simfeed

import (
	"time"

	"github.com/google/uuid"
)

// generatePlan lays out the whole feed ahead of time: for each study a run
// of ticks with the same accession, then placeholder ticks. The synthetic
// observed_at clock advances by the configured spacing per tick, so study
// durations comfortably clear the minimum-duration filter.
func generatePlan(cfg *Config, start time.Time) []Observation {
	spacing := cfg.TickSpacing
	if spacing <= 0 {
		spacing = DefaultTickSpacing
	}

	var plan []Observation
	at := start
	for i := 0; i < cfg.Studies; i++ {
		accession := "SIM-" + uuid.NewString()
		text := pickWeighted(catalog)
		class := pickWeighted(patientClasses)

		ticks := randomInt(cfg.MinReadTicks, cfg.MaxReadTicks)
		if ticks < 1 {
			ticks = 1
		}
		for t := 0; t < ticks; t++ {
			plan = append(plan, Observation{
				Accession:     accession,
				ProcedureText: text,
				PatientClass:  class,
				ObservedAt:    at.Format(time.RFC3339),
			})
			at = at.Add(spacing)
		}

		for g := 0; g < cfg.GapTicks; g++ {
			plan = append(plan, Observation{ObservedAt: at.Format(time.RFC3339)})
			at = at.Add(spacing)
		}
	}

	// Trailing placeholder so the final study completes.
	if cfg.GapTicks == 0 && len(plan) > 0 {
		plan = append(plan, Observation{ObservedAt: at.Format(time.RFC3339)})
	}
	return plan
}
