package pace

import (
	"sort"
	"time"

	"github.com/erichter2018/rvutrack/internal/domain/model"
)

// Baseline identifies which historical curve the live shift is compared to.
type Baseline string

// Baseline selections. WeeksAgo additionally needs a week count.
const (
	BaselinePriorShift Baseline = "prior_shift"
	BaselineFixedGoal  Baseline = "fixed_goal"
	BaselineBestWeek   Baseline = "best_this_week"
	BaselineBestEver   Baseline = "best_ever"
	BaselineWeeksAgo   Baseline = "weeks_ago"
)

// Selection is a fully specified baseline choice.
type Selection struct {
	Baseline Baseline
	// WeeksAgo applies to BaselineWeeksAgo.
	WeeksAgo int
	// GoalRVU and GoalSpan apply to BaselineFixedGoal.
	GoalRVU  float64
	GoalSpan time.Duration
}

// ParseBaseline maps a query value to a Baseline.
func ParseBaseline(s string) (Baseline, bool) {
	switch Baseline(s) {
	case BaselinePriorShift, BaselineFixedGoal, BaselineBestWeek, BaselineBestEver, BaselineWeeksAgo:
		return Baseline(s), true
	default:
		return "", false
	}
}

// CurveFromRecords builds a baseline curve from a finished shift's records:
// cumulative RVU sampled at each record's finish offset from shift start.
// Records not belonging to the anchor window (finished before start) are
// clamped to zero elapsed.
func CurveFromRecords(shift model.Shift, records []model.StudyRecord) Curve {
	samples := make([]Sample, 0, len(records)+1)
	samples = append(samples, Sample{Elapsed: 0, CumulativeRVU: 0})

	anchor := shift.StartForRates()
	ordered := NewCurveRecords(records)
	var cum float64
	for _, r := range ordered {
		cum += r.RVU
		elapsed := r.FinishedAt.Sub(anchor)
		if elapsed < 0 {
			elapsed = 0
		}
		samples = append(samples, Sample{Elapsed: elapsed, CumulativeRVU: cum})
	}
	return NewCurve(samples)
}

// NewCurveRecords returns records ordered by finish time.
func NewCurveRecords(records []model.StudyRecord) []model.StudyRecord {
	out := make([]model.StudyRecord, len(records))
	copy(out, records)
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.Before(out[j].FinishedAt) })
	return out
}

// GoalCurve builds a synthetic linear ramp reaching totalRVU at span.
func GoalCurve(totalRVU float64, span time.Duration) Curve {
	if span <= 0 || totalRVU < 0 {
		return Curve{{Elapsed: 0, CumulativeRVU: 0}}
	}
	return Curve{
		{Elapsed: 0, CumulativeRVU: 0},
		{Elapsed: span, CumulativeRVU: totalRVU},
	}
}
