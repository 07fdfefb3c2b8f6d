// Package pace compares live cumulative RVU against a historical baseline
// curve at the same elapsed shift time.
//
// Curves and comparison are pure and read-only; any goroutine may evaluate
// them without synchronization. The algorithm is baseline-source-agnostic:
// selectors elsewhere resolve a shift or goal into a concrete Curve first.
package pace

import (
	"sort"
	"time"
)

// Labels reported by a comparison.
const (
	Ahead  = "ahead"
	Behind = "behind"
	OnPace = "on_pace"
)

// defaultEpsilon bounds the band reported as "on pace".
const defaultEpsilon = 0.01

// Sample is one point on a baseline curve: cumulative RVU at an elapsed
// offset from shift start.
type Sample struct {
	Elapsed       time.Duration `json:"elapsed_seconds"`
	CumulativeRVU float64       `json:"cumulative_rvu"`
}

// Curve is an ordered sequence of samples. Build one with NewCurve so the
// ordering invariant holds.
type Curve []Sample

// NewCurve returns a curve sorted by elapsed time.
func NewCurve(samples []Sample) Curve {
	c := make(Curve, len(samples))
	copy(c, samples)
	sort.Slice(c, func(i, j int) bool { return c[i].Elapsed < c[j].Elapsed })
	return c
}

// Expected returns the interpolated cumulative RVU at the given elapsed time.
// Linear interpolation between the bracketing samples; clamped to the first
// and last samples outside the curve's span. An empty curve reads zero.
func (c Curve) Expected(elapsed time.Duration) float64 {
	if len(c) == 0 {
		return 0
	}
	if elapsed <= c[0].Elapsed {
		return c[0].CumulativeRVU
	}
	last := c[len(c)-1]
	if elapsed >= last.Elapsed {
		return last.CumulativeRVU
	}
	i := sort.Search(len(c), func(i int) bool { return c[i].Elapsed >= elapsed })
	lo, hi := c[i-1], c[i]
	span := hi.Elapsed - lo.Elapsed
	if span <= 0 {
		return hi.CumulativeRVU
	}
	frac := float64(elapsed-lo.Elapsed) / float64(span)
	return lo.CumulativeRVU + frac*(hi.CumulativeRVU-lo.CumulativeRVU)
}

// Comparison is the outcome of comparing live output against a baseline.
type Comparison struct {
	Elapsed  time.Duration `json:"elapsed_seconds"`
	Actual   float64       `json:"actual_rvu"`
	Expected float64       `json:"expected_rvu"`
	Diff     float64       `json:"diff_rvu"`
	Label    string        `json:"label"`
}

// Compare evaluates actual cumulative RVU against the baseline at the given
// elapsed time. epsilon <= 0 falls back to the default band.
func Compare(baseline Curve, elapsed time.Duration, actual, epsilon float64) Comparison {
	if epsilon <= 0 {
		epsilon = defaultEpsilon
	}
	expected := baseline.Expected(elapsed)
	diff := actual - expected

	label := OnPace
	switch {
	case diff > epsilon:
		label = Ahead
	case diff < -epsilon:
		label = Behind
	}

	return Comparison{
		Elapsed:  elapsed,
		Actual:   actual,
		Expected: expected,
		Diff:     diff,
		Label:    label,
	}
}
