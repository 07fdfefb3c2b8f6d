package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/erichter2018/rvutrack/internal/adapters/repository"
	"github.com/erichter2018/rvutrack/internal/domain/model"
	"github.com/erichter2018/rvutrack/internal/domain/pace"
)

// Pace compares the active shift's cumulative RVU against the selected
// baseline at the current elapsed time. An unresolvable baseline returns
// pace.ErrNoBaseline so callers can suppress the comparison instead of
// failing the whole metrics view.
func (e *Engine) Pace(ctx context.Context, sel pace.Selection) (pace.Comparison, error) {
	if e.active == nil {
		return pace.Comparison{}, ErrNoActiveShift
	}

	curve, err := e.resolveBaseline(ctx, sel)
	if err != nil {
		return pace.Comparison{}, err
	}

	elapsed := e.clock().Sub(e.active.StartForRates())
	return pace.Compare(curve, elapsed, e.liveRVU(), e.epsilon), nil
}

// resolveBaseline turns a selection into a concrete curve.
func (e *Engine) resolveBaseline(ctx context.Context, sel pace.Selection) (pace.Curve, error) {
	if sel.Baseline == pace.BaselineFixedGoal {
		span := sel.GoalSpan
		if span <= 0 {
			span = e.goalSpan
		}
		if sel.GoalRVU <= 0 {
			return nil, fmt.Errorf("%w: fixed goal needs a positive RVU target", pace.ErrNoBaseline)
		}
		return pace.GoalCurve(sel.GoalRVU, span), nil
	}

	shifts, err := e.store.ListShifts(ctx, repository.ShiftFilter{})
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	closed := make([]model.Shift, 0, len(shifts))
	for _, shift := range shifts {
		if !shift.Active() {
			closed = append(closed, shift)
		}
	}

	var chosen model.Shift
	var found bool
	switch sel.Baseline {
	case pace.BaselinePriorShift:
		for _, shift := range closed {
			if shift.Start.Before(e.active.Start) {
				chosen, found = shift, true
				break
			}
		}
	case pace.BaselineBestWeek:
		chosen, found, err = e.bestShift(ctx, closed, weekStart(e.clock()))
		if err != nil {
			return nil, err
		}
	case pace.BaselineBestEver:
		chosen, found, err = e.bestShift(ctx, closed, time.Time{})
		if err != nil {
			return nil, err
		}
	case pace.BaselineWeeksAgo:
		if sel.WeeksAgo <= 0 {
			return nil, fmt.Errorf("%w: weeks_ago needs a positive count", pace.ErrNoBaseline)
		}
		target := e.active.Start.AddDate(0, 0, -7*sel.WeeksAgo)
		for _, shift := range closed {
			if sameDay(shift.Start, target) {
				chosen, found = shift, true
				break
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown selection %q", pace.ErrNoBaseline, sel.Baseline)
	}
	if !found {
		return nil, fmt.Errorf("%w: no shift matches %s", pace.ErrNoBaseline, sel.Baseline)
	}

	records, err := e.store.QueryRecords(ctx, repository.RecordFilter{ShiftID: chosen.ID})
	if err != nil {
		return nil, fmt.Errorf("query baseline records: %w", err)
	}
	return pace.CurveFromRecords(chosen, records), nil
}

// bestShift picks the closed shift with the highest total RVU, optionally
// restricted to shifts starting at or after since.
func (e *Engine) bestShift(ctx context.Context, closed []model.Shift, since time.Time) (model.Shift, bool, error) {
	var best model.Shift
	var bestRVU float64
	var found bool
	for _, shift := range closed {
		if !since.IsZero() && shift.Start.Before(since) {
			continue
		}
		records, err := e.store.QueryRecords(ctx, repository.RecordFilter{ShiftID: shift.ID})
		if err != nil {
			return model.Shift{}, false, fmt.Errorf("query shift records: %w", err)
		}
		var sum float64
		for _, rec := range records {
			sum += rec.RVU
		}
		if !found || sum > bestRVU {
			best, bestRVU, found = shift, sum, true
		}
	}
	return best, found, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
