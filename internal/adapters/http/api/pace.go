// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/erichter2018/rvutrack/internal/domain/pace"
)

// PaceDependencies defines the interface for pace comparisons.
type PaceDependencies interface {
	Pace(ctx context.Context, sel pace.Selection) (pace.Comparison, error)
}

// PaceHandler handles pace comparison requests.
type PaceHandler struct {
	deps PaceDependencies
}

// NewPaceHandler creates a new pace handler.
func NewPaceHandler(deps PaceDependencies) *PaceHandler {
	return &PaceHandler{deps: deps}
}

// paceResponse reports the comparison with elapsed time in whole seconds.
type paceResponse struct {
	Baseline       string  `json:"baseline"`
	ElapsedSeconds int64   `json:"elapsed_seconds"`
	ActualRVU      float64 `json:"actual_rvu"`
	ExpectedRVU    float64 `json:"expected_rvu"`
	DiffRVU        float64 `json:"diff_rvu"`
	Label          string  `json:"label"`
}

// HandlePace handles GET /pace requests. Query parameters: baseline
// (prior_shift, fixed_goal, best_this_week, best_ever, weeks_ago), weeks_ago
// for the weeks_ago baseline, goal_rvu and goal_span_hours for fixed_goal.
// A baseline that cannot be resolved yields 204 rather than an error: the
// display simply has nothing to compare against.
func (h *PaceHandler) HandlePace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()

	baseline, ok := pace.ParseBaseline(q.Get("baseline"))
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("unknown baseline"))
		return
	}
	sel := pace.Selection{Baseline: baseline}

	if v := q.Get("weeks_ago"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		sel.WeeksAgo = n
	}
	if v := q.Get("goal_rvu"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		sel.GoalRVU = f
	}
	if v := q.Get("goal_span_hours"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		sel.GoalSpan = time.Duration(f * float64(time.Hour))
	}

	cmp, err := h.deps.Pace(r.Context(), sel)
	if err != nil {
		if errors.Is(err, pace.ErrNoBaseline) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paceResponse{
		Baseline:       string(baseline),
		ElapsedSeconds: int64(cmp.Elapsed.Seconds()),
		ActualRVU:      cmp.Actual,
		ExpectedRVU:    cmp.Expected,
		DiffRVU:        cmp.Diff,
		Label:          cmp.Label,
	})
}
