// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/erichter2018/rvutrack/internal/domain/stats"
)

// SummaryDependencies defines the interface for aggregate queries.
type SummaryDependencies interface {
	Summary(ctx context.Context, w stats.Window) (stats.Summary, error)
	Compensation(ctx context.Context) (stats.CompensationSummary, error)
}

// SummaryHandler handles summary and compensation requests.
type SummaryHandler struct {
	deps SummaryDependencies
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(deps SummaryDependencies) *SummaryHandler {
	return &SummaryHandler{deps: deps}
}

// HandleSummary handles GET /summary requests. The window is chosen by
// shift_id, preset (today, this_week), or an explicit from/to range; with no
// parameters the active shift is summarized.
func (h *SummaryHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	var win stats.Window
	q := r.URL.Query()
	win.ShiftID = q.Get("shift_id")
	win.Preset = q.Get("preset")
	if v := q.Get("from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		win.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		win.To = t
	}

	summary, err := h.deps.Summary(r.Context(), win)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleCompensation handles GET /compensation requests.
func (h *SummaryHandler) HandleCompensation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	comp, err := h.deps.Compensation(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}
