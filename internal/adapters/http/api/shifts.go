// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/erichter2018/rvutrack/internal/adapters/repository"
	"github.com/erichter2018/rvutrack/internal/domain/model"
)

// ShiftDependencies defines the interface for shift lifecycle operations.
type ShiftDependencies interface {
	StartShift(ctx context.Context, name string) (model.Shift, error)
	EndShift(ctx context.Context) (model.Shift, error)
	Shifts(ctx context.Context, f repository.ShiftFilter) ([]model.Shift, error)
	ActiveShift() (model.Shift, bool)
}

// ShiftsHandler handles shift lifecycle requests.
type ShiftsHandler struct {
	deps ShiftDependencies
}

// NewShiftsHandler creates a new shifts handler.
func NewShiftsHandler(deps ShiftDependencies) *ShiftsHandler {
	return &ShiftsHandler{deps: deps}
}

type startShiftRequest struct {
	Name string `json:"name"`
}

// HandleStartShift handles POST /shifts/start requests.
func (h *ShiftsHandler) HandleStartShift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req startShiftRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
	}
	shift, err := h.deps.StartShift(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, shift)
}

// HandleEndShift handles POST /shifts/end requests.
func (h *ShiftsHandler) HandleEndShift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	shift, err := h.deps.EndShift(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// HandleActiveShift handles GET /shifts/active requests.
func (h *ShiftsHandler) HandleActiveShift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	shift, ok := h.deps.ActiveShift()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", repository.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// HandleListShifts handles GET /shifts?from=&to=&active_only=&limit= requests.
func (h *ShiftsHandler) HandleListShifts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	var f repository.ShiftFilter
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		f.To = t
	}
	if v := q.Get("active_only"); v != "" {
		f.ActiveOnly = v == "true" || v == "1"
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		f.Limit = n
	}
	shifts, err := h.deps.Shifts(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shifts)
}
