// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/erichter2018/rvutrack/internal/adapters/repository"
	"github.com/erichter2018/rvutrack/internal/domain/model"
)

// RecordDependencies defines the interface for record operations.
type RecordDependencies interface {
	AddManualRecord(ctx context.Context, rawAccession string, rec model.StudyRecord) (model.StudyRecord, error)
	UpdateRecord(ctx context.Context, rec model.StudyRecord) error
	DeleteRecord(ctx context.Context, id string) error
	Records(ctx context.Context, f repository.RecordFilter) ([]model.StudyRecord, error)
}

// RecordsHandler handles record listing, manual entry, and corrections.
type RecordsHandler struct {
	deps RecordDependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps RecordDependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

// recordRequest mirrors the POST /records schema. The accession arrives raw
// and is hashed before the record exists; it is never echoed back.
type recordRequest struct {
	Accession         string  `json:"accession"`
	Procedure         string  `json:"procedure"`
	StudyType         string  `json:"study_type"`
	RVU               float64 `json:"rvu"`
	StartedAt         string  `json:"started_at"`
	FinishedAt        string  `json:"finished_at"`
	PatientClass      string  `json:"patient_class"`
	HasCriticalResult bool    `json:"has_critical_result"`
}

func (r recordRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Procedure) == "":
		return errors.New("missing procedure")
	case r.RVU < 0:
		return errors.New("rvu must not be negative")
	case strings.TrimSpace(r.StartedAt) == "":
		return errors.New("missing started_at")
	case strings.TrimSpace(r.FinishedAt) == "":
		return errors.New("missing finished_at")
	}
	started, err := time.Parse(time.RFC3339, r.StartedAt)
	if err != nil {
		return errors.New("invalid started_at; must be RFC3339")
	}
	finished, err := time.Parse(time.RFC3339, r.FinishedAt)
	if err != nil {
		return errors.New("invalid finished_at; must be RFC3339")
	}
	if finished.Before(started) {
		return errors.New("finished_at before started_at")
	}
	return nil
}

// HandleRecords handles GET and POST /records requests.
func (h *RecordsHandler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListRecords(w, r)
	case http.MethodPost:
		h.handleAddRecord(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *RecordsHandler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	var f repository.RecordFilter
	q := r.URL.Query()
	f.ShiftID = q.Get("shift_id")
	f.Source = q.Get("source")
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
	records, err := h.deps.Records(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *RecordsHandler) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	started, _ := time.Parse(time.RFC3339, req.StartedAt)
	finished, _ := time.Parse(time.RFC3339, req.FinishedAt)

	rec, err := h.deps.AddManualRecord(r.Context(), req.Accession, model.StudyRecord{
		Procedure:         req.Procedure,
		StudyType:         req.StudyType,
		RVU:               req.RVU,
		StartedAt:         started,
		FinishedAt:        finished,
		PatientClass:      model.ParsePatientClass(req.PatientClass),
		HasCriticalResult: req.HasCriticalResult,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// HandleRecordByID handles PUT and DELETE /records/{id} requests.
func (h *RecordsHandler) HandleRecordByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/records/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var rec model.StudyRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		rec.ID = id
		if err := h.deps.UpdateRecord(r.Context(), rec); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		if err := h.deps.DeleteRecord(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}
