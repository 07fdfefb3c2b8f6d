// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/erichter2018/rvutrack/internal/domain/model"
)

// ObservationSink accepts observation ticks.
type ObservationSink interface {
	Observe(ctx context.Context, obs model.Observation) (model.StudyRecord, bool)
}

// ObservationsHandler handles observation feed requests.
type ObservationsHandler struct {
	sink ObservationSink
}

// NewObservationsHandler creates a new observations handler.
func NewObservationsHandler(sink ObservationSink) *ObservationsHandler {
	return &ObservationsHandler{sink: sink}
}

// observationRequest mirrors one poll of the worklist viewer. An empty
// accession is a legitimate tick: it means no study is open.
type observationRequest struct {
	Accession     string `json:"accession"`
	ProcedureText string `json:"procedure_text"`
	PatientClass  string `json:"patient_class"`
	ObservedAt    string `json:"observed_at"`
}

func (o observationRequest) validate() error {
	if strings.TrimSpace(o.Accession) != "" && strings.TrimSpace(o.ProcedureText) == "" {
		return errors.New("missing procedure_text")
	}
	if o.ObservedAt != "" {
		if _, err := time.Parse(time.RFC3339, o.ObservedAt); err != nil {
			return errors.New("invalid observed_at; must be RFC3339")
		}
	}
	return nil
}

// observationResponse acknowledges a tick and carries the record when the
// tick closed a study window.
type observationResponse struct {
	Status    string             `json:"status"`
	Completed bool               `json:"completed"`
	Record    *model.StudyRecord `json:"record,omitempty"`
}

// HandlePostObservation handles POST /observations requests.
func (h *ObservationsHandler) HandlePostObservation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	observedAt := time.Now()
	if req.ObservedAt != "" {
		observedAt, _ = time.Parse(time.RFC3339, req.ObservedAt)
	}

	rec, completed := h.sink.Observe(r.Context(), model.Observation{
		Accession:     req.Accession,
		ProcedureText: req.ProcedureText,
		PatientClass:  model.ParsePatientClass(req.PatientClass),
		ObservedAt:    observedAt,
	})

	resp := observationResponse{Status: "accepted", Completed: completed}
	if completed {
		resp.Record = &rec
	}
	writeJSON(w, http.StatusAccepted, resp)
}
