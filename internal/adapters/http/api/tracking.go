// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"time"

	"github.com/erichter2018/rvutrack/internal/domain/model"
)

// TrackingProvider exposes the currently tracked study, if any.
type TrackingProvider interface {
	Tracking() (model.TrackedStudy, bool)
}

// TrackingHandler handles current-study requests.
type TrackingHandler struct {
	provider TrackingProvider
}

// NewTrackingHandler creates a new tracking handler.
func NewTrackingHandler(provider TrackingProvider) *TrackingHandler {
	return &TrackingHandler{provider: provider}
}

// trackingResponse never carries the raw accession; only the procedure text
// and window timestamps leave the process.
type trackingResponse struct {
	Tracking      bool       `json:"tracking"`
	ProcedureText string     `json:"procedure_text,omitempty"`
	PatientClass  string     `json:"patient_class,omitempty"`
	FirstSeenAt   *time.Time `json:"first_seen_at,omitempty"`
	LastSeenAt    *time.Time `json:"last_seen_at,omitempty"`
}

// HandleTracking handles GET /tracking requests.
func (h *TrackingHandler) HandleTracking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	tracked, ok := h.provider.Tracking()
	if !ok {
		writeJSON(w, http.StatusOK, trackingResponse{Tracking: false})
		return
	}
	writeJSON(w, http.StatusOK, trackingResponse{
		Tracking:      true,
		ProcedureText: tracked.ProcedureText,
		PatientClass:  string(tracked.PatientClass),
		FirstSeenAt:   &tracked.FirstSeenAt,
		LastSeenAt:    &tracked.LastSeenAt,
	})
}
