// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/erichter2018/rvutrack/internal/adapters/repository"
	service "github.com/erichter2018/rvutrack/internal/app"
	"github.com/erichter2018/rvutrack/internal/domain/model"
	"github.com/erichter2018/rvutrack/internal/domain/pace"
	"github.com/erichter2018/rvutrack/internal/domain/stats"
)

// Dependencies bundles the operations HTTP handlers need. Using an interface
// keeps the handler layer loosely coupled to the orchestrating service.
type Dependencies interface {
	Observe(ctx context.Context, obs model.Observation) (model.StudyRecord, bool)

	StartShift(ctx context.Context, name string) (model.Shift, error)
	EndShift(ctx context.Context) (model.Shift, error)
	Shifts(ctx context.Context, f repository.ShiftFilter) ([]model.Shift, error)
	ActiveShift() (model.Shift, bool)
	Tracking() (model.TrackedStudy, bool)

	AddManualRecord(ctx context.Context, rawAccession string, rec model.StudyRecord) (model.StudyRecord, error)
	UpdateRecord(ctx context.Context, rec model.StudyRecord) error
	DeleteRecord(ctx context.Context, id string) error
	Records(ctx context.Context, f repository.RecordFilter) ([]model.StudyRecord, error)

	Summary(ctx context.Context, w stats.Window) (stats.Summary, error)
	Compensation(ctx context.Context) (stats.CompensationSummary, error)
	Pace(ctx context.Context, sel pace.Selection) (pace.Comparison, error)
}

// Server wires HTTP routes for the tracking API.
type Server struct {
	observationsHandler *ObservationsHandler
	shiftsHandler       *ShiftsHandler
	recordsHandler      *RecordsHandler
	summaryHandler      *SummaryHandler
	paceHandler         *PaceHandler
	trackingHandler     *TrackingHandler
	statsHandler        *StatsHandler
	healthHandler       *HealthHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		observationsHandler: NewObservationsHandler(deps),
		shiftsHandler:       NewShiftsHandler(deps),
		recordsHandler:      NewRecordsHandler(deps),
		summaryHandler:      NewSummaryHandler(deps),
		paceHandler:         NewPaceHandler(deps),
		trackingHandler:     NewTrackingHandler(deps),
		statsHandler:        NewStatsHandler(statsProvider),
		healthHandler:       NewHealthHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/observations", MetricsMiddleware(s.observationsHandler.HandlePostObservation, "observations"))
	mux.HandleFunc("/shifts", MetricsMiddleware(s.shiftsHandler.HandleListShifts, "shifts"))
	mux.HandleFunc("/shifts/start", MetricsMiddleware(s.shiftsHandler.HandleStartShift, "shifts_start"))
	mux.HandleFunc("/shifts/end", MetricsMiddleware(s.shiftsHandler.HandleEndShift, "shifts_end"))
	mux.HandleFunc("/shifts/active", MetricsMiddleware(s.shiftsHandler.HandleActiveShift, "shifts_active"))
	mux.HandleFunc("/records", MetricsMiddleware(s.recordsHandler.HandleRecords, "records"))
	mux.HandleFunc("/records/", MetricsMiddleware(s.recordsHandler.HandleRecordByID, "record"))
	mux.HandleFunc("/summary", MetricsMiddleware(s.summaryHandler.HandleSummary, "summary"))
	mux.HandleFunc("/compensation", MetricsMiddleware(s.summaryHandler.HandleCompensation, "compensation"))
	mux.HandleFunc("/pace", MetricsMiddleware(s.paceHandler.HandlePace, "pace"))
	mux.HandleFunc("/tracking", MetricsMiddleware(s.trackingHandler.HandleTracking, "tracking"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates domain sentinels into HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, stats.ErrShiftActive), errors.Is(err, stats.ErrNoActiveShift),
		errors.Is(err, repository.ErrActiveShiftExists), errors.Is(err, repository.ErrShiftClosed):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, stats.ErrInvalidWindow), errors.Is(err, service.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// parseTime accepts RFC3339 timestamps or bare dates in query parameters.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
