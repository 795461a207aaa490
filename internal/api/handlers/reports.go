package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/inference"
	"github.com/wonny/tradepulse/internal/service"
	"github.com/wonny/tradepulse/pkg/logger"
)

// ReportService is the subset of service.ReportService the handlers use
type ReportService interface {
	GetDailyReport(ctx context.Context, date string) (contracts.DailyReport, error)
	GetLatestDailyReport(ctx context.Context) (contracts.DailyReport, error)
	GetSummaryReport(ctx context.Context, id string) (contracts.SummaryReport, error)
	GenerateSummaryReport(ctx context.Context, start, end time.Time, withPicks bool) (contracts.SummaryReport, error)
	Providers() []inference.ProviderInfo
	Health(ctx context.Context) service.HealthReport
}

// ReportHandler handles report API endpoints
// ⭐ SSOT: 리포트 API 핸들러는 이 구조체에서만
type ReportHandler struct {
	svc    ReportService
	logger *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc ReportService, log *logger.Logger) *ReportHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &ReportHandler{
		svc:    svc,
		logger: log.Component("api"),
	}
}

// GetLatestDaily returns today's report, else yesterday's
// GET /api/reports/daily/latest
func (h *ReportHandler) GetLatestDaily(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetLatestDailyReport(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetDaily returns the report of one date
// GET /api/reports/daily/{date}
func (h *ReportHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetDailyReport(r.Context(), mux.Vars(r)["date"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetSummary returns a persisted summary
// GET /api/reports/summary/{id}
func (h *ReportHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetSummaryReport(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// SummaryRequest represents a summary generation request
type SummaryRequest struct {
	StartDate    string `json:"start_date"` // YYYY-MM-DD
	EndDate      string `json:"end_date"`   // YYYY-MM-DD
	IncludePicks bool   `json:"include_picks"`
}

// GenerateSummary builds (and persists when non-empty) a summary
// POST /api/reports/summary
func (h *ReportHandler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	start, err := contracts.ParseDate(req.StartDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'start_date' format (expected YYYY-MM-DD)")
		return
	}
	end, err := contracts.ParseDate(req.EndDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'end_date' format (expected YYYY-MM-DD)")
		return
	}

	summary, err := h.svc.GenerateSummaryReport(r.Context(), start, end, req.IncludePicks)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Providers returns inference provider status
// GET /api/providers
func (h *ReportHandler) Providers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.svc.Providers(),
	})
}

// Health returns store and provider health; 503 only when the store is down
// GET /health
func (h *ReportHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.svc.Health(r.Context())

	status := http.StatusOK
	if report.Status == contracts.HealthError {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, report)
}

// respondServiceError maps sentinel errors onto HTTP status codes
func (h *ReportHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, contracts.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, contracts.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, contracts.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	}
	respondError(w, status, err.Error())
}
