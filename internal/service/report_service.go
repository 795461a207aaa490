package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/inference"
	"github.com/wonny/tradepulse/internal/report"
	"github.com/wonny/tradepulse/pkg/logger"
)

// ProviderReporter exposes inference provider status (implemented by inference.Adapter)
type ProviderReporter interface {
	ProviderStatus() []inference.ProviderInfo
}

// Retention holds the default cleanup windows in days
type Retention struct {
	SignalDays int
	ReportDays int // 0 = 2x SignalDays
}

// HealthReport combines store and provider health
type HealthReport struct {
	Status    contracts.HealthState    `json:"status"`
	Store     contracts.Health         `json:"store"`
	Providers []inference.ProviderInfo `json:"providers"`
	Timestamp time.Time                `json:"timestamp"`
}

// ReportService is the read/generate surface used by the API, CLI and scheduler
// ⭐ SSOT: 리포트 조회/생성 진입점은 여기서만
type ReportService struct {
	store     contracts.ReportStore
	summaries *report.SummaryBuilder
	providers ProviderReporter
	retention Retention
	logger    *logger.Logger
	now       func() time.Time
}

// New creates a report service; providers may be nil
func New(store contracts.ReportStore, summaries *report.SummaryBuilder, providers ProviderReporter, retention Retention, log *logger.Logger) *ReportService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ReportService{
		store:     store,
		summaries: summaries,
		providers: providers,
		retention: retention,
		logger:    log.Component("report_service"),
		now:       time.Now,
	}
}

// GetDailyReport returns the report of date (YYYY-MM-DD)
func (s *ReportService) GetDailyReport(ctx context.Context, date string) (contracts.DailyReport, error) {
	d, err := contracts.ParseDate(date)
	if err != nil {
		return contracts.DailyReport{}, fmt.Errorf("%w: %v", contracts.ErrInvalidRange, err)
	}
	return s.store.Get(ctx, contracts.FormatDate(d))
}

// GetLatestDailyReport returns today's report, else yesterday's
func (s *ReportService) GetLatestDailyReport(ctx context.Context) (contracts.DailyReport, error) {
	today := s.now().UTC()

	for _, d := range []time.Time{today, today.AddDate(0, 0, -1)} {
		r, err := s.store.Get(ctx, contracts.FormatDate(d))
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, contracts.ErrNotFound) {
			return contracts.DailyReport{}, err
		}
	}
	return contracts.DailyReport{}, fmt.Errorf("no daily report for today or yesterday: %w", contracts.ErrNotFound)
}

// GetSummaryReport returns a persisted summary by id
func (s *ReportService) GetSummaryReport(ctx context.Context, id string) (contracts.SummaryReport, error) {
	return s.store.GetSummary(ctx, id)
}

// GenerateSummaryReport builds a summary over [start, end] and persists it
// unless it is empty
func (s *ReportService) GenerateSummaryReport(ctx context.Context, start, end time.Time, withPicks bool) (contracts.SummaryReport, error) {
	summary, err := s.summaries.Build(ctx, start, end, withPicks)
	if err != nil {
		return contracts.SummaryReport{}, err
	}

	if summary.Empty() {
		return summary, nil
	}

	if err := s.store.PutSummary(ctx, summary); err != nil {
		return contracts.SummaryReport{}, fmt.Errorf("save summary %s: %w", summary.ReportID, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"report_id": summary.ReportID,
		"days":      summary.DaysAnalyzed,
		"picks":     withPicks,
	}).Info("Summary report saved")

	return summary, nil
}

// Cleanup applies retention; non-positive signalDays uses the configured window
func (s *ReportService) Cleanup(ctx context.Context, signalDays, reportDays int) (contracts.CleanupResult, error) {
	if signalDays < 1 {
		signalDays = s.retention.SignalDays
		if reportDays < 1 {
			reportDays = s.retention.ReportDays
		}
	}
	reportDays = contracts.EffectiveReportDays(signalDays, reportDays)

	result, err := s.store.Cleanup(ctx, signalDays, reportDays)
	if err != nil {
		return result, err
	}

	s.logger.WithFields(map[string]interface{}{
		"signal_days":       signalDays,
		"report_days":       reportDays,
		"signals_deleted":   result.SignalsDeleted,
		"reports_deleted":   result.ReportsDeleted,
		"summaries_deleted": result.SummariesDeleted,
	}).Info("Retention cleanup completed")
	return result, nil
}

// Providers returns the inference provider status; empty without an adapter
func (s *ReportService) Providers() []inference.ProviderInfo {
	if s.providers == nil {
		return []inference.ProviderInfo{}
	}
	return s.providers.ProviderStatus()
}

// Health never fails. Unconfigured providers degrade the status since
// every analysis would use the rule-based fallback.
func (s *ReportService) Health(ctx context.Context) HealthReport {
	h := HealthReport{
		Store:     s.store.HealthStatus(ctx),
		Providers: s.Providers(),
		Timestamp: s.now().UTC(),
	}

	h.Status = h.Store.Status
	if h.Status == contracts.HealthHealthy && !anyConfigured(h.Providers) {
		h.Status = contracts.HealthDegraded
	}
	return h
}

func anyConfigured(infos []inference.ProviderInfo) bool {
	for _, p := range infos {
		if p.Configured {
			return true
		}
	}
	return false
}
