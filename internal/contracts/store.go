package contracts

import (
	"context"
	"time"
)

// HealthState is the coarse health of a component
type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthDegraded HealthState = "degraded"
	HealthError    HealthState = "error"
)

// Health is a component health snapshot
type Health struct {
	Status HealthState `json:"status"`
	Detail string      `json:"detail"`
}

// CleanupResult counts entries removed by a retention pass
type CleanupResult struct {
	SignalsDeleted   int `json:"signals_deleted"`
	ReportsDeleted   int `json:"reports_deleted"`
	SummariesDeleted int `json:"summaries_deleted"`
}

// Total returns the number of removed entries
func (r CleanupResult) Total() int {
	return r.SignalsDeleted + r.ReportsDeleted + r.SummariesDeleted
}

// ReportStore persists signals and reports, partitioned by calendar period
// ⭐ SSOT: 저장소 계약은 여기서만 정의 (file/postgres 구현 공통)
type ReportStore interface {
	// Put writes a daily report; a later write for the same date overwrites
	Put(ctx context.Context, report DailyReport) error
	// Get returns ErrNotFound when no report exists for date
	Get(ctx context.Context, date string) (DailyReport, error)
	// ListRange returns reports in [start, end] ascending; missing days are skipped
	ListRange(ctx context.Context, start, end time.Time) ([]DailyReport, error)

	PutSignal(ctx context.Context, bundle SignalBundle) error
	GetLatestSignal(ctx context.Context, symbol string) (SignalBundle, error)
	GetSignalsForDate(ctx context.Context, date string) ([]SignalBundle, error)

	PutSummary(ctx context.Context, summary SummaryReport) error
	GetSummary(ctx context.Context, id string) (SummaryReport, error)

	// Cleanup removes entries older than the windows; reportDays <= 0 means 2x signalDays
	Cleanup(ctx context.Context, signalDays, reportDays int) (CleanupResult, error)
	// HealthStatus never fails; problems are reported in the returned Health
	HealthStatus(ctx context.Context) Health
}

// SignalSource supplies signal bundles for a run date
type SignalSource interface {
	Load(ctx context.Context, date time.Time, watchlist map[Category][]string) ([]SignalBundle, error)
}

// EffectiveReportDays applies the default report retention (2x signals)
func EffectiveReportDays(signalDays, reportDays int) int {
	if reportDays > 0 {
		return reportDays
	}
	return signalDays * 2
}
