package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/report"
	"github.com/wonny/tradepulse/internal/scheduler"
	"github.com/wonny/tradepulse/pkg/logger"
)

// SummaryGenerator builds and persists summaries (implemented by service.ReportService)
type SummaryGenerator interface {
	GenerateSummaryReport(ctx context.Context, start, end time.Time, withPicks bool) (contracts.SummaryReport, error)
}

// MonthlySummaryJob rolls up the previous calendar month
type MonthlySummaryJob struct {
	generator SummaryGenerator
	schedule  string
	withPicks bool
	logger    *logger.Logger
	now       func() time.Time
}

// NewMonthlySummaryJob creates a new monthly summary job
func NewMonthlySummaryJob(generator SummaryGenerator, schedule string, withPicks bool, log *logger.Logger) *MonthlySummaryJob {
	return &MonthlySummaryJob{
		generator: generator,
		schedule:  schedule,
		withPicks: withPicks,
		logger:    log,
		now:       time.Now,
	}
}

// Name returns the job name
func (j *MonthlySummaryJob) Name() string {
	return "monthly_summary"
}

// Schedule returns the cron schedule (default 1st of month 06:00)
func (j *MonthlySummaryJob) Schedule() string {
	return j.schedule
}

// PreviousMonth returns the first and last day of the month before now,
// capped to the maximum summary span
func PreviousMonth(now time.Time) (start, end time.Time) {
	now = now.UTC()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start = firstOfMonth.AddDate(0, -1, 0)
	end = firstOfMonth.AddDate(0, 0, -1)

	if limit := start.AddDate(0, 0, report.MaxSummaryDays); end.After(limit) {
		end = limit
	}
	return start, end
}

// Run generates the summary of the previous month
func (j *MonthlySummaryJob) Run(ctx context.Context) error {
	start, end := PreviousMonth(j.now())

	j.logger.WithFields(map[string]interface{}{
		"start": contracts.FormatDate(start),
		"end":   contracts.FormatDate(end),
	}).Info("Starting scheduled monthly summary")

	summary, err := j.generator.GenerateSummaryReport(ctx, start, end, j.withPicks)
	if err != nil {
		if errors.Is(err, contracts.ErrInvalidRange) {
			return scheduler.Permanent(err)
		}
		return fmt.Errorf("monthly summary: %w", err)
	}

	if summary.Empty() {
		j.logger.WithField("report_id", summary.ReportID).Warn("No daily reports last month, summary not saved")
		return nil
	}

	j.logger.WithFields(map[string]interface{}{
		"report_id":     summary.ReportID,
		"days_analyzed": summary.DaysAnalyzed,
	}).Info("Scheduled monthly summary completed")

	return nil
}
