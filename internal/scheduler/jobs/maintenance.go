package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/pkg/logger"
)

// RetentionCleaner applies the retention windows (implemented by service.ReportService)
type RetentionCleaner interface {
	Cleanup(ctx context.Context, signalDays, reportDays int) (contracts.CleanupResult, error)
}

// RetentionCleanupJob removes signals and reports past their retention window
type RetentionCleanupJob struct {
	cleaner  RetentionCleaner
	schedule string
	logger   *logger.Logger
}

// NewRetentionCleanupJob creates a new retention cleanup job
func NewRetentionCleanupJob(cleaner RetentionCleaner, schedule string, log *logger.Logger) *RetentionCleanupJob {
	return &RetentionCleanupJob{
		cleaner:  cleaner,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RetentionCleanupJob) Name() string {
	return "retention_cleanup"
}

// Schedule returns the cron schedule (default Sunday 03:00)
func (j *RetentionCleanupJob) Schedule() string {
	return j.schedule
}

// Run executes the cleanup with the configured windows
func (j *RetentionCleanupJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled retention cleanup")

	result, err := j.cleaner.Cleanup(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("retention cleanup: %w", err)
	}

	if result.Total() > 0 {
		j.logger.WithField("removed", result.Total()).Info("Retention cleanup completed")
	}

	return nil
}
