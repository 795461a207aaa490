package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/tradepulse/internal/pipeline"
	"github.com/wonny/tradepulse/pkg/logger"
)

// PipelineRunner runs the daily pipeline (implemented by pipeline.Pipeline)
type PipelineRunner interface {
	Run(ctx context.Context, cfg pipeline.RunConfig) (*pipeline.RunResult, error)
}

// DailyAnalysisJob runs the analysis pipeline after the market close
// ⭐ SSOT: 일일 분석 스케줄은 이 Job에서만
type DailyAnalysisJob struct {
	runner   PipelineRunner
	schedule string
	logger   *logger.Logger
	now      func() time.Time
}

// NewDailyAnalysisJob creates a new daily analysis job
func NewDailyAnalysisJob(runner PipelineRunner, schedule string, log *logger.Logger) *DailyAnalysisJob {
	return &DailyAnalysisJob{
		runner:   runner,
		schedule: schedule,
		logger:   log,
		now:      time.Now,
	}
}

// Name returns the job name
func (j *DailyAnalysisJob) Name() string {
	return "daily_analysis"
}

// Schedule returns the cron schedule (default weekdays 16:30, with seconds)
func (j *DailyAnalysisJob) Schedule() string {
	return j.schedule
}

// Run executes the pipeline for today
func (j *DailyAnalysisJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled daily analysis")

	result, err := j.runner.Run(ctx, pipeline.RunConfig{Date: j.now()})
	if err != nil {
		return fmt.Errorf("daily pipeline: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":    result.RunID,
		"date":      result.Date,
		"bundles":   result.Bundles,
		"fallbacks": result.Fallbacks,
	}).Info("Scheduled daily analysis completed")

	return nil
}
