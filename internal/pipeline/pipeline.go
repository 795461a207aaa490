package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/tradepulse/internal/analyzer"
	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/report"
	"github.com/wonny/tradepulse/pkg/logger"
	"github.com/wonny/tradepulse/pkg/metrics"
)

// Stage names recorded in RunResult.CompletedStages
const (
	StageLoad    = "load"
	StageAnalyze = "analyze"
	StageSignals = "signals"
	StageReport  = "report"
	StageSave    = "save"
)

// Run statuses (tradepulse_pipeline_runs_total{status})
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

const signalWriters = 4

// Pipeline coordinates one daily analysis run
// ⭐ SSOT: 일일 파이프라인 조율은 여기서만 (load → analyze → signals → report → save)
type Pipeline struct {
	source    contracts.SignalSource
	analyzer  *analyzer.Analyzer
	builder   *report.DailyBuilder
	store     contracts.ReportStore
	watchlist map[contracts.Category][]string

	logger  *logger.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// RunConfig holds the parameters of a run
type RunConfig struct {
	Date   time.Time
	RunID  string // 비어 있으면 생성
	DryRun bool   // true면 저장하지 않음
}

// RunResult holds the outcome of a run
type RunResult struct {
	RunID           string
	Date            string
	Success         bool
	Error           error
	CompletedStages []string
	Bundles         int
	Fallbacks       int
	SignalsSaved    int
	Report          *contracts.DailyReport
	Duration        time.Duration
}

// New creates a pipeline
func New(
	source contracts.SignalSource,
	an *analyzer.Analyzer,
	builder *report.DailyBuilder,
	store contracts.ReportStore,
	watchlist map[contracts.Category][]string,
	log *logger.Logger,
	rec *metrics.Recorder,
) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		source:    source,
		analyzer:  an,
		builder:   builder,
		store:     store,
		watchlist: watchlist,
		logger:    log.Component("pipeline"),
		metrics:   rec,
		now:       time.Now,
	}
}

// Run executes the daily pipeline. The daily report is written once, after
// it is fully built; a failed or cancelled run writes no report.
func (p *Pipeline) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	started := p.now()
	if cfg.Date.IsZero() {
		cfg.Date = started
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	result := &RunResult{
		RunID:           cfg.RunID,
		Date:            contracts.FormatDate(cfg.Date),
		CompletedStages: make([]string, 0, 5),
	}

	log := p.logger.WithRun(cfg.RunID, result.Date)
	log.WithField("dry_run", cfg.DryRun).Info("Starting pipeline run")

	err := p.run(ctx, cfg, started, result, log)
	result.Duration = p.now().Sub(started)

	if err != nil {
		result.Error = err
		status := StatusFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = StatusCancelled
		}
		p.metrics.RecordPipelineRun(status)
		log.WithError(err).WithFields(map[string]interface{}{
			"stages": result.CompletedStages,
			"status": status,
		}).Error("Pipeline run failed")
		return result, err
	}

	result.Success = true
	p.metrics.RecordPipelineRun(StatusSuccess)
	log.WithFields(map[string]interface{}{
		"bundles":   result.Bundles,
		"fallbacks": result.Fallbacks,
		"stable":    result.Report.StableRecommendation.Symbol,
		"risky":     result.Report.RiskyRecommendation.Symbol,
		"duration":  result.Duration.String(),
	}).Info("Pipeline run completed")
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, cfg RunConfig, started time.Time, result *RunResult, log *logger.Logger) error {
	// 1. Load
	bundles, err := p.source.Load(ctx, cfg.Date, p.watchlist)
	if err != nil {
		return fmt.Errorf("%s: %w", StageLoad, err)
	}
	for i := range bundles {
		// NaN/Inf는 JSON 저장 불가
		if n := bundles[i].Sanitize(); n > 0 {
			log.WithSymbol(bundles[i].Symbol).WithField("fields", n).Warn("Cleared non-finite values from bundle")
		}
	}
	result.Bundles = len(bundles)
	result.CompletedStages = append(result.CompletedStages, StageLoad)

	if len(bundles) == 0 {
		log.Warn("No watchlist bundles for run date, report will carry default recommendations")
	}

	// 2. Analyze (실패는 폴백으로 흡수됨)
	analyzed := p.analyzer.AnalyzeAll(ctx, bundles)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", StageAnalyze, err)
	}
	for _, b := range analyzed {
		if b.Analysis != nil && b.Analysis.Source == contracts.SourceFallback {
			result.Fallbacks++
		}
	}
	result.CompletedStages = append(result.CompletedStages, StageAnalyze)

	// 3. Signal snapshots
	if !cfg.DryRun {
		if err := p.saveSignals(ctx, analyzed); err != nil {
			return fmt.Errorf("%s: %w", StageSignals, err)
		}
		result.SignalsSaved = len(analyzed)
	}
	result.CompletedStages = append(result.CompletedStages, StageSignals)

	// 4. Report
	daily, err := p.builder.Build(ctx, cfg.Date, analyzed, started)
	if err != nil {
		return fmt.Errorf("%s: %w", StageReport, err)
	}
	result.Report = &daily
	result.CompletedStages = append(result.CompletedStages, StageReport)

	// 5. Save (단일 쓰기, 같은 날짜는 마지막 실행이 덮어씀)
	if cfg.DryRun {
		log.Info("Skipping save (dry run mode)")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", StageSave, err)
	}
	if err := p.store.Put(ctx, daily); err != nil {
		return fmt.Errorf("%s: %w", StageSave, err)
	}
	result.CompletedStages = append(result.CompletedStages, StageSave)
	return nil
}

// saveSignals writes snapshots concurrently; distinct symbols never conflict
func (p *Pipeline) saveSignals(ctx context.Context, analyzed []contracts.SignalBundle) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signalWriters)

	for i := range analyzed {
		b := analyzed[i]
		g.Go(func() error {
			if err := p.store.PutSignal(gctx, b); err != nil {
				return fmt.Errorf("signal %s: %w", b.Symbol, err)
			}
			return nil
		})
	}
	return g.Wait()
}
