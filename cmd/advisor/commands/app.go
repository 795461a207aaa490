package commands

import (
	"context"
	"fmt"

	"github.com/wonny/tradepulse/internal/analyzer"
	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/inference"
	"github.com/wonny/tradepulse/internal/pipeline"
	"github.com/wonny/tradepulse/internal/report"
	"github.com/wonny/tradepulse/internal/selection"
	"github.com/wonny/tradepulse/internal/service"
	"github.com/wonny/tradepulse/internal/signals"
	"github.com/wonny/tradepulse/internal/store"
	"github.com/wonny/tradepulse/pkg/config"
	"github.com/wonny/tradepulse/pkg/database"
	"github.com/wonny/tradepulse/pkg/logger"
	"github.com/wonny/tradepulse/pkg/metrics"
	"github.com/wonny/tradepulse/pkg/redis"
)

// app holds the wired components shared by every command
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	metrics  *metrics.Recorder
	db       *database.DB
	redis    *redis.Client
	store    contracts.ReportStore
	adapter  *inference.Adapter
	service  *service.ReportService
	pipeline *pipeline.Pipeline
}

// newApp loads config and wires the pipeline, store and service
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}
	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}

	// 3. Connect to database (postgres backend only)
	if cfg.Storage.Backend == "postgres" {
		a.db, err = database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		log.Info("Connected to database")
	}

	// 4. Redis (cache + rate limit); 연결 실패는 캐시 없이 계속
	a.redis, err = redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		a.redis = nil
	}

	// 5. Report store
	a.store, err = store.New(ctx, cfg, store.Deps{
		DB:      a.db,
		Redis:   a.redis,
		Metrics: a.metrics,
		Logger:  log,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create report store: %w", err)
	}

	// 6. Inference + analysis components
	a.adapter = inference.NewFromConfig(cfg, log, a.metrics, a.redis)
	policy := selection.PolicyFromConfig(cfg.Analysis)
	budgets := report.BudgetsFromConfig(cfg.Analysis)

	an := analyzer.New(a.adapter, analyzer.OptionsFromConfig(cfg.Analysis), log, a.metrics)
	daily := report.NewDailyBuilder(a.adapter, selection.New(policy), budgets, log)
	advisor := report.NewAdvisor(a.store, a.adapter, policy, budgets, log)
	summaries := report.NewSummaryBuilder(a.store, a.adapter, advisor, policy, budgets, log)

	// 7. Service + pipeline
	a.service = service.New(a.store, summaries, a.adapter, service.Retention{
		SignalDays: cfg.Storage.SignalRetentionDays,
		ReportDays: cfg.Storage.ReportRetentionDays,
	}, log)

	a.pipeline = pipeline.New(
		signals.NewFileSource(cfg.Analysis.SignalDir, log),
		an,
		daily,
		a.store,
		watchlist(cfg.Watchlist),
		log,
		a.metrics,
	)

	return a, nil
}

// Close releases connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func watchlist(w config.WatchlistConfig) map[contracts.Category][]string {
	return map[contracts.Category][]string{
		contracts.CategoryStable: w.Stable,
		contracts.CategoryRisky:  w.Risky,
	}
}
