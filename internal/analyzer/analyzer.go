package analyzer

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/inference"
	"github.com/wonny/tradepulse/pkg/config"
	"github.com/wonny/tradepulse/pkg/logger"
	"github.com/wonny/tradepulse/pkg/metrics"
)

// Options controls inference budgets and fan-out
type Options struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	Workers int     // 동시 분석 수
	RPS     float64 // 공급자 호출 속도 제한 (0 = 무제한)
}

// DefaultOptions returns the standard analysis budget
func DefaultOptions() Options {
	return Options{
		Temperature: 0.3,
		MaxTokens:   1000,
		Timeout:     30 * time.Second,
		Workers:     4,
		RPS:         2,
	}
}

// OptionsFromConfig maps the analysis config section onto Options
func OptionsFromConfig(cfg config.AnalysisConfig) Options {
	opts := DefaultOptions()
	if cfg.AnalysisTimeout > 0 {
		opts.Timeout = cfg.AnalysisTimeout
	}
	if cfg.Workers > 0 {
		opts.Workers = cfg.Workers
	}
	opts.RPS = cfg.RPS
	return opts
}

// Analyzer turns signal bundles into analyses
// ⭐ SSOT: Analyze는 항상 사용 가능한 Analysis를 반환 (실패 시 규칙 기반 폴백)
type Analyzer struct {
	llm     inference.Inferer
	opts    Options
	logger  *logger.Logger
	metrics *metrics.Recorder
}

// New creates an analyzer; llm may be nil, in which case every analysis
// uses the rule-based fallback
func New(llm inference.Inferer, opts Options, log *logger.Logger, rec *metrics.Recorder) *Analyzer {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Analyzer{
		llm:     llm,
		opts:    opts,
		logger:  log.Component("analyzer"),
		metrics: rec,
	}
}

// Analyze never fails; inference and parse failures fold into FallbackAnalysis
func (a *Analyzer) Analyze(ctx context.Context, b contracts.SignalBundle) contracts.Analysis {
	result := a.infer(ctx, b)
	if result.IsValid() {
		a.metrics.RecordAnalysis(string(contracts.SourceInference))
		return result.Analysis()
	}

	a.logger.WithSymbol(b.Symbol).WithField("reason", result.Reason()).Warn("Using fallback analysis")
	a.metrics.RecordAnalysis(string(contracts.SourceFallback))
	return FallbackAnalysis(b)
}

func (a *Analyzer) infer(ctx context.Context, b contracts.SignalBundle) ParseResult {
	if a.llm == nil {
		return Invalid("no inference adapter")
	}

	text, err := a.llm.Infer(ctx, inference.Request{
		Prompt:      BuildPrompt(b),
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
		Timeout:     a.opts.Timeout,
	})
	if err != nil {
		return Invalid(err.Error())
	}
	return ParseAnalysis(text, b.Category)
}

// AnalyzeAll analyzes bundles on a bounded worker pool.
// The result keeps input order and every element carries an Analysis;
// bundles not reached before ctx is cancelled get the fallback.
func (a *Analyzer) AnalyzeAll(ctx context.Context, bundles []contracts.SignalBundle) []contracts.SignalBundle {
	out := make([]contracts.SignalBundle, len(bundles))
	copy(out, bundles)

	var limiter *rate.Limiter
	if a.opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.opts.RPS), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)

	for i := range out {
		i := i
		if gctx.Err() != nil {
			fb := FallbackAnalysis(out[i])
			out[i].Analysis = &fb
			continue
		}

		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					fb := FallbackAnalysis(out[i])
					out[i].Analysis = &fb
					return nil
				}
			}
			analysis := a.Analyze(gctx, out[i])
			out[i].Analysis = &analysis
			return nil
		})
	}

	// 작업 함수는 에러를 반환하지 않음 (분석은 항상 성공)
	_ = g.Wait()

	a.logger.WithFields(map[string]interface{}{
		"count":   len(out),
		"workers": a.opts.Workers,
	}).Info("Analysis fan-out completed")

	return out
}
