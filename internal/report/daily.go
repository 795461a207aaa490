package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/inference"
	"github.com/wonny/tradepulse/internal/selection"
	"github.com/wonny/tradepulse/pkg/logger"
)

const narrativePicks = 3

// DailyBuilder assembles the report of one pipeline run
type DailyBuilder struct {
	llm      inference.Inferer
	selector *selection.Selector
	budgets  Budgets
	logger   *logger.Logger
	now      func() time.Time
}

// NewDailyBuilder creates a builder; llm may be nil (narrative always falls back)
func NewDailyBuilder(llm inference.Inferer, selector *selection.Selector, budgets Budgets, log *logger.Logger) *DailyBuilder {
	if log == nil {
		log = logger.NewNop()
	}
	return &DailyBuilder{
		llm:      llm,
		selector: selector,
		budgets:  budgets,
		logger:   log.Component("daily_report"),
		now:      time.Now,
	}
}

// Build returns a fully populated report for runDate. The only error is a
// cancelled ctx, in which case nothing must be persisted.
func (d *DailyBuilder) Build(ctx context.Context, runDate time.Time, analyzed []contracts.SignalBundle, started time.Time) (contracts.DailyReport, error) {
	date := contracts.FormatDate(runDate)
	recs := d.selector.SelectAll(analyzed)

	report := contracts.DailyReport{
		ReportID:   contracts.DailyReportID(date),
		Date:       date,
		ReportType: contracts.ReportTypeDaily,
		MarketOverview: contracts.MarketOverview{
			Date:      date,
			Sentiment: Sentiment(analyzed),
			Themes:    Themes(analyzed),
		},
		StableRecommendation: recs[contracts.CategoryStable],
		RiskyRecommendation:  recs[contracts.CategoryRisky],
		MarketRisks:          Risks(analyzed),
		AnalyzedCount:        len(analyzed),
		DataQualityScore:     DataQuality(analyzed),
	}

	stablePicks := topBuys(analyzed, contracts.CategoryStable)
	riskyPicks := topBuys(analyzed, contracts.CategoryRisky)
	report.Content = d.narrative(ctx, &report, stablePicks, riskyPicks)

	if err := ctx.Err(); err != nil {
		return contracts.DailyReport{}, fmt.Errorf("build daily report %s: %w", date, err)
	}

	finished := d.now()
	report.Timestamp = finished.UTC()
	report.ProcessingTimeMinutes = finished.Sub(started).Minutes()

	d.logger.WithFields(map[string]interface{}{
		"date":      date,
		"sentiment": report.MarketOverview.Sentiment,
		"stable":    report.StableRecommendation.Symbol,
		"risky":     report.RiskyRecommendation.Symbol,
		"analyzed":  report.AnalyzedCount,
	}).Info("Daily report built")

	return report, nil
}

func (d *DailyBuilder) narrative(ctx context.Context, report *contracts.DailyReport, stable, risky []contracts.SignalBundle) string {
	if d.llm != nil {
		text, err := d.llm.Infer(ctx, with(d.budgets.Narrative, narrativePrompt(report, stable, risky, d.selector.Policy())))
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		d.logger.WithError(err).Warn("Narrative inference failed, using rule-based content")
	}
	return renderDaily(report, stable, risky, d.selector.Policy())
}

// topBuys returns the highest-confidence BUY analyses of a category
func topBuys(analyzed []contracts.SignalBundle, category contracts.Category) []contracts.SignalBundle {
	var picks []contracts.SignalBundle
	for _, b := range analyzed {
		if b.Category == category && b.Analysis != nil && b.Analysis.Recommendation == contracts.RatingBuy {
			picks = append(picks, b)
		}
	}
	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].Analysis.Confidence > picks[j].Analysis.Confidence
	})
	if len(picks) > narrativePicks {
		picks = picks[:narrativePicks]
	}
	return picks
}

func narrativePrompt(report *contracts.DailyReport, stable, risky []contracts.SignalBundle, policy selection.Policy) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Create a daily investment report for %s based on analysis of %d instruments.\n\n",
		report.Date, report.AnalyzedCount)

	fmt.Fprintf(&sb, "MARKET OVERVIEW:\n- Sentiment: %s\n- Themes: %s\n\n",
		report.MarketOverview.Sentiment, strings.Join(report.MarketOverview.Themes, ", "))

	fmt.Fprintf(&sb, "SELECTED STABLE RECOMMENDATION ($%d):\n%s\n", policy.StableAllocation, recommendationLine(report.StableRecommendation))
	fmt.Fprintf(&sb, "TOP STABLE PICKS:\n%s\n\n", pickLines(stable))

	fmt.Fprintf(&sb, "SELECTED RISKY RECOMMENDATION ($%d):\n%s\n", policy.RiskyAllocation, recommendationLine(report.RiskyRecommendation))
	fmt.Fprintf(&sb, "TOP RISKY PICKS:\n%s\n\n", pickLines(risky))

	sb.WriteString("MARKET RISKS:\n")
	for _, r := range report.MarketRisks {
		sb.WriteString("- " + r + "\n")
	}

	fmt.Fprintf(&sb, `
Write the report in markdown with these sections:
1. Market Overview: overall conditions and key drivers
2. Stable Investment Recommendation ($%d): reasoning, levels to watch, risks
3. Risky Investment Recommendation ($%d): growth rationale, expected return, risk tolerance
4. Key Market Risks and Opportunities
5. Technical and Fundamental Summary

Keep it actionable and concise. Include price levels and timeframes where relevant.
`, policy.StableAllocation, policy.RiskyAllocation)

	return sb.String()
}

func recommendationLine(r contracts.Recommendation) string {
	line := fmt.Sprintf("- %s (confidence %.0f%%", r.Symbol, r.Confidence*100)
	if r.ExpectedReturn30D != nil {
		line += fmt.Sprintf(", expected 30d return %.1f%%", *r.ExpectedReturn30D*100)
	}
	line += ")"
	if r.Reasoning != "" {
		line += "\n  Reasoning: " + r.Reasoning
	}
	return line
}

func pickLines(picks []contracts.SignalBundle) string {
	if len(picks) == 0 {
		return "- No strong recommendations found"
	}
	lines := make([]string, 0, len(picks))
	for _, b := range picks {
		line := fmt.Sprintf("- %s: $%.2f (confidence %.0f%%", b.Symbol, b.Price.Close, b.Analysis.Confidence*100)
		if b.Analysis.PriceTarget30D != nil {
			line += fmt.Sprintf(", 30d target $%.2f", *b.Analysis.PriceTarget30D)
		}
		lines = append(lines, line+")")
	}
	return strings.Join(lines, "\n")
}
