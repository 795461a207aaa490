package report

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/inference"
	"github.com/wonny/tradepulse/internal/selection"
	"github.com/wonny/tradepulse/pkg/logger"
)

const (
	// MaxSummaryDays bounds end - start of a summary request
	MaxSummaryDays = 60

	topPerformers  = 5
	dominantThemes = 5
	maxInsights    = 5
	outlookReports = 7
)

var genericInsights = []string{
	"Market analysis systems operating effectively",
	"Diversified investment approach maintained",
	"Risk management protocols followed",
}

// SummaryBuilder rolls stored daily reports up into a period summary
type SummaryBuilder struct {
	store   contracts.ReportStore
	llm     inference.Inferer
	advisor *Advisor
	policy  selection.Policy
	budgets Budgets
	logger  *logger.Logger
	now     func() time.Time
}

// NewSummaryBuilder creates a builder; llm and advisor may be nil
func NewSummaryBuilder(store contracts.ReportStore, llm inference.Inferer, advisor *Advisor, policy selection.Policy, budgets Budgets, log *logger.Logger) *SummaryBuilder {
	if log == nil {
		log = logger.NewNop()
	}
	return &SummaryBuilder{
		store:   store,
		llm:     llm,
		advisor: advisor,
		policy:  policy,
		budgets: budgets,
		logger:  log.Component("summary_report"),
		now:     time.Now,
	}
}

// ValidateRange requires start < end and a span of at most MaxSummaryDays
func ValidateRange(start, end time.Time) error {
	s, e := day(start), day(end)
	if !s.Before(e) {
		return fmt.Errorf("%w: start %s must be before end %s",
			contracts.ErrInvalidRange, contracts.FormatDate(s), contracts.FormatDate(e))
	}
	if span := daysBetween(s, e); span > MaxSummaryDays {
		return fmt.Errorf("%w: range spans %d days, maximum is %d",
			contracts.ErrInvalidRange, span, MaxSummaryDays)
	}
	return nil
}

// SummaryID returns the identifier of a summary over [start, end]
func SummaryID(start, end time.Time) string {
	return fmt.Sprintf("SR_%s_%s", contracts.FormatDate(start), contracts.FormatDate(end))
}

// Build validates the range before touching the store. A store failure is
// returned as is; an empty range yields the empty summary.
func (b *SummaryBuilder) Build(ctx context.Context, start, end time.Time, withPicks bool) (contracts.SummaryReport, error) {
	if err := ValidateRange(start, end); err != nil {
		return contracts.SummaryReport{}, err
	}
	start, end = day(start), day(end)

	reports, err := b.store.ListRange(ctx, start, end)
	if err != nil {
		return contracts.SummaryReport{}, fmt.Errorf("list daily reports: %w", err)
	}

	if len(reports) == 0 {
		b.logger.WithFields(map[string]interface{}{
			"start": contracts.FormatDate(start),
			"end":   contracts.FormatDate(end),
		}).Warn("No daily reports in range, returning empty summary")
		return b.empty(start, end), nil
	}

	requested := daysBetween(start, end) + 1
	summary := contracts.SummaryReport{
		ReportID:            SummaryID(start, end),
		StartDate:           contracts.FormatDate(start),
		EndDate:             contracts.FormatDate(end),
		ReportType:          contracts.ReportTypeSummary,
		Timestamp:           b.now().UTC(),
		DaysAnalyzed:        len(reports),
		PerformanceMetrics:  Metrics(reports),
		TopStablePerformers: TopPerformers(reports, contracts.CategoryStable, topPerformers),
		TopRiskyPerformers:  TopPerformers(reports, contracts.CategoryRisky, topPerformers),
		MarketTrends:        contracts.MarketTrends{DominantThemes: DominantThemes(reports, dominantThemes)},
	}
	summary.Insights = Insights(&summary, requested)
	summary.NextMonthOutlook = b.outlook(ctx, reports, summary.MarketTrends.DominantThemes)

	if withPicks && b.advisor != nil {
		summary.AIStablePick, summary.AIRiskyPick = b.advisor.Picks(ctx, &summary)
	}

	summary.Content = renderSummary(&summary, requested, b.policy)

	b.logger.WithFields(map[string]interface{}{
		"report_id":     summary.ReportID,
		"days_analyzed": summary.DaysAnalyzed,
		"requested":     requested,
	}).Info("Summary report built")

	return summary, nil
}

func (b *SummaryBuilder) empty(start, end time.Time) contracts.SummaryReport {
	return contracts.SummaryReport{
		ReportID:            SummaryID(start, end) + "_EMPTY",
		StartDate:           contracts.FormatDate(start),
		EndDate:             contracts.FormatDate(end),
		ReportType:          contracts.ReportTypeSummary,
		Timestamp:           b.now().UTC(),
		TopStablePerformers: []contracts.Performer{},
		TopRiskyPerformers:  []contracts.Performer{},
		MarketTrends:        contracts.MarketTrends{DominantThemes: []string{"No data available"}},
		Insights:            []string{"Insufficient data for analysis"},
		NextMonthOutlook:    "Unable to generate outlook due to lack of historical data.",
		Content: fmt.Sprintf("No daily reports were found between %s and %s. Summary analysis cannot be generated.",
			contracts.FormatDate(start), contracts.FormatDate(end)),
	}
}

// Metrics counts two recommendations per found report and averages their confidence
func Metrics(reports []contracts.DailyReport) contracts.PerformanceMetrics {
	total := 0.0
	n := 0
	for i := range reports {
		for _, c := range contracts.Categories {
			total += reports[i].RecommendationFor(c).Confidence
			n++
		}
	}

	m := contracts.PerformanceMetrics{
		TotalRecommendations: 2 * len(reports),
		StablePicksCount:     len(reports),
		RiskyPicksCount:      len(reports),
	}
	if n > 0 {
		m.AvgConfidenceScore = total / float64(n)
	}
	return m
}

// TopPerformers ranks symbols of a category by recommendation frequency.
// reports must be in ascending date order; ties keep first-seen order.
func TopPerformers(reports []contracts.DailyReport, category contracts.Category, n int) []contracts.Performer {
	var counter frequency
	for i := range reports {
		counter.add(reports[i].RecommendationFor(category).Symbol)
	}

	top := counter.top(n)
	out := make([]contracts.Performer, len(top))
	for i, t := range top {
		out[i] = contracts.Performer{Symbol: t.key, Frequency: t.count}
	}
	return out
}

// DominantThemes returns the most frequent market themes across reports
func DominantThemes(reports []contracts.DailyReport, n int) []string {
	var counter frequency
	for i := range reports {
		for _, t := range reports[i].MarketOverview.Themes {
			counter.add(t)
		}
	}

	top := counter.top(n)
	out := make([]string, len(top))
	for i, t := range top {
		out[i] = t.key
	}
	return out
}

// Insights derives up to five observations from the summary's metrics.
// Coverage is measured against the requested number of days.
func Insights(s *contracts.SummaryReport, requestedDays int) []string {
	var insights []string

	avg := s.PerformanceMetrics.AvgConfidenceScore
	switch {
	case avg > 0.7:
		insights = append(insights, "High confidence levels maintained throughout the period")
	case avg < 0.5:
		insights = append(insights, "Lower confidence periods suggest market uncertainty")
	}

	if requestedDays > 0 {
		coverage := math.Round(float64(s.DaysAnalyzed) / float64(requestedDays) * 100)
		if coverage >= 80 {
			insights = append(insights, fmt.Sprintf("Consistent daily analysis coverage (%.0f%%)", coverage))
		} else {
			insights = append(insights, fmt.Sprintf("Analysis coverage at %.0f%% of the requested period", coverage))
		}
	}

	if len(s.TopStablePerformers) > 0 {
		insights = append(insights, fmt.Sprintf("%s was the most frequent stable pick", s.TopStablePerformers[0].Symbol))
	}
	if len(s.TopRiskyPerformers) > 0 {
		insights = append(insights, fmt.Sprintf("%s was the most frequent risky pick", s.TopRiskyPerformers[0].Symbol))
	}

	insights = append(insights, fmt.Sprintf("Generated %d investment recommendations", s.PerformanceMetrics.TotalRecommendations))

	if len(insights) < 3 {
		insights = append(insights, genericInsights...)
	}
	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

func (b *SummaryBuilder) outlook(ctx context.Context, reports []contracts.DailyReport, themes []string) string {
	recent := reports
	if len(recent) > outlookReports {
		recent = recent[len(recent)-outlookReports:]
	}

	if b.llm != nil {
		text, err := b.llm.Infer(ctx, with(b.budgets.Outlook, outlookPrompt(recent)))
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		b.logger.WithError(err).Warn("Outlook inference failed, using rule-based outlook")
	}
	return fallbackOutlook(recent, themes, b.policy)
}

func outlookPrompt(recent []contracts.DailyReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Based on the last %d daily investment reports, provide a brief outlook for the next month.\n\n", len(recent))
	for i := range recent {
		r := &recent[i]
		fmt.Fprintf(&sb, "- %s: sentiment %s; themes %s; stable %s (%.0f%%); risky %s (%.0f%%); risks: %s\n",
			r.Date, r.MarketOverview.Sentiment, strings.Join(r.MarketOverview.Themes, ", "),
			r.StableRecommendation.Symbol, r.StableRecommendation.Confidence*100,
			r.RiskyRecommendation.Symbol, r.RiskyRecommendation.Confidence*100,
			strings.Join(r.MarketRisks, ", "))
	}
	sb.WriteString(`
Consider recent sentiment trends, consistency of recommendations and the risk factors mentioned.
Answer in 2-3 sentences covering expected market conditions, strategy adjustments and key factors to monitor.
`)
	return sb.String()
}

func fallbackOutlook(recent []contracts.DailyReport, themes []string, policy selection.Policy) string {
	var sentiments frequency
	for i := range recent {
		sentiments.add(string(recent[i].MarketOverview.Sentiment))
	}
	dominant := string(contracts.SentimentMixed)
	if top := sentiments.top(1); len(top) > 0 {
		dominant = top[0].key
	}

	focus := "broad market conditions"
	if len(themes) > 0 {
		n := len(themes)
		if n > 3 {
			n = 3
		}
		focus = strings.Join(themes[:n], ", ")
	}

	return fmt.Sprintf("Based on %d recent reports, market sentiment has been predominantly %s with recurring focus on %s. "+
		"Maintain the diversified $%d/$%d allocation and monitor for significant shifts in volatility.",
		len(recent), strings.ToLower(dominant), focus, policy.StableAllocation, policy.RiskyAllocation)
}

func day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(start, end time.Time) int {
	return int(math.Round(day(end).Sub(day(start)).Hours() / 24))
}
