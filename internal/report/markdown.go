package report

import (
	"fmt"
	"strings"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/selection"
)

const disclaimer = "*Automated analysis. Do your own research before making investment decisions.*\n"

// renderDaily is the rule-based daily narrative
func renderDaily(report *contracts.DailyReport, stable, risky []contracts.SignalBundle, policy selection.Policy) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Daily Investment Report - %s\n\n", report.Date)

	sb.WriteString("## Market Overview\n")
	fmt.Fprintf(&sb, "- Sentiment: **%s** across %d analyzed instruments\n", report.MarketOverview.Sentiment, report.AnalyzedCount)
	fmt.Fprintf(&sb, "- Themes: %s\n", strings.Join(report.MarketOverview.Themes, ", "))
	fmt.Fprintf(&sb, "- Data quality: %.0f%%\n\n", report.DataQualityScore*100)

	writeRecommendation(&sb, fmt.Sprintf("Stable Investment ($%d)", policy.StableAllocation), report.StableRecommendation, stable)
	writeRecommendation(&sb, fmt.Sprintf("Risky Investment ($%d)", policy.RiskyAllocation), report.RiskyRecommendation, risky)

	sb.WriteString("## Market Risks\n")
	for _, r := range report.MarketRisks {
		sb.WriteString("- " + r + "\n")
	}
	sb.WriteString("\n" + disclaimer)
	return sb.String()
}

func writeRecommendation(sb *strings.Builder, title string, rec contracts.Recommendation, picks []contracts.SignalBundle) {
	fmt.Fprintf(sb, "## %s\n", title)
	fmt.Fprintf(sb, "**%s** (confidence %.0f%%)\n", rec.Symbol, rec.Confidence*100)
	if rec.ExpectedReturn30D != nil {
		fmt.Fprintf(sb, "- Expected 30d return: %.1f%%\n", *rec.ExpectedReturn30D*100)
	}
	if rec.MaxRisk != nil {
		fmt.Fprintf(sb, "- Risk score: %.2f\n", *rec.MaxRisk)
	}
	if rec.Reasoning != "" {
		fmt.Fprintf(sb, "- %s\n", rec.Reasoning)
	}
	if len(picks) > 1 {
		sb.WriteString("\nOther buy signals:\n")
		for _, b := range picks {
			if b.Symbol == rec.Symbol {
				continue
			}
			fmt.Fprintf(sb, "- %s at $%.2f (%+.2f%%)\n", b.Symbol, b.Price.Close, b.DailyChangePercent())
		}
	}
	sb.WriteString("\n")
}

// renderSummary is the markdown body of a non-empty summary
func renderSummary(s *contracts.SummaryReport, requestedDays int, policy selection.Policy) string {
	var sb strings.Builder
	m := s.PerformanceMetrics

	fmt.Fprintf(&sb, "# Investment Summary Report: %s to %s\n\n", s.StartDate, s.EndDate)

	sb.WriteString("## Period Overview\n")
	fmt.Fprintf(&sb, "- Reports analyzed: %d of %d days\n", s.DaysAnalyzed, requestedDays)
	fmt.Fprintf(&sb, "- Total recommendations: %d\n", m.TotalRecommendations)
	fmt.Fprintf(&sb, "- Average confidence: %.1f%%\n\n", m.AvgConfidenceScore*100)

	sb.WriteString("## Top Recommendations\n")
	fmt.Fprintf(&sb, "### Stable ($%d)\n", policy.StableAllocation)
	writePerformers(&sb, s.TopStablePerformers)
	fmt.Fprintf(&sb, "### Risky ($%d)\n", policy.RiskyAllocation)
	writePerformers(&sb, s.TopRiskyPerformers)

	sb.WriteString("## Market Trends\n")
	for _, t := range s.MarketTrends.DominantThemes {
		sb.WriteString("- " + t + "\n")
	}
	sb.WriteString("\n## Insights\n")
	for _, i := range s.Insights {
		sb.WriteString("- " + i + "\n")
	}
	sb.WriteString("\n## Outlook\n" + s.NextMonthOutlook + "\n\n")

	if s.AIStablePick != nil || s.AIRiskyPick != nil {
		sb.WriteString("## AI Investment Picks\n")
		writePick(&sb, s.AIStablePick)
		writePick(&sb, s.AIRiskyPick)
	}

	sb.WriteString(disclaimer)
	return sb.String()
}

func writePerformers(sb *strings.Builder, performers []contracts.Performer) {
	if len(performers) == 0 {
		sb.WriteString("- None\n\n")
		return
	}
	for _, p := range performers {
		fmt.Fprintf(sb, "- **%s**: recommended %d times\n", p.Symbol, p.Frequency)
	}
	sb.WriteString("\n")
}

func writePick(sb *strings.Builder, p *contracts.InvestmentPick) {
	if p == nil {
		return
	}
	fmt.Fprintf(sb, "### %s ($%d): %s\n", p.Category.Label(), p.Allocation, p.Symbol)
	fmt.Fprintf(sb, "- Current price: $%.2f, target: $%.2f (%+.1f%%)\n", p.CurrentPrice, p.TargetPrice, p.ExpectedReturn*100)
	fmt.Fprintf(sb, "- Confidence: %.0f%%, news sentiment: %s\n", p.Confidence*100, p.NewsSentiment)
	if len(p.RiskFactors) > 0 {
		fmt.Fprintf(sb, "- Risks: %s\n", strings.Join(p.RiskFactors, ", "))
	}
	sb.WriteString("\n" + p.Reasoning + "\n\n")
}
