package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wonny/tradepulse/internal/analyzer"
	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/inference"
	"github.com/wonny/tradepulse/internal/selection"
	"github.com/wonny/tradepulse/pkg/logger"
)

const (
	pickCandidates     = 3
	fallbackConfidence = 0.6
	maxPickRisks       = 5
)

// candidate is one frequently recommended symbol with its latest snapshot
type candidate struct {
	performer contracts.Performer
	signal    *contracts.SignalBundle // nil when no snapshot is stored
}

func (c candidate) price() float64 {
	if c.signal == nil || !contracts.Finite(c.signal.Price.Close) {
		return 0
	}
	return c.signal.Price.Close
}

// Advisor picks one instrument per category from a summary's top performers
type Advisor struct {
	store  contracts.ReportStore
	llm    inference.Inferer
	policy selection.Policy
	budget inference.Request
	logger *logger.Logger
}

// NewAdvisor creates an advisor; llm may be nil (frequency-based picks only)
func NewAdvisor(store contracts.ReportStore, llm inference.Inferer, policy selection.Policy, budgets Budgets, log *logger.Logger) *Advisor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Advisor{
		store:  store,
		llm:    llm,
		policy: policy,
		budget: budgets.Picks,
		logger: log.Component("advisor"),
	}
}

// Picks returns the stable and risky picks; nil when a category has no performers
func (a *Advisor) Picks(ctx context.Context, summary *contracts.SummaryReport) (stable, risky *contracts.InvestmentPick) {
	stable = a.pick(ctx, summary, contracts.CategoryStable, summary.TopStablePerformers)
	risky = a.pick(ctx, summary, contracts.CategoryRisky, summary.TopRiskyPerformers)
	return stable, risky
}

func (a *Advisor) pick(ctx context.Context, summary *contracts.SummaryReport, category contracts.Category, performers []contracts.Performer) *contracts.InvestmentPick {
	candidates := a.candidates(ctx, performers)
	if len(candidates) == 0 {
		return nil
	}

	log := a.logger.WithField("category", category)
	if a.llm != nil {
		text, err := a.llm.Infer(ctx, with(a.budget, a.prompt(summary, category, candidates)))
		if err == nil {
			p, perr := parsePick(text, category, a.policy.Allocation(category), candidates)
			if perr == nil {
				return p
			}
			err = perr
		}
		log.WithError(err).Warn("AI pick unavailable, using most frequent symbol")
	}
	return fallbackPick(category, a.policy.Allocation(category), candidates[0])
}

func (a *Advisor) candidates(ctx context.Context, performers []contracts.Performer) []candidate {
	n := len(performers)
	if n > pickCandidates {
		n = pickCandidates
	}

	out := make([]candidate, 0, n)
	for _, p := range performers[:n] {
		c := candidate{performer: p}
		sig, err := a.store.GetLatestSignal(ctx, p.Symbol)
		switch {
		case err == nil:
			c.signal = &sig
		case errors.Is(err, contracts.ErrNotFound):
		default:
			a.logger.WithError(err).WithSymbol(p.Symbol).Warn("Latest signal lookup failed")
		}
		out = append(out, c)
	}
	return out
}

func (a *Advisor) prompt(summary *contracts.SummaryReport, category contracts.Category, candidates []candidate) string {
	allocation := a.policy.Allocation(category)
	var sb strings.Builder

	sb.WriteString("You are an investment expert. Analyze the following period summary and recommend one instrument.\n\n")
	sb.WriteString("## Period Summary\n")
	fmt.Fprintf(&sb, "- Period: %s to %s (%d daily reports)\n", summary.StartDate, summary.EndDate, summary.DaysAnalyzed)
	fmt.Fprintf(&sb, "- Total recommendations: %d\n", summary.PerformanceMetrics.TotalRecommendations)
	fmt.Fprintf(&sb, "- Average confidence: %.1f%%\n", summary.PerformanceMetrics.AvgConfidenceScore*100)
	themes := summary.MarketTrends.DominantThemes
	if len(themes) > 3 {
		themes = themes[:3]
	}
	fmt.Fprintf(&sb, "- Market trends: %s\n\n", strings.Join(themes, ", "))

	fmt.Fprintf(&sb, "## Candidates for %s investment ($%d)\n", category.Label(), allocation)
	for _, c := range candidates {
		fmt.Fprintf(&sb, "\nInstrument: %s\n- Recommended %d times in the period\n", c.performer.Symbol, c.performer.Frequency)
		if c.signal == nil {
			sb.WriteString("- No recent snapshot available\n")
			continue
		}
		s := c.signal
		fmt.Fprintf(&sb, "- Last close: $%.2f (%+.2f%% on %s)\n", s.Price.Close, s.DailyChangePercent(), s.Date())
		if f := s.Fundamental; !f.Empty() {
			writeOptional(&sb, "P/E ratio", f.PERatio, "%.2f")
			writeOptional(&sb, "Market cap", f.MarketCap, "%.0f")
			writeOptional(&sb, "Dividend yield", f.DividendYield, "%.4f")
		}
		if sent := s.Sentiment; !sent.Empty() {
			writeOptional(&sb, "News sentiment (-1..1)", sent.NewsSentimentScore, "%.2f")
			if sent.AnalystRating != "" {
				fmt.Fprintf(&sb, "- Analyst rating: %s\n", sent.AnalystRating)
			}
			writeOptional(&sb, "Analyst target", sent.AnalystPriceTarget, "$%.2f")
		}
		if an := s.Analysis; an != nil {
			fmt.Fprintf(&sb, "- Latest analysis: %s with %.0f%% confidence, risk %.2f\n", an.Recommendation, an.Confidence*100, an.RiskScore)
		}
	}

	fmt.Fprintf(&sb, `
## Task
Select ONE instrument from the candidates for the $%d %s investment. Weigh fundamentals,
recent price action, news sentiment, analyst opinion, recommendation frequency and fit with
the %s risk profile.

Respond with JSON only:
{
  "symbol": "TICKER",
  "reasoning": "3-4 sentences",
  "confidence": 0.85,
  "target_price": 150.00,
  "expected_return": 0.12,
  "risk_factors": ["factor 1", "factor 2"],
  "news_sentiment": "POSITIVE|NEGATIVE|NEUTRAL",
  "key_metrics": {"pe_ratio": 25.5}
}
`, allocation, category.Label(), category.Label())

	return sb.String()
}

func writeOptional(sb *strings.Builder, label string, v *float64, format string) {
	if v == nil {
		return
	}
	fmt.Fprintf(sb, "- %s: "+format+"\n", label, *v)
}

// parsePick accepts a response only when it names one of the candidates
func parsePick(text string, category contracts.Category, allocation int, candidates []candidate) (*contracts.InvestmentPick, error) {
	raw, err := analyzer.DecodeObject(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrUnparsableInference, err)
	}

	symbol := strings.ToUpper(strings.TrimSpace(stringOf(raw["symbol"])))
	var chosen *candidate
	for i := range candidates {
		if candidates[i].performer.Symbol == symbol {
			chosen = &candidates[i]
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("%w: symbol %q is not a candidate", contracts.ErrUnparsableInference, symbol)
	}

	p := &contracts.InvestmentPick{
		Symbol:        symbol,
		Category:      category,
		Allocation:    allocation,
		Confidence:    0.7,
		Reasoning:     analyzer.Truncate(stringOf(raw["reasoning"]), contracts.MaxReasoningLen),
		CurrentPrice:  chosen.price(),
		RiskFactors:   stringsOf(raw["risk_factors"], maxPickRisks),
		NewsSentiment: sentimentLabel(stringOf(raw["news_sentiment"]), chosen.signal),
		KeyMetrics:    metricsOf(raw["key_metrics"]),
		Source:        contracts.SourceInference,
	}
	if c, ok := analyzer.Number(raw["confidence"]); ok {
		p.Confidence = math.Max(0, math.Min(1, c))
	}
	if p.Reasoning == "" {
		p.Reasoning = "AI-generated recommendation"
	}

	target, hasTarget := analyzer.Number(raw["target_price"])
	ret, hasReturn := analyzer.Number(raw["expected_return"])
	switch {
	case hasReturn:
		p.ExpectedReturn = ret
	case hasTarget && p.CurrentPrice > 0:
		p.ExpectedReturn = (target - p.CurrentPrice) / p.CurrentPrice
	default:
		p.ExpectedReturn = defaultReturn(category)
	}
	if hasTarget && target > 0 {
		p.TargetPrice = target
	} else {
		p.TargetPrice = p.CurrentPrice * (1 + p.ExpectedReturn)
	}
	return p, nil
}

// fallbackPick takes the most frequent symbol with fixed expectations
func fallbackPick(category contracts.Category, allocation int, c candidate) *contracts.InvestmentPick {
	ret := defaultReturn(category)
	current := c.price()

	p := &contracts.InvestmentPick{
		Symbol:     c.performer.Symbol,
		Category:   category,
		Allocation: allocation,
		Confidence: fallbackConfidence,
		Reasoning: fmt.Sprintf("Selected %s as the most frequently recommended %s instrument with %d recommendations during the period.",
			c.performer.Symbol, category.Label(), c.performer.Frequency),
		CurrentPrice:   current,
		TargetPrice:    current * (1 + ret),
		ExpectedReturn: ret,
		RiskFactors:    []string{"Market volatility", "Sector-specific risks"},
		NewsSentiment:  sentimentLabel("", c.signal),
		Source:         contracts.SourceFallback,
	}
	if c.signal != nil && !c.signal.Fundamental.Empty() {
		f := c.signal.Fundamental
		p.KeyMetrics = map[string]float64{}
		for k, v := range map[string]*float64{"pe_ratio": f.PERatio, "market_cap": f.MarketCap, "dividend_yield": f.DividendYield} {
			if v != nil {
				p.KeyMetrics[k] = *v
			}
		}
	}
	return p
}

func defaultReturn(category contracts.Category) float64 {
	if category == contracts.CategoryRisky {
		return 0.15
	}
	return 0.08
}

// sentimentLabel keeps a valid provider label, else derives one from the snapshot
func sentimentLabel(label string, sig *contracts.SignalBundle) string {
	switch l := strings.ToUpper(strings.TrimSpace(label)); l {
	case "POSITIVE", "NEGATIVE", "NEUTRAL":
		return l
	}
	if sig == nil || sig.Sentiment == nil || sig.Sentiment.NewsSentimentScore == nil {
		return "NEUTRAL"
	}
	switch score := *sig.Sentiment.NewsSentimentScore; {
	case score > 0.2:
		return "POSITIVE"
	case score < -0.2:
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}

func stringOf(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func stringsOf(v interface{}, limit int) []string {
	items, _ := v.([]interface{})
	out := make([]string, 0, len(items))
	for _, item := range items {
		if len(out) == limit {
			break
		}
		if s := stringOf(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func metricsOf(v interface{}) map[string]float64 {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, raw := range m {
		if f, ok := analyzer.Number(raw); ok {
			out[k] = f
		}
	}
	return out
}
