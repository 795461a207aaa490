package analyzer

import (
	"fmt"
	"math"

	"github.com/wonny/tradepulse/internal/contracts"
)

const (
	fallbackConfidence = 0.4
	fallbackReasoning  = "Basic analysis due to LLM unavailability. Based on price movement only."
)

// FallbackAnalysis derives an Analysis from the daily change alone.
// Confidence is fixed low so downstream selection prefers inference results.
func FallbackAnalysis(b contracts.SignalBundle) contracts.Analysis {
	change := b.DailyChangePercent()

	trend, rating := contracts.TrendSideways, contracts.RatingHold
	switch {
	case change > 2:
		trend, rating = contracts.TrendBullish, contracts.RatingBuy
	case change < -2:
		trend, rating = contracts.TrendBearish, contracts.RatingSell
	}

	risk := 0.3
	if b.Category == contracts.CategoryRisky {
		risk = 0.6
	}

	return contracts.Analysis{
		Trend:          trend,
		TrendStrength:  math.Min(math.Abs(change)/5, 1),
		RiskScore:      risk,
		Recommendation: rating,
		Confidence:     fallbackConfidence,
		TargetCategory: b.Category,
		KeyFactors:     []string{"Fallback analysis", fmt.Sprintf("%.1f%% daily change", change)},
		Reasoning:      fallbackReasoning,
		Source:         contracts.SourceFallback,
	}
}
