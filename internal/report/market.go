package report

import (
	"sort"

	"github.com/wonny/tradepulse/internal/contracts"
)

const (
	themeCount = 3
	maxRisks   = 4
)

var (
	defaultThemes = []string{"Data analysis", "Technical indicators", "Market volatility"}
	genericRisks  = []string{"Standard market volatility", "Economic policy uncertainty", "Sector rotation risks"}
)

// Sentiment classifies a run by its share of instruments with a positive
// daily change: above 60% is POSITIVE, below 40% NEGATIVE, else MIXED
func Sentiment(bundles []contracts.SignalBundle) contracts.MarketSentiment {
	if len(bundles) == 0 {
		return contracts.SentimentMixed
	}

	gains := 0
	for i := range bundles {
		if bundles[i].DailyChangePercent() > 0 {
			gains++
		}
	}

	share := float64(gains) / float64(len(bundles))
	switch {
	case share > 0.6:
		return contracts.SentimentPositive
	case share < 0.4:
		return contracts.SentimentNegative
	default:
		return contracts.SentimentMixed
	}
}

// Themes returns the most frequent key factors across analyses
func Themes(bundles []contracts.SignalBundle) []string {
	var counter frequency
	for _, b := range bundles {
		if b.Analysis == nil {
			continue
		}
		for _, f := range b.Analysis.KeyFactors {
			counter.add(f)
		}
	}

	themes := counter.top(themeCount)
	if len(themes) == 0 {
		return append([]string(nil), defaultThemes...)
	}
	out := make([]string, len(themes))
	for i, t := range themes {
		out[i] = t.key
	}
	return out
}

// Risks derives up to four market risks from the aggregate signal
func Risks(bundles []contracts.SignalBundle) []string {
	total := float64(len(bundles))
	sells, volatile := 0, 0
	for _, b := range bundles {
		if b.Analysis == nil {
			continue
		}
		if b.Analysis.Recommendation == contracts.RatingSell {
			sells++
		}
		if b.Analysis.RiskScore > 0.7 {
			volatile++
		}
	}

	var risks []string
	if float64(sells) > total*0.3 {
		risks = append(risks, "Broad market weakness with multiple sell signals")
	}
	if float64(volatile) > total*0.4 {
		risks = append(risks, "Elevated market volatility across multiple sectors")
	}
	if len(risks) == 0 {
		risks = append(risks, genericRisks...)
	}
	if len(risks) > maxRisks {
		risks = risks[:maxRisks]
	}
	return risks
}

// DataQuality scores completeness: price 0.3, each optional section 0.2,
// analysis 0.1; averaged over bundles
func DataQuality(bundles []contracts.SignalBundle) float64 {
	if len(bundles) == 0 {
		return 0
	}

	total := 0.0
	for _, b := range bundles {
		score := 0.3
		if !b.Technical.Empty() {
			score += 0.2
		}
		if !b.Fundamental.Empty() {
			score += 0.2
		}
		if !b.Sentiment.Empty() {
			score += 0.2
		}
		if b.Analysis != nil {
			score += 0.1
		}
		total += score
	}

	q := total / float64(len(bundles))
	if q > 1 {
		return 1
	}
	return q
}

// frequency counts keys keeping first-seen order for ties
type frequency struct {
	order  []string
	counts map[string]int
}

type counted struct {
	key   string
	count int
}

func (f *frequency) add(key string) {
	if key == "" {
		return
	}
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	if _, ok := f.counts[key]; !ok {
		f.order = append(f.order, key)
	}
	f.counts[key]++
}

// top returns the n most frequent keys; equal counts keep first-seen order
func (f *frequency) top(n int) []counted {
	out := make([]counted, 0, len(f.order))
	for _, k := range f.order {
		out = append(out, counted{key: k, count: f.counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].count > out[j].count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
