package selection

import (
	"fmt"
	"sort"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/pkg/config"
)

const defaultConfidence = 0.3

// Policy holds per-category constants used when building recommendations
type Policy struct {
	Threshold        float64
	StableAllocation int
	RiskyAllocation  int
	StableBenchmark  string
	RiskyBenchmark   string
}

// DefaultPolicy returns $200 stable / $50 risky with SPY and QQQ benchmarks
func DefaultPolicy() Policy {
	return Policy{
		Threshold:        0.6,
		StableAllocation: 200,
		RiskyAllocation:  50,
		StableBenchmark:  "SPY",
		RiskyBenchmark:   "QQQ",
	}
}

// PolicyFromConfig maps the analysis config section onto a Policy
func PolicyFromConfig(cfg config.AnalysisConfig) Policy {
	return Policy{
		Threshold:        cfg.ConfidenceThreshold,
		StableAllocation: cfg.StableAllocation,
		RiskyAllocation:  cfg.RiskyAllocation,
		StableBenchmark:  cfg.StableBenchmark,
		RiskyBenchmark:   cfg.RiskyBenchmark,
	}
}

// Allocation returns the fixed amount for a category
func (p Policy) Allocation(c contracts.Category) int {
	if c == contracts.CategoryRisky {
		return p.RiskyAllocation
	}
	return p.StableAllocation
}

func (p Policy) benchmark(c contracts.Category) (string, float64) {
	if c == contracts.CategoryRisky {
		return p.RiskyBenchmark, 0.7
	}
	return p.StableBenchmark, 0.3
}

// Selector picks one instrument per category
// ⭐ SSOT: 추천 선정 정책은 여기서만
type Selector struct {
	policy Policy
}

// New creates a selector
func New(policy Policy) *Selector {
	return &Selector{policy: policy}
}

// Policy returns the selector's policy
func (s *Selector) Policy() Policy {
	return s.policy
}

// SelectAll returns the recommendation for every category using the policy threshold
func (s *Selector) SelectAll(analyzed []contracts.SignalBundle) map[contracts.Category]contracts.Recommendation {
	out := make(map[contracts.Category]contracts.Recommendation, len(contracts.Categories))
	for _, c := range contracts.Categories {
		out[c] = s.SelectBest(analyzed, c, s.policy.Threshold)
	}
	return out
}

// SelectBest never returns an empty recommendation. Candidate tiers in order:
// BUY with confidence >= threshold, HOLD, anything in the category. When no
// instrument of the category was analyzed a benchmark default is returned.
func (s *Selector) SelectBest(analyzed []contracts.SignalBundle, category contracts.Category, threshold float64) contracts.Recommendation {
	candidates, err := Candidates(analyzed, category, threshold)
	if err != nil {
		return s.Default(category)
	}

	best := candidates[0]
	a := best.Analysis
	risk := a.RiskScore

	return contracts.Recommendation{
		Symbol:            best.Symbol,
		Allocation:        s.policy.Allocation(category),
		Reasoning:         a.Reasoning,
		Confidence:        a.Confidence,
		ExpectedReturn30D: ExpectedReturn30D(best),
		MaxRisk:           &risk,
	}
}

// Candidates returns the first non-empty tier sorted by confidence
// descending. Ties keep input order. Returns ErrNoCandidates when the
// category has no analyzed instrument.
func Candidates(analyzed []contracts.SignalBundle, category contracts.Category, threshold float64) ([]contracts.SignalBundle, error) {
	var inCategory []contracts.SignalBundle
	for _, b := range analyzed {
		if b.Category == category && b.Analysis != nil {
			inCategory = append(inCategory, b)
		}
	}
	if len(inCategory) == 0 {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNoCandidates, category)
	}

	tiers := []func(*contracts.Analysis) bool{
		func(a *contracts.Analysis) bool {
			return a.Recommendation == contracts.RatingBuy && a.Confidence >= threshold
		},
		func(a *contracts.Analysis) bool { return a.Recommendation == contracts.RatingHold },
		func(*contracts.Analysis) bool { return true },
	}

	for _, match := range tiers {
		var tier []contracts.SignalBundle
		for _, b := range inCategory {
			if match(b.Analysis) {
				tier = append(tier, b)
			}
		}
		if len(tier) > 0 {
			sort.SliceStable(tier, func(i, j int) bool {
				return tier[i].Analysis.Confidence > tier[j].Analysis.Confidence
			})
			return tier, nil
		}
	}

	// unreachable: the last tier matches everything
	return inCategory, nil
}

// ExpectedReturn30D is (target30d - close) / close, or nil when either side
// is missing or not finite
func ExpectedReturn30D(b contracts.SignalBundle) *float64 {
	if b.Analysis == nil || b.Analysis.PriceTarget30D == nil {
		return nil
	}
	target, last := *b.Analysis.PriceTarget30D, b.Price.Close
	if !contracts.Finite(last) || last <= 0 || !contracts.Finite(target) {
		return nil
	}
	r := (target - last) / last
	if !contracts.Finite(r) {
		return nil
	}
	return &r
}

// Default is the synthetic benchmark recommendation for an empty category
func (s *Selector) Default(category contracts.Category) contracts.Recommendation {
	symbol, maxRisk := s.policy.benchmark(category)
	return contracts.Recommendation{
		Symbol:     symbol,
		Allocation: s.policy.Allocation(category),
		Reasoning:  fmt.Sprintf("Default %s recommendation due to lack of analyzed data", category.Label()),
		Confidence: defaultConfidence,
		MaxRisk:    &maxRisk,
	}
}
