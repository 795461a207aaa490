package contracts

// Trend is the direction judged for an instrument
type Trend string

const (
	TrendBullish  Trend = "BULLISH"
	TrendBearish  Trend = "BEARISH"
	TrendSideways Trend = "SIDEWAYS"
)

// Valid reports whether t is a known trend
func (t Trend) Valid() bool {
	return t == TrendBullish || t == TrendBearish || t == TrendSideways
}

// Rating is the buy/hold/sell call for an instrument
type Rating string

const (
	RatingBuy  Rating = "BUY"
	RatingHold Rating = "HOLD"
	RatingSell Rating = "SELL"
)

// Valid reports whether r is a known rating
func (r Rating) Valid() bool {
	return r == RatingBuy || r == RatingHold || r == RatingSell
}

// AnalysisSource tells how an Analysis was produced
type AnalysisSource string

const (
	SourceInference AnalysisSource = "inference"
	SourceFallback  AnalysisSource = "fallback"
)

// Analysis limits
const (
	MaxKeyFactors   = 5
	MaxReasoningLen = 500
)

// Analysis is the normalized judgment derived from one SignalBundle
// ⭐ SSOT: 모든 수치 필드는 [0,1] 범위로 정규화된 후에만 생성됨
type Analysis struct {
	Trend           Trend          `json:"trend_direction"`
	TrendStrength   float64        `json:"trend_strength"`
	RiskScore       float64        `json:"risk_score"`
	Recommendation  Rating         `json:"recommendation"`
	Confidence      float64        `json:"confidence_level"`
	TargetCategory  Category       `json:"target_allocation"`
	PriceTarget7D   *float64       `json:"price_target_7d,omitempty"`
	PriceTarget30D  *float64       `json:"price_target_30d,omitempty"`
	SupportLevel    *float64       `json:"support_level,omitempty"`
	ResistanceLevel *float64       `json:"resistance_level,omitempty"`
	KeyFactors      []string       `json:"key_factors"`
	Reasoning       string         `json:"reasoning"`
	Source          AnalysisSource `json:"source"`
}
