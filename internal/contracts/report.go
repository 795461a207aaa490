package contracts

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date key format used across reports and storage
const DateLayout = "2006-01-02"

// FormatDate renders t as a UTC calendar date
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// DailyReportID returns the run-date key of a daily report
func DailyReportID(date string) string {
	return "DR_" + date
}

// MarketSentiment is the aggregate direction of one run
type MarketSentiment string

const (
	SentimentPositive MarketSentiment = "POSITIVE"
	SentimentNegative MarketSentiment = "NEGATIVE"
	SentimentMixed    MarketSentiment = "MIXED"
)

// Recommendation is the single chosen instrument for one category
type Recommendation struct {
	Symbol            string   `json:"symbol"`
	Allocation        int      `json:"allocation"`
	Reasoning         string   `json:"reasoning"`
	Confidence        float64  `json:"confidence"`
	ExpectedReturn30D *float64 `json:"expected_return_30d,omitempty"` // nil = 계산 불가 (0과 구분)
	MaxRisk           *float64 `json:"max_risk,omitempty"`
}

// MarketOverview summarises one run
type MarketOverview struct {
	Date      string          `json:"date"`
	Sentiment MarketSentiment `json:"market_sentiment"`
	Themes    []string        `json:"market_themes"`
}

// DailyReport is the persisted output of one pipeline run
// ⭐ SSOT: 생성 후 불변, 날짜당 1개 (같은 날 재실행 시 덮어씀)
type DailyReport struct {
	ReportID              string         `json:"report_id"`
	Date                  string         `json:"date"`
	ReportType            string         `json:"report_type"`
	Timestamp             time.Time      `json:"timestamp"`
	MarketOverview        MarketOverview `json:"market_overview"`
	StableRecommendation  Recommendation `json:"stable_recommendation"`
	RiskyRecommendation   Recommendation `json:"risky_recommendation"`
	MarketRisks           []string       `json:"market_risks"`
	AnalyzedCount         int            `json:"analyzed_stocks_count"`
	ProcessingTimeMinutes float64        `json:"processing_time_minutes"`
	DataQualityScore      float64        `json:"data_quality_score"`
	Content               string         `json:"content"`
}

// RecommendationFor returns the recommendation for a category
func (r *DailyReport) RecommendationFor(c Category) Recommendation {
	if c == CategoryRisky {
		return r.RiskyRecommendation
	}
	return r.StableRecommendation
}

// Performer is one instrument's frequency over a summary period
type Performer struct {
	Symbol    string   `json:"symbol"`
	Frequency int      `json:"frequency"`
	AvgReturn *float64 `json:"avg_return,omitempty"` // reserved
}

// PerformanceMetrics holds the summary counts
type PerformanceMetrics struct {
	TotalRecommendations int      `json:"total_recommendations"`
	StablePicksCount     int      `json:"stable_picks_count"`
	RiskyPicksCount      int      `json:"risky_picks_count"`
	PredictionAccuracy   *float64 `json:"prediction_accuracy,omitempty"` // reserved
	AvgConfidenceScore   float64  `json:"avg_confidence_score"`
}

// MarketTrends holds theme aggregates over a period
type MarketTrends struct {
	DominantThemes []string `json:"dominant_themes"`
}

// InvestmentPick is an inference-backed pick attached to a summary
type InvestmentPick struct {
	Symbol         string             `json:"symbol"`
	Category       Category           `json:"category"`
	Allocation     int                `json:"allocation"`
	Confidence     float64            `json:"confidence"`
	Reasoning      string             `json:"reasoning"`
	CurrentPrice   float64            `json:"current_price"`
	TargetPrice    float64            `json:"target_price"`
	ExpectedReturn float64            `json:"expected_return"`
	RiskFactors    []string           `json:"risk_factors"`
	NewsSentiment  string             `json:"news_sentiment"`
	KeyMetrics     map[string]float64 `json:"key_metrics,omitempty"`
	Source         AnalysisSource     `json:"source"`
}

// SummaryReport is a rollup of daily reports over a date range
type SummaryReport struct {
	ReportID            string             `json:"report_id"`
	StartDate           string             `json:"start_date"`
	EndDate             string             `json:"end_date"`
	ReportType          string             `json:"report_type"`
	Timestamp           time.Time          `json:"timestamp"`
	DaysAnalyzed        int                `json:"days_analyzed"`
	PerformanceMetrics  PerformanceMetrics `json:"performance_metrics"`
	TopStablePerformers []Performer        `json:"top_stable_performers"`
	TopRiskyPerformers  []Performer        `json:"top_risky_performers"`
	MarketTrends        MarketTrends       `json:"market_trends"`
	Insights            []string           `json:"insights"`
	NextMonthOutlook    string             `json:"next_month_outlook"`
	Content             string             `json:"content"`
	AIStablePick        *InvestmentPick    `json:"ai_stable_recommendation,omitempty"`
	AIRiskyPick         *InvestmentPick    `json:"ai_risky_recommendation,omitempty"`
}

// Empty reports whether no daily report backed this summary
func (s *SummaryReport) Empty() bool {
	return s.DaysAnalyzed == 0
}

// Report types
const (
	ReportTypeDaily   = "DAILY"
	ReportTypeSummary = "SUMMARY"
)
