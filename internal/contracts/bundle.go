package contracts

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Category is the risk bucket an instrument belongs to
type Category string

const (
	CategoryStable Category = "STABLE"
	CategoryRisky  Category = "RISKY"
)

// Categories lists every category in report order
var Categories = []Category{CategoryStable, CategoryRisky}

// ParseCategory accepts STABLE/RISKY case-insensitively
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToUpper(strings.TrimSpace(s))) {
	case CategoryStable:
		return CategoryStable, nil
	case CategoryRisky:
		return CategoryRisky, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Label returns the lowercase form used in prose ("stable", "risky")
func (c Category) Label() string {
	return strings.ToLower(string(c))
}

// SignalBundle is one instrument's snapshot for one run
// ⭐ SSOT: 분석 입력 데이터는 이 구조체로만 전달
type SignalBundle struct {
	Symbol    string    `json:"symbol" yaml:"symbol"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Category  Category  `json:"category" yaml:"category"`

	Price       PriceData            `json:"price_data" yaml:"price_data"`
	Technical   *TechnicalIndicators `json:"technical_indicators,omitempty" yaml:"technical_indicators,omitempty"`
	Fundamental *FundamentalData     `json:"fundamental_data,omitempty" yaml:"fundamental_data,omitempty"`
	Sentiment   *SentimentData       `json:"sentiment_data,omitempty" yaml:"sentiment_data,omitempty"`

	// 분석 후 채워짐 (시그널 스냅샷과 함께 저장)
	Analysis *Analysis `json:"ai_analysis,omitempty" yaml:"-"`
}

// PriceData holds the daily OHLCV fields
type PriceData struct {
	Open          float64  `json:"open" yaml:"open"`
	High          float64  `json:"high" yaml:"high"`
	Low           float64  `json:"low" yaml:"low"`
	Close         float64  `json:"close" yaml:"close"`
	Volume        int64    `json:"volume" yaml:"volume"`
	PreviousClose *float64 `json:"previous_close,omitempty" yaml:"previous_close,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty" yaml:"change_percent,omitempty"`
}

// TechnicalIndicators holds optional indicator values
type TechnicalIndicators struct {
	RSI14          *float64 `json:"rsi_14,omitempty" yaml:"rsi_14,omitempty"`
	MACD           *float64 `json:"macd,omitempty" yaml:"macd,omitempty"`
	MACDSignal     *float64 `json:"macd_signal,omitempty" yaml:"macd_signal,omitempty"`
	SMA20          *float64 `json:"sma_20,omitempty" yaml:"sma_20,omitempty"`
	SMA50          *float64 `json:"sma_50,omitempty" yaml:"sma_50,omitempty"`
	SMA200         *float64 `json:"sma_200,omitempty" yaml:"sma_200,omitempty"`
	BollingerUpper *float64 `json:"bollinger_upper,omitempty" yaml:"bollinger_upper,omitempty"`
	BollingerLower *float64 `json:"bollinger_lower,omitempty" yaml:"bollinger_lower,omitempty"`
	VolumeSMA      *float64 `json:"volume_sma,omitempty" yaml:"volume_sma,omitempty"`
}

// FundamentalData holds optional valuation metrics
type FundamentalData struct {
	PERatio       *float64 `json:"pe_ratio,omitempty" yaml:"pe_ratio,omitempty"`
	MarketCap     *float64 `json:"market_cap,omitempty" yaml:"market_cap,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty" yaml:"dividend_yield,omitempty"`
	EPSTTM        *float64 `json:"eps_ttm,omitempty" yaml:"eps_ttm,omitempty"`
	RevenueGrowth *float64 `json:"revenue_growth,omitempty" yaml:"revenue_growth,omitempty"`
	DebtToEquity  *float64 `json:"debt_to_equity,omitempty" yaml:"debt_to_equity,omitempty"`
}

// SentimentData holds optional news and analyst sentiment
type SentimentData struct {
	NewsSentimentScore *float64 `json:"news_sentiment_score,omitempty" yaml:"news_sentiment_score,omitempty"` // -1 ~ 1
	NewsArticlesCount  int      `json:"news_articles_count" yaml:"news_articles_count"`
	SocialSentiment    *float64 `json:"social_sentiment,omitempty" yaml:"social_sentiment,omitempty"`
	AnalystRating      string   `json:"analyst_rating,omitempty" yaml:"analyst_rating,omitempty"`
	AnalystPriceTarget *float64 `json:"analyst_price_target,omitempty" yaml:"analyst_price_target,omitempty"`
}

// Empty reports whether no indicator is set
func (t *TechnicalIndicators) Empty() bool {
	return t == nil || (t.RSI14 == nil && t.MACD == nil && t.MACDSignal == nil &&
		t.SMA20 == nil && t.SMA50 == nil && t.SMA200 == nil &&
		t.BollingerUpper == nil && t.BollingerLower == nil && t.VolumeSMA == nil)
}

// Empty reports whether no metric is set
func (f *FundamentalData) Empty() bool {
	return f == nil || (f.PERatio == nil && f.MarketCap == nil && f.DividendYield == nil &&
		f.EPSTTM == nil && f.RevenueGrowth == nil && f.DebtToEquity == nil)
}

// Empty reports whether no sentiment value is set
func (s *SentimentData) Empty() bool {
	return s == nil || (s.NewsSentimentScore == nil && s.NewsArticlesCount == 0 &&
		s.SocialSentiment == nil && s.AnalystRating == "" && s.AnalystPriceTarget == nil)
}

// DailyChangePercent returns the change percent, deriving it from the
// previous close when not supplied. Zero when neither is available.
// Non-finite inputs count as absent.
func (b *SignalBundle) DailyChangePercent() float64 {
	if c := b.Price.ChangePercent; c != nil && Finite(*c) {
		return *c
	}
	if prev := b.Price.PreviousClose; prev != nil && Finite(*prev) && *prev > 0 {
		if change := (b.Price.Close - *prev) / *prev * 100; Finite(change) {
			return change
		}
	}
	return 0
}

// Sanitize drops NaN and ±Inf values so the bundle stays JSON-encodable.
// Optional fields become absent, required prices become 0.
// Returns the number of fields cleared.
func (b *SignalBundle) Sanitize() int {
	cleared := 0
	for _, v := range []*float64{&b.Price.Open, &b.Price.High, &b.Price.Low, &b.Price.Close} {
		if !Finite(*v) {
			*v = 0
			cleared++
		}
	}

	optional := []**float64{&b.Price.PreviousClose, &b.Price.ChangePercent}
	if t := b.Technical; t != nil {
		optional = append(optional, &t.RSI14, &t.MACD, &t.MACDSignal, &t.SMA20, &t.SMA50,
			&t.SMA200, &t.BollingerUpper, &t.BollingerLower, &t.VolumeSMA)
	}
	if f := b.Fundamental; f != nil {
		optional = append(optional, &f.PERatio, &f.MarketCap, &f.DividendYield,
			&f.EPSTTM, &f.RevenueGrowth, &f.DebtToEquity)
	}
	if s := b.Sentiment; s != nil {
		optional = append(optional, &s.NewsSentimentScore, &s.SocialSentiment, &s.AnalystPriceTarget)
	}
	for _, p := range optional {
		if *p != nil && !Finite(**p) {
			*p = nil
			cleared++
		}
	}
	return cleared
}

// Finite reports whether v is neither NaN nor ±Inf
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Date returns the UTC calendar date of the bundle
func (b *SignalBundle) Date() string {
	return FormatDate(b.Timestamp)
}

// Float returns a pointer to v (fixture and parser helper)
func Float(v float64) *float64 {
	return &v
}
