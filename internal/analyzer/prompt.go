package analyzer

import (
	"fmt"
	"strings"

	"github.com/wonny/tradepulse/internal/contracts"
)

const responseSchema = `Provide your analysis in the following JSON format:
{
    "trend_direction": "BULLISH|BEARISH|SIDEWAYS",
    "trend_strength": 0.0-1.0,
    "risk_score": 0.0-1.0,
    "recommendation": "BUY|HOLD|SELL",
    "confidence_level": 0.0-1.0,
    "target_allocation": "STABLE|RISKY",
    "price_target_7d": number or null,
    "price_target_30d": number or null,
    "support_level": number or null,
    "resistance_level": number or null,
    "key_factors": ["factor1", "factor2", "factor3"],
    "reasoning": "Brief explanation of the analysis and recommendation"
}

Consider:
1. Technical momentum and trend strength
2. Fundamental valuation metrics
3. Market sentiment and news flow
4. Risk-adjusted return potential
5. Category (stable vs risky) characteristics

Provide a conservative but actionable analysis.`

// BuildPrompt renders a bundle into the analysis prompt.
// Output is deterministic for a given bundle; empty sections are omitted.
func BuildPrompt(b contracts.SignalBundle) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are an expert financial analyst. Analyze the following data for %s.\n\n", b.Symbol)

	sb.WriteString("PRICE DATA:\n")
	writePrice(&sb, b)

	if lines := technicalLines(b.Technical); len(lines) > 0 {
		writeSection(&sb, "TECHNICAL INDICATORS", lines)
	}
	if lines := fundamentalLines(b.Fundamental); len(lines) > 0 {
		writeSection(&sb, "FUNDAMENTAL DATA", lines)
	}
	if lines := sentimentLines(b.Sentiment); len(lines) > 0 {
		writeSection(&sb, "SENTIMENT DATA", lines)
	}

	fmt.Fprintf(&sb, "\nCATEGORY: %s\n\n", b.Category)
	sb.WriteString(responseSchema)
	return sb.String()
}

func writePrice(sb *strings.Builder, b contracts.SignalBundle) {
	p := b.Price
	fmt.Fprintf(sb, "- Current Price: $%.2f\n", p.Close)
	fmt.Fprintf(sb, "- Daily Change: %.2f%%\n", b.DailyChangePercent())
	fmt.Fprintf(sb, "- Open: $%.2f\n", p.Open)
	fmt.Fprintf(sb, "- High: $%.2f\n", p.High)
	fmt.Fprintf(sb, "- Low: $%.2f\n", p.Low)
	fmt.Fprintf(sb, "- Volume: %d\n", p.Volume)
	if p.PreviousClose != nil {
		fmt.Fprintf(sb, "- Previous Close: $%.2f\n", *p.PreviousClose)
	}
}

func writeSection(sb *strings.Builder, title string, lines []string) {
	fmt.Fprintf(sb, "\n%s:\n", title)
	for _, l := range lines {
		sb.WriteString("- ")
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
}

// line appends a formatted entry when v is set
func line(lines []string, v *float64, format string) []string {
	if v == nil {
		return lines
	}
	return append(lines, fmt.Sprintf(format, *v))
}

func technicalLines(t *contracts.TechnicalIndicators) []string {
	if t.Empty() {
		return nil
	}
	var lines []string
	lines = line(lines, t.RSI14, "RSI (14): %.2f")
	lines = line(lines, t.MACD, "MACD: %.4f")
	lines = line(lines, t.MACDSignal, "MACD Signal: %.4f")
	lines = line(lines, t.SMA20, "SMA 20: $%.2f")
	lines = line(lines, t.SMA50, "SMA 50: $%.2f")
	lines = line(lines, t.SMA200, "SMA 200: $%.2f")
	lines = line(lines, t.BollingerUpper, "Bollinger Upper: $%.2f")
	lines = line(lines, t.BollingerLower, "Bollinger Lower: $%.2f")
	lines = line(lines, t.VolumeSMA, "Volume SMA: %.0f")
	return lines
}

func fundamentalLines(f *contracts.FundamentalData) []string {
	if f.Empty() {
		return nil
	}
	var lines []string
	lines = line(lines, f.PERatio, "P/E Ratio: %.2f")
	if f.MarketCap != nil {
		lines = append(lines, fmt.Sprintf("Market Cap: $%.1fB", *f.MarketCap/1e9))
	}
	if f.DividendYield != nil {
		lines = append(lines, fmt.Sprintf("Dividend Yield: %.2f%%", *f.DividendYield*100))
	}
	lines = line(lines, f.EPSTTM, "EPS (TTM): $%.2f")
	if f.RevenueGrowth != nil {
		lines = append(lines, fmt.Sprintf("Revenue Growth: %.1f%%", *f.RevenueGrowth*100))
	}
	lines = line(lines, f.DebtToEquity, "Debt/Equity: %.2f")
	return lines
}

func sentimentLines(s *contracts.SentimentData) []string {
	if s.Empty() {
		return nil
	}
	var lines []string
	lines = line(lines, s.NewsSentimentScore, "News Sentiment: %.2f")
	if s.NewsArticlesCount > 0 {
		lines = append(lines, fmt.Sprintf("News Articles: %d", s.NewsArticlesCount))
	}
	lines = line(lines, s.SocialSentiment, "Social Sentiment: %.2f")
	if s.AnalystRating != "" {
		lines = append(lines, "Analyst Rating: "+s.AnalystRating)
	}
	lines = line(lines, s.AnalystPriceTarget, "Analyst Price Target: $%.2f")
	return lines
}
