package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wonny/tradepulse/internal/contracts"
)

// ParseResult is either a normalized Analysis or the reason parsing failed
type ParseResult struct {
	analysis contracts.Analysis
	reason   string
	valid    bool
}

// Valid wraps a usable analysis
func Valid(a contracts.Analysis) ParseResult {
	return ParseResult{analysis: a, valid: true}
}

// Invalid records why the text could not be used
func Invalid(reason string) ParseResult {
	return ParseResult{reason: reason}
}

// IsValid reports whether an Analysis was produced
func (r ParseResult) IsValid() bool { return r.valid }

// Analysis returns the parsed analysis; zero value when invalid
func (r ParseResult) Analysis() contracts.Analysis { return r.analysis }

// Reason returns the failure reason; empty when valid
func (r ParseResult) Reason() string { return r.reason }

// Err exposes an invalid result as ErrUnparsableInference
func (r ParseResult) Err() error {
	if r.valid {
		return nil
	}
	return fmt.Errorf("%w: %s", contracts.ErrUnparsableInference, r.reason)
}

// required keys; anything else falls back to defaults
var requiredKeys = []string{"recommendation", "confidence_level"}

// ParseAnalysis extracts the first balanced JSON object from text and
// normalizes it. category is used when target_allocation is unusable.
func ParseAnalysis(text string, category contracts.Category) ParseResult {
	raw, err := DecodeObject(text)
	if err != nil {
		return Invalid(err.Error())
	}

	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return Invalid("missing field " + key)
		}
	}

	return Valid(Normalize(raw, category))
}

// DecodeObject decodes the first balanced JSON object found in free text
func DecodeObject(text string) (map[string]interface{}, error) {
	span, ok := firstObject(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return raw, nil
}

// firstObject returns the first balanced {...} span, skipping braces
// that appear inside JSON strings
func firstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// Normalize clamps every field of a loosely typed payload into its domain
func Normalize(raw map[string]interface{}, category contracts.Category) contracts.Analysis {
	a := contracts.Analysis{
		Trend:           contracts.Trend(upper(raw["trend_direction"])),
		TrendStrength:   unit(raw["trend_strength"]),
		RiskScore:       unit(raw["risk_score"]),
		Recommendation:  contracts.Rating(upper(raw["recommendation"])),
		Confidence:      unit(raw["confidence_level"]),
		TargetCategory:  contracts.Category(upper(raw["target_allocation"])),
		PriceTarget7D:   positive(raw["price_target_7d"]),
		PriceTarget30D:  positive(raw["price_target_30d"]),
		SupportLevel:    positive(raw["support_level"]),
		ResistanceLevel: positive(raw["resistance_level"]),
		KeyFactors:      factors(raw["key_factors"]),
		Reasoning:       Truncate(str(raw["reasoning"]), contracts.MaxReasoningLen),
		Source:          contracts.SourceInference,
	}

	if !a.Trend.Valid() {
		a.Trend = contracts.TrendSideways
	}
	if !a.Recommendation.Valid() {
		a.Recommendation = contracts.RatingHold
	}
	if a.TargetCategory != contracts.CategoryStable && a.TargetCategory != contracts.CategoryRisky {
		a.TargetCategory = category
	}
	if a.Reasoning == "" {
		a.Reasoning = "No specific reasoning provided."
	}
	return a
}

func str(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func upper(v interface{}) string {
	return strings.ToUpper(str(v))
}

// Number accepts JSON numbers and numeric strings; NaN and ±Inf are rejected
func Number(v interface{}) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// unit clamps into [0,1]; missing or non-numeric values become 0.5
func unit(v interface{}) float64 {
	f, ok := Number(v)
	if !ok {
		return 0.5
	}
	return clamp01(f)
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

func positive(v interface{}) *float64 {
	f, ok := Number(v)
	if !ok || f <= 0 {
		return nil
	}
	return &f
}

func factors(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, contracts.MaxKeyFactors)
	for _, item := range items {
		if len(out) == contracts.MaxKeyFactors {
			break
		}
		if s := str(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
