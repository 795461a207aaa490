package report

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/inference"
)

// stubLLM answers every call with fn
type stubLLM struct {
	mu    sync.Mutex
	calls []inference.Request
	fn    func(req inference.Request) (string, error)
}

func (s *stubLLM) Infer(ctx context.Context, req inference.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	return s.fn(req)
}

func failingLLM() *stubLLM {
	return &stubLLM{fn: func(inference.Request) (string, error) {
		return "", contracts.ErrAllProvidersExhausted
	}}
}

func answering(text string) *stubLLM {
	return &stubLLM{fn: func(inference.Request) (string, error) { return text, nil }}
}

// memStore is an in-memory ReportStore that counts every call
type memStore struct {
	mu      sync.Mutex
	calls   int
	reports map[string]contracts.DailyReport
	signals map[string]contracts.SignalBundle
	err     error
}

func newMemStore(reports ...contracts.DailyReport) *memStore {
	m := &memStore{
		reports: map[string]contracts.DailyReport{},
		signals: map[string]contracts.SignalBundle{},
	}
	for _, r := range reports {
		m.reports[r.Date] = r
	}
	return m
}

func (m *memStore) touch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func (m *memStore) Put(ctx context.Context, r contracts.DailyReport) error {
	if err := m.touch(); err != nil {
		return err
	}
	m.reports[r.Date] = r
	return nil
}

func (m *memStore) Get(ctx context.Context, date string) (contracts.DailyReport, error) {
	if err := m.touch(); err != nil {
		return contracts.DailyReport{}, err
	}
	r, ok := m.reports[date]
	if !ok {
		return r, contracts.ErrNotFound
	}
	return r, nil
}

func (m *memStore) ListRange(ctx context.Context, start, end time.Time) ([]contracts.DailyReport, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	from, to := contracts.FormatDate(start), contracts.FormatDate(end)
	var out []contracts.DailyReport
	for date, r := range m.reports {
		if date >= from && date <= to {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *memStore) PutSignal(ctx context.Context, b contracts.SignalBundle) error {
	if err := m.touch(); err != nil {
		return err
	}
	m.signals[b.Symbol] = b
	return nil
}

func (m *memStore) GetLatestSignal(ctx context.Context, symbol string) (contracts.SignalBundle, error) {
	if err := m.touch(); err != nil {
		return contracts.SignalBundle{}, err
	}
	b, ok := m.signals[symbol]
	if !ok {
		return b, contracts.ErrNotFound
	}
	return b, nil
}

func (m *memStore) GetSignalsForDate(ctx context.Context, date string) ([]contracts.SignalBundle, error) {
	return nil, m.touch()
}

func (m *memStore) PutSummary(ctx context.Context, s contracts.SummaryReport) error {
	return m.touch()
}

func (m *memStore) GetSummary(ctx context.Context, id string) (contracts.SummaryReport, error) {
	if err := m.touch(); err != nil {
		return contracts.SummaryReport{}, err
	}
	return contracts.SummaryReport{}, contracts.ErrNotFound
}

func (m *memStore) Cleanup(ctx context.Context, signalDays, reportDays int) (contracts.CleanupResult, error) {
	return contracts.CleanupResult{}, m.touch()
}

func (m *memStore) HealthStatus(ctx context.Context) contracts.Health {
	return contracts.Health{Status: contracts.HealthHealthy}
}

var errDown = errors.New("disk unavailable")

func mustDate(s string) time.Time {
	t, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func daily(date, stable, risky string, conf float64, themes ...string) contracts.DailyReport {
	return contracts.DailyReport{
		ReportID:             contracts.DailyReportID(date),
		Date:                 date,
		ReportType:           contracts.ReportTypeDaily,
		MarketOverview:       contracts.MarketOverview{Date: date, Sentiment: contracts.SentimentPositive, Themes: themes},
		StableRecommendation: contracts.Recommendation{Symbol: stable, Allocation: 200, Confidence: conf},
		RiskyRecommendation:  contracts.Recommendation{Symbol: risky, Allocation: 50, Confidence: conf},
		MarketRisks:          []string{"Standard market volatility"},
	}
}

func bundle(symbol string, cat contracts.Category, change float64, a *contracts.Analysis) contracts.SignalBundle {
	return contracts.SignalBundle{
		Symbol:    symbol,
		Category:  cat,
		Timestamp: mustDate("2024-03-15"),
		Price:     contracts.PriceData{Close: 100, ChangePercent: contracts.Float(change)},
		Analysis:  a,
	}
}

func analysis(rating contracts.Rating, conf, risk float64, factors ...string) *contracts.Analysis {
	return &contracts.Analysis{
		Trend:          contracts.TrendSideways,
		Recommendation: rating,
		Confidence:     conf,
		RiskScore:      risk,
		KeyFactors:     factors,
		Reasoning:      "test reasoning",
		Source:         contracts.SourceInference,
	}
}
