package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradepulse/internal/contracts"
)

func newTestFileStore(t *testing.T, now time.Time) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), FileOptions{
		OpTimeout: 5 * time.Second,
		Now:       func() time.Time { return now },
	}, nil)
	require.NoError(t, err)
	return s
}

func dailyReport(date, stable, risky string) contracts.DailyReport {
	ts, _ := contracts.ParseDate(date)
	return contracts.DailyReport{
		ReportID:   contracts.DailyReportID(date),
		Date:       date,
		ReportType: contracts.ReportTypeDaily,
		Timestamp:  ts.Add(16 * time.Hour),
		MarketOverview: contracts.MarketOverview{
			Date:      date,
			Sentiment: contracts.SentimentMixed,
			Themes:    []string{"Earnings", "Rates"},
		},
		StableRecommendation: contracts.Recommendation{
			Symbol:            stable,
			Allocation:        200,
			Confidence:        0.8,
			ExpectedReturn30D: contracts.Float(0.05),
			MaxRisk:           contracts.Float(0.3),
		},
		RiskyRecommendation: contracts.Recommendation{
			Symbol:     risky,
			Allocation: 50,
			Confidence: 0.7,
		},
		MarketRisks:      []string{"Standard market volatility"},
		AnalyzedCount:    35,
		DataQualityScore: 0.8,
		Content:          "# Daily report",
	}
}

func signal(symbol, date string) contracts.SignalBundle {
	ts, _ := contracts.ParseDate(date)
	return contracts.SignalBundle{
		Symbol:    symbol,
		Timestamp: ts.Add(15 * time.Hour),
		Category:  contracts.CategoryStable,
		Price:     contracts.PriceData{Open: 99, High: 101, Low: 98, Close: 100, Volume: 1000},
		Technical: &contracts.TechnicalIndicators{RSI14: contracts.Float(55)},
		Analysis: &contracts.Analysis{
			Recommendation: contracts.RatingBuy,
			Confidence:     0.8,
		},
	}
}

func TestFileStore_PutGetRoundTrip(t *testing.T) {
	s := newTestFileStore(t, time.Now())
	ctx := context.Background()

	want := dailyReport("2024-03-15", "AAPL", "TSLA")
	require.NoError(t, s.Put(ctx, want))

	got, err := s.Get(ctx, "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.FileExists(t, filepath.Join(s.Root(), "reports", "2024-03", "DR_2024-03-15.json"))
}

func TestFileStore_GetMissing(t *testing.T) {
	s := newTestFileStore(t, time.Now())

	_, err := s.Get(context.Background(), "2024-03-15")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	_, err = s.Get(context.Background(), "not-a-date")
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestFileStore_PutOverwritesSameDay(t *testing.T) {
	s := newTestFileStore(t, time.Now())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, dailyReport("2024-03-15", "AAPL", "TSLA")))
	require.NoError(t, s.Put(ctx, dailyReport("2024-03-15", "MSFT", "PLTR")))

	got, err := s.Get(ctx, "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", got.StableRecommendation.Symbol)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Join(s.Root(), "reports", "2024-03"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "DR_2024-03-15.json", entries[0].Name())
}

func TestFileStore_ListRange(t *testing.T) {
	s := newTestFileStore(t, time.Now())
	ctx := context.Background()

	// 10일 구간 중 5일만 존재 (월 경계 포함)
	present := []string{"2024-01-28", "2024-01-30", "2024-02-01", "2024-02-03", "2024-02-06"}
	for i := len(present) - 1; i >= 0; i-- {
		require.NoError(t, s.Put(ctx, dailyReport(present[i], "AAPL", "TSLA")))
	}
	require.NoError(t, s.Put(ctx, dailyReport("2024-02-07", "AAPL", "TSLA")))

	start, _ := contracts.ParseDate("2024-01-28")
	end, _ := contracts.ParseDate("2024-02-06")

	reports, err := s.ListRange(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, reports, 5)
	for i, r := range reports {
		assert.Equal(t, present[i], r.Date)
	}

	empty, err := s.ListRange(ctx, end, start)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFileStore_Signals(t *testing.T) {
	s := newTestFileStore(t, time.Now())
	ctx := context.Background()

	for _, b := range []contracts.SignalBundle{
		signal("TSLA", "2024-03-15"),
		signal("aapl", "2024-03-15"),
		signal("MSFT", "2024-03-15"),
		signal("AAPL", "2024-02-28"),
		signal("AAPL", "2024-04-02"),
	} {
		require.NoError(t, s.PutSignal(ctx, b))
	}

	t.Run("for date ordered by symbol", func(t *testing.T) {
		got, err := s.GetSignalsForDate(ctx, "2024-03-15")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "AAPL", got[0].Symbol)
		assert.Equal(t, "MSFT", got[1].Symbol)
		assert.Equal(t, "TSLA", got[2].Symbol)
	})

	t.Run("latest scans newest partition first", func(t *testing.T) {
		got, err := s.GetLatestSignal(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "2024-04-02", got.Date())
		require.NotNil(t, got.Analysis)
		assert.Equal(t, contracts.RatingBuy, got.Analysis.Recommendation)
	})

	t.Run("latest missing symbol", func(t *testing.T) {
		_, err := s.GetLatestSignal(ctx, "NFLX")
		assert.ErrorIs(t, err, contracts.ErrNotFound)
	})

	t.Run("empty date", func(t *testing.T) {
		got, err := s.GetSignalsForDate(ctx, "2024-05-01")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestFileStore_RejectsPathSymbols(t *testing.T) {
	s := newTestFileStore(t, time.Now())

	b := signal("../etc", "2024-03-15")
	assert.Error(t, s.PutSignal(context.Background(), b))
}

func TestFileStore_Summaries(t *testing.T) {
	s := newTestFileStore(t, time.Now())
	ctx := context.Background()

	want := contracts.SummaryReport{
		ReportID:     "SR_2023-12-01_2024-01-15",
		StartDate:    "2023-12-01",
		EndDate:      "2024-01-15",
		ReportType:   contracts.ReportTypeSummary,
		Timestamp:    time.Date(2024, 1, 16, 6, 0, 0, 0, time.UTC),
		DaysAnalyzed: 12,
		Insights:     []string{"Generated 24 investment recommendations"},
	}
	require.NoError(t, s.PutSummary(ctx, want))
	assert.FileExists(t, filepath.Join(s.Root(), "summaries", "2024", want.ReportID+".json"))

	got, err := s.GetSummary(ctx, want.ReportID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = s.GetSummary(ctx, "SR_missing")
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestFileStore_CleanupIdempotent(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	s := newTestFileStore(t, now)
	ctx := context.Background()

	// 시그널 30일, 리포트 60일 (기본 2배)
	require.NoError(t, s.PutSignal(ctx, signal("AAPL", "2024-01-15")))
	require.NoError(t, s.PutSignal(ctx, signal("AAPL", "2024-02-29")))
	require.NoError(t, s.PutSignal(ctx, signal("AAPL", "2024-03-01")))
	require.NoError(t, s.PutSignal(ctx, signal("AAPL", "2024-03-30")))

	require.NoError(t, s.Put(ctx, dailyReport("2024-01-15", "AAPL", "TSLA")))
	require.NoError(t, s.Put(ctx, dailyReport("2024-02-15", "AAPL", "TSLA")))

	require.NoError(t, s.PutSummary(ctx, contracts.SummaryReport{
		ReportID: "SR_2023-12-01_2023-12-31", StartDate: "2023-12-01", EndDate: "2023-12-31",
	}))
	require.NoError(t, s.PutSummary(ctx, contracts.SummaryReport{
		ReportID: "SR_2024-03-01_2024-03-30", StartDate: "2024-03-01", EndDate: "2024-03-30",
	}))

	first, err := s.Cleanup(ctx, 30, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, first.SignalsDeleted)
	assert.Equal(t, 1, first.ReportsDeleted)
	assert.Equal(t, 1, first.SummariesDeleted)

	second, err := s.Cleanup(ctx, 30, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Total())

	assert.NoDirExists(t, filepath.Join(s.Root(), "signals", "2024-01"))
	assert.NoDirExists(t, filepath.Join(s.Root(), "signals", "2024-02"))
	assert.NoDirExists(t, filepath.Join(s.Root(), "reports", "2024-01"))
	assert.NoDirExists(t, filepath.Join(s.Root(), "summaries", "2023"))

	got, err := s.GetSignalsForDate(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = s.Get(ctx, "2024-02-15")
	assert.NoError(t, err)
}

func TestFileStore_CleanupRejectsZeroRetention(t *testing.T) {
	s := newTestFileStore(t, time.Now())
	_, err := s.Cleanup(context.Background(), 0, 0)
	assert.Error(t, err)
}

func TestFileStore_HealthStatus(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root, FileOptions{PartitionWarn: 1}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, contracts.HealthHealthy, s.HealthStatus(ctx).Status)

	require.NoError(t, s.Put(ctx, dailyReport("2024-01-15", "AAPL", "TSLA")))
	require.NoError(t, s.Put(ctx, dailyReport("2024-02-15", "AAPL", "TSLA")))

	h := s.HealthStatus(ctx)
	assert.Equal(t, contracts.HealthDegraded, h.Status)
	assert.True(t, strings.Contains(h.Detail, "run cleanup"))

	require.NoError(t, os.RemoveAll(filepath.Join(root, "summaries")))
	assert.Equal(t, contracts.HealthError, s.HealthStatus(ctx).Status)
}

func TestFileStore_CancelledContext(t *testing.T) {
	s := newTestFileStore(t, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Put(ctx, dailyReport("2024-03-15", "AAPL", "TSLA"))
	assert.ErrorIs(t, err, contracts.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}
