package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"github.com/wonny/tradepulse/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if err := client.Ping(context.Background()); err == nil {
		t.Error("Expected Ping to fail when Redis disabled")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	client := &Client{enabled: false}
	limiter := NewRateLimiter(client, "test")
	cfg := ProviderRateLimit("llm7", 30)

	// When Redis is disabled, all requests should be allowed
	d, err := limiter.Allow(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !d.Allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if d.Remaining != cfg.Limit {
		t.Errorf("Expected remaining = %d, got %d", cfg.Limit, d.Remaining)
	}
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(NewFromClient(db), "tp")
	fixed := time.Date(2024, 3, 15, 16, 30, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	cfg := ProviderRateLimit("llm7", 2)
	key := "tp:ratelimit:llm:llm7"
	now := fixed.UnixMilli()
	window := time.Minute.Milliseconds()

	mock.ExpectEvalSha(slidingWindow.Hash(), []string{key}, now, window, 2, fmt.Sprintf("%d-1", now)).
		SetVal([]interface{}{int64(1), int64(1), int64(0)})
	mock.ExpectEvalSha(slidingWindow.Hash(), []string{key}, now, window, 2, fmt.Sprintf("%d-2", now)).
		SetVal([]interface{}{int64(0), int64(0), int64(1500)})

	d, err := limiter.Allow(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !d.Allowed || d.Remaining != 1 {
		t.Errorf("first call: got %+v", d)
	}

	d, err = limiter.Allow(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if d.Allowed || d.RetryAfter != 1500*time.Millisecond {
		t.Errorf("second call: got %+v", d)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(NewFromClient(db), "tp")
	fixed := time.Date(2024, 3, 15, 16, 30, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	cfg := ProviderRateLimit("openai", 1)
	now := fixed.UnixMilli()
	mock.ExpectEvalSha(slidingWindow.Hash(), []string{"tp:ratelimit:llm:openai"}, now, time.Minute.Milliseconds(), 1, fmt.Sprintf("%d-1", now)).
		SetVal([]interface{}{int64(0), int64(0), int64(60000)})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, cfg); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestRateLimiter_Unlimited(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(NewFromClient(db), "tp")

	d, err := limiter.Allow(context.Background(), ProviderRateLimit("llm7", 0))
	if err != nil || !d.Allowed {
		t.Errorf("Expected zero limit to admit, got %+v err=%v", d, err)
	}
	// no redis round trip expected
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(&Client{enabled: false}, "test")

	var result string
	found, err := cache.Get(context.Background(), "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}
	if err := cache.Delete(context.Background(), "key"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestCache_GetSet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewCache(NewFromClient(db), "tp")
	ctx := context.Background()

	mock.ExpectSet("tp:cache:report:daily:2024-03-01", []byte(`{"id":"DR_2024-03-01"}`), TTLLong).SetVal("OK")
	mock.ExpectGet("tp:cache:report:daily:2024-03-01").SetVal(`{"id":"DR_2024-03-01"}`)
	mock.ExpectGet("tp:cache:report:daily:2024-03-02").RedisNil()
	mock.ExpectDel("tp:cache:report:daily:2024-03-01").SetVal(1)

	type payload struct {
		ID string `json:"id"`
	}

	if err := cache.Set(ctx, DailyReportKey("2024-03-01"), payload{ID: "DR_2024-03-01"}, TTLLong); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got payload
	found, err := cache.Get(ctx, DailyReportKey("2024-03-01"), &got)
	if err != nil || !found {
		t.Fatalf("Get() found=%v err=%v", found, err)
	}
	if got.ID != "DR_2024-03-01" {
		t.Errorf("got %q", got.ID)
	}

	found, err = cache.Get(ctx, DailyReportKey("2024-03-02"), &got)
	if err != nil || found {
		t.Errorf("Expected clean miss, found=%v err=%v", found, err)
	}

	if err := cache.Delete(ctx, DailyReportKey("2024-03-01")); err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"DailyReportKey", DailyReportKey("2024-01-15"), "report:daily:2024-01-15"},
		{"SummaryReportKey", SummaryReportKey("SR_2024-01-01_2024-01-31"), "report:summary:SR_2024-01-01_2024-01-31"},
		{"LatestSignalKey", LatestSignalKey("AAPL"), "signal:latest:AAPL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestProviderRateLimit(t *testing.T) {
	cfg := ProviderRateLimit("openai", 60)
	if cfg.Key != "llm:openai" || cfg.Limit != 60 || cfg.Window != time.Minute {
		t.Errorf("unexpected config %+v", cfg)
	}
}
