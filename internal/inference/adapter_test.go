package inference

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/pkg/logger"
	"github.com/wonny/tradepulse/pkg/metrics"
)

type stubProvider struct {
	name        string
	unavailable bool
	text        string
	err         error
	delay       time.Duration
	calls       int32
}

func (s *stubProvider) Name() string      { return s.name }
func (s *stubProvider) IsAvailable() bool { return !s.unavailable }

func (s *stubProvider) Infer(ctx context.Context, req Request) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func (s *stubProvider) Calls() int { return int(atomic.LoadInt32(&s.calls)) }

func newTestAdapter(providers ...Provider) *Adapter {
	return NewAdapter(logger.NewNop(), metrics.New(), DefaultBreakerSettings(), providers...)
}

func req(timeout time.Duration) Request {
	return Request{Prompt: "p", Temperature: 0.3, MaxTokens: 100, Timeout: timeout}
}

func TestAdapter_PrimarySuccess(t *testing.T) {
	primary := &stubProvider{name: "llm7", text: "  primary answer \n"}
	secondary := &stubProvider{name: "openai", text: "secondary"}

	out, err := newTestAdapter(primary, secondary).Infer(context.Background(), req(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "primary answer", out)
	assert.Equal(t, 0, secondary.Calls())
}

func TestAdapter_FallbackCases(t *testing.T) {
	tests := []struct {
		name    string
		primary *stubProvider
	}{
		{"error", &stubProvider{name: "llm7", err: errors.New("503")}},
		{"empty response", &stubProvider{name: "llm7", text: "   "}},
		{"not configured", &stubProvider{name: "llm7", unavailable: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secondary := &stubProvider{name: "openai", text: "from secondary"}
			out, err := newTestAdapter(tt.primary, secondary).Infer(context.Background(), req(time.Second))
			require.NoError(t, err)
			assert.Equal(t, "from secondary", out)
			assert.Equal(t, 1, secondary.Calls())
		})
	}
}

func TestAdapter_UnavailableProviderNotCalled(t *testing.T) {
	primary := &stubProvider{name: "llm7", unavailable: true}
	secondary := &stubProvider{name: "openai", text: "ok"}

	_, err := newTestAdapter(primary, secondary).Infer(context.Background(), req(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, primary.Calls())
}

func TestAdapter_TimeoutIsPerProvider(t *testing.T) {
	// primary exceeds its budget; secondary must get a fresh one
	primary := &stubProvider{name: "llm7", text: "late", delay: 500 * time.Millisecond}
	secondary := &stubProvider{name: "openai", text: "on time", delay: 60 * time.Millisecond}

	start := time.Now()
	out, err := newTestAdapter(primary, secondary).Infer(context.Background(), req(100*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "on time", out)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestAdapter_AllProvidersExhausted(t *testing.T) {
	primary := &stubProvider{name: "llm7", err: errors.New("down")}
	secondary := &stubProvider{name: "openai", err: errors.New("quota")}

	out, err := newTestAdapter(primary, secondary).Infer(context.Background(), req(time.Second))
	assert.Empty(t, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrAllProvidersExhausted))
	assert.Contains(t, err.Error(), "down")
	assert.Contains(t, err.Error(), "quota")
	// 한 번씩만 호출 (재시도 없음)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, secondary.Calls())
}

func TestAdapter_NoProviders(t *testing.T) {
	_, err := newTestAdapter().Infer(context.Background(), req(time.Second))
	assert.True(t, errors.Is(err, contracts.ErrAllProvidersExhausted))
}

func TestAdapter_CancelledRunSkipsProviders(t *testing.T) {
	primary := &stubProvider{name: "llm7", text: "x"}
	secondary := &stubProvider{name: "openai", text: "y"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAdapter(primary, secondary).Infer(ctx, req(time.Second))
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrAllProvidersExhausted))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, primary.Calls())
	assert.Equal(t, 0, secondary.Calls())
}

func TestAdapter_CancelDuringPrimaryStopsPromptly(t *testing.T) {
	primary := &stubProvider{name: "llm7", text: "late", delay: 2 * time.Second}
	secondary := &stubProvider{name: "openai", text: "y"}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := newTestAdapter(primary, secondary).Infer(ctx, req(5*time.Second))
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, secondary.Calls())
}

func TestAdapter_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	primary := &stubProvider{name: "llm7", err: errors.New("boom")}
	secondary := &stubProvider{name: "openai", text: "ok"}
	a := newTestAdapter(primary, secondary)

	for i := 0; i < 5; i++ {
		out, err := a.Infer(context.Background(), req(time.Second))
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}

	// 3회 연속 실패 후 회로 개방: 이후 호출은 공급자에 도달하지 않음
	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, 5, secondary.Calls())

	status := a.ProviderStatus()
	require.Len(t, status, 2)
	assert.Equal(t, "open", status[0].Breaker)
	assert.Equal(t, "closed", status[1].Breaker)
}

func TestAdapter_ProviderStatus(t *testing.T) {
	a := newTestAdapter(
		&stubProvider{name: "llm7"},
		&stubProvider{name: "openai", unavailable: true},
	)

	status := a.ProviderStatus()
	require.Len(t, status, 2)
	assert.Equal(t, "llm7", status[0].Name)
	assert.True(t, status[0].Primary)
	assert.True(t, status[0].Configured)
	assert.False(t, status[1].Configured)
	assert.True(t, a.AnyConfigured())
}
