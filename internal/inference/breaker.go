package inference

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings tunes the per-provider circuit breaker
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	Interval            time.Duration
}

// DefaultBreakerSettings trips after 3 consecutive failures and probes after 60s
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 3,
		OpenTimeout:         60 * time.Second,
		Interval:            60 * time.Second,
	}
}

func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{
		Name:     name,
		Interval: s.Interval,
		Timeout:  s.OpenTimeout,
	}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= s.ConsecutiveFailures
	}
	// 호출자 취소는 공급자 장애가 아님
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	}
	return gobreaker.NewCircuitBreaker(st)
}

// guarded pairs a provider with its breaker
type guarded struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

func (g *guarded) infer(ctx context.Context, req Request) (string, error) {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.provider.Infer(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
