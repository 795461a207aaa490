package inference

import (
	"time"

	"github.com/wonny/tradepulse/pkg/config"
	"github.com/wonny/tradepulse/pkg/httputil"
	"github.com/wonny/tradepulse/pkg/logger"
	"github.com/wonny/tradepulse/pkg/metrics"
	"github.com/wonny/tradepulse/pkg/redis"
)

// NewFromConfig wires the primary and secondary chat providers.
// rdb may be nil or disabled; the shared rate limit is then skipped.
func NewFromConfig(cfg *config.Config, log *logger.Logger, rec *metrics.Recorder, rdb *redis.Client) *Adapter {
	var limiter *redis.RateLimiter
	if rdb != nil && rdb.Enabled() && cfg.LLM.RequestsPerMinute > 0 {
		limiter = redis.NewRateLimiter(rdb, "tradepulse")
	}

	build := func(pc config.ProviderConfig) Provider {
		// 실제 타임아웃은 호출별 context로 제어, 여기는 상한선
		client := httputil.NewWithTimeout(log, 2*time.Minute).DisableRetry()
		if limiter != nil {
			client = client.WithRateLimiter(limiter, redis.ProviderRateLimit(pc.Name, cfg.LLM.RequestsPerMinute))
		}
		return NewChatProvider(pc, client)
	}

	return NewAdapter(log, rec, DefaultBreakerSettings(),
		build(cfg.LLM.Primary),
		build(cfg.LLM.Secondary),
	)
}
