package store

import (
	"context"
	"time"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/pkg/logger"
	"github.com/wonny/tradepulse/pkg/redis"
)

// CachedStore adds a redis read-through cache in front of a ReportStore.
// Cache failures are logged and never fail the call.
type CachedStore struct {
	next   contracts.ReportStore
	client *redis.Client
	cache  *redis.Cache
	now    func() time.Time
	log    *logger.Logger
}

// NewCachedStore wraps next; keys are namespaced under prefix
func NewCachedStore(next contracts.ReportStore, client *redis.Client, prefix string, log *logger.Logger) *CachedStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &CachedStore{
		next:   next,
		client: client,
		cache:  redis.NewCache(client, prefix),
		now:    time.Now,
		log:    log.Component("cached_store"),
	}
}

// Put writes through and invalidates the cached day
func (s *CachedStore) Put(ctx context.Context, report contracts.DailyReport) error {
	if err := s.next.Put(ctx, report); err != nil {
		return err
	}
	s.invalidate(ctx, redis.DailyReportKey(report.Date))
	return nil
}

// Get serves from cache, falling back to the backing store
func (s *CachedStore) Get(ctx context.Context, date string) (contracts.DailyReport, error) {
	key := redis.DailyReportKey(date)

	var report contracts.DailyReport
	if s.lookup(ctx, key, &report) {
		return report, nil
	}

	report, err := s.next.Get(ctx, date)
	if err != nil {
		return report, err
	}

	// 당일 리포트는 재실행될 수 있으므로 짧게 캐시
	ttl := redis.TTLLong
	if date >= contracts.FormatDate(s.now()) {
		ttl = redis.TTLShort
	}
	s.fill(ctx, key, report, ttl)
	return report, nil
}

func (s *CachedStore) ListRange(ctx context.Context, start, end time.Time) ([]contracts.DailyReport, error) {
	return s.next.ListRange(ctx, start, end)
}

func (s *CachedStore) PutSignal(ctx context.Context, bundle contracts.SignalBundle) error {
	if err := s.next.PutSignal(ctx, bundle); err != nil {
		return err
	}
	if symbol := normalizeSymbol(bundle.Symbol); symbol != "" {
		s.invalidate(ctx, redis.LatestSignalKey(symbol))
	}
	return nil
}

func (s *CachedStore) GetLatestSignal(ctx context.Context, symbol string) (contracts.SignalBundle, error) {
	key := redis.LatestSignalKey(normalizeSymbol(symbol))

	var bundle contracts.SignalBundle
	if s.lookup(ctx, key, &bundle) {
		return bundle, nil
	}

	bundle, err := s.next.GetLatestSignal(ctx, symbol)
	if err != nil {
		return bundle, err
	}
	s.fill(ctx, key, bundle, redis.TTLMedium)
	return bundle, nil
}

func (s *CachedStore) GetSignalsForDate(ctx context.Context, date string) ([]contracts.SignalBundle, error) {
	return s.next.GetSignalsForDate(ctx, date)
}

func (s *CachedStore) PutSummary(ctx context.Context, summary contracts.SummaryReport) error {
	if err := s.next.PutSummary(ctx, summary); err != nil {
		return err
	}
	s.invalidate(ctx, redis.SummaryReportKey(summary.ReportID))
	return nil
}

func (s *CachedStore) GetSummary(ctx context.Context, id string) (contracts.SummaryReport, error) {
	key := redis.SummaryReportKey(id)

	var summary contracts.SummaryReport
	if s.lookup(ctx, key, &summary) {
		return summary, nil
	}

	summary, err := s.next.GetSummary(ctx, id)
	if err != nil {
		return summary, err
	}
	s.fill(ctx, key, summary, redis.TTLDaily)
	return summary, nil
}

// Cleanup drops every cached report and signal after the backing pass
func (s *CachedStore) Cleanup(ctx context.Context, signalDays, reportDays int) (contracts.CleanupResult, error) {
	result, err := s.next.Cleanup(ctx, signalDays, reportDays)
	if err != nil {
		return result, err
	}
	for _, pattern := range []string{"report:*", "signal:*"} {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			s.log.WithError(err).WithField("pattern", pattern).Warn("Cache invalidation failed")
		}
	}
	return result, nil
}

// HealthStatus degrades a healthy backing store when redis is unreachable
func (s *CachedStore) HealthStatus(ctx context.Context) contracts.Health {
	h := s.next.HealthStatus(ctx)
	if h.Status != contracts.HealthHealthy {
		return h
	}
	if err := s.client.Ping(ctx); err != nil {
		return contracts.Health{
			Status: contracts.HealthDegraded,
			Detail: h.Detail + "; redis cache unreachable: " + err.Error(),
		}
	}
	h.Detail += "; redis cache ok"
	return h
}

func (s *CachedStore) lookup(ctx context.Context, key string, dest interface{}) bool {
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Cache read failed")
		return false
	}
	return found
}

func (s *CachedStore) fill(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

func (s *CachedStore) invalidate(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Cache invalidation failed")
	}
}
