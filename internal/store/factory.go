package store

import (
	"context"
	"fmt"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/pkg/config"
	"github.com/wonny/tradepulse/pkg/database"
	"github.com/wonny/tradepulse/pkg/logger"
	"github.com/wonny/tradepulse/pkg/metrics"
	"github.com/wonny/tradepulse/pkg/redis"
)

// CachePrefix namespaces cached reports in redis
const CachePrefix = "tradepulse"

// Deps are the shared connections a store may use
type Deps struct {
	DB      *database.DB  // required for the postgres backend
	Redis   *redis.Client // optional read-through cache
	Metrics *metrics.Recorder
	Logger  *logger.Logger
}

// New builds the configured ReportStore
// ⭐ SSOT: STORE_BACKEND 분기는 여기서만
func New(ctx context.Context, cfg *config.Config, deps Deps) (contracts.ReportStore, error) {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	var base contracts.ReportStore
	switch cfg.Storage.Backend {
	case "file", "":
		fs, err := NewFileStore(cfg.Storage.DataDir, FileOptions{OpTimeout: cfg.Storage.OpTimeout}, log)
		if err != nil {
			return nil, err
		}
		base = fs

	case "postgres":
		if deps.DB == nil {
			return nil, fmt.Errorf("postgres backend requires a database connection")
		}
		pg := NewPostgresStore(deps.DB, cfg.Storage.OpTimeout, log)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		base = pg

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Storage.Backend)
	}

	if cfg.Storage.CacheEnabled && deps.Redis != nil && deps.Redis.Enabled() {
		base = NewCachedStore(base, deps.Redis, CachePrefix, log)
	}

	log.WithFields(map[string]interface{}{
		"backend": cfg.Storage.Backend,
		"cached":  cfg.Storage.CacheEnabled && deps.Redis != nil && deps.Redis.Enabled(),
	}).Info("Report store ready")

	return Instrument(base, deps.Metrics), nil
}
