package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wonny/tradepulse/pkg/config"
)

// pingTimeout bounds the connectivity check performed by New
const pingTimeout = 5 * time.Second

// DB owns the report store's pgx pool
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New opens the pool described by cfg and pings it once.
// ⭐ SSOT: 유일하게 pgxpool.NewWithConfig()를 호출하는 함수
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	// 리포트는 UTC 날짜 기준으로 저장
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// WithTx runs fn inside a transaction, rolling back on error
func (db *DB) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Migrate executes DDL statements in order within one transaction
func (db *DB) Migrate(ctx context.Context, statements []string) error {
	return db.WithTx(ctx, func(tx pgx.Tx) error {
		for i, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration step %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// Probe is one ping round trip plus the pool occupancy at that moment
type Probe struct {
	Latency time.Duration `json:"latency"`
	Pool    PoolStats     `json:"pool"`
}

// PoolStats is the subset of pgxpool.Stat reported in health output
type PoolStats struct {
	AcquiredConns int32 `json:"acquired_conns"`
	IdleConns     int32 `json:"idle_conns"`
	TotalConns    int32 `json:"total_conns"`
	MaxConns      int32 `json:"max_conns"`
}

// Saturated reports whether every connection in the pool is in use
func (s PoolStats) Saturated() bool {
	return s.MaxConns > 0 && s.AcquiredConns >= s.MaxConns
}

// HealthCheck pings the database and snapshots the pool
func (db *DB) HealthCheck(ctx context.Context) (Probe, error) {
	start := time.Now()
	if err := db.Pool.Ping(ctx); err != nil {
		return Probe{}, err
	}

	st := db.Pool.Stat()
	return Probe{
		Latency: time.Since(start),
		Pool: PoolStats{
			AcquiredConns: st.AcquiredConns(),
			IdleConns:     st.IdleConns(),
			TotalConns:    st.TotalConns(),
			MaxConns:      st.MaxConns(),
		},
	}, nil
}
