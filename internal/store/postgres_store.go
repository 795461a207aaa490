package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/pkg/database"
	"github.com/wonny/tradepulse/pkg/logger"
)

// schema is applied by EnsureSchema in a single transaction
var schema = []string{
	`CREATE TABLE IF NOT EXISTS signal_snapshots (
		symbol          TEXT        NOT NULL,
		snapshot_date   DATE        NOT NULL,
		partition_month TEXT        NOT NULL,
		payload         JSONB       NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (symbol, snapshot_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signal_snapshots_month ON signal_snapshots (partition_month)`,
	`CREATE TABLE IF NOT EXISTS daily_reports (
		report_date     DATE        PRIMARY KEY,
		report_id       TEXT        NOT NULL,
		partition_month TEXT        NOT NULL,
		payload         JSONB       NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS summary_reports (
		report_id      TEXT        PRIMARY KEY,
		end_date       DATE        NOT NULL,
		partition_year TEXT        NOT NULL,
		payload        JSONB       NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// PostgresStore 리포트/시그널 저장소 (PostgreSQL, payload는 JSONB)
type PostgresStore struct {
	db        *database.DB
	opTimeout time.Duration
	now       func() time.Time
	log       *logger.Logger
}

// NewPostgresStore 새 저장소 생성
func NewPostgresStore(db *database.DB, opTimeout time.Duration, log *logger.Logger) *PostgresStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &PostgresStore{
		db:        db,
		opTimeout: opTimeout,
		now:       time.Now,
		log:       log.Component("postgres_store"),
	}
}

// EnsureSchema 테이블 생성 (멱등)
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.db.Migrate(ctx, schema); err != nil {
		return unavailable("ensure schema", err)
	}
	return nil
}

// Put 일별 리포트 저장 (같은 날짜는 덮어씀)
func (s *PostgresStore) Put(ctx context.Context, report contracts.DailyReport) error {
	date, err := contracts.ParseDate(report.Date)
	if err != nil {
		return fmt.Errorf("put report: %w", err)
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	query := `
		INSERT INTO daily_reports (report_date, report_id, partition_month, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (report_date) DO UPDATE SET
			report_id = EXCLUDED.report_id,
			payload = EXCLUDED.payload,
			updated_at = NOW()`

	_, err = s.db.Pool.Exec(ctx, query, date, contracts.DailyReportID(report.Date), monthPartition(report.Date), payload)
	return unavailable("put report", err)
}

// Get 일별 리포트 조회
func (s *PostgresStore) Get(ctx context.Context, date string) (contracts.DailyReport, error) {
	var report contracts.DailyReport
	day, err := contracts.ParseDate(date)
	if err != nil {
		return report, notFound("daily report", date)
	}

	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	var payload []byte
	err = s.db.Pool.QueryRow(ctx, `SELECT payload FROM daily_reports WHERE report_date = $1`, day).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return report, notFound("daily report", date)
	}
	if err != nil {
		return report, unavailable("get report", err)
	}
	if err := json.Unmarshal(payload, &report); err != nil {
		return report, fmt.Errorf("decode report %s: %w", date, err)
	}
	return report, nil
}

// ListRange 기간 내 리포트 조회 (날짜 오름차순)
func (s *PostgresStore) ListRange(ctx context.Context, start, end time.Time) ([]contracts.DailyReport, error) {
	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	query := `
		SELECT payload
		FROM daily_reports
		WHERE report_date BETWEEN $1 AND $2
		ORDER BY report_date ASC`

	rows, err := s.db.Pool.Query(ctx, query, truncateDay(start), truncateDay(end))
	if err != nil {
		return nil, unavailable("list reports", err)
	}
	defer rows.Close()

	reports := make([]contracts.DailyReport, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, unavailable("list reports", err)
		}
		var r contracts.DailyReport
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list reports", err)
	}
	return reports, nil
}

// PutSignal 시그널 스냅샷 저장 (symbol, date 기준 upsert)
func (s *PostgresStore) PutSignal(ctx context.Context, bundle contracts.SignalBundle) error {
	symbol := normalizeSymbol(bundle.Symbol)
	if symbol == "" {
		return fmt.Errorf("put signal: invalid symbol %q", bundle.Symbol)
	}
	bundle.Symbol = symbol

	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	date := bundle.Date()
	query := `
		INSERT INTO signal_snapshots (symbol, snapshot_date, partition_month, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol, snapshot_date) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = NOW()`

	_, err = s.db.Pool.Exec(ctx, query, symbol, truncateDay(bundle.Timestamp), monthPartition(date), payload)
	return unavailable("put signal", err)
}

// GetLatestSignal 심볼의 최신 스냅샷 조회
func (s *PostgresStore) GetLatestSignal(ctx context.Context, symbol string) (contracts.SignalBundle, error) {
	var bundle contracts.SignalBundle
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return bundle, notFound("signal", symbol)
	}

	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	query := `
		SELECT payload
		FROM signal_snapshots
		WHERE symbol = $1
		ORDER BY snapshot_date DESC
		LIMIT 1`

	var payload []byte
	err := s.db.Pool.QueryRow(ctx, query, symbol).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return bundle, notFound("signal", symbol)
	}
	if err != nil {
		return bundle, unavailable("latest signal", err)
	}
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return bundle, fmt.Errorf("decode signal %s: %w", symbol, err)
	}
	return bundle, nil
}

// GetSignalsForDate 날짜별 스냅샷 조회 (심볼 순)
func (s *PostgresStore) GetSignalsForDate(ctx context.Context, date string) ([]contracts.SignalBundle, error) {
	day, err := contracts.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("signals for date: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	rows, err := s.db.Pool.Query(ctx,
		`SELECT payload FROM signal_snapshots WHERE snapshot_date = $1 ORDER BY symbol ASC`, day)
	if err != nil {
		return nil, unavailable("signals for date", err)
	}
	defer rows.Close()

	bundles := make([]contracts.SignalBundle, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, unavailable("signals for date", err)
		}
		var b contracts.SignalBundle
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, fmt.Errorf("decode signal: %w", err)
		}
		bundles = append(bundles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("signals for date", err)
	}
	return bundles, nil
}

// PutSummary 요약 리포트 저장
func (s *PostgresStore) PutSummary(ctx context.Context, summary contracts.SummaryReport) error {
	if !validID(summary.ReportID) {
		return fmt.Errorf("put summary: invalid id %q", summary.ReportID)
	}
	end, err := contracts.ParseDate(summary.EndDate)
	if err != nil {
		return fmt.Errorf("put summary: %w", err)
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	query := `
		INSERT INTO summary_reports (report_id, end_date, partition_year, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (report_id) DO UPDATE SET
			end_date = EXCLUDED.end_date,
			partition_year = EXCLUDED.partition_year,
			payload = EXCLUDED.payload,
			updated_at = NOW()`

	_, err = s.db.Pool.Exec(ctx, query, summary.ReportID, end, yearPartition(summary.EndDate), payload)
	return unavailable("put summary", err)
}

// GetSummary 요약 리포트 조회
func (s *PostgresStore) GetSummary(ctx context.Context, id string) (contracts.SummaryReport, error) {
	var summary contracts.SummaryReport
	if !validID(id) {
		return summary, notFound("summary", id)
	}

	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	var payload []byte
	err := s.db.Pool.QueryRow(ctx, `SELECT payload FROM summary_reports WHERE report_id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return summary, notFound("summary", id)
	}
	if err != nil {
		return summary, unavailable("get summary", err)
	}
	if err := json.Unmarshal(payload, &summary); err != nil {
		return summary, fmt.Errorf("decode summary %s: %w", id, err)
	}
	return summary, nil
}

// Cleanup 보관 기간이 지난 데이터 삭제 (단일 트랜잭션)
func (s *PostgresStore) Cleanup(ctx context.Context, signalDays, reportDays int) (contracts.CleanupResult, error) {
	var result contracts.CleanupResult
	if signalDays < 1 {
		return result, fmt.Errorf("cleanup: signal retention must be at least 1 day, got %d", signalDays)
	}
	reportDays = contracts.EffectiveReportDays(signalDays, reportDays)

	now := s.now()
	signalCutoff := truncateDay(now).AddDate(0, 0, -signalDays)
	reportCutoff := truncateDay(now).AddDate(0, 0, -reportDays)

	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM signal_snapshots WHERE snapshot_date < $1`, signalCutoff)
		batch.Queue(`DELETE FROM daily_reports WHERE report_date < $1`, reportCutoff)
		batch.Queue(`DELETE FROM summary_reports WHERE end_date < $1`, reportCutoff)

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		counts := []*int{&result.SignalsDeleted, &result.ReportsDeleted, &result.SummariesDeleted}
		for _, n := range counts {
			tag, err := br.Exec()
			if err != nil {
				return err
			}
			*n = int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return contracts.CleanupResult{}, unavailable("cleanup", err)
	}

	s.log.WithFields(map[string]interface{}{
		"signals_deleted":   result.SignalsDeleted,
		"reports_deleted":   result.ReportsDeleted,
		"summaries_deleted": result.SummariesDeleted,
	}).Info("Retention cleanup completed")

	return result, nil
}

// HealthStatus ping + 커넥션 풀 상태
func (s *PostgresStore) HealthStatus(ctx context.Context) contracts.Health {
	ctx, cancel := withTimeout(ctx, s.opTimeout)
	defer cancel()

	probe, err := s.db.HealthCheck(ctx)
	if err != nil {
		return contracts.Health{Status: contracts.HealthError, Detail: fmt.Sprintf("postgres ping failed: %v", err)}
	}

	detail := fmt.Sprintf("postgres ok in %s (pool %d/%d)",
		probe.Latency.Round(time.Millisecond), probe.Pool.AcquiredConns, probe.Pool.MaxConns)
	if probe.Pool.Saturated() {
		return contracts.Health{
			Status: contracts.HealthDegraded,
			Detail: fmt.Sprintf("connection pool exhausted (%d/%d)", probe.Pool.AcquiredConns, probe.Pool.MaxConns),
		}
	}
	return contracts.Health{Status: contracts.HealthHealthy, Detail: detail}
}
