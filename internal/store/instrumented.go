package store

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/pkg/metrics"
)

// Instrumented counts store operations by result
type Instrumented struct {
	next contracts.ReportStore
	rec  *metrics.Recorder
}

// Instrument wraps next with operation metrics; a nil recorder returns next
func Instrument(next contracts.ReportStore, rec *metrics.Recorder) contracts.ReportStore {
	if rec == nil {
		return next
	}
	return &Instrumented{next: next, rec: rec}
}

// record counts misses as successful lookups
func (s *Instrumented) record(op string, err error) {
	if errors.Is(err, contracts.ErrNotFound) {
		err = nil
	}
	s.rec.RecordStoreOp(op, err)
}

func (s *Instrumented) Put(ctx context.Context, report contracts.DailyReport) error {
	err := s.next.Put(ctx, report)
	s.record("put", err)
	return err
}

func (s *Instrumented) Get(ctx context.Context, date string) (contracts.DailyReport, error) {
	r, err := s.next.Get(ctx, date)
	s.record("get", err)
	return r, err
}

func (s *Instrumented) ListRange(ctx context.Context, start, end time.Time) ([]contracts.DailyReport, error) {
	r, err := s.next.ListRange(ctx, start, end)
	s.record("list_range", err)
	return r, err
}

func (s *Instrumented) PutSignal(ctx context.Context, bundle contracts.SignalBundle) error {
	err := s.next.PutSignal(ctx, bundle)
	s.record("put_signal", err)
	return err
}

func (s *Instrumented) GetLatestSignal(ctx context.Context, symbol string) (contracts.SignalBundle, error) {
	b, err := s.next.GetLatestSignal(ctx, symbol)
	s.record("get_latest_signal", err)
	return b, err
}

func (s *Instrumented) GetSignalsForDate(ctx context.Context, date string) ([]contracts.SignalBundle, error) {
	b, err := s.next.GetSignalsForDate(ctx, date)
	s.record("get_signals_for_date", err)
	return b, err
}

func (s *Instrumented) PutSummary(ctx context.Context, summary contracts.SummaryReport) error {
	err := s.next.PutSummary(ctx, summary)
	s.record("put_summary", err)
	return err
}

func (s *Instrumented) GetSummary(ctx context.Context, id string) (contracts.SummaryReport, error) {
	r, err := s.next.GetSummary(ctx, id)
	s.record("get_summary", err)
	return r, err
}

func (s *Instrumented) Cleanup(ctx context.Context, signalDays, reportDays int) (contracts.CleanupResult, error) {
	r, err := s.next.Cleanup(ctx, signalDays, reportDays)
	s.record("cleanup", err)
	return r, err
}

func (s *Instrumented) HealthStatus(ctx context.Context) contracts.Health {
	return s.next.HealthStatus(ctx)
}
