package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/tradepulse/internal/contracts"
)

// monthPartition returns the YYYY-MM partition of a date key
func monthPartition(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// yearPartition returns the YYYY partition of a date key
func yearPartition(date string) string {
	if len(date) < 4 {
		return date
	}
	return date[:4]
}

// dayRange lists every calendar date in [start, end] ascending
func dayRange(start, end time.Time) []string {
	s := truncateDay(start)
	e := truncateDay(end)
	var days []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		days = append(days, contracts.FormatDate(d))
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// cutoffDate is the first date that survives a retention window of days
func cutoffDate(now time.Time, days int) string {
	return contracts.FormatDate(truncateDay(now).AddDate(0, 0, -days))
}

// withTimeout bounds a store operation; d <= 0 leaves ctx untouched
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// unavailable marks err as a storage failure unless it is already classified
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, contracts.ErrNotFound) || errors.Is(err, contracts.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", contracts.ErrStoreUnavailable, op, err)
}

func notFound(kind, key string) error {
	return fmt.Errorf("%s %s: %w", kind, key, contracts.ErrNotFound)
}
