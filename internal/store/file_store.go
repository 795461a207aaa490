package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/pkg/logger"
)

const (
	signalsDir   = "signals"
	reportsDir   = "reports"
	summariesDir = "summaries"

	probeFile = ".health_probe"

	// DefaultPartitionWarn is the partition count above which health degrades
	DefaultPartitionWarn = 120
)

// FileOptions configures a FileStore
type FileOptions struct {
	OpTimeout     time.Duration
	PartitionWarn int
	Now           func() time.Time // retention clock; nil = time.Now
}

// FileStore keeps signals and reports as JSON files partitioned by period
//
// Layout under root:
//
//	signals/YYYY-MM/<date>_<SYMBOL>.json
//	reports/YYYY-MM/DR_<date>.json
//	summaries/YYYY/<id>.json
type FileStore struct {
	root string
	opts FileOptions
	log  *logger.Logger

	mu sync.RWMutex
}

// NewFileStore creates the directory layout under root
func NewFileStore(root string, opts FileOptions, log *logger.Logger) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("file store root is empty")
	}
	if opts.PartitionWarn <= 0 {
		opts.PartitionWarn = DefaultPartitionWarn
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}

	for _, dir := range []string{signalsDir, reportsDir, summariesDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, unavailable("init", err)
		}
	}

	return &FileStore{
		root: root,
		opts: opts,
		log:  log.Component("file_store"),
	}, nil
}

// Root returns the data directory
func (s *FileStore) Root() string {
	return s.root
}

// ==============================================
// Daily reports
// ==============================================

// Put writes a daily report, replacing any report for the same date
func (s *FileStore) Put(ctx context.Context, report contracts.DailyReport) error {
	if _, err := contracts.ParseDate(report.Date); err != nil {
		return fmt.Errorf("put report: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return unavailable("put report", err)
	}
	return s.writeJSON(s.reportPath(report.Date), report)
}

// Get returns the daily report for date
func (s *FileStore) Get(ctx context.Context, date string) (contracts.DailyReport, error) {
	var report contracts.DailyReport
	if _, err := contracts.ParseDate(date); err != nil {
		return report, notFound("daily report", date)
	}

	ctx, cancel := withTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return report, unavailable("get report", err)
	}
	if err := s.readJSON(s.reportPath(date), &report); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, notFound("daily report", date)
		}
		return report, unavailable("get report", err)
	}
	return report, nil
}

// ListRange returns reports in [start, end] ascending; missing days are skipped
func (s *FileStore) ListRange(ctx context.Context, start, end time.Time) ([]contracts.DailyReport, error) {
	ctx, cancel := withTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]contracts.DailyReport, 0)
	for _, date := range dayRange(start, end) {
		if err := ctx.Err(); err != nil {
			return nil, unavailable("list reports", err)
		}

		var report contracts.DailyReport
		if err := s.readJSON(s.reportPath(date), &report); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, unavailable("list reports", err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// ==============================================
// Signal snapshots
// ==============================================

// PutSignal writes one instrument's snapshot keyed by symbol and date
func (s *FileStore) PutSignal(ctx context.Context, bundle contracts.SignalBundle) error {
	symbol := normalizeSymbol(bundle.Symbol)
	if symbol == "" {
		return fmt.Errorf("put signal: invalid symbol %q", bundle.Symbol)
	}

	ctx, cancel := withTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return unavailable("put signal", err)
	}
	bundle.Symbol = symbol
	return s.writeJSON(s.signalPath(bundle.Date(), symbol), bundle)
}

// GetLatestSignal returns the newest snapshot for symbol
func (s *FileStore) GetLatestSignal(ctx context.Context, symbol string) (contracts.SignalBundle, error) {
	var bundle contracts.SignalBundle
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return bundle, notFound("signal", symbol)
	}

	ctx, cancel := withTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	months, err := s.partitions(signalsDir)
	if err != nil {
		return bundle, unavailable("latest signal", err)
	}

	// 최신 파티션부터 탐색
	for i := len(months) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return bundle, unavailable("latest signal", err)
		}

		matches, err := filepath.Glob(filepath.Join(s.root, signalsDir, months[i], "????-??-??_"+symbol+".json"))
		if err != nil {
			return bundle, unavailable("latest signal", err)
		}
		if len(matches) == 0 {
			continue
		}
		sort.Strings(matches)

		if err := s.readJSON(matches[len(matches)-1], &bundle); err != nil {
			return bundle, unavailable("latest signal", err)
		}
		return bundle, nil
	}
	return bundle, notFound("signal", symbol)
}

// GetSignalsForDate returns every snapshot of date ordered by symbol
func (s *FileStore) GetSignalsForDate(ctx context.Context, date string) ([]contracts.SignalBundle, error) {
	if _, err := contracts.ParseDate(date); err != nil {
		return nil, fmt.Errorf("signals for date: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.root, signalsDir, monthPartition(date), date+"_*.json"))
	if err != nil {
		return nil, unavailable("signals for date", err)
	}
	// <date>_<SYMBOL>.json 이므로 파일명 정렬 = 심볼 정렬
	sort.Strings(matches)

	bundles := make([]contracts.SignalBundle, 0, len(matches))
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, unavailable("signals for date", err)
		}

		var b contracts.SignalBundle
		if err := s.readJSON(path, &b); err != nil {
			return nil, unavailable("signals for date", err)
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// ==============================================
// Summary reports
// ==============================================

// PutSummary writes a summary under the year of its end date
func (s *FileStore) PutSummary(ctx context.Context, summary contracts.SummaryReport) error {
	if !validID(summary.ReportID) {
		return fmt.Errorf("put summary: invalid id %q", summary.ReportID)
	}
	if _, err := contracts.ParseDate(summary.EndDate); err != nil {
		return fmt.Errorf("put summary: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return unavailable("put summary", err)
	}
	path := filepath.Join(s.root, summariesDir, yearPartition(summary.EndDate), summary.ReportID+".json")
	return s.writeJSON(path, summary)
}

// GetSummary looks a summary up by id across year partitions
func (s *FileStore) GetSummary(ctx context.Context, id string) (contracts.SummaryReport, error) {
	var summary contracts.SummaryReport
	if !validID(id) {
		return summary, notFound("summary", id)
	}

	ctx, cancel := withTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	years, err := s.partitions(summariesDir)
	if err != nil {
		return summary, unavailable("get summary", err)
	}

	for i := len(years) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return summary, unavailable("get summary", err)
		}

		err := s.readJSON(filepath.Join(s.root, summariesDir, years[i], id+".json"), &summary)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return summary, unavailable("get summary", err)
		}
		return summary, nil
	}
	return summary, notFound("summary", id)
}

// ==============================================
// Maintenance
// ==============================================

// Cleanup removes entries whose date key is older than the retention windows.
// Running it twice removes nothing the second time.
func (s *FileStore) Cleanup(ctx context.Context, signalDays, reportDays int) (contracts.CleanupResult, error) {
	var result contracts.CleanupResult
	if signalDays < 1 {
		return result, fmt.Errorf("cleanup: signal retention must be at least 1 day, got %d", signalDays)
	}
	reportDays = contracts.EffectiveReportDays(signalDays, reportDays)

	now := s.opts.Now()
	signalCutoff := cutoffDate(now, signalDays)
	reportCutoff := cutoffDate(now, reportDays)

	ctx, cancel := withTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	result.SignalsDeleted, err = s.prune(ctx, signalsDir, signalCutoff, dateFromSignalName)
	if err != nil {
		return result, unavailable("cleanup signals", err)
	}
	result.ReportsDeleted, err = s.prune(ctx, reportsDir, reportCutoff, dateFromReportName)
	if err != nil {
		return result, unavailable("cleanup reports", err)
	}
	result.SummariesDeleted, err = s.prune(ctx, summariesDir, reportCutoff, s.summaryEndDate)
	if err != nil {
		return result, unavailable("cleanup summaries", err)
	}

	s.log.WithFields(map[string]interface{}{
		"signal_cutoff":     signalCutoff,
		"report_cutoff":     reportCutoff,
		"signals_deleted":   result.SignalsDeleted,
		"reports_deleted":   result.ReportsDeleted,
		"summaries_deleted": result.SummariesDeleted,
	}).Info("Retention cleanup completed")

	return result, nil
}

// HealthStatus checks the layout and probes writability
func (s *FileStore) HealthStatus(ctx context.Context) contracts.Health {
	ctx, cancel := withTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, dir := range []string{signalsDir, reportsDir, summariesDir} {
		if err := ctx.Err(); err != nil {
			return contracts.Health{Status: contracts.HealthError, Detail: err.Error()}
		}
		parts, err := s.partitions(dir)
		if err != nil {
			return contracts.Health{Status: contracts.HealthError, Detail: fmt.Sprintf("%s: %v", dir, err)}
		}
		total += len(parts)
	}

	probe := filepath.Join(s.root, probeFile)
	if err := os.WriteFile(probe, []byte(time.Now().UTC().Format(time.RFC3339)), 0o644); err != nil {
		return contracts.Health{Status: contracts.HealthError, Detail: fmt.Sprintf("not writable: %v", err)}
	}
	_ = os.Remove(probe)

	if total > s.opts.PartitionWarn {
		return contracts.Health{
			Status: contracts.HealthDegraded,
			Detail: fmt.Sprintf("%d partitions exceed warning level %d; run cleanup", total, s.opts.PartitionWarn),
		}
	}
	return contracts.Health{Status: contracts.HealthHealthy, Detail: fmt.Sprintf("file store at %s (%d partitions)", s.root, total)}
}

// ==============================================
// Helpers
// ==============================================

func (s *FileStore) reportPath(date string) string {
	return filepath.Join(s.root, reportsDir, monthPartition(date), contracts.DailyReportID(date)+".json")
}

func (s *FileStore) signalPath(date, symbol string) string {
	return filepath.Join(s.root, signalsDir, monthPartition(date), date+"_"+symbol+".json")
}

// partitions lists the partition directories under kind, ascending
func (s *FileStore) partitions(kind string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, kind))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// prune deletes files under kind whose date is before cutoff and drops
// partitions left empty
func (s *FileStore) prune(ctx context.Context, kind, cutoff string, dateOf func(path string) string) (int, error) {
	parts, err := s.partitions(kind)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, part := range parts {
		dir := filepath.Join(s.root, kind, part)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return deleted, err
		}

		remaining := 0
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return deleted, err
			}
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				remaining++
				continue
			}

			path := filepath.Join(dir, e.Name())
			date := dateOf(path)
			if date == "" || date >= cutoff {
				remaining++
				continue
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return deleted, err
			}
			deleted++
		}

		if remaining == 0 {
			if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
				s.log.WithError(err).WithField("partition", dir).Warn("Failed to remove empty partition")
			}
		}
	}
	return deleted, nil
}

// summaryEndDate reads the end date of a persisted summary
func (s *FileStore) summaryEndDate(path string) string {
	var summary contracts.SummaryReport
	if err := s.readJSON(path, &summary); err != nil {
		s.log.WithError(err).WithField("path", path).Warn("Skipping unreadable summary")
		return ""
	}
	return summary.EndDate
}

// writeJSON writes v through a temp file and a rename
func (s *FileStore) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return unavailable("mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return unavailable("create temp", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return unavailable("write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return unavailable("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return unavailable("close", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return unavailable("rename", err)
	}
	return nil
}

func (s *FileStore) readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// dateFromSignalName extracts the date of "<date>_<SYMBOL>.json"
func dateFromSignalName(path string) string {
	name := filepath.Base(path)
	if len(name) < len(contracts.DateLayout) {
		return ""
	}
	date := name[:len(contracts.DateLayout)]
	if _, err := contracts.ParseDate(date); err != nil {
		return ""
	}
	return date
}

// dateFromReportName extracts the date of "DR_<date>.json"
func dateFromReportName(path string) string {
	name := strings.TrimPrefix(filepath.Base(path), "DR_")
	return dateFromSignalName(name)
}

func normalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !validID(symbol) {
		return ""
	}
	return symbol
}

// validID rejects keys that would escape their partition directory
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\*?[`) && id != "." && id != ".."
}
