package scheduler

import (
	"context"
	"errors"
	"time"
)

// Job is one unit of scheduled work
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run executes one attempt; the scheduler owns retries and timeouts
	Run(ctx context.Context) error

	// Schedule returns a 6-field cron spec (seconds first),
	// e.g. "0 30 16 * * MON-FRI", or a descriptor such as "@daily"
	Schedule() string
}

// permanentError marks a failure that retrying cannot fix
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the scheduler does not retry it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// JobResult is the outcome of one scheduled execution, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// JobStats summarizes the retained history of one job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}

// historyLimit is the number of results retained per job
const historyLimit = 100

// history is a bounded, oldest-first log of results (not synchronized)
type history struct {
	results []JobResult
	limit   int
}

func newHistory(limit int) *history {
	return &history{limit: limit}
}

func (h *history) add(r JobResult) {
	h.results = append(h.results, r)
	if over := len(h.results) - h.limit; over > 0 {
		// 오래된 결과부터 버림
		h.results = append(h.results[:0], h.results[over:]...)
	}
}

// snapshot returns a copy safe to hand out
func (h *history) snapshot() []JobResult {
	out := make([]JobResult, len(h.results))
	copy(out, h.results)
	return out
}

func (h *history) stats(name, schedule string) JobStats {
	st := JobStats{JobName: name, Schedule: schedule, TotalRuns: len(h.results)}

	for i := range h.results {
		r := h.results[i]
		start := r.StartTime
		st.LastRun = &start
		if r.Success {
			st.SuccessCount++
			st.LastSuccess = &start
		} else {
			st.FailureCount++
			st.LastFailure = &start
		}
	}
	if st.TotalRuns > 0 {
		st.SuccessRate = float64(st.SuccessCount) / float64(st.TotalRuns)
	}
	return st
}
