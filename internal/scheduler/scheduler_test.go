package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tradepulse/pkg/logger"
)

// countingJob fails the first failures calls
type countingJob struct {
	name     string
	failures int32
	err      error
	calls    int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return "0 0 3 * * SUN" }

func (j *countingJob) Run(ctx context.Context) error {
	n := atomic.AddInt32(&j.calls, 1)
	if n <= j.failures {
		return j.err
	}
	return nil
}

func newTestScheduler() *Scheduler {
	s := New(logger.NewNop())
	s.SetRetry(2, time.Millisecond)
	return s
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&countingJob{name: "b"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a"}))
	assert.Error(t, s.AddJob(&countingJob{name: "a"}))

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	_, ok := s.NextRun("a")
	assert.True(t, ok)
}

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := newTestScheduler()
	err := s.AddJob(&badScheduleJob{})
	assert.Error(t, err)
	assert.Empty(t, s.GetAllJobs())
}

type badScheduleJob struct{}

func (badScheduleJob) Name() string                  { return "bad" }
func (badScheduleJob) Schedule() string              { return "every tuesday" }
func (badScheduleJob) Run(ctx context.Context) error { return nil }

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "a"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())

	_, ok := s.NextRun("a")
	assert.False(t, ok)
}

func TestRunJobNow_Retries(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		err          error
		wantSuccess  bool
		wantAttempts int
	}{
		{"first try", 0, nil, true, 1},
		{"succeeds on retry", 2, errors.New("transient"), true, 3},
		{"exhausts retries", 10, errors.New("down"), false, 3},
		{"permanent stops", 10, Permanent(errors.New("bad range")), false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler()
			job := &countingJob{name: "job", failures: tt.failures, err: tt.err}
			require.NoError(t, s.AddJob(job))

			result, err := s.RunJobNow(context.Background(), "job")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantAttempts, result.Attempts)
			assert.Equal(t, int32(tt.wantAttempts), atomic.LoadInt32(&job.calls))
			if !tt.wantSuccess {
				assert.NotEmpty(t, result.Error)
			}
		})
	}
}

func TestRunJobNow_Unknown(t *testing.T) {
	_, err := newTestScheduler().RunJobNow(context.Background(), "nope")
	assert.Error(t, err)
}

func TestRunJobNow_CancelStopsRetryWait(t *testing.T) {
	s := New(logger.NewNop())
	s.SetRetry(3, time.Hour)
	require.NoError(t, s.AddJob(&countingJob{name: "job", failures: 10, err: errors.New("down")}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := s.RunJobNow(ctx, "job")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStats(t *testing.T) {
	s := newTestScheduler()
	s.SetRetry(0, 0)
	require.NoError(t, s.AddJob(&countingJob{name: "job", failures: 1, err: errors.New("down")}))

	_, _ = s.RunJobNow(context.Background(), "job") // fails
	_, _ = s.RunJobNow(context.Background(), "job") // succeeds

	stats := s.GetJobStats()["job"]
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.Equal(t, 1, stats.FailureCount)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	require.NotNil(t, stats.LastSuccess)
	require.NotNil(t, stats.LastFailure)
	assert.False(t, stats.LastSuccess.Before(*stats.LastFailure))

	results, err := s.GetJobHistory("job")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Equal(t, "down", results[0].Error)
	assert.True(t, results[1].Success)

	// 반환값은 복사본
	results[0].Success = true
	again, _ := s.GetJobHistory("job")
	assert.False(t, again[0].Success)
}

func TestHistory_KeepsLastHundred(t *testing.T) {
	h := newHistory(historyLimit)
	for i := 0; i < 150; i++ {
		h.add(JobResult{Attempts: i, Success: i%2 == 0})
	}

	results := h.snapshot()
	assert.Len(t, results, historyLimit)
	assert.Equal(t, 50, results[0].Attempts)
	assert.Equal(t, 149, results[len(results)-1].Attempts)

	st := h.stats("job", "@daily")
	assert.Equal(t, historyLimit, st.TotalRuns)
	assert.InDelta(t, 0.5, st.SuccessRate, 1e-9)
}

func TestHistory_EmptyStats(t *testing.T) {
	st := newHistory(historyLimit).stats("job", "@daily")
	assert.Zero(t, st.TotalRuns)
	assert.Zero(t, st.SuccessRate)
	assert.Nil(t, st.LastRun)
}
