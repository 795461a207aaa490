package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/tradepulse/pkg/logger"
	"github.com/wonny/tradepulse/pkg/metrics"
)

// Scheduler runs registered jobs on their cron specs with retry and timeout
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	metrics *metrics.Recorder

	mu      sync.RWMutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*history

	// Stop이 취소하는 기본 컨텍스트 (실행 중 작업과 재시도 대기 중단)
	ctx    context.Context
	cancel context.CancelFunc

	maxRetries int
	retryDelay time.Duration
	jobTimeout time.Duration
}

// New creates a scheduler: 3 retries one minute apart, 30 minute attempt bound
func New(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		logger:     log.Component("scheduler"),
		jobs:       make(map[string]Job),
		entries:    make(map[string]cron.EntryID),
		history:    make(map[string]*history),
		ctx:        ctx,
		cancel:     cancel,
		maxRetries: 3,
		retryDelay: 1 * time.Minute,
		jobTimeout: 30 * time.Minute,
	}
}

// SetMetrics reports every finished job to rec (nil disables)
func (s *Scheduler) SetMetrics(rec *metrics.Recorder) {
	s.metrics = rec
}

// SetRetry overrides the retry policy; maxRetries counts attempts after the first
func (s *Scheduler) SetRetry(maxRetries int, delay time.Duration) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	s.maxRetries = maxRetries
	s.retryDelay = delay
}

// SetJobTimeout bounds every attempt; 0 disables the bound
func (s *Scheduler) SetJobTimeout(d time.Duration) {
	s.jobTimeout = d
}

// AddJob registers job under its cron spec; names must be unique
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.runJob(s.ctx, job)
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}

	s.jobs[name] = job
	s.entries[name] = id
	s.history[name] = newHistory(historyLimit)

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob unschedules a job and drops its history
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(id)
	delete(s.jobs, name)
	delete(s.entries, name)
	delete(s.history, name)
	s.logger.WithField("job", name).Info("Job removed from scheduler")

	return nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// NextRun returns the next activation of a job (zero time until Start)
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.RLock()
	id, exists := s.entries[name]
	s.mu.RUnlock()

	if !exists {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// RunJob runs a job immediately in the background
func (s *Scheduler) RunJob(name string) error {
	job, err := s.job(name)
	if err != nil {
		return err
	}

	go s.runJob(s.ctx, job)
	return nil
}

// RunJobNow runs a job synchronously under the retry policy
func (s *Scheduler) RunJobNow(ctx context.Context, name string) (JobResult, error) {
	job, err := s.job(name)
	if err != nil {
		return JobResult{}, err
	}
	return s.runJob(ctx, job), nil
}

func (s *Scheduler) job(name string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return job, nil
}

// runJob executes job until it succeeds, fails permanently, runs out of
// retries or ctx is done, then records the result.
func (s *Scheduler) runJob(ctx context.Context, job Job) JobResult {
	name := job.Name()
	log := s.logger.WithField("job", name)
	result := JobResult{JobName: name, StartTime: time.Now()}

	log.Info("Job started")

	var lastErr error
	for {
		result.Attempts++
		lastErr = s.attempt(ctx, job)
		if lastErr == nil {
			result.Success = true
			break
		}
		if IsPermanent(lastErr) || ctx.Err() != nil || result.Attempts > s.maxRetries {
			break
		}

		log.WithError(lastErr).WithField("attempt", result.Attempts).Warn("Job attempt failed, retrying")

		// 재시도 대기 (Stop 시 즉시 중단)
		timer := time.NewTimer(s.retryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	if !result.Success {
		result.Error = lastErr.Error()
	}

	s.mu.Lock()
	if h, ok := s.history[name]; ok {
		h.add(result)
	}
	s.mu.Unlock()
	s.metrics.RecordJobRun(name, result.Success, result.Duration)

	log = log.WithFields(map[string]interface{}{
		"attempts": result.Attempts,
		"duration": result.Duration.String(),
	})
	if result.Success {
		log.Info("Job completed successfully")
	} else {
		log.WithField("error", result.Error).Error("Job failed")
	}

	return result
}

func (s *Scheduler) attempt(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}
	return job.Run(ctx)
}

// GetJobHistory returns a copy of the retained results, oldest first
func (s *Scheduler) GetJobHistory(name string) ([]JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.history[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return h.snapshot(), nil
}

// GetAllJobs returns all registered job names, sorted
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// GetJobStats summarizes the history of every registered job
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.jobs))
	for name, job := range s.jobs {
		stats[name] = s.history[name].stats(name, job.Schedule())
	}
	return stats
}
