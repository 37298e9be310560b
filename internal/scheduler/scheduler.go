// Package scheduler runs named maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Job is a named task on a cron schedule. Run receives a background context;
// jobs are expected to bound their own work.
type Job struct {
	Name     string
	CronExpr string
	Run      func(ctx context.Context) error
}

// CronEngine abstracts the cron scheduler for testability.
// The real implementation wraps robfig/cron/v3.
type CronEngine interface {
	AddFunc(spec string, cmd func()) (int, error)
	Remove(id int)
	Start()
	Stop()
}

// Option is a functional option for configuring a Scheduler.
type Option func(*Scheduler)

// WithLogger sets a structured logger for the Scheduler. If l is nil it is
// ignored and the default slog logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Sentinel errors for validation.
var (
	ErrEmptyJobName = errors.New("scheduler: job name must not be empty")
	ErrEmptyCron    = errors.New("scheduler: cron expression must not be empty")
	ErrNilJobFunc   = errors.New("scheduler: job func must not be nil")
	ErrDuplicateJob = errors.New("scheduler: job with this name already exists")
)

// jobEntry tracks a registered job and its cron entry ID.
type jobEntry struct {
	job     Job
	entryID int
}

// Scheduler manages cron-based maintenance jobs. Each job carries its own
// run function; the scheduler logs firings and failures.
type Scheduler struct {
	engine CronEngine
	logger *slog.Logger
	mu     sync.RWMutex
	jobs   map[string]jobEntry
}

// NewScheduler creates a new Scheduler. The engine must not be nil.
func NewScheduler(engine CronEngine, opts ...Option) *Scheduler {
	if engine == nil {
		panic("scheduler: engine must not be nil")
	}
	s := &Scheduler{
		engine: engine,
		jobs:   make(map[string]jobEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// log returns the Scheduler's logger, falling back to the default slog logger.
func (s *Scheduler) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// AddJob registers a new scheduled job. Returns an error if the job fails
// validation, a job with the same name already exists, or the cron engine
// rejects the expression.
func (s *Scheduler) AddJob(job Job) error {
	if job.Name == "" {
		return ErrEmptyJobName
	}
	if job.CronExpr == "" {
		return ErrEmptyCron
	}
	if job.Run == nil {
		return ErrNilJobFunc
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}

	// Capture job for the closure.
	capturedJob := job
	entryID, err := s.engine.AddFunc(job.CronExpr, func() {
		s.log().Info("job fired",
			"job", capturedJob.Name,
			"cron_expr", capturedJob.CronExpr,
		)
		if runErr := capturedJob.Run(context.Background()); runErr != nil {
			s.log().Warn("job failed",
				"job", capturedJob.Name,
				"error", runErr,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: failed to register cron job %q: %w", job.Name, err)
	}

	s.jobs[job.Name] = jobEntry{job: job, entryID: entryID}
	s.log().Info("job registered",
		"job", job.Name,
		"cron_expr", job.CronExpr,
	)
	return nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.engine.Start()
}

// Stop halts the cron scheduler.
func (s *Scheduler) Stop() {
	s.engine.Stop()
}

// RemoveJob unregisters a scheduled job by name. Returns an error if the
// name is empty or the job does not exist.
func (s *Scheduler) RemoveJob(name string) error {
	if name == "" {
		return ErrEmptyJobName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("scheduler: job %q not found", name)
	}

	s.engine.Remove(entry.entryID)
	delete(s.jobs, name)
	s.log().Info("job removed", "job", name)
	return nil
}

// ListJobs returns a copy of all registered jobs. The returned slice is
// never nil (empty slice when no jobs are registered).
func (s *Scheduler) ListJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, entry := range s.jobs {
		jobs = append(jobs, entry.job)
	}
	return jobs
}

// GetJob returns the job with the given name, or false if not found.
func (s *Scheduler) GetJob(name string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.jobs[name]
	if !ok {
		return Job{}, false
	}
	return entry.job, true
}
