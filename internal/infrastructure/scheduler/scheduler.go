// Package scheduler runs the evaluation engine's periodic jobs: the
// week-rollover snapshot refresh and the optional roster sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
	"github.com/halaqa-hub/evaluation-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the scheduler is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next time the job should run strictly after t.
	Next(t time.Time) time.Time

	String() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Manual      bool
	Err         error
}

// Success reports whether the run finished without error.
func (r JobResult) Success() bool { return r.Err == nil }

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrJobRunning              = errors.New("job is already running")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler manages and executes scheduled jobs. A job never overlaps with
// itself: a due tick is skipped while the previous run is still going.
type Scheduler struct {
	mu sync.RWMutex

	logger       *slog.Logger
	clock        shared.Clock
	tick         time.Duration
	historyLimit int

	jobs    map[string]*scheduledJob
	history []JobResult

	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
}

type scheduledJob struct {
	job       Job
	schedule  Schedule
	nextRun   time.Time
	lastRun   time.Time
	inFlight  bool
	runCount  int64
	failCount int64
}

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *slog.Logger

	// Clock drives due-time checks (system clock in UTC when nil).
	Clock shared.Clock

	// TickInterval is how often due jobs are checked (default 1s).
	TickInterval time.Duration

	// MaxHistorySize is the maximum number of job results to keep (default 100).
	MaxHistorySize int
}

// New creates a new Scheduler with the given configuration.
func New(config Config) *Scheduler {
	if config.Clock == nil {
		config.Clock = shared.SystemClock(time.UTC)
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Second
	}
	if config.MaxHistorySize <= 0 {
		config.MaxHistorySize = 100
	}

	return &Scheduler{
		logger:       logger.OrDefault(config.Logger).With(logger.Component("scheduler")),
		clock:        config.Clock,
		tick:         config.TickInterval,
		historyLimit: config.MaxHistorySize,
		jobs:         make(map[string]*scheduledJob),
	}
}

// Register adds a job to the scheduler with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{
		job:      job,
		schedule: schedule,
		nextRun:  schedule.Next(s.clock.Now()),
	}
	s.jobs[name] = sj

	s.logger.Info("job registered",
		slog.String("job", name),
		slog.String("schedule", schedule.String()),
		slog.Time("next_run", sj.nextRun),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.startedAt = s.clock.Now()

	s.logger.Info("scheduler started", slog.Int("jobs_count", len(s.jobs)))

	s.wg.Add(1)
	go s.runLoop(runCtx)
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info("scheduler stopped", slog.String("uptime", s.clock.Now().Sub(s.startedAt).String()))
	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// dispatchDue starts every job whose next run is not after now.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sj := range s.jobs {
		if sj.nextRun.IsZero() || sj.nextRun.After(now) {
			continue
		}
		if sj.inFlight {
			s.logger.Warn("skipping overlapping run", slog.String("job", sj.job.Name()))
			sj.nextRun = sj.schedule.Next(now)
			continue
		}

		sj.inFlight = true
		sj.nextRun = sj.schedule.Next(now)
		s.wg.Add(1)
		go func(sj *scheduledJob) {
			defer s.wg.Done()
			s.execute(ctx, sj, false)
		}(sj)
	}
}

// execute runs sj and records the result. The caller has set sj.inFlight.
func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob, manual bool) JobResult {
	name := sj.job.Name()
	started := s.clock.Now()
	s.logger.Info("job started", slog.String("job", name), slog.Bool("manual", manual))

	err := sj.job.Run(ctx)
	completed := s.clock.Now()

	result := JobResult{
		JobName:     name,
		StartedAt:   started,
		CompletedAt: completed,
		Duration:    completed.Sub(started),
		Manual:      manual,
		Err:         err,
	}

	s.mu.Lock()
	sj.inFlight = false
	sj.lastRun = started
	sj.runCount++
	if err != nil {
		sj.failCount++
	}
	s.history = append(s.history, result)
	if len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", slog.String("job", name), logger.Latency(result.Duration), slog.Any("error", err))
	} else {
		s.logger.Info("job completed", slog.String("job", name), logger.Latency(result.Duration))
	}
	return result
}

// RunNow executes a job immediately, ignoring its schedule.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (JobResult, error) {
	s.mu.Lock()
	sj, exists := s.jobs[jobName]
	if !exists {
		s.mu.Unlock()
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	if sj.inFlight {
		s.mu.Unlock()
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobRunning, jobName)
	}
	sj.inFlight = true
	s.mu.Unlock()

	result := s.execute(ctx, sj, true)
	return result, result.Err
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & INFO
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo contains information about a registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
}

// ListJobs returns information about all registered jobs, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: sj.job.Description(),
			Schedule:    sj.schedule.String(),
			LastRun:     sj.lastRun,
			NextRun:     sj.nextRun,
			RunCount:    sj.runCount,
			FailCount:   sj.failCount,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// History returns up to limit of the most recent results, oldest first.
func (s *Scheduler) History(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]JobResult, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}
