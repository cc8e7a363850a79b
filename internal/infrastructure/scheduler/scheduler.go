// Package scheduler runs the periodic maintenance jobs: expired session
// cleanup and scheduled menu sync.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobFunc is the body of a scheduled job
type JobFunc func(ctx context.Context) error

// JobRun is the last known execution state of a job
type JobRun struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
}

// Config holds scheduler configuration
type Config struct {
	// JobTimeout bounds a single job run
	JobTimeout time.Duration
	// Location is the time zone schedules are evaluated in; nil means UTC
	Location *time.Location
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		JobTimeout: 30 * time.Minute,
		Location:   time.UTC,
	}
}

type job struct {
	name     string
	schedule string
	fn       JobFunc
	entryID  cron.EntryID
}

// Scheduler runs named jobs on cron schedules. A job that is still running
// when its next tick fires is skipped.
type Scheduler struct {
	config Config
	cron   *cron.Cron
	parser cron.Parser
	logger *zap.Logger

	mu        sync.Mutex
	jobs      map[string]*job
	runs      map[string]*JobRun
	baseCtx   context.Context
	cancel    context.CancelFunc
	isRunning bool
}

// New creates a new scheduler
func New(config Config, logger *zap.Logger) *Scheduler {
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	return &Scheduler{
		config: config,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(config.Location),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger.Sugar()})),
		),
		parser:  parser,
		logger:  logger,
		jobs:    make(map[string]*job),
		runs:    make(map[string]*JobRun),
		baseCtx: context.Background(),
	}
}

// Register adds a job under a five-field cron expression or a descriptor
// such as "@every 1h".
func (s *Scheduler) Register(name, schedule string, fn JobFunc) error {
	if _, err := s.parser.Parse(schedule); err != nil {
		return fmt.Errorf("%w: job %s schedule %q: %v", ErrInvalidConfig, name, schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}

	j := &job{name: name, schedule: schedule, fn: fn}
	id, err := s.cron.AddFunc(schedule, func() { s.execute(j) })
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	j.entryID = id
	s.jobs[name] = j
	s.runs[name] = &JobRun{Name: name, Schedule: schedule, Status: JobStatusPending}

	s.logger.Info("Job registered", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.isRunning = true
	s.cron.Start()

	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
	return nil
}

// Stop stops scheduling new runs, cancels running ones and waits for them
// until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	if cancel != nil {
		cancel()
	}

	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes a registered job synchronously
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(j)
}

// Runs returns the last run state of every job
func (s *Scheduler) Runs() []JobRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make([]JobRun, 0, len(s.runs))
	for name, run := range s.runs {
		r := *run
		if j, ok := s.jobs[name]; ok && s.isRunning {
			if next := s.cron.Entry(j.entryID).Next; !next.IsZero() {
				r.NextRunAt = &next
			}
		}
		runs = append(runs, r)
	}
	return runs
}

func (s *Scheduler) execute(j *job) (err error) {
	s.mu.Lock()
	base := s.baseCtx
	run := s.runs[j.name]
	started := time.Now()
	run.Status = JobStatusRunning
	run.StartedAt = &started
	run.Error = ""
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(base, s.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
		s.finish(j.name, started, err)
	}()

	return j.fn(ctx)
}

func (s *Scheduler) finish(name string, started time.Time, err error) {
	completed := time.Now()

	s.mu.Lock()
	run := s.runs[name]
	run.CompletedAt = &completed
	if err != nil {
		run.Status = JobStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = JobStatusSuccess
	}
	s.mu.Unlock()

	fields := []zap.Field{
		zap.String("job", name),
		zap.Duration("duration", completed.Sub(started)),
	}
	if err != nil {
		s.logger.Error("Job failed", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Info("Job completed", fields...)
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
