package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/taskpilot/backend/domain"
)

// Job is one scheduled unit of work. The context carries the per-run timeout.
type Job func(ctx context.Context) error

const defaultJobTimeout = 5 * time.Minute

// Scheduler names and runs the application's background jobs on cron specs.
// Named jobs can also be triggered directly, which keeps scheduled behavior
// testable without waiting for wall-clock time.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *zap.Logger

	mu   sync.RWMutex
	jobs map[string]Job
}

// New builds a scheduler whose cron specs are evaluated in the given
// location, so "0 7 * * *" means 07:00 local digest time.
func New(location *time.Location, logger *zap.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(location)),
		timeout: defaultJobTimeout,
		logger:  logger,
		jobs:    make(map[string]Job),
	}
}

// Add registers a named job on a cron spec ("@every 5s", "0 7 * * *").
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return domain.NewError(domain.ErrCodeConflict, fmt.Sprintf("job %q already registered", name))
	}

	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.run(ctx, name, job)
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", name, err)
	}

	s.jobs[name] = job
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// RunNow executes one cycle of a named job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return domain.NewError(domain.ErrCodeNotFound, fmt.Sprintf("no job named %q", name))
	}
	return s.run(ctx, name, job)
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) error {
	started := time.Now()
	err := job(ctx)
	if err != nil {
		s.logger.Error("job failed",
			zap.String("job", name),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err),
		)
		return err
	}
	s.logger.Debug("job completed",
		zap.String("job", name),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// Start launches the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop halts scheduling and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("scheduler stopped")
}
