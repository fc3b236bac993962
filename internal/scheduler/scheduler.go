// Package scheduler runs the periodic jobs: the daily analysis batch and
// the event-buffer flush tick.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/okian/finbrief/pkg/logger"
)

// Job is a unit of scheduled work. The context is the scheduler's run
// context and is canceled on Stop.
type Job func(ctx context.Context)

// Scheduler wraps a cron runner with named jobs and a run context.
type Scheduler struct {
	mu sync.Mutex

	cron    *cron.Cron
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs an empty scheduler. Add jobs before Start.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		cron: cron.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("scheduler")
	}
	return s
}

// Add registers a named job under a cron spec (standard five-field specs
// plus the @every shorthand). Jobs added after Start are picked up live.
func (s *Scheduler) Add(spec, name string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.cron.AddFunc(spec, func() {
		s.runJob(name, job)
	}); err != nil {
		return fmt.Errorf("schedule %q for job %s: %w", spec, name, err)
	}
	s.logger.Info(context.Background(), "job scheduled",
		logger.String("job", name),
		logger.String("spec", spec),
	)
	return nil
}

// Start begins firing jobs. Idempotent.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.runCtx = runCtx
	s.cron.Start()
	s.running = true
	s.logger.Info(ctx, "scheduler started")
}

// Stop cancels the run context and waits for in-flight jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info(context.Background(), "scheduler stopped")
}

// runJob executes one firing with panic isolation.
func (s *Scheduler) runJob(name string, job Job) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "scheduled job panicked",
				logger.String("job", name),
				logger.Any("panic", r),
			)
		}
	}()
	job(ctx)
}
