// Package worker provides the bounded task pool update handlers dispatch
// blocking work to, so the dispatcher goroutine never stalls on store or
// model I/O.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/finbrief/pkg/logger"
	"github.com/okian/finbrief/pkg/metrics"
)

// Default pool configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	defaultQueueCapacity    = 256
	poolShutdownTimeout     = 30 * time.Second
)

// Task is one unit of blocking work. The context passed in is the pool's
// run context; tasks honor its cancellation.
type Task func(ctx context.Context)

// Pool runs a fixed number of workers draining a bounded task channel.
// Submit never blocks: a saturated pool rejects instead of stalling the
// caller.
type Pool struct {
	workerCount int
	tasks       chan Task

	mu      sync.Mutex
	stopped bool

	wg     sync.WaitGroup
	done   chan struct{}
	logger logger.Logger
}

// NewPool creates a pool with workerCount workers. A count below one
// defaults to a multiple of the CPU count.
func NewPool(workerCount int, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workerCount: workerCount,
		tasks:       make(chan Task, defaultQueueCapacity),
		done:        make(chan struct{}),
		logger:      logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches the workers. The pool runs until Shutdown or ctx
// cancellation.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
}

// Submit offers a task to the pool without blocking. It reports false
// when the pool is stopped or the task channel is full; the caller
// decides whether dropping the work matters.
func (p *Pool) Submit(task Task) bool {
	if task == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		metrics.RecordTaskRejected()
		return false
	}
	select {
	case p.tasks <- task:
		metrics.RecordTaskSubmitted()
		return true
	default:
		metrics.RecordTaskRejected()
		return false
	}
}

// Backlog returns the number of tasks waiting for a worker.
func (p *Pool) Backlog() int {
	return len(p.tasks)
}

// Shutdown stops accepting tasks, lets the workers drain the backlog,
// and waits for them to exit. Waiting is bounded by ctx and an internal
// timeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	select {
	case <-p.done:
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "pool shutdown timed out", logger.Int("backlog", len(p.tasks)))
		return fmt.Errorf("pool shutdown timed out: %w", shutdownCtx.Err())
	}
}

// run is one worker loop. It drains the task channel until it closes;
// cancellation of ctx is left to the tasks themselves so a graceful
// shutdown can still flush queued work.
func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for task := range p.tasks {
		p.execute(ctx, id, task)
	}
}

// execute runs one task, recovering panics so a bad task cannot take a
// worker down.
func (p *Pool) execute(ctx context.Context, id int, task Task) {
	start := time.Now()
	defer func() {
		metrics.RecordTaskLatency(float64(time.Since(start).Milliseconds()))
		if r := recover(); r != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "panic")
			p.logger.Error(ctx, "task panicked",
				logger.Int("worker_id", id),
				logger.Any("panic", r),
			)
		}
	}()

	task(ctx)
}
