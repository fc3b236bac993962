// Package worker provides the bounded task pool update handlers dispatch
// blocking work to.
package worker

import (
	"github.com/okian/finbrief/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithQueueCapacity sets how many tasks may wait for a worker before
// Submit starts rejecting.
func WithQueueCapacity(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.tasks = make(chan Task, n)
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(log logger.Logger) Option {
	return func(p *Pool) {
		if log != nil {
			p.logger = log
		}
	}
}
