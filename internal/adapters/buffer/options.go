package buffer

import (
	"time"

	"github.com/okian/finbrief/pkg/logger"
)

// Option applies a configuration option to the Buffer.
type Option func(*Buffer)

// WithBatchSize sets the size threshold that triggers a flush.
func WithBatchSize(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithFlushInterval sets the elapsed-time flush trigger.
func WithFlushInterval(d time.Duration) Option {
	return func(b *Buffer) {
		if d > 0 {
			b.flushInterval = d
		}
	}
}

// WithClock overrides the time source; used by tests.
func WithClock(clock func() time.Time) Option {
	return func(b *Buffer) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the buffer.
func WithLogger(log logger.Logger) Option {
	return func(b *Buffer) {
		if log != nil {
			b.log = log
		}
	}
}
