// Package buffer collects interaction events in memory and flushes them to
// the persistence gateway in batches.
//
// Many small chat interactions become few durable writes: a flush happens
// when the buffer reaches the batch size, when the flush interval has
// elapsed since the last successful flush, or on demand (force). The live
// buffer is detached and reset under the lock before any I/O, so events
// appended during a slow write land in the next batch instead of being
// lost or written twice.
package buffer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/finbrief/internal/domain/model"
	"github.com/okian/finbrief/pkg/logger"
	"github.com/okian/finbrief/pkg/metrics"
)

// Default flush-trigger configuration.
const (
	defaultBatchSize     = 10
	defaultFlushInterval = 5 * time.Minute
)

// Sink receives detached batches. Satisfied by store.Gateway.
type Sink interface {
	InsertEvents(ctx context.Context, events []model.BotEvent) (int, error)
}

// Buffer is a mutex-guarded append buffer with a size-or-time flush
// trigger. Safe for concurrent use by any number of handlers.
type Buffer struct {
	mu        sync.Mutex
	events    []model.BotEvent
	lastFlush time.Time

	batchSize     int
	flushInterval time.Duration
	sink          Sink
	clock         func() time.Time
	log           logger.Logger
}

// New creates a buffer flushing into sink. lastFlush starts at
// construction time so the interval trigger is well defined before the
// first write.
func New(sink Sink, opts ...Option) *Buffer {
	b := &Buffer{
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		sink:          sink,
		clock:         time.Now,
		log:           logger.Get().Named("buffer"),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.lastFlush = b.clock()
	return b
}

// Add appends one event to the live buffer. Crossing the batch threshold
// synchronously attempts a flush, so the live length is always below the
// threshold when Add returns.
func (b *Buffer) Add(ctx context.Context, ev model.BotEvent) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	size := len(b.events)
	b.mu.Unlock()

	metrics.UpdateBufferSize(size)
	b.log.Debug(ctx, "event buffered",
		logger.String("event_type", ev.EventType),
		logger.Int("size", size),
	)

	if size >= b.batchSize {
		b.Flush(ctx, false)
	}
}

// Flush writes the buffered events to the sink if any trigger holds:
// force, size threshold, or flush interval elapsed since the last
// successful flush. It returns the number of rows the sink reported newly
// written. A failed write drops the detached batch; the store has rolled
// it back and the buffer does not re-queue (see Len for what remains).
func (b *Buffer) Flush(ctx context.Context, force bool) int {
	b.mu.Lock()
	if len(b.events) == 0 {
		b.mu.Unlock()
		return 0
	}
	now := b.clock()
	if !force && len(b.events) < b.batchSize && now.Sub(b.lastFlush) < b.flushInterval {
		b.mu.Unlock()
		return 0
	}
	// Detach before I/O: concurrent Adds go to the fresh slice.
	batch := b.events
	b.events = nil
	b.mu.Unlock()

	metrics.UpdateBufferSize(0)
	batchID := uuid.NewString()

	inserted, err := b.sink.InsertEvents(ctx, batch)
	if err != nil {
		metrics.RecordBufferFlushError()
		metrics.AddEventsDropped(len(batch))
		b.log.Error(ctx, "event batch write failed; batch dropped",
			logger.String("batch_id", batchID),
			logger.Int("batch_size", len(batch)),
			logger.Error(err),
		)
		return 0
	}

	b.mu.Lock()
	b.lastFlush = b.clock()
	b.mu.Unlock()

	metrics.RecordBufferFlush(len(batch), inserted)
	b.log.Info(ctx, "event batch flushed",
		logger.String("batch_id", batchID),
		logger.Int("batch_size", len(batch)),
		logger.Int("inserted", inserted),
	)
	return inserted
}

// Len returns the current number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
