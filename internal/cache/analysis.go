// Package cache holds the in-process snapshot caches handlers read from.
//
// Both caches publish immutable snapshots through an atomic pointer:
// readers never take the refresh lock, and a refresh builds its snapshot
// fully aside before swapping it in (copy-then-swap). A failed refresh
// keeps the previous snapshot in place, so chat handlers keep serving
// stale-but-usable data instead of errors.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/finbrief/internal/domain/model"
	"github.com/okian/finbrief/pkg/logger"
	"github.com/okian/finbrief/pkg/metrics"
)

// AnalysisSource fetches yesterday's analysis rows. Satisfied by
// store.Gateway.
type AnalysisSource interface {
	YesterdayAnalysis(ctx context.Context, tickers []string) ([]model.AnalysisRecord, error)
}

// AnalysisCache serves the previous day's analysis rows. A snapshot is
// fresh while its AsOf equals yesterday's civil date; the first read of a
// new day (or a forced read) triggers a refresh.
type AnalysisCache struct {
	source  AnalysisSource
	tickers []string
	clock   func() time.Time
	log     logger.Logger

	refreshMu sync.Mutex
	snap      atomic.Pointer[model.Snapshot[model.AnalysisRecord]]
}

// NewAnalysisCache creates a cache over source for the given tickers. The
// initial snapshot is empty and stale, so the first Get always fetches.
func NewAnalysisCache(source AnalysisSource, tickers []string, opts ...AnalysisOption) *AnalysisCache {
	c := &AnalysisCache{
		source:  source,
		tickers: tickers,
		clock:   time.Now,
		log:     logger.Get().Named("analysis-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap.Store(&model.Snapshot[model.AnalysisRecord]{})
	return c
}

// Get returns a snapshot of yesterday's analysis rows, refreshing first
// when force is set or the stored snapshot is from an earlier day. It
// never returns an error: a failed refresh logs and serves whatever was
// published before, which on a cold cache is an empty snapshot.
func (c *AnalysisCache) Get(ctx context.Context, force bool) model.Snapshot[model.AnalysisRecord] {
	want := yesterday(c.clock())

	cur := c.snap.Load()
	if !force && cur.AsOf.Equal(want) {
		return cur.Copy()
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another goroutine may have refreshed while this one waited.
	cur = c.snap.Load()
	if !force && cur.AsOf.Equal(want) {
		return cur.Copy()
	}

	records, err := c.source.YesterdayAnalysis(ctx, c.tickers)
	if err != nil {
		metrics.RecordCacheRefreshError("analysis")
		c.log.Error(ctx, "analysis refresh failed; serving previous snapshot",
			logger.Error(err),
			logger.Int("stale_rows", len(cur.Items)),
		)
		return cur.Copy()
	}

	next := &model.Snapshot[model.AnalysisRecord]{Items: records, AsOf: want}
	c.snap.Store(next)
	metrics.RecordCacheRefresh("analysis", len(records))
	c.log.Info(ctx, "analysis snapshot refreshed",
		logger.Int("rows", len(records)),
		logger.String("as_of", want.Format("2006-01-02")),
	)
	return next.Copy()
}

// AsOf returns the civil date of the published snapshot (zero before the
// first successful refresh).
func (c *AnalysisCache) AsOf() time.Time {
	return c.snap.Load().AsOf
}

// yesterday truncates t to a UTC civil date and steps back one day.
func yesterday(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}
