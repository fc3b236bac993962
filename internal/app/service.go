// Package service provides the core business service behind the chat
// handlers and the admin HTTP API.
package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/okian/finbrief/internal/adapters/buffer"
	"github.com/okian/finbrief/internal/adapters/llm"
	workerpool "github.com/okian/finbrief/internal/adapters/mq/worker"
	"github.com/okian/finbrief/internal/adapters/store"
	"github.com/okian/finbrief/internal/cache"
	"github.com/okian/finbrief/internal/config"
	"github.com/okian/finbrief/internal/domain/model"
	"github.com/okian/finbrief/internal/domain/parse"
	"github.com/okian/finbrief/pkg/logger"
	"github.com/okian/finbrief/pkg/metrics"
)

// defaultStoreBackoff is the base wait between analysis upsert retries.
const defaultStoreBackoff = time.Second

// RunSummary reports the outcome of one daily analysis run.
type RunSummary struct {
	Analyzed int
	Skipped  int
	Failed   int
}

// Service wires the caches, buffer, model client, and store together and
// exposes the operations handlers call. Construct with New, then Start.
type Service struct {
	mu sync.RWMutex

	// Injected collaborators
	cfg       *config.Config
	gateway   store.Gateway
	completer llm.Completer

	// Components built on Start
	analysisCache  *cache.AnalysisCache
	referenceCache *cache.ReferenceCache
	events         *buffer.Buffer
	pool           *workerpool.Pool

	// Configuration
	storeBackoff time.Duration
	clock        func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithClock overrides the time source; used by tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithStoreBackoff sets the base wait between analysis upsert retries.
func WithStoreBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.storeBackoff = d
		}
	}
}

// New constructs a Service over the given store gateway and model client.
func New(cfg *config.Config, gateway store.Gateway, completer llm.Completer, opts ...Option) *Service {
	s := &Service{
		cfg:          cfg,
		gateway:      gateway,
		completer:    completer,
		storeBackoff: defaultStoreBackoff,
		clock:        time.Now,
		logger:       nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the caches, event buffer, and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting finbrief service...")

	s.analysisCache = cache.NewAnalysisCache(s.gateway, s.cfg.Tickers,
		cache.WithAnalysisClock(s.clock),
	)
	s.referenceCache = cache.NewReferenceCache(s.gateway)
	s.events = buffer.New(s.gateway,
		buffer.WithBatchSize(s.cfg.BatchSize),
		buffer.WithFlushInterval(s.cfg.FlushInterval()),
		buffer.WithClock(s.clock),
	)
	s.pool = workerpool.NewPool(s.cfg.WorkerCount,
		workerpool.WithQueueCapacity(s.cfg.TaskQueueSize),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "finbrief service started",
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("tickers", len(s.cfg.Tickers)),
		logger.Int("batch_size", s.cfg.BatchSize),
	)

	return nil
}

// Stop flushes the buffer and shuts the pool down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping finbrief service...")

	if flushed := s.events.Flush(ctx, true); flushed > 0 {
		s.logger.Info(ctx, "final buffer flush", logger.Int("written", flushed))
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "finbrief service stopped")
}

// YesterdaysAnalysis returns the analysis snapshot, refreshed per the
// cache's daily-freshness rule (or unconditionally when forced).
func (s *Service) YesterdaysAnalysis(ctx context.Context, force bool) model.Snapshot[model.AnalysisRecord] {
	return s.analysisCache.Get(ctx, force)
}

// AnalysisFor returns yesterday's daily analysis for one ticker out of
// the cached snapshot.
func (s *Service) AnalysisFor(ctx context.Context, ticker string) (model.AnalysisRecord, bool) {
	snap := s.analysisCache.Get(ctx, false)
	for _, rec := range snap.Items {
		if rec.Ticker == ticker && rec.Kind == model.KindDay {
			return rec, true
		}
	}
	return model.AnalysisRecord{}, false
}

// AnalysisHistory reads one ticker's analysis rows for the last
// windowDays straight from the store, newest first. A non-positive
// window falls back to the configured default.
func (s *Service) AnalysisHistory(ctx context.Context, ticker string, kind model.AnalysisKind, windowDays int) ([]model.AnalysisRecord, error) {
	if windowDays <= 0 {
		windowDays = s.cfg.WindowDays
	}
	return s.gateway.AnalysisWindow(ctx, ticker, kind, windowDays)
}

// Users returns the user snapshot; force replaces it from the store.
func (s *Service) Users(ctx context.Context, force bool) model.Snapshot[model.UserRecord] {
	return s.referenceCache.Get(ctx, force)
}

// LookupUser resolves a user by Telegram id.
func (s *Service) LookupUser(ctx context.Context, telegramID string) (model.UserRecord, bool) {
	return s.referenceCache.LookupByTelegramID(ctx, telegramID)
}

// RecordEvent hands the event to the buffer on a pool worker so the
// calling handler never waits on a flush. A saturated pool appends
// inline instead of dropping the event.
func (s *Service) RecordEvent(ctx context.Context, ev model.BotEvent) {
	if s.pool.Submit(func(c context.Context) { s.events.Add(c, ev) }) {
		return
	}
	s.events.Add(ctx, ev)
}

// FlushEvents flushes the buffer, honoring the size/time triggers unless
// forced. It returns the number of rows newly written.
func (s *Service) FlushEvents(ctx context.Context, force bool) int {
	return s.events.Flush(ctx, force)
}

// BufferedEvents returns the current live buffer length.
func (s *Service) BufferedEvents() int {
	return s.events.Len()
}

// RunDailyAnalysis runs the per-ticker analysis batch: prompt the model,
// validate its output, persist with bounded retry, and finish with a
// forced analysis-cache refresh. Per-ticker failures are logged and
// counted; they never abort the batch.
func (s *Service) RunDailyAnalysis(ctx context.Context) RunSummary {
	metrics.RecordAnalysisRun()
	var sum RunSummary

	eventDate := civilDate(s.clock()).AddDate(0, 0, -1)
	s.logger.Info(ctx, "daily analysis run starting",
		logger.Int("tickers", len(s.cfg.Tickers)),
		logger.String("event_date", eventDate.Format("2006-01-02")),
	)

	for _, ticker := range s.cfg.Tickers {
		tc, ok := s.cfg.TickerConfigFor(ticker)
		if !ok {
			metrics.RecordTickerSkipped()
			sum.Skipped++
			s.logger.Warn(ctx, "ticker missing prompt or weights; skipping",
				logger.String("ticker", ticker),
			)
			continue
		}

		if err := s.analyzeTicker(ctx, ticker, tc, eventDate); err != nil {
			metrics.RecordAnalysisRunError()
			sum.Failed++
			s.logger.Error(ctx, "ticker analysis failed",
				logger.String("ticker", ticker),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordTickerAnalyzed()
		sum.Analyzed++
	}

	// Publish the fresh rows to readers immediately.
	s.analysisCache.Get(ctx, true)

	s.logger.Info(ctx, "daily analysis run finished",
		logger.Int("analyzed", sum.Analyzed),
		logger.Int("skipped", sum.Skipped),
		logger.Int("failed", sum.Failed),
	)
	return sum
}

// analyzeTicker produces and persists one ticker's analysis record.
func (s *Service) analyzeTicker(ctx context.Context, ticker string, tc config.TickerConfig, eventDate time.Time) error {
	weights, err := json.Marshal(tc.Weights)
	if err != nil {
		return err
	}

	prompt := renderPrompt(tc.Prompt, ticker, string(weights))
	comp, err := s.completer.Complete(ctx, s.cfg.SystemPrompt, prompt)
	if err != nil {
		return err
	}

	res := parse.Validate(comp.Text)
	metrics.RecordParseStrategy(string(res.Strategy))

	rec := model.AnalysisRecord{
		Ticker:           ticker,
		EventDate:        eventDate,
		Kind:             model.KindDay,
		Text:             res.Text,
		Score:            res.Score,
		Model:            s.cfg.Model,
		Weights:          string(weights),
		PromptTokens:     comp.PromptTokens,
		CompletionTokens: comp.CompletionTokens,
	}
	return s.upsertWithRetry(ctx, rec)
}

// upsertWithRetry writes one analysis record, retrying transient store
// failures with linear backoff up to the configured attempt count.
func (s *Service) upsertWithRetry(ctx context.Context, rec model.AnalysisRecord) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.StoreRetries; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, time.Duration(attempt-1)*s.storeBackoff); err != nil {
				return err
			}
		}
		if lastErr = s.gateway.UpsertAnalysis(ctx, rec); lastErr == nil {
			return nil
		}
		s.logger.Warn(ctx, "analysis upsert failed",
			logger.String("ticker", rec.Ticker),
			logger.Int("attempt", attempt),
			logger.Error(lastErr),
		)
	}
	return lastErr
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"tickers":     len(s.cfg.Tickers),
		"workerCount": s.cfg.WorkerCount,
		"batchSize":   s.cfg.BatchSize,
	}

	if s.started {
		stats["bufferedEvents"] = s.events.Len()
		stats["poolBacklog"] = s.pool.Backlog()
		if asOf := s.analysisCache.AsOf(); !asOf.IsZero() {
			stats["analysisAsOf"] = asOf.Format("2006-01-02")
		}
	}

	return stats
}

// renderPrompt fills the {ticker} and {weights} placeholders of a
// configured prompt template.
func renderPrompt(template, ticker, weights string) string {
	out := strings.ReplaceAll(template, "{ticker}", ticker)
	return strings.ReplaceAll(out, "{weights}", weights)
}

// civilDate truncates t to midnight UTC.
func civilDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// sleepCtx waits for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
