package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/finbrief/internal/adapters/llm"
	service "github.com/okian/finbrief/internal/app"
	"github.com/okian/finbrief/internal/config"
	"github.com/okian/finbrief/internal/domain/model"
	"github.com/okian/finbrief/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// fakeGateway is an in-memory store.Gateway for service tests.
type fakeGateway struct {
	mu sync.Mutex

	events    []model.BotEvent
	upserts   []model.AnalysisRecord
	upsertErr int // fail this many upserts before succeeding

	yesterday []model.AnalysisRecord
	window    []model.AnalysisRecord
	users     model.UserRows
}

func (f *fakeGateway) InsertEvents(ctx context.Context, events []model.BotEvent) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
	return len(events), nil
}

func (f *fakeGateway) UpsertAnalysis(ctx context.Context, rec model.AnalysisRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr > 0 {
		f.upsertErr--
		return errors.New("store unavailable")
	}
	f.upserts = append(f.upserts, rec)
	return nil
}

func (f *fakeGateway) YesterdayAnalysis(ctx context.Context, tickers []string) ([]model.AnalysisRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.AnalysisRecord, len(f.yesterday))
	copy(out, f.yesterday)
	return out, nil
}

func (f *fakeGateway) AnalysisWindow(ctx context.Context, ticker string, kind model.AnalysisKind, windowDays int) ([]model.AnalysisRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.AnalysisRecord, len(f.window))
	copy(out, f.window)
	return out, nil
}

func (f *fakeGateway) AllUsers(ctx context.Context) (model.UserRows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users, nil
}

func (f *fakeGateway) storedEvents() []model.BotEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.BotEvent, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeGateway) storedUpserts() []model.AnalysisRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.AnalysisRecord, len(f.upserts))
	copy(out, f.upserts)
	return out
}

// fakeCompleter returns one canned completion (or error) for every call.
type fakeCompleter struct {
	mu    sync.Mutex
	calls []string
	text  string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, user)
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Text: f.text, PromptTokens: 120, CompletionTokens: 80}, nil
}

func (f *fakeCompleter) prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.DatabaseDSN = "postgres://test"
	cfg.Tickers = []string{"AAPL", "TSLA"}
	cfg.TickerConfigs = map[string]config.TickerConfig{
		"AAPL": {Prompt: "Summarize {ticker} with weights {weights}.", Weights: map[string]float64{"news": 0.6, "price": 0.4}},
		"TSLA": {Prompt: "Summarize {ticker}.", Weights: map[string]float64{"news": 1.0}},
	}
	cfg.WorkerCount = 2
	cfg.BatchSize = 3
	cfg.StoreRetries = 2
	return cfg
}

func startService(t *testing.T, cfg *config.Config, gw *fakeGateway, comp *fakeCompleter, opts ...service.Option) *service.Service {
	t.Helper()
	svc := service.New(cfg, gw, comp, opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(testConfig(), &fakeGateway{}, &fakeCompleter{text: "ok. 7"})

		Convey("When starting it", func() {
			err := svc.Start(context.Background())
			So(err, ShouldBeNil)
			defer svc.Stop()

			Convey("Then stats report it as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldBeTrue)
				So(stats["tickers"], ShouldEqual, 2)
			})

			Convey("And starting again is a no-op", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
			})
		})

		Convey("When stopping twice", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()
			So(svc.Stop, ShouldNotPanic)
		})
	})
}

func TestService_RunDailyAnalysis(t *testing.T) {
	Convey("Given a service with two configured tickers", t, func() {
		gw := &fakeGateway{}
		comp := &fakeCompleter{text: "Shares drifted higher on light volume. 7"}
		svc := startService(t, testConfig(), gw, comp)

		Convey("When the daily run executes", func() {
			sum := svc.RunDailyAnalysis(context.Background())

			Convey("Then every ticker is analyzed and persisted", func() {
				So(sum.Analyzed, ShouldEqual, 2)
				So(sum.Skipped, ShouldEqual, 0)
				So(sum.Failed, ShouldEqual, 0)

				recs := gw.storedUpserts()
				So(len(recs), ShouldEqual, 2)
				So(recs[0].Kind, ShouldEqual, model.KindDay)
				So(recs[0].Score, ShouldEqual, 7.0)
				So(recs[0].Text, ShouldEqual, "Shares drifted higher on light volume.")
				So(recs[0].PromptTokens, ShouldEqual, 120)
				So(recs[0].Weights, ShouldContainSubstring, "news")
			})

			Convey("And records carry yesterday's civil date", func() {
				recs := gw.storedUpserts()
				now := time.Now().UTC()
				want := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
				So(recs[0].EventDate.Equal(want), ShouldBeTrue)
			})

			Convey("And prompt placeholders were rendered", func() {
				prompts := comp.prompts()
				So(prompts[0], ShouldContainSubstring, "AAPL")
				So(prompts[0], ShouldNotContainSubstring, "{ticker}")
				So(prompts[0], ShouldNotContainSubstring, "{weights}")
			})
		})
	})

	Convey("Given a ticker without prompt configuration", t, func() {
		cfg := testConfig()
		cfg.Tickers = []string{"AAPL", "MYSTERY"}
		gw := &fakeGateway{}
		svc := startService(t, cfg, gw, &fakeCompleter{text: "Flat session. 5"})

		Convey("When the daily run executes", func() {
			sum := svc.RunDailyAnalysis(context.Background())

			Convey("Then the unconfigured ticker is skipped, not fatal", func() {
				So(sum.Analyzed, ShouldEqual, 1)
				So(sum.Skipped, ShouldEqual, 1)
				So(len(gw.storedUpserts()), ShouldEqual, 1)
				So(gw.storedUpserts()[0].Ticker, ShouldEqual, "AAPL")
			})
		})
	})

	Convey("Given a model that always fails", t, func() {
		gw := &fakeGateway{}
		comp := &fakeCompleter{err: errors.New("model overloaded")}
		svc := startService(t, testConfig(), gw, comp)

		Convey("When the daily run executes", func() {
			sum := svc.RunDailyAnalysis(context.Background())

			Convey("Then failures are counted and nothing is persisted", func() {
				So(sum.Failed, ShouldEqual, 2)
				So(len(gw.storedUpserts()), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a store that fails the first upsert attempt", t, func() {
		cfg := testConfig()
		cfg.Tickers = []string{"AAPL"}
		gw := &fakeGateway{upsertErr: 1}
		svc := startService(t, cfg, gw, &fakeCompleter{text: "Quiet day. 5"},
			service.WithStoreBackoff(0),
		)

		Convey("When the daily run executes", func() {
			sum := svc.RunDailyAnalysis(context.Background())

			Convey("Then the retry recovers the write", func() {
				So(sum.Analyzed, ShouldEqual, 1)
				So(sum.Failed, ShouldEqual, 0)
				So(len(gw.storedUpserts()), ShouldEqual, 1)
			})
		})
	})

	Convey("Given unparseable model output", t, func() {
		cfg := testConfig()
		cfg.Tickers = []string{"AAPL"}
		gw := &fakeGateway{}
		svc := startService(t, cfg, gw, &fakeCompleter{text: "No numbers here at all"})

		Convey("When the daily run executes", func() {
			svc.RunDailyAnalysis(context.Background())

			Convey("Then the record falls back to the neutral score", func() {
				recs := gw.storedUpserts()
				So(len(recs), ShouldEqual, 1)
				So(recs[0].Score, ShouldEqual, model.NeutralScore)
			})
		})
	})
}

func TestService_AnalysisReads(t *testing.T) {
	Convey("Given a store holding yesterday's analysis", t, func() {
		now := time.Now().UTC()
		yesterday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		gw := &fakeGateway{
			yesterday: []model.AnalysisRecord{
				{Ticker: "AAPL", EventDate: yesterday, Kind: model.KindDay, Text: "Up a touch.", Score: 6},
				{Ticker: "AAPL", EventDate: yesterday, Kind: model.KindWeek, Text: "Choppy week.", Score: 5},
			},
			window: []model.AnalysisRecord{
				{Ticker: "AAPL", EventDate: yesterday, Kind: model.KindDay, Score: 6},
			},
		}
		svc := startService(t, testConfig(), gw, &fakeCompleter{text: "x. 5"})

		Convey("When reading the snapshot", func() {
			snap := svc.YesterdaysAnalysis(context.Background(), false)
			So(len(snap.Items), ShouldEqual, 2)
			So(snap.AsOf.Equal(yesterday), ShouldBeTrue)
		})

		Convey("When looking up one ticker", func() {
			rec, ok := svc.AnalysisFor(context.Background(), "AAPL")
			So(ok, ShouldBeTrue)
			So(rec.Kind, ShouldEqual, model.KindDay)
			So(rec.Text, ShouldEqual, "Up a touch.")

			_, ok = svc.AnalysisFor(context.Background(), "TSLA")
			So(ok, ShouldBeFalse)
		})

		Convey("When reading history with a zero window", func() {
			rows, err := svc.AnalysisHistory(context.Background(), "AAPL", model.KindDay, 0)
			So(err, ShouldBeNil)
			So(len(rows), ShouldEqual, 1)
		})
	})
}

func TestService_UserReads(t *testing.T) {
	Convey("Given a store holding reference users", t, func() {
		gw := &fakeGateway{
			users: model.UserRows{
				Columns: []string{"user_id", "tg_id", "email", "plan"},
				Rows: []map[string]any{
					{"user_id": "u1", "tg_id": "555", "email": "a@b.c", "plan": "pro"},
				},
			},
		}
		svc := startService(t, testConfig(), gw, &fakeCompleter{text: "x. 5"})

		Convey("When reading users", func() {
			snap := svc.Users(context.Background(), false)
			So(len(snap.Items), ShouldEqual, 1)
			So(snap.Items[0].TelegramID, ShouldEqual, "555")
		})

		Convey("When resolving a Telegram id", func() {
			user, ok := svc.LookupUser(context.Background(), "555")
			So(ok, ShouldBeTrue)
			So(user.Plan, ShouldEqual, "pro")

			_, ok = svc.LookupUser(context.Background(), "404")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestService_Events(t *testing.T) {
	Convey("Given a running service with batch size 3", t, func() {
		gw := &fakeGateway{}
		svc := startService(t, testConfig(), gw, &fakeCompleter{text: "x. 5"})

		Convey("When recording fewer events than a batch", func() {
			svc.RecordEvent(context.Background(), model.BotEvent{UserID: "u1", EventType: "message"})
			svc.RecordEvent(context.Background(), model.BotEvent{UserID: "u2", EventType: "message"})

			Convey("Then nothing reaches the store until forced", func() {
				waitFor(t, func() bool { return svc.BufferedEvents() == 2 })
				So(len(gw.storedEvents()), ShouldEqual, 0)

				flushed := svc.FlushEvents(context.Background(), true)
				So(flushed, ShouldEqual, 2)
				So(len(gw.storedEvents()), ShouldEqual, 2)
			})
		})

		Convey("When recording a full batch", func() {
			for i := 0; i < 3; i++ {
				svc.RecordEvent(context.Background(), model.BotEvent{UserID: "u", EventType: "message"})
			}

			Convey("Then the size trigger flushes without intervention", func() {
				waitFor(t, func() bool { return len(gw.storedEvents()) == 3 })
				So(svc.BufferedEvents(), ShouldEqual, 0)
			})
		})
	})
}

// waitFor polls cond for up to two seconds.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
