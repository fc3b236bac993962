package config_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/okian/finbrief/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			convey.So(cfg.BatchSize, convey.ShouldEqual, 10)
			convey.So(cfg.FlushIntervalSeconds, convey.ShouldEqual, 300)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*4)
			convey.So(cfg.ModelAttempts, convey.ShouldEqual, 3)
			convey.So(cfg.StoreRetries, convey.ShouldEqual, 3)
			convey.So(cfg.AnalysisCron, convey.ShouldEqual, "0 6 * * *")
		})

		convey.Convey("Then duration helpers convert the second fields", func() {
			convey.So(cfg.FlushInterval(), convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.ModelTimeout(), convey.ShouldEqual, 60*time.Second)
			convey.So(cfg.ModelBackoff(), convey.ShouldEqual, 2*time.Second)
		})
	})
}

func TestConfig_TickerConfigFor(t *testing.T) {
	convey.Convey("Given a config with a mix of ticker configs", t, func() {
		cfg := config.New()
		cfg.TickerConfigs = map[string]config.TickerConfig{
			"AAPL": {Prompt: "analyze {ticker}", Weights: map[string]float64{"momentum": 0.6}},
			"TSLA": {Prompt: "analyze {ticker}"},
			"MSFT": {Weights: map[string]float64{"momentum": 0.6}},
		}

		convey.Convey("Then a complete config is returned as usable", func() {
			tc, ok := cfg.TickerConfigFor("AAPL")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(tc.Prompt, convey.ShouldEqual, "analyze {ticker}")
		})

		convey.Convey("Then missing weights make the ticker unusable", func() {
			_, ok := cfg.TickerConfigFor("TSLA")
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("Then a missing prompt makes the ticker unusable", func() {
			_, ok := cfg.TickerConfigFor("MSFT")
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("Then an unknown ticker is unusable", func() {
			_, ok := cfg.TickerConfigFor("NVDA")
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}
