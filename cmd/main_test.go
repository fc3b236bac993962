package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/okian/finbrief/internal/adapters/http/api"
	app "github.com/okian/finbrief/internal/app"
	"github.com/okian/finbrief/internal/config"
	"github.com/okian/finbrief/pkg/logger"
	"github.com/okian/finbrief/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			// Test with environment variables
			_ = os.Setenv("FINBRIEF_ADDR", ":8080")
			_ = os.Setenv("FINBRIEF_BATCH_SIZE", "20")
			_ = os.Setenv("FINBRIEF_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("FINBRIEF_ADDR")
				_ = os.Unsetenv("FINBRIEF_BATCH_SIZE")
				_ = os.Unsetenv("FINBRIEF_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load()
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.BatchSize, convey.ShouldEqual, 20)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable without starting", func() {
				svc := app.New(config.New(), nil, nil)
				convey.So(svc, convey.ShouldNotBeNil)
				convey.So(svc.GetStats(), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := app.New(config.New(), nil, nil)
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then HTTP server should be creatable and registrable", func() {
				server := api.NewServer(svc, svc)
				convey.So(server, convey.ShouldNotBeNil)

				mux := http.NewServeMux()
				server.Register(context.Background(), mux)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				// Use a custom registry to avoid duplicate registration issues
				registry := prometheus.NewRegistry()
				manager := metrics.NewManager(metrics.WithPrometheusRegistry(registry))
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should run until its context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			// Set invalid configuration
			_ = os.Setenv("FINBRIEF_ADDR", "")
			defer func() { _ = os.Unsetenv("FINBRIEF_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing zero batch size", func() {
			_ = os.Setenv("FINBRIEF_BATCH_SIZE", "0")
			defer func() { _ = os.Unsetenv("FINBRIEF_BATCH_SIZE") }()

			convey.Convey("Then configuration loading should fail", func() {
				_, err := config.Load()
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
