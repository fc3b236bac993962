package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/finbrief/internal/scheduler"
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

func TestSchedulerFiresJobs(t *testing.T) {
	Convey("Given a scheduler with a fast job", t, func() {
		s := scheduler.New()
		var fired atomic.Int64

		err := s.Add("@every 50ms", "tick", func(ctx context.Context) {
			fired.Add(1)
		})
		So(err, ShouldBeNil)

		Convey("When started", func() {
			s.Start(context.Background())
			defer s.Stop()

			Convey("Then the job fires repeatedly", func() {
				deadline := time.Now().Add(2 * time.Second)
				for fired.Load() < 2 && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				So(fired.Load(), ShouldBeGreaterThanOrEqualTo, 2)
			})
		})

		Convey("When never started", func() {
			time.Sleep(120 * time.Millisecond)

			Convey("Then the job does not fire", func() {
				So(fired.Load(), ShouldEqual, 0)
			})
		})
	})
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	Convey("Given a scheduler", t, func() {
		s := scheduler.New()

		Convey("When adding a job with a malformed spec", func() {
			err := s.Add("not a cron spec", "bad", func(ctx context.Context) {})

			Convey("Then the add fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestSchedulerStop(t *testing.T) {
	Convey("Given a running scheduler", t, func() {
		s := scheduler.New()
		var fired atomic.Int64
		So(s.Add("@every 30ms", "tick", func(ctx context.Context) {
			fired.Add(1)
		}), ShouldBeNil)
		s.Start(context.Background())

		Convey("When stopped", func() {
			deadline := time.Now().Add(2 * time.Second)
			for fired.Load() == 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			s.Stop()
			after := fired.Load()
			time.Sleep(100 * time.Millisecond)

			Convey("Then no further firings happen", func() {
				So(fired.Load(), ShouldEqual, after)
			})

			Convey("And stopping again is safe", func() {
				So(s.Stop, ShouldNotPanic)
			})
		})

		Convey("When a job panics", func() {
			So(s.Add("@every 30ms", "boom", func(ctx context.Context) {
				panic("job blew up")
			}), ShouldBeNil)
			defer s.Stop()

			Convey("Then other jobs keep firing", func() {
				before := fired.Load()
				deadline := time.Now().Add(2 * time.Second)
				for fired.Load() <= before && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				So(fired.Load(), ShouldBeGreaterThan, before)
			})
		})
	})
}
