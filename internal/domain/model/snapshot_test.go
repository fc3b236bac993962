package model_test

import (
	"testing"
	"time"

	model "github.com/okian/finbrief/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestSnapshotCopy(t *testing.T) {
	convey.Convey("Given a snapshot with analysis rows", t, func() {
		asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		snap := model.Snapshot[model.AnalysisRecord]{
			AsOf: asOf,
			Items: []model.AnalysisRecord{
				{Ticker: "AAPL", Kind: model.KindDay, Score: 7.5},
				{Ticker: "MSFT", Kind: model.KindDay, Score: 6.0},
			},
		}

		convey.Convey("When copying it", func() {
			cp := snap.Copy()

			convey.Convey("Then the copy is content-equal", func() {
				convey.So(cp.AsOf, convey.ShouldEqual, asOf)
				convey.So(cp.Items, convey.ShouldResemble, snap.Items)
			})

			convey.Convey("And mutating the copy leaves the original intact", func() {
				cp.Items[0].Score = 1.0
				convey.So(snap.Items[0].Score, convey.ShouldEqual, 7.5)
			})
		})

		convey.Convey("When copying an empty snapshot", func() {
			empty := model.Snapshot[model.AnalysisRecord]{}
			cp := empty.Copy()

			convey.Convey("Then it stays empty", func() {
				convey.So(cp.Empty(), convey.ShouldBeTrue)
				convey.So(cp.Items, convey.ShouldBeNil)
			})
		})
	})
}

func TestAnalysisRecordKey(t *testing.T) {
	convey.Convey("Given an analysis record", t, func() {
		date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		rec := model.AnalysisRecord{
			Ticker:    "NVDA",
			EventDate: date,
			Kind:      model.KindWeek,
			Text:      "Momentum intact.",
			Score:     8.0,
		}

		convey.Convey("When reading the natural key", func() {
			ticker, eventDate, kind := rec.Key()

			convey.Convey("Then it is the (ticker, date, kind) tuple", func() {
				convey.So(ticker, convey.ShouldEqual, "NVDA")
				convey.So(eventDate, convey.ShouldEqual, date)
				convey.So(kind, convey.ShouldEqual, model.KindWeek)
			})
		})
	})
}

func TestScoreBounds(t *testing.T) {
	convey.Convey("Given the score constants", t, func() {
		convey.So(model.MinScore, convey.ShouldEqual, 1.0)
		convey.So(model.MaxScore, convey.ShouldEqual, 10.0)
		convey.So(model.NeutralScore, convey.ShouldBeGreaterThanOrEqualTo, model.MinScore)
		convey.So(model.NeutralScore, convey.ShouldBeLessThanOrEqualTo, model.MaxScore)
	})
}
