package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/finbrief/internal/domain/model"
)

type fakeUserSource struct {
	mu      sync.Mutex
	fetches int
	rows    model.UserRows
	err     error
}

func (f *fakeUserSource) AllUsers(_ context.Context) (model.UserRows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return model.UserRows{}, f.err
	}
	return f.rows, nil
}

func (f *fakeUserSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func usersWith(tgColumn string) model.UserRows {
	columns := []string{"user_id", "email", "plan", "tickers", "verified"}
	if tgColumn != "" {
		columns = append(columns, tgColumn)
	}
	row := func(id, tg, email string) map[string]any {
		r := map[string]any{
			"user_id":  id,
			"email":    email,
			"plan":     "pro",
			"tickers":  "AAPL, TSLA",
			"verified": true,
		}
		if tgColumn != "" {
			r[tgColumn] = tg
		}
		return r
	}
	return model.UserRows{
		Columns: columns,
		Rows: []map[string]any{
			row("u1", "100200", "a@example.com"),
			row("u2", "100300", "b@example.com"),
		},
	}
}

func TestReferenceCacheRefresh(t *testing.T) {
	ctx := context.Background()

	Convey("Given a reference cache over a counting source", t, func() {
		src := &fakeUserSource{rows: usersWith("telegram_user_id")}
		c := NewReferenceCache(src)

		Convey("the first read loads, later non-forced reads do not", func() {
			first := c.Get(ctx, false)
			second := c.Get(ctx, false)

			So(src.fetchCount(), ShouldEqual, 1)
			So(first.Items, ShouldHaveLength, 2)
			So(first.Items, ShouldResemble, second.Items)
		})

		Convey("only a forced read replaces the snapshot", func() {
			c.Get(ctx, false)
			src.mu.Lock()
			src.rows.Rows = src.rows.Rows[:1]
			src.mu.Unlock()

			unchanged := c.Get(ctx, false)
			So(unchanged.Items, ShouldHaveLength, 2)

			refreshed := c.Get(ctx, true)
			So(refreshed.Items, ShouldHaveLength, 1)
			So(src.fetchCount(), ShouldEqual, 2)
		})

		Convey("rows map onto normalized user records", func() {
			snap := c.Get(ctx, false)

			So(snap.Items[0].UserID, ShouldEqual, "u1")
			So(snap.Items[0].TelegramID, ShouldEqual, "100200")
			So(snap.Items[0].Email, ShouldEqual, "a@example.com")
			So(snap.Items[0].Tickers, ShouldResemble, []string{"AAPL", "TSLA"})
			So(snap.Items[0].Verified, ShouldBeTrue)
		})

		Convey("a failed forced refresh keeps the previous snapshot", func() {
			good := c.Get(ctx, false)

			src.mu.Lock()
			src.err = errors.New("connection refused")
			src.mu.Unlock()

			stale := c.Get(ctx, true)
			So(stale.Items, ShouldResemble, good.Items)
		})
	})
}

func TestReferenceCacheLookup(t *testing.T) {
	ctx := context.Background()

	Convey("LookupByTelegramID resolves against the identity index", t, func() {
		Convey("with the canonical column", func() {
			c := NewReferenceCache(&fakeUserSource{rows: usersWith("telegram_user_id")})

			rec, ok := c.LookupByTelegramID(ctx, "100300")
			So(ok, ShouldBeTrue)
			So(rec.UserID, ShouldEqual, "u2")

			_, ok = c.LookupByTelegramID(ctx, "999999")
			So(ok, ShouldBeFalse)
		})

		Convey("with an aliased column", func() {
			c := NewReferenceCache(&fakeUserSource{rows: usersWith("TG_ID")})

			rec, ok := c.LookupByTelegramID(ctx, "100200")
			So(ok, ShouldBeTrue)
			So(rec.TelegramID, ShouldEqual, "100200")
		})

		Convey("with a substring-matched column", func() {
			c := NewReferenceCache(&fakeUserSource{rows: usersWith("channel_member_id")})

			_, ok := c.LookupByTelegramID(ctx, "100200")
			So(ok, ShouldBeTrue)
		})

		Convey("with no resolvable column lookups answer not-found", func() {
			c := NewReferenceCache(&fakeUserSource{rows: usersWith("")})

			snap := c.Get(ctx, false)
			So(snap.Items, ShouldHaveLength, 2)
			So(snap.Items[0].TelegramID, ShouldBeEmpty)

			_, ok := c.LookupByTelegramID(ctx, "100200")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestResolveTelegramColumn(t *testing.T) {
	cases := []struct {
		name    string
		columns []string
		want    string
		ok      bool
	}{
		{"canonical beats aliases", []string{"tg_id", "Telegram_User_ID"}, "Telegram_User_ID", true},
		{"alias order respected", []string{"tg_id", "telegram_id"}, "telegram_id", true},
		{"substring fallback", []string{"user_id", "channelID"}, "channelID", true},
		{"id alone is not enough", []string{"user_id", "id"}, "", false},
		{"empty", nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := resolveTelegramColumn(tc.columns)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("resolveTelegramColumn(%v) = (%q, %v), want (%q, %v)",
					tc.columns, got, ok, tc.want, tc.ok)
			}
		})
	}
}
