package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/okian/finbrief/internal/domain/model"
	"github.com/okian/finbrief/pkg/logger"
	"github.com/okian/finbrief/pkg/metrics"
)

// Telegram-id column resolution order. The canonical name wins; otherwise
// the aliases are tried in order; otherwise any column mentioning
// telegram/channel plus id. All matching is case-insensitive.
const canonicalTelegramColumn = "telegram_user_id"

var telegramColumnAliases = []string{"telegram_id", "tg_user_id", "tg_id", "tele_id"}

// UserSource reads the full reference dataset. Satisfied by store.Gateway.
type UserSource interface {
	AllUsers(ctx context.Context) (model.UserRows, error)
}

// referenceState is the unit the reference cache publishes atomically:
// the user snapshot plus the identity index derived from it. byTelegram
// is nil when no Telegram-id column could be resolved, in which case
// identity lookups answer not-found rather than guessing a column.
type referenceState struct {
	snap       model.Snapshot[model.UserRecord]
	byTelegram map[string]model.UserRecord
}

// ReferenceCache serves the user reference dataset. Unlike the analysis
// cache it has no freshness window: the snapshot is replaced only on a
// forced refresh (or built once on first access), because the dataset
// changes when an operator says it does, not on a calendar.
type ReferenceCache struct {
	source UserSource
	log    logger.Logger

	refreshMu sync.Mutex
	state     atomic.Pointer[referenceState]
}

// NewReferenceCache creates a cache over source. No fetch happens until
// the first Get.
func NewReferenceCache(source UserSource, opts ...ReferenceOption) *ReferenceCache {
	c := &ReferenceCache{
		source: source,
		log:    logger.Get().Named("reference-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the user snapshot, refreshing first when force is set or
// nothing has been loaded yet. A failed refresh keeps the previous state;
// before any successful load that means an empty snapshot.
func (c *ReferenceCache) Get(ctx context.Context, force bool) model.Snapshot[model.UserRecord] {
	if st := c.state.Load(); st != nil && !force {
		return st.snap.Copy()
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	st := c.state.Load()
	if st != nil && !force {
		return st.snap.Copy()
	}

	next, err := c.load(ctx)
	if err != nil {
		metrics.RecordCacheRefreshError("reference")
		c.log.Error(ctx, "reference refresh failed; serving previous snapshot", logger.Error(err))
		if st == nil {
			return model.Snapshot[model.UserRecord]{}
		}
		return st.snap.Copy()
	}

	c.state.Store(next)
	metrics.RecordCacheRefresh("reference", len(next.snap.Items))
	c.log.Info(ctx, "reference snapshot refreshed",
		logger.Int("rows", len(next.snap.Items)),
		logger.Int("indexed", len(next.byTelegram)),
	)
	return next.snap.Copy()
}

// LookupByTelegramID resolves a user by Telegram id against the current
// snapshot, loading one first if none exists. It reports false when the id
// is unknown or when the dataset had no resolvable Telegram-id column.
func (c *ReferenceCache) LookupByTelegramID(ctx context.Context, telegramID string) (model.UserRecord, bool) {
	c.Get(ctx, false)
	st := c.state.Load()
	if st == nil || st.byTelegram == nil {
		return model.UserRecord{}, false
	}
	rec, ok := st.byTelegram[telegramID]
	return rec, ok
}

// load fetches the raw rows and builds the published state.
func (c *ReferenceCache) load(ctx context.Context) (*referenceState, error) {
	rows, err := c.source.AllUsers(ctx)
	if err != nil {
		return nil, err
	}

	tgColumn, resolved := resolveTelegramColumn(rows.Columns)
	if !resolved {
		c.log.Warn(ctx, "no telegram-id column in reference dataset; identity lookups disabled",
			logger.Any("columns", rows.Columns),
		)
	}

	st := &referenceState{}
	if resolved {
		st.byTelegram = make(map[string]model.UserRecord, len(rows.Rows))
	}
	st.snap.Items = make([]model.UserRecord, 0, len(rows.Rows))
	for _, row := range rows.Rows {
		rec := buildUserRecord(row, tgColumn)
		st.snap.Items = append(st.snap.Items, rec)
		if resolved && rec.TelegramID != "" {
			st.byTelegram[rec.TelegramID] = rec
		}
	}
	return st, nil
}

// resolveTelegramColumn picks the column holding the Telegram user id.
func resolveTelegramColumn(columns []string) (string, bool) {
	for _, col := range columns {
		if strings.EqualFold(col, canonicalTelegramColumn) {
			return col, true
		}
	}
	for _, alias := range telegramColumnAliases {
		for _, col := range columns {
			if strings.EqualFold(col, alias) {
				return col, true
			}
		}
	}
	for _, col := range columns {
		lower := strings.ToLower(col)
		if (strings.Contains(lower, "telegram") || strings.Contains(lower, "channel")) &&
			strings.Contains(lower, "id") {
			return col, true
		}
	}
	return "", false
}

// buildUserRecord maps one raw row onto the normalized record. tgColumn
// may be empty when resolution failed; the record then carries no
// Telegram id.
func buildUserRecord(row map[string]any, tgColumn string) model.UserRecord {
	rec := model.UserRecord{
		UserID:   stringField(row, "user_id", "id"),
		Email:    stringField(row, "email"),
		Plan:     stringField(row, "plan", "subscription_plan"),
		Verified: boolField(row, "verified", "is_verified"),
	}
	if tgColumn != "" {
		rec.TelegramID = asString(row[tgColumn])
	}
	if raw := stringField(row, "tickers", "watchlist"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				rec.Tickers = append(rec.Tickers, t)
			}
		}
	}
	return rec
}

// stringField returns the first non-empty value among the named columns,
// matching names case-insensitively.
func stringField(row map[string]any, names ...string) string {
	for _, name := range names {
		for k, v := range row {
			if strings.EqualFold(k, name) {
				if s := asString(v); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func boolField(row map[string]any, names ...string) bool {
	for _, name := range names {
		for k, v := range row {
			if !strings.EqualFold(k, name) {
				continue
			}
			switch val := v.(type) {
			case bool:
				return val
			case int64:
				return val != 0
			case string:
				b, err := strconv.ParseBool(val)
				return err == nil && b
			}
		}
	}
	return false
}

// asString renders a driver value as its text form; nil becomes "".
func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
