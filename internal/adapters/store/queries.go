package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/okian/finbrief/internal/domain/model"
	"github.com/okian/finbrief/pkg/logger"
	"github.com/okian/finbrief/pkg/metrics"
)

// Table names in the system of record.
const (
	analysisTable = "ticker_analysis"
	eventsTable   = "bot_events"
	usersTable    = "users_reference"
)

// eventColumns is the column list for event inserts, in insert order.
var eventColumns = []string{
	"user_id",
	"telegram_id",
	"event_time",
	"event_type",
	"email",
	"device",
	"plan",
	"kpi",
	"settings_trigger",
	"function_call_type",
	"before_change",
	"after_change",
	"product_purchase",
	"inserted_at",
}

// analysisColumns is the column list used for SELECT statements on the
// analysis table.
const analysisColumns = `ticker, event_date, kind, text_analysis, score,
	model, weights, prompt_tokens, completion_tokens, test_flag, test_name,
	inserted_at`

// InsertEvents writes the batch as a single multi-row INSERT inside one
// transaction. Rows colliding with an existing natural key are silently
// skipped; the returned count excludes them. Zero event and insertion
// times are defaulted here, at row-conversion time.
func (p *Postgres) InsertEvents(ctx context.Context, events []model.BotEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	start := time.Now()

	var (
		placeholders = make([]string, 0, len(events))
		args         = make([]any, 0, len(events)*len(eventColumns))
	)
	for i, ev := range events {
		base := i * len(eventColumns)
		group := make([]string, len(eventColumns))
		for j := range eventColumns {
			group[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(group, ", ")+")")
		args = append(args, p.eventArgs(ev)...)
	}

	query := "INSERT INTO " + eventsTable + " (" + strings.Join(eventColumns, ", ") + ") VALUES " +
		strings.Join(placeholders, ", ") + " ON CONFLICT DO NOTHING"

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin event batch: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("insert event batch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit event batch: %w", err)
	}
	metrics.RecordStoreInsertLatency(float64(time.Since(start).Milliseconds()))

	inserted, err := res.RowsAffected()
	if err != nil {
		// Driver could not report the count; the write itself succeeded.
		p.log.Warn(ctx, "rows-affected unavailable after event insert", logger.Error(err))
		return len(events), nil
	}
	return int(inserted), nil
}

// eventArgs converts an event to positional args, defaulting zero
// timestamps to now. Occurrence time is therefore backfilled under a
// delayed flush; callers that care capture EventTime themselves.
func (p *Postgres) eventArgs(ev model.BotEvent) []any {
	now := p.clock()
	eventTime := ev.EventTime
	if eventTime.IsZero() {
		eventTime = now
		metrics.RecordEventTimeDefaulted()
	}
	insertedAt := ev.InsertedAt
	if insertedAt.IsZero() {
		insertedAt = now
	}
	return []any{
		ev.UserID,
		ev.TelegramID,
		eventTime,
		ev.EventType,
		nullString(ev.Email),
		nullString(ev.Device),
		nullString(ev.Plan),
		nullString(ev.KPI),
		nullString(ev.SettingsTrigger),
		nullString(ev.FunctionCallType),
		nullString(ev.BeforeChange),
		nullString(ev.AfterChange),
		nullString(ev.ProductPurchase),
		insertedAt,
	}
}

// UpsertAnalysis inserts or, on a (ticker, event_date, kind) collision,
// overwrites the record's mutable fields. The natural key is never touched.
func (p *Postgres) UpsertAnalysis(ctx context.Context, rec model.AnalysisRecord) error {
	insertedAt := rec.InsertedAt
	if insertedAt.IsZero() {
		insertedAt = p.clock()
	}
	start := time.Now()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO `+analysisTable+` (
			ticker, event_date, kind, text_analysis, score,
			model, weights, prompt_tokens, completion_tokens, test_flag, test_name,
			inserted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (ticker, event_date, kind) DO UPDATE SET
			text_analysis = EXCLUDED.text_analysis,
			score = EXCLUDED.score,
			model = EXCLUDED.model,
			weights = EXCLUDED.weights,
			prompt_tokens = EXCLUDED.prompt_tokens,
			completion_tokens = EXCLUDED.completion_tokens,
			test_flag = EXCLUDED.test_flag,
			test_name = EXCLUDED.test_name,
			inserted_at = EXCLUDED.inserted_at`,
		rec.Ticker,
		rec.EventDate,
		string(rec.Kind),
		rec.Text,
		rec.Score,
		rec.Model,
		rec.Weights,
		rec.PromptTokens,
		rec.CompletionTokens,
		rec.TestFlag,
		nullString(rec.TestName),
		insertedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert analysis %s/%s: %w", rec.Ticker, rec.Kind, err)
	}
	metrics.RecordStoreInsertLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// YesterdayAnalysis returns rows dated yesterday relative to the gateway
// clock. An empty ticker list short-circuits without a query.
func (p *Postgres) YesterdayAnalysis(ctx context.Context, tickers []string) ([]model.AnalysisRecord, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	yesterday := civilDate(p.clock()).AddDate(0, 0, -1)

	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	rows, err := p.db.QueryContext(ctx, `
		SELECT `+analysisColumns+`
		FROM `+analysisTable+`
		WHERE ticker = ANY($1) AND event_date = $2
		ORDER BY ticker`,
		pq.Array(tickers), yesterday,
	)
	if err != nil {
		return nil, fmt.Errorf("query yesterday analysis: %w", err)
	}
	defer rows.Close()

	return scanAnalysisRows(rows)
}

// AnalysisWindow returns one ticker's rows of the given kind within the
// last windowDays, newest first.
func (p *Postgres) AnalysisWindow(ctx context.Context, ticker string, kind model.AnalysisKind, windowDays int) ([]model.AnalysisRecord, error) {
	if windowDays <= 0 {
		return nil, ErrBadWindow
	}
	since := civilDate(p.clock()).AddDate(0, 0, -windowDays)

	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	rows, err := p.db.QueryContext(ctx, `
		SELECT `+analysisColumns+`
		FROM `+analysisTable+`
		WHERE ticker = $1 AND kind = $2 AND event_date >= $3
		ORDER BY event_date DESC`,
		ticker, string(kind), since,
	)
	if err != nil {
		return nil, fmt.Errorf("query analysis window: %w", err)
	}
	defer rows.Close()

	return scanAnalysisRows(rows)
}

// AllUsers reads the full reference table with its raw column names. The
// caller resolves which column carries the Telegram id.
func (p *Postgres) AllUsers(ctx context.Context) (model.UserRows, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	rows, err := p.db.QueryContext(ctx, `SELECT * FROM `+usersTable)
	if err != nil {
		return model.UserRows{}, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return model.UserRows{}, fmt.Errorf("read user columns: %w", err)
	}

	out := model.UserRows{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return model.UserRows{}, fmt.Errorf("scan user row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return model.UserRows{}, fmt.Errorf("iterate user rows: %w", err)
	}
	return out, nil
}

func scanAnalysisRows(rows *sql.Rows) ([]model.AnalysisRecord, error) {
	var out []model.AnalysisRecord
	for rows.Next() {
		var (
			rec      model.AnalysisRecord
			kind     string
			testName sql.NullString
		)
		if err := rows.Scan(
			&rec.Ticker,
			&rec.EventDate,
			&kind,
			&rec.Text,
			&rec.Score,
			&rec.Model,
			&rec.Weights,
			&rec.PromptTokens,
			&rec.CompletionTokens,
			&rec.TestFlag,
			&testName,
			&rec.InsertedAt,
		); err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		rec.Kind = model.AnalysisKind(kind)
		rec.TestName = testName.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis rows: %w", err)
	}
	return out, nil
}

// nullString maps "" to NULL so optional text columns stay nullable.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// normalizeValue converts driver byte slices to strings so reference rows
// are comparable and safe to retain past the scan.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// civilDate truncates t to midnight UTC.
func civilDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
