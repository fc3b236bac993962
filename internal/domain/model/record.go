// Package model contains domain models passed between layers.
package model

import "time"

// AnalysisKind distinguishes the cadence an analysis was computed for.
type AnalysisKind string

// Known analysis kinds.
const (
	KindDay  AnalysisKind = "day"
	KindWeek AnalysisKind = "week"
)

// Score bounds for a validated analysis. Anything outside this range is
// replaced by NeutralScore before it can be persisted.
const (
	MinScore     = 1.0
	MaxScore     = 10.0
	NeutralScore = 5.0
)

// AnalysisRecord is one model-generated commentary for a ticker on a date.
// The natural key is (Ticker, EventDate, Kind); an upsert on that key
// overwrites every other field.
type AnalysisRecord struct {
	Ticker           string
	EventDate        time.Time // civil date, midnight UTC
	Kind             AnalysisKind
	Text             string
	Score            float64 // validated, in [MinScore, MaxScore]
	Model            string
	Weights          string // serialized weight map as sent to the model
	PromptTokens     int
	CompletionTokens int
	TestFlag         bool
	TestName         string
	InsertedAt       time.Time
}

// Key returns the natural-key tuple used for upserts.
func (r AnalysisRecord) Key() (string, time.Time, AnalysisKind) {
	return r.Ticker, r.EventDate, r.Kind
}

// BotEvent is a single user interaction awaiting durable insertion.
// EventTime and InsertedAt may be left zero; the persistence gateway
// defaults them at row-conversion time, not at append time.
type BotEvent struct {
	UserID           string
	TelegramID       string
	EventTime        time.Time
	EventType        string
	Email            string
	Device           string
	Plan             string
	KPI              string
	SettingsTrigger  string
	FunctionCallType string
	BeforeChange     string
	AfterChange      string
	ProductPurchase  string
	InsertedAt       time.Time
}

// UserRows is the raw result of a full reference read: ordered column
// names plus one map per row. Column-alias resolution for the Telegram-id
// field happens in the reference cache, so the store stays agnostic to how
// the source table spells its columns.
type UserRows struct {
	Columns []string
	Rows    []map[string]any
}

// UserRecord is one row of the reference dataset after column
// normalization. TelegramID is the canonical identity field regardless of
// which alias the source table used.
type UserRecord struct {
	UserID     string
	TelegramID string
	Email      string
	Plan       string
	Tickers    []string
	Verified   bool
}
