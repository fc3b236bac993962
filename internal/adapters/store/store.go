// Package store defines the persistence gateway contract for the
// relational system of record.
package store

import (
	"context"
	"time"

	"github.com/okian/finbrief/internal/domain/model"
)

// Gateway is the narrow interface to the relational store.
type Gateway interface {
	// InsertEvents writes a batch of interaction events in one
	// transaction, silently skipping rows whose natural key already
	// exists. It returns the count of rows actually newly written. On any
	// execution error the whole batch is rolled back and the count is 0;
	// the gateway never retries.
	InsertEvents(ctx context.Context, events []model.BotEvent) (int, error)

	// UpsertAnalysis inserts an analysis record or, on a natural-key
	// collision, overwrites its mutable fields.
	UpsertAnalysis(ctx context.Context, rec model.AnalysisRecord) error

	// YesterdayAnalysis returns analysis rows dated yesterday (UTC) for
	// the given tickers. An empty ticker list yields an empty result
	// without touching the database.
	YesterdayAnalysis(ctx context.Context, tickers []string) ([]model.AnalysisRecord, error)

	// AnalysisWindow returns rows for one ticker and kind within the last
	// windowDays, newest first.
	AnalysisWindow(ctx context.Context, ticker string, kind model.AnalysisKind, windowDays int) ([]model.AnalysisRecord, error)

	// AllUsers reads the full reference dataset with its raw column names.
	AllUsers(ctx context.Context) (model.UserRows, error)
}

// Clock supplies the current time; injectable for tests.
type Clock func() time.Time
