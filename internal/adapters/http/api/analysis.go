// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/finbrief/internal/domain/model"
)

// AnalysisDependencies defines the interface for analysis reads.
type AnalysisDependencies interface {
	YesterdaysAnalysis(ctx context.Context, force bool) model.Snapshot[model.AnalysisRecord]
	AnalysisFor(ctx context.Context, ticker string) (model.AnalysisRecord, bool)
	AnalysisHistory(ctx context.Context, ticker string, kind model.AnalysisKind, windowDays int) ([]model.AnalysisRecord, error)
}

// AnalysisHandler handles analysis read requests.
type AnalysisHandler struct {
	deps AnalysisDependencies
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(deps AnalysisDependencies) *AnalysisHandler {
	return &AnalysisHandler{deps: deps}
}

// analysisEntry is the JSON shape for one analysis record.
type analysisEntry struct {
	Ticker    string  `json:"ticker"`
	EventDate string  `json:"event_date"`
	Kind      string  `json:"kind"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	Model     string  `json:"model,omitempty"`
}

type analysisSnapshotResponse struct {
	AsOf    string          `json:"as_of"`
	Entries []analysisEntry `json:"entries"`
}

func toEntry(rec model.AnalysisRecord) analysisEntry {
	return analysisEntry{
		Ticker:    rec.Ticker,
		EventDate: rec.EventDate.Format("2006-01-02"),
		Kind:      string(rec.Kind),
		Text:      rec.Text,
		Score:     rec.Score,
		Model:     rec.Model,
	}
}

// HandleSnapshot handles GET /analysis?refresh=true requests, returning
// the cached snapshot for all configured tickers.
func (h *AnalysisHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	force := r.URL.Query().Get("refresh") == "true"
	snap := h.deps.YesterdaysAnalysis(r.Context(), force)

	resp := analysisSnapshotResponse{Entries: make([]analysisEntry, 0, len(snap.Items))}
	if !snap.AsOf.Equal(time.Time{}) {
		resp.AsOf = snap.AsOf.Format("2006-01-02")
	}
	for _, rec := range snap.Items {
		resp.Entries = append(resp.Entries, toEntry(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleTicker handles GET /analysis/{ticker} requests. With ?days=N it
// returns the store-backed history window instead of the cached row;
// ?kind=week selects the weekly cadence.
func (h *AnalysisHandler) HandleTicker(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_analysis"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ticker := strings.TrimPrefix(r.URL.Path, "/analysis/")
	if ticker == "" || strings.Contains(ticker, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil || days < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		kind := model.KindDay
		if r.URL.Query().Get("kind") == string(model.KindWeek) {
			kind = model.KindWeek
		}
		rows, err := h.deps.AnalysisHistory(r.Context(), ticker, kind, days)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err)
			return
		}
		entries := make([]analysisEntry, 0, len(rows))
		for _, rec := range rows {
			entries = append(entries, toEntry(rec))
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	rec, ok := h.deps.AnalysisFor(r.Context(), ticker)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toEntry(rec))
}
