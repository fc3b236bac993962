// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/finbrief/internal/domain/model"
)

// Service bundles the operations HTTP handlers need. Using an interface
// bundle keeps the handler layer loosely coupled to the app layer.
type Service interface {
	// RecordEvent buffers one interaction event for durable insertion.
	RecordEvent(ctx context.Context, ev model.BotEvent)

	// FlushEvents flushes the event buffer; force bypasses the triggers.
	FlushEvents(ctx context.Context, force bool) int

	// Read operations over the analysis and reference caches.
	YesterdaysAnalysis(ctx context.Context, force bool) model.Snapshot[model.AnalysisRecord]
	AnalysisFor(ctx context.Context, ticker string) (model.AnalysisRecord, bool)
	AnalysisHistory(ctx context.Context, ticker string, kind model.AnalysisKind, windowDays int) ([]model.AnalysisRecord, error)
	Users(ctx context.Context, force bool) model.Snapshot[model.UserRecord]
	LookupUser(ctx context.Context, telegramID string) (model.UserRecord, bool)
}

// Server wires HTTP routes for the admin API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	eventsHandler   *EventsHandler
	analysisHandler *AnalysisHandler
	usersHandler    *UsersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(svc Service, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		eventsHandler:   NewEventsHandler(svc),
		analysisHandler: NewAnalysisHandler(svc),
		usersHandler:    NewUsersHandler(svc),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/events/flush", MetricsMiddleware(s.eventsHandler.HandleFlush, "events_flush"))
	mux.HandleFunc("/analysis", MetricsMiddleware(s.analysisHandler.HandleSnapshot, "analysis"))
	mux.HandleFunc("/analysis/", MetricsMiddleware(s.analysisHandler.HandleTicker, "analysis_ticker"))
	mux.HandleFunc("/users", MetricsMiddleware(s.usersHandler.HandleSnapshot, "users"))
	mux.HandleFunc("/users/", MetricsMiddleware(s.usersHandler.HandleLookup, "users_lookup"))
}

// eventRequest mirrors the JSON schema for POST /events.
type eventRequest struct {
	UserID           string `json:"user_id"`
	TelegramID       string `json:"telegram_id"`
	EventTime        string `json:"event_time"`
	EventType        string `json:"event_type"`
	Email            string `json:"email"`
	Device           string `json:"device"`
	Plan             string `json:"plan"`
	KPI              string `json:"kpi"`
	SettingsTrigger  string `json:"settings_trigger"`
	FunctionCallType string `json:"function_call_type"`
	BeforeChange     string `json:"before_change"`
	AfterChange      string `json:"after_change"`
	ProductPurchase  string `json:"product_purchase"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.UserID) == "" && strings.TrimSpace(e.TelegramID) == "":
		return errors.New("missing user_id or telegram_id")
	case strings.TrimSpace(e.EventType) == "":
		return errors.New("missing event_type")
	}
	if e.EventTime != "" {
		if _, err := time.Parse(time.RFC3339, e.EventTime); err != nil {
			return errors.New("invalid event_time; must be RFC3339")
		}
	}
	return nil
}

// toModel converts a validated request into the domain event. EventTime
// stays zero when absent; the store defaults it at insertion.
func (e eventRequest) toModel() model.BotEvent {
	ev := model.BotEvent{
		UserID:           e.UserID,
		TelegramID:       e.TelegramID,
		EventType:        e.EventType,
		Email:            e.Email,
		Device:           e.Device,
		Plan:             e.Plan,
		KPI:              e.KPI,
		SettingsTrigger:  e.SettingsTrigger,
		FunctionCallType: e.FunctionCallType,
		BeforeChange:     e.BeforeChange,
		AfterChange:      e.AfterChange,
		ProductPurchase:  e.ProductPurchase,
	}
	if e.EventTime != "" {
		if ts, err := time.Parse(time.RFC3339, e.EventTime); err == nil {
			ev.EventTime = ts
		}
	}
	return ev
}

type ackResponse struct {
	Status string `json:"status"`
}

type flushResponse struct {
	Written int `json:"written"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
