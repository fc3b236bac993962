package testevents

import "time"

// Config holds configuration for the event load test
type Config struct {
	BaseURL    string        // Base URL of the service
	NumEvents  int           // Number of events to generate
	NumUsers   int           // Number of distinct synthetic users
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for events
	LogFile    string        // Log file for test output
	Verbose    bool          // Enable verbose logging
}

// Event mirrors the POST /events request schema
type Event struct {
	UserID          string `json:"user_id"`
	TelegramID      string `json:"telegram_id"`
	EventTime       string `json:"event_time"`
	EventType       string `json:"event_type"`
	Device          string `json:"device"`
	Plan            string `json:"plan"`
	KPI             string `json:"kpi,omitempty"`
	ProductPurchase string `json:"product_purchase,omitempty"`
}

// AckResponse represents the response from event submission
type AckResponse struct {
	Status string `json:"status"`
}

// FlushResponse represents the response from a forced flush
type FlushResponse struct {
	Written int `json:"written"`
}

// Stats holds test statistics
type Stats struct {
	EventsGenerated  int
	EventsSubmitted  int
	EventsSuccessful int
	EventsFailed     int
	EventsFlushed    int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
