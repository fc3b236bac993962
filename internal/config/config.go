// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
	"time"
)

// TickerConfig holds the model inputs for one ticker's daily analysis.
// A ticker listed without a prompt and weights is skipped by the daily
// run with a warning.
type TickerConfig struct {
	// Prompt is the user-prompt template sent to the model for this ticker.
	Prompt string `koanf:"prompt"`

	// Weights maps metric names to the weighting forwarded to the model.
	Weights map[string]float64 `koanf:"weights"`
}

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the admin HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// DatabaseDSN is the Postgres connection string.
	DatabaseDSN string `koanf:"database_dsn"`

	// Tickers lists the symbols the daily analysis run covers, in order.
	Tickers []string `koanf:"tickers"`

	// TickerConfigs maps a ticker to its prompt and weights.
	TickerConfigs map[string]TickerConfig `koanf:"ticker_configs"`

	// SystemPrompt is sent as the model's system message for every ticker.
	SystemPrompt string `koanf:"system_prompt"`

	// Model selects the completion model.
	Model string `koanf:"model"`

	// MaxTokens caps the completion length.
	MaxTokens int `koanf:"max_tokens"`

	// AnthropicAPIKey authenticates model calls.
	AnthropicAPIKey string `koanf:"anthropic_api_key"`

	// BatchSize is the event-buffer flush threshold.
	BatchSize int `koanf:"batch_size"`

	// FlushIntervalSeconds is the event-buffer time trigger.
	FlushIntervalSeconds int `koanf:"flush_interval_seconds"`

	// WorkerCount sets the number of pool workers.
	WorkerCount int `koanf:"worker_count"`

	// TaskQueueSize bounds the pool's pending-task channel.
	TaskQueueSize int `koanf:"task_queue_size"`

	// ModelTimeoutSeconds bounds each model call attempt.
	ModelTimeoutSeconds int `koanf:"model_timeout_seconds"`

	// ModelAttempts is how many times a model call is tried.
	ModelAttempts int `koanf:"model_attempts"`

	// ModelBackoffSeconds is the base backoff between model attempts.
	ModelBackoffSeconds int `koanf:"model_backoff_seconds"`

	// StoreRetries is how many times an analysis upsert is tried.
	StoreRetries int `koanf:"store_retries"`

	// WindowDays is the default lookback for analysis history reads.
	WindowDays int `koanf:"window_days"`

	// AnalysisCron schedules the daily analysis run (UTC).
	AnalysisCron string `koanf:"analysis_cron"`

	// FlushCron schedules the periodic non-forced buffer flush.
	FlushCron string `koanf:"flush_cron"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9090",
		DatabaseDSN:          "postgres://localhost:5432/finbrief?sslmode=disable",
		Tickers:              nil,
		TickerConfigs:        map[string]TickerConfig{},
		SystemPrompt:         "You are a financial analyst. End your commentary with a score from 1 to 10.",
		Model:                "claude-sonnet-4-20250514",
		MaxTokens:            2048,
		BatchSize:            10,
		FlushIntervalSeconds: 300,
		WorkerCount:          runtime.NumCPU() * 4,
		TaskQueueSize:        256,
		ModelTimeoutSeconds:  60,
		ModelAttempts:        3,
		ModelBackoffSeconds:  2,
		StoreRetries:         3,
		WindowDays:           7,
		AnalysisCron:         "0 6 * * *",
		FlushCron:            "* * * * *",
	}
}

// FlushInterval returns the buffer time trigger as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

// ModelTimeout returns the per-attempt model timeout as a duration.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSeconds) * time.Second
}

// ModelBackoff returns the base model backoff as a duration.
func (c *Config) ModelBackoff() time.Duration {
	return time.Duration(c.ModelBackoffSeconds) * time.Second
}

// TickerConfigFor returns the ticker's prompt/weights and whether the
// ticker is fully configured for analysis.
func (c *Config) TickerConfigFor(ticker string) (TickerConfig, bool) {
	tc, ok := c.TickerConfigs[ticker]
	if !ok || tc.Prompt == "" || len(tc.Weights) == 0 {
		return TickerConfig{}, false
	}
	return tc, true
}
