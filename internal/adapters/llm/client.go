// Package llm provides the Anthropic completion client used for daily
// ticker analysis.
//
// Every call runs under an explicit per-call timeout and a small bounded
// retry with linear backoff; exhaustion surfaces as ErrExhausted. The
// raw completion text is returned untouched, validation of its shape
// belongs to the parse package.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/okian/finbrief/pkg/logger"
	"github.com/okian/finbrief/pkg/metrics"
)

// Default call configuration.
const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 2048
	defaultTimeout   = 60 * time.Second
	defaultAttempts  = 3
	defaultBackoff   = 2 * time.Second
)

// Completion is one model answer with its token accounting.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Completer generates one completion for a system/user prompt pair.
type Completer interface {
	Complete(ctx context.Context, system, user string) (Completion, error)
}

// Client talks to the Anthropic API.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	attempts  int
	backoff   time.Duration
	log       logger.Logger

	// create is the API call; tests swap it for a fake.
	create func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// New creates a client authenticated with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		api:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		timeout:   defaultTimeout,
		attempts:  defaultAttempts,
		backoff:   defaultBackoff,
		log:       logger.Get().Named("llm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.create == nil {
		c.create = func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
			return c.api.Messages.New(ctx, params)
		}
	}
	return c
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one system/user prompt pair and returns the completion.
// Each attempt runs under its own timeout; failed attempts back off
// linearly before retrying. When every attempt fails the returned error
// wraps ErrExhausted with the last underlying cause.
func (c *Client) Complete(ctx context.Context, system, user string) (Completion, error) {
	if strings.TrimSpace(user) == "" {
		return Completion{}, ErrEmptyPrompt
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			metrics.RecordModelRetry()
			if err := sleepCtx(ctx, time.Duration(attempt-1)*c.backoff); err != nil {
				return Completion{}, err
			}
		}

		out, err := c.once(ctx, params)
		if err == nil {
			return out, nil
		}
		lastErr = err
		c.log.Warn(ctx, "model call failed",
			logger.Int("attempt", attempt),
			logger.Int("attempts", c.attempts),
			logger.Error(err),
		)
		if ctx.Err() != nil {
			// Parent context gone: retrying cannot help.
			break
		}
	}

	metrics.RecordModelError()
	return Completion{}, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, c.attempts, lastErr)
}

// once runs a single attempt under the per-call timeout.
func (c *Client) once(ctx context.Context, params anthropic.MessageNewParams) (Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.create(callCtx, params)
	metrics.RecordModelLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return Completion{}, fmt.Errorf("model call: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Completion{}, ErrEmptyCompletion
	}

	out := Completion{
		Text:             text.String(),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}
	metrics.AddModelTokens(out.PromptTokens, out.CompletionTokens)
	return out, nil
}

// sleepCtx waits for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
