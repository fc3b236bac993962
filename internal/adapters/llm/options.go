package llm

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/okian/finbrief/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithModel sets the model identifier sent with every call.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAttempts sets how many times a call is tried before giving up.
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBackoff sets the base backoff between attempts; attempt n waits
// (n-1) times this.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.backoff = d
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// withCreate replaces the API call; used by tests.
func withCreate(fn func(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)) Option {
	return func(c *Client) {
		if fn != nil {
			c.create = fn
		}
	}
}
