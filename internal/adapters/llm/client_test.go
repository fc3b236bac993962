package llm

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/finbrief/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func textMessage(text string, in, out int64) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: text},
		},
		Usage: anthropic.Usage{InputTokens: in, OutputTokens: out},
	}
}

func TestCompleteSuccess(t *testing.T) {
	calls := 0
	c := New("test-key",
		WithModel("claude-test"),
		withCreate(func(_ context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
			calls++
			assert.Equal(t, anthropic.Model("claude-test"), params.Model)
			require.Len(t, params.Messages, 1)
			require.Len(t, params.System, 1)
			assert.Equal(t, "you are a financial analyst", params.System[0].Text)
			return textMessage("Steady quarter. 7.5", 120, 18), nil
		}),
	)

	out, err := c.Complete(context.Background(), "you are a financial analyst", "analyze AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "Steady quarter. 7.5", out.Text)
	assert.Equal(t, 120, out.PromptTokens)
	assert.Equal(t, 18, out.CompletionTokens)
}

func TestCompleteEmptyPrompt(t *testing.T) {
	c := New("test-key", withCreate(func(context.Context, anthropic.MessageNewParams) (*anthropic.Message, error) {
		t.Fatal("create should not be called")
		return nil, nil
	}))

	_, err := c.Complete(context.Background(), "system", "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestCompleteRetriesThenSucceeds(t *testing.T) {
	calls := 0
	c := New("test-key",
		WithAttempts(3),
		WithBackoff(0),
		withCreate(func(context.Context, anthropic.MessageNewParams) (*anthropic.Message, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("overloaded")
			}
			return textMessage("recovered", 10, 5), nil
		}),
	)

	out, err := c.Complete(context.Background(), "", "analyze TSLA")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "recovered", out.Text)
}

func TestCompleteExhaustsAttempts(t *testing.T) {
	calls := 0
	c := New("test-key",
		WithAttempts(2),
		WithBackoff(0),
		withCreate(func(context.Context, anthropic.MessageNewParams) (*anthropic.Message, error) {
			calls++
			return nil, errors.New("overloaded")
		}),
	)

	_, err := c.Complete(context.Background(), "", "analyze TSLA")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, calls)
}

func TestCompleteEmptyCompletionRetried(t *testing.T) {
	calls := 0
	c := New("test-key",
		WithAttempts(2),
		WithBackoff(0),
		withCreate(func(context.Context, anthropic.MessageNewParams) (*anthropic.Message, error) {
			calls++
			return &anthropic.Message{}, nil
		}),
	)

	_, err := c.Complete(context.Background(), "", "analyze TSLA")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, calls)
}

func TestCompleteStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := New("test-key",
		WithAttempts(5),
		WithBackoff(0),
		withCreate(func(context.Context, anthropic.MessageNewParams) (*anthropic.Message, error) {
			calls++
			cancel()
			return nil, errors.New("overloaded")
		}),
	)

	_, err := c.Complete(ctx, "", "analyze TSLA")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
