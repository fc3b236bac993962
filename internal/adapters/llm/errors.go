package llm

import (
	"errors"
)

// Sentinel kinds for model client errors.
var (
	// ErrEmptyPrompt is returned when the user prompt is blank.
	ErrEmptyPrompt = errors.New("llm: empty prompt")

	// ErrEmptyCompletion is returned when the API answered without any
	// text content. It counts as an attempt failure and is retried.
	ErrEmptyCompletion = errors.New("llm: empty completion")

	// ErrExhausted wraps the last underlying error once every retry
	// attempt has failed.
	ErrExhausted = errors.New("llm: attempts exhausted")
)
