// Package llm is the boundary to the external text-generation collaborator.
// Clients focus on the API call itself; cross-cutting concerns (retries,
// rate limiting, logging) are layered on via Middleware.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse indicates the model returned no usable content.
var ErrEmptyResponse = errors.New("llm: empty response from model")

// Request is one generation call. When JSON is set, the client asks the
// provider for a JSON object response.
type Request struct {
	Prompt      string  // system/instruction text
	Input       any     // structured payload, serialized into the user turn
	JSON        bool    // request a JSON object response
	Temperature float32 // 0 = deterministic where the provider allows it
	MaxTokens   int     // 0 = provider default
}

// Client generates text for a prompt plus structured input.
type Client interface {
	Name() string
	Close() error
	CountTokens(text string) int
	Generate(ctx context.Context, req Request) (string, error)
}

// PermanentError marks a failure that will not resolve with retries
// (bad credentials, prompt over the context window). Retry middleware
// escalates it immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var pErr *PermanentError
	return errors.As(err, &pErr)
}

// estimateTokens is a coarse token estimate used for logging and budgeting;
// roughly four bytes per token for English prose.
func estimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
