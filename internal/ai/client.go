package ai

import (
	"context"
	"errors"
	"fmt"
)

var ErrClientUnavailable = errors.New("llm client is not configured")

// LLMClient is the single-turn text completion capability shared by the
// listing gate, the generator, the quality scorer and the safeguard. Each
// caller supplies its own prompts.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type providerHTTPError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.StatusCode, e.Message)
}

func isRetryableProviderError(err error) bool {
	var httpErr *providerHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}
	return false
}
