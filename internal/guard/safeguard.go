package guard

import (
	"context"

	"github.com/maklermatch/outreach/internal/ai"
	"github.com/maklermatch/outreach/internal/domain"
)

// Safeguard is the last check before send: one LLM call hunting for AI-tells
// in the final text. It fails open; a broken detector must not stop vetted
// messages.
type Safeguard struct {
	llm     ai.LLMClient
	enabled bool
}

func NewSafeguard(llm ai.LLMClient, enabled bool) *Safeguard {
	return &Safeguard{llm: llm, enabled: enabled}
}

func (s *Safeguard) Check(ctx context.Context, message string) domain.SafeguardResult {
	if !s.enabled {
		return domain.SafeguardResult{Passed: true}
	}

	passed, reason := ai.Verdict(ctx, s.llm, safeguardPrompt, message,
		"Safeguard: Nachricht klingt nicht menschlich")
	return domain.SafeguardResult{Passed: passed, Reason: reason}
}
