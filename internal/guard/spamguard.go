package guard

import (
	"context"
	"fmt"

	"github.com/maklermatch/outreach/internal/ai"
	"github.com/maklermatch/outreach/internal/domain"
	"github.com/maklermatch/outreach/internal/policy"
)

const (
	CodeLowQualityScore = "low_quality_score"

	neutralQualityScore = 5
)

// SpamGuard is the two-layer draft validator: the unconditional rule layer
// first, then an LLM quality score. A single rule violation rejects with
// score 0 before any LLM tokens are spent.
type SpamGuard struct {
	llm             ai.LLMClient
	rules           policy.Rules
	minQualityScore int
}

// NewSpamGuard builds a guard. llm may be nil, in which case the quality
// layer is skipped entirely.
func NewSpamGuard(llm ai.LLMClient, rules policy.Rules, minQualityScore int) *SpamGuard {
	if minQualityScore <= 0 {
		minQualityScore = 6
	}
	return &SpamGuard{llm: llm, rules: rules, minQualityScore: minQualityScore}
}

func (g *SpamGuard) Validate(ctx context.Context, message string, signals domain.ListingSignals) domain.ValidationResult {
	if violations := g.rules.Check(message, signals); len(violations) > 0 {
		return domain.ValidationResult{
			Passed:           false,
			Score:            0,
			RejectionReasons: violations,
		}
	}

	if g.llm == nil {
		return domain.ValidationResult{Passed: true}
	}

	score := ai.Score(ctx, g.llm, qualityPrompt, message, neutralQualityScore, 1, 10)
	if score < g.minQualityScore {
		return domain.ValidationResult{
			Passed: false,
			Score:  score,
			RejectionReasons: []domain.Violation{{
				Code:    CodeLowQualityScore,
				Message: fmt.Sprintf("LLM-Qualitätsscore %d/10, unter Minimum von %d", score, g.minQualityScore),
			}},
		}
	}
	return domain.ValidationResult{Passed: true, Score: score}
}
