package ai

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// The checks built on these helpers are advisory: when the model itself is
// broken they must not block outreach. Callers that need the opposite
// behavior call the client directly.

// Verdict asks the model a JA/NEIN question and parses the answer. The first
// line decides; the second line, when present, is the reason for a NEIN. A
// nil client or any generation error counts as JA (fail open).
func Verdict(ctx context.Context, llm LLMClient, systemPrompt, input, fallbackReason string) (bool, string) {
	if llm == nil {
		return true, ""
	}

	response, err := llm.Generate(ctx, systemPrompt, input)
	if err != nil {
		return true, ""
	}

	lines := strings.Split(strings.TrimSpace(response), "\n")
	firstLine := strings.ToUpper(strings.TrimSpace(lines[0]))
	if strings.HasPrefix(firstLine, "JA") {
		return true, ""
	}

	reason := fallbackReason
	if len(lines) > 1 && strings.TrimSpace(lines[1]) != "" {
		reason = strings.TrimSpace(lines[1])
	}
	return false, reason
}

var scorePattern = regexp.MustCompile(`\b(\d+)\b`)

// Score asks the model for a numeric rating and clamps it into [min, max].
// Unparseable output or an error yields the neutral fallback.
func Score(ctx context.Context, llm LLMClient, systemPrompt, input string, fallback, min, max int) int {
	if llm == nil {
		return fallback
	}

	response, err := llm.Generate(ctx, systemPrompt, input)
	if err != nil {
		return fallback
	}

	match := scorePattern.FindString(strings.TrimSpace(response))
	if match == "" {
		return fallback
	}
	score, err := strconv.Atoi(match)
	if err != nil {
		return fallback
	}
	if score < min {
		return min
	}
	if score > max {
		return max
	}
	return score
}
