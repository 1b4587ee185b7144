package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/maklermatch/outreach/internal/domain"
	"github.com/maklermatch/outreach/internal/policy"
)

// scriptedLLM returns queued responses in order and records how often it was
// called.
type scriptedLLM struct {
	responses []string
	err       error
	calls     int
}

func (s *scriptedLLM) Generate(_ context.Context, _, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", errors.New("scripted llm exhausted")
	}
	response := s.responses[0]
	s.responses = s.responses[1:]
	return response, nil
}

func gateSignals() domain.ListingSignals {
	return domain.ListingSignals{
		RawText:       "Einfamilienhaus in Leipzig, 385.000€ VB, 140m²",
		ListingID:     "listing-1",
		PropertyType:  "Einfamilienhaus",
		Price:         385000,
		LivingAreaSqm: 140,
		Rooms:         5,
		PostalCode:    "04177",
		City:          "Leipzig",
	}
}

const validDraft = "Hallo! Bin Makler hier in Leipzig, das Haus mit 140m² ist mir aufgefallen. Noch zu haben? VG Max"

func TestSpamGuardRejectsRuleViolationWithoutLLMCall(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"9"}}
	g := NewSpamGuard(llm, policy.DefaultRules(), 6)

	result := g.Validate(context.Background(), "Hallo! Eine kostenlose Bewertung gefaellig? VG Max", gateSignals())
	if result.Passed {
		t.Fatalf("expected rule violation to reject")
	}
	if result.Score != 0 {
		t.Fatalf("expected score 0 on rule violation, got %d", result.Score)
	}
	if llm.calls != 0 {
		t.Fatalf("expected no LLM call on rule violation, got %d", llm.calls)
	}
}

func TestSpamGuardPassesWithoutLLM(t *testing.T) {
	g := NewSpamGuard(nil, policy.DefaultRules(), 6)

	result := g.Validate(context.Background(), validDraft, gateSignals())
	if !result.Passed {
		t.Fatalf("expected pass without llm, got %v", result.RejectionReasons)
	}
	if result.Score != 0 {
		t.Fatalf("expected score 0 without llm, got %d", result.Score)
	}
}

func TestSpamGuardQualityScore(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"8"}}
	g := NewSpamGuard(llm, policy.DefaultRules(), 6)

	result := g.Validate(context.Background(), validDraft, gateSignals())
	if !result.Passed || result.Score != 8 {
		t.Fatalf("expected pass with score 8, got passed=%v score=%d", result.Passed, result.Score)
	}
}

func TestSpamGuardRejectsLowQualityScore(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"4"}}
	g := NewSpamGuard(llm, policy.DefaultRules(), 6)

	result := g.Validate(context.Background(), validDraft, gateSignals())
	if result.Passed {
		t.Fatalf("expected low score to reject")
	}
	if result.Score != 4 {
		t.Fatalf("expected score 4, got %d", result.Score)
	}
	if len(result.RejectionReasons) != 1 || result.RejectionReasons[0].Code != CodeLowQualityScore {
		t.Fatalf("expected low_quality_score violation, got %v", result.RejectionReasons)
	}
}

func TestSpamGuardNeutralFallbackOnLLMError(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("provider down")}
	g := NewSpamGuard(llm, policy.DefaultRules(), 6)

	// Neutral fallback 5 is below the minimum of 6, so the draft is held
	// back rather than waved through.
	result := g.Validate(context.Background(), validDraft, gateSignals())
	if result.Passed {
		t.Fatalf("expected neutral fallback to reject at min score 6")
	}
	if result.Score != 5 {
		t.Fatalf("expected neutral score 5, got %d", result.Score)
	}
}

func TestListingGateCriteriaMismatchSkipsLLM(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"JA"}}
	g := NewListingGate(llm)

	criteria := &domain.BrokerCriteria{MaxPrice: 300000}
	result := g.Check(context.Background(), gateSignals(), criteria)
	if result.Passed {
		t.Fatalf("expected criteria mismatch to reject")
	}
	if result.RejectionType != domain.GateRejectionCriteria {
		t.Fatalf("expected criteria_mismatch, got %s", result.RejectionType)
	}
	if llm.calls != 0 {
		t.Fatalf("expected no LLM call on criteria mismatch, got %d", llm.calls)
	}
}

func TestListingGateCollectsAllMismatches(t *testing.T) {
	g := NewListingGate(nil)

	criteria := &domain.BrokerCriteria{
		MaxPrice:       300000,
		Cities:         []string{"Dresden"},
		PostalPrefixes: []string{"01"},
	}
	result := g.Check(context.Background(), gateSignals(), criteria)
	if result.Passed {
		t.Fatalf("expected rejection")
	}
	if len(result.Details) != 3 {
		t.Fatalf("expected 3 mismatches, got %v", result.Details)
	}
}

func TestListingGateCitySubstringMatch(t *testing.T) {
	g := NewListingGate(nil)
	signals := gateSignals()
	signals.City = "Leipzig Plagwitz"

	criteria := &domain.BrokerCriteria{Cities: []string{"Leipzig"}}
	if result := g.Check(context.Background(), signals, criteria); !result.Passed {
		t.Fatalf("expected substring city match, got %v", result.Details)
	}
}

func TestListingGateLLMRejection(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"NEIN\nInserat stammt von einem Makler"}}
	g := NewListingGate(llm)

	result := g.Check(context.Background(), gateSignals(), nil)
	if result.Passed {
		t.Fatalf("expected LLM rejection")
	}
	if result.RejectionType != domain.GateRejectionLLM {
		t.Fatalf("expected llm_rejection, got %s", result.RejectionType)
	}
	if result.RejectionReason != "Inserat stammt von einem Makler" {
		t.Fatalf("unexpected reason: %q", result.RejectionReason)
	}
}

func TestListingGateFailsOpenOnLLMError(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("provider down")}
	g := NewListingGate(llm)

	if result := g.Check(context.Background(), gateSignals(), nil); !result.Passed {
		t.Fatalf("expected fail-open pass, got %v", result)
	}
}

func TestSafeguardVerdicts(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"JA", "NEIN\nKlingt nach Template"}}
	s := NewSafeguard(llm, true)

	if result := s.Check(context.Background(), validDraft); !result.Passed {
		t.Fatalf("expected JA to pass")
	}

	result := s.Check(context.Background(), validDraft)
	if result.Passed {
		t.Fatalf("expected NEIN to reject")
	}
	if result.Reason != "Klingt nach Template" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestSafeguardDisabledPasses(t *testing.T) {
	llm := &scriptedLLM{}
	s := NewSafeguard(llm, false)

	if result := s.Check(context.Background(), validDraft); !result.Passed {
		t.Fatalf("expected disabled safeguard to pass")
	}
	if llm.calls != 0 {
		t.Fatalf("expected no LLM call when disabled, got %d", llm.calls)
	}
}

func TestSafeguardFailsOpenOnError(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("provider down")}
	s := NewSafeguard(llm, true)

	if result := s.Check(context.Background(), validDraft); !result.Passed {
		t.Fatalf("expected fail-open pass")
	}
}
