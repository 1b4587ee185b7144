package generator

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/maklermatch/outreach/internal/cache"
	"github.com/maklermatch/outreach/internal/domain"
	"github.com/maklermatch/outreach/internal/guard"
	"github.com/maklermatch/outreach/internal/humanize"
	"github.com/maklermatch/outreach/internal/pacing"
	"github.com/maklermatch/outreach/internal/policy"
)

// scriptedLLM replays queued responses and records every prompt pair.
type scriptedLLM struct {
	responses     []string
	systemPrompts []string
	userPrompts   []string
}

func (s *scriptedLLM) Generate(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	s.systemPrompts = append(s.systemPrompts, systemPrompt)
	s.userPrompts = append(s.userPrompts, userPrompt)
	if len(s.responses) == 0 {
		return "", errors.New("scripted llm exhausted")
	}
	response := s.responses[0]
	s.responses = s.responses[1:]
	return response, nil
}

const validDraft = "Hallo! Bin Makler hier in Leipzig, das Haus mit 140m² ist mir aufgefallen. Noch zu haben? VG Max"

func testSignals() domain.ListingSignals {
	return domain.ListingSignals{
		ListingID:     "listing-1",
		ListingURL:    "https://example.org/listing-1",
		PropertyType:  "Einfamilienhaus",
		Price:         385000,
		LivingAreaSqm: 140,
		City:          "Leipzig",
		Tone:          domain.ToneSie,
	}
}

func testPersonalization() domain.PersonalizationResult {
	return domain.PersonalizationResult{
		PrimaryAnchor:       "140m² Einfamilienhaus in Leipzig",
		RecommendedVariants: []domain.MessageVariant{domain.VariantDirectHonest},
	}
}

func newTestGenerator(llm *scriptedLLM, safeguardEnabled bool) *MessageGenerator {
	config := pacing.DefaultDelayConfig()
	config.TestMode = true
	return NewMessageGenerator(
		llm,
		guard.NewSpamGuard(nil, policy.DefaultRules(), 6),
		humanize.NewPostProcessor(humanize.Config{TypoProbability: 0}),
		pacing.NewDelayCalculator(config),
		cache.NewMemoryDedupeStore(cache.MemoryConfig{}),
		Options{
			SafeguardEnabled: safeguardEnabled,
			Logger:           log.New(io.Discard, "", 0),
		},
	)
}

func TestGenerateFirstAttemptSucceeds(t *testing.T) {
	llm := &scriptedLLM{responses: []string{validDraft}}
	g := newTestGenerator(llm, false)

	result, err := g.Generate(context.Background(), testSignals(), testPersonalization(), "")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if result.Skipped || result.Message == nil {
		t.Fatalf("expected a message, got %+v", result)
	}
	if result.Message.Text != validDraft {
		t.Fatalf("unexpected text: %q", result.Message.Text)
	}
	if result.Message.GenerationAttempt != 1 {
		t.Fatalf("expected attempt 1, got %d", result.Message.GenerationAttempt)
	}
	if result.Message.Variant != domain.VariantDirectHonest {
		t.Fatalf("expected recommended variant, got %s", result.Message.Variant)
	}
	if result.Message.ListingID != "listing-1" {
		t.Fatalf("unexpected listing id: %s", result.Message.ListingID)
	}
	if result.Delay != 0 {
		t.Fatalf("expected zero delay in test mode, got %s", result.Delay)
	}
}

func TestGenerateSkipToken(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"[SKIP]"}}
	g := newTestGenerator(llm, false)

	result, err := g.Generate(context.Background(), testSignals(), testPersonalization(), "")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !result.Skipped || result.Message != nil {
		t.Fatalf("expected skip, got %+v", result)
	}
}

func TestGenerateRetriesWithFeedback(t *testing.T) {
	rejected := "Hallo! Eine kostenlose Bewertung fuer Ihr Haus in Leipzig? VG Max"
	llm := &scriptedLLM{responses: []string{rejected, validDraft}}
	g := newTestGenerator(llm, false)

	result, err := g.Generate(context.Background(), testSignals(), testPersonalization(), "")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if result.Message == nil || result.Message.GenerationAttempt != 2 {
		t.Fatalf("expected success on attempt 2, got %+v", result)
	}

	if len(llm.userPrompts) != 2 {
		t.Fatalf("expected 2 llm calls, got %d", len(llm.userPrompts))
	}
	if !strings.Contains(llm.userPrompts[1], "VORHERIGER VERSUCH ABGELEHNT") {
		t.Fatalf("expected corrective feedback in retry prompt")
	}
	if !strings.Contains(llm.userPrompts[1], "kostenlos") {
		t.Fatalf("expected the violation detail in the feedback")
	}
}

func TestGenerateFailsAfterAllRetries(t *testing.T) {
	rejected := "Hallo! Eine kostenlose Bewertung fuer Ihr Haus in Leipzig? VG Max"
	llm := &scriptedLLM{responses: []string{rejected, rejected, rejected}}
	g := newTestGenerator(llm, false)

	_, err := g.Generate(context.Background(), testSignals(), testPersonalization(), "")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if len(llm.userPrompts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(llm.userPrompts))
	}
}

func TestGenerateSuppressesDuplicates(t *testing.T) {
	llm := &scriptedLLM{responses: []string{validDraft, validDraft, validDraft, validDraft}}
	g := newTestGenerator(llm, false)

	if _, err := g.Generate(context.Background(), testSignals(), testPersonalization(), ""); err != nil {
		t.Fatalf("first generate failed: %v", err)
	}

	_, err := g.Generate(context.Background(), testSignals(), testPersonalization(), "")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected duplicate text to fail generation, got %v", err)
	}
}

func TestGenerateCleansWrappingAndPrefixes(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`"Hier ist die Nachricht: ` + validDraft + `"`}}
	g := newTestGenerator(llm, false)

	result, err := g.Generate(context.Background(), testSignals(), testPersonalization(), "")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if result.Message.Text != validDraft {
		t.Fatalf("expected cleaned draft, got %q", result.Message.Text)
	}
}

func TestGenerateSafeguardRejectionRetries(t *testing.T) {
	secondDraft := "Hallo! Das Haus in Leipzig mit dem Garten gefaellt mir als Makler sehr. Noch verfuegbar? VG Max"
	llm := &scriptedLLM{responses: []string{
		validDraft,
		"NEIN\nKlingt nach Template",
		secondDraft,
		"JA",
	}}
	g := newTestGenerator(llm, true)

	result, err := g.Generate(context.Background(), testSignals(), testPersonalization(), "")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if result.Message == nil || result.Message.GenerationAttempt != 2 {
		t.Fatalf("expected success on attempt 2 after safeguard rejection, got %+v", result)
	}
	if !strings.Contains(llm.userPrompts[2], "Klingt nach Template") {
		t.Fatalf("expected safeguard reason in feedback prompt")
	}
}

func TestGenerateAllVariantsSkipsFailedOnes(t *testing.T) {
	rejected := "Hallo! Eine kostenlose Bewertung fuer Ihr Haus in Leipzig? VG Max"
	responses := make([]string, 0, 8)
	// First variant burns all three attempts, the remaining five succeed
	// with distinct drafts.
	responses = append(responses, rejected, rejected, rejected)
	drafts := []string{
		"Hallo! In Leipzig sind Haeuser wie Ihres gerade gefragt. Wie lange inserieren Sie schon? VG Max",
		"Hallo! Habe einen Suchkunden fuer Leipzig, Ihr Haus koennte passen. Noch verfuegbar? VG Max",
		"Hallo! Arbeite viel in Leipzig und Ihr Haus ist mir aufgefallen. Noch zu haben? VG Max",
		"Hallo! Makler hier, Ihr Haus in Leipzig gefaellt mir. Kurzes Telefonat? VG Max",
		"Hallo! Bei Ihrem Haus in Leipzig fehlt der Energieausweis im Inserat. Schon bedacht? VG Max",
	}
	responses = append(responses, drafts...)
	llm := &scriptedLLM{responses: responses}
	g := newTestGenerator(llm, false)

	results, err := g.GenerateAllVariants(context.Background(), testSignals(), testPersonalization())
	if err != nil {
		t.Fatalf("generate all variants failed: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 surviving variants, got %d", len(results))
	}
	if _, ok := results[domain.VariantDirectHonest]; ok {
		t.Fatalf("expected the failed variant to be absent")
	}
}

func TestGenerateFollowupInvalidStage(t *testing.T) {
	llm := &scriptedLLM{}
	g := newTestGenerator(llm, false)

	if _, err := g.GenerateFollowup(context.Background(), testSignals(), domain.StageInitial); err == nil {
		t.Fatalf("expected error for invalid stage")
	}
}

func TestGenerateFollowupUsesStagePrompt(t *testing.T) {
	followupDraft := "Ach uebrigens, in Leipzig sind vergleichbare Haeuser zuletzt schneller verkauft worden. Planen Sie beim Preis flexibel zu bleiben?"
	llm := &scriptedLLM{responses: []string{followupDraft}}
	g := newTestGenerator(llm, false)

	result, err := g.GenerateFollowup(context.Background(), testSignals(), domain.StageFollowUp2)
	if err != nil {
		t.Fatalf("followup failed: %v", err)
	}
	if result.Message == nil || result.Message.Stage != domain.StageFollowUp2 {
		t.Fatalf("expected stage followup_2, got %+v", result)
	}
	if !strings.Contains(llm.systemPrompts[0], "Letzte Nachricht") {
		t.Fatalf("expected stage 2 system prompt")
	}
}
