package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maklermatch/outreach/internal/ai"
	"github.com/maklermatch/outreach/internal/cache"
	"github.com/maklermatch/outreach/internal/domain"
	"github.com/maklermatch/outreach/internal/guard"
	"github.com/maklermatch/outreach/internal/humanize"
	"github.com/maklermatch/outreach/internal/pacing"
)

const skipToken = "[SKIP]"

// ErrGenerationFailed means every attempt for a draft was rejected by
// validation. The caller decides whether to retry later or give up on the
// listing.
var ErrGenerationFailed = errors.New("message generation failed")

// MessageResult is the outcome of one generation request. Skipped means the
// model declined to write at all; Message is nil in that case. Delay is the
// humanized pause the caller should wait before sending.
type MessageResult struct {
	Message *domain.Message
	Skipped bool
	Delay   time.Duration
}

// Options tunes a MessageGenerator. Zero values fall back to production
// defaults.
type Options struct {
	Persona          domain.Persona
	MaxRetries       int
	SafeguardEnabled bool
	Logger           *log.Logger
}

// MessageGenerator turns listing signals into validated German outreach
// drafts. Every draft runs the same pipeline: post-process, spam guard,
// optionally safeguard, dedupe. Rejected attempts feed their reasons back
// into the prompt for the next try.
type MessageGenerator struct {
	llm           ai.LLMClient
	spamGuard     *guard.SpamGuard
	safeguard     *guard.Safeguard
	postProcessor *humanize.PostProcessor
	delay         *pacing.DelayCalculator
	dedupe        cache.DedupeStore
	persona       domain.Persona
	maxRetries    int
	useSafeguard  bool
	logger        *log.Logger
}

func NewMessageGenerator(
	llm ai.LLMClient,
	spamGuard *guard.SpamGuard,
	postProcessor *humanize.PostProcessor,
	delay *pacing.DelayCalculator,
	dedupe cache.DedupeStore,
	opts Options,
) *MessageGenerator {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[generator] ", log.LstdFlags)
	}
	persona := opts.Persona
	if persona.Name == "" {
		persona = DefaultPersona
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	if dedupe == nil {
		dedupe = cache.NewMemoryDedupeStore(cache.MemoryConfig{})
	}
	return &MessageGenerator{
		llm:           llm,
		spamGuard:     spamGuard,
		safeguard:     guard.NewSafeguard(llm, opts.SafeguardEnabled),
		postProcessor: postProcessor,
		delay:         delay,
		dedupe:        dedupe,
		persona:       persona,
		maxRetries:    maxRetries,
		useSafeguard:  opts.SafeguardEnabled,
		logger:        opts.Logger,
	}
}

// Generate produces a first-contact draft. An empty variant falls back to
// the first recommended variant, then to direct_honest.
func (g *MessageGenerator) Generate(
	ctx context.Context,
	signals domain.ListingSignals,
	personalization domain.PersonalizationResult,
	variant domain.MessageVariant,
) (*MessageResult, error) {
	if variant == "" {
		if len(personalization.RecommendedVariants) > 0 {
			variant = personalization.RecommendedVariants[0]
		} else {
			variant = domain.VariantDirectHonest
		}
	}
	return g.generateWithRetries(ctx, signals, personalization, variant, true)
}

// GenerateAllVariants produces one draft per variant. Variants whose attempts
// are all rejected are left out of the result instead of failing the batch.
func (g *MessageGenerator) GenerateAllVariants(
	ctx context.Context,
	signals domain.ListingSignals,
	personalization domain.PersonalizationResult,
) (map[domain.MessageVariant]*MessageResult, error) {
	results := make(map[domain.MessageVariant]*MessageResult, len(domain.AllVariants))
	for _, variant := range domain.AllVariants {
		result, err := g.generateWithRetries(ctx, signals, personalization, variant, true)
		if err != nil {
			if errors.Is(err, ErrGenerationFailed) {
				g.logger.Printf("variant %s failed all retries for listing %s", variant, signals.ListingID)
				continue
			}
			return nil, err
		}
		results[variant] = result
	}
	return results, nil
}

// GenerateFollowup produces a follow-up draft for stage one or two.
func (g *MessageGenerator) GenerateFollowup(
	ctx context.Context,
	signals domain.ListingSignals,
	stage domain.FollowUpStage,
) (*MessageResult, error) {
	if stage != domain.StageFollowUp1 && stage != domain.StageFollowUp2 {
		return nil, fmt.Errorf("invalid follow-up stage: %s", stage)
	}

	systemPrompt, userPrompt := buildFollowupPrompt(signals, stage, g.persona)

	return g.runPipeline(ctx, signals, systemPrompt, userPrompt, func(processed string, score, attempt int) *domain.Message {
		return &domain.Message{
			Text:              processed,
			ListingID:         signals.ListingID,
			ListingURL:        signals.ListingURL,
			GeneratedAt:       time.Now(),
			SpamGuardScore:    score,
			GenerationAttempt: attempt,
			Stage:             stage,
			Variant:           domain.VariantDirectHonest,
		}
	}, false)
}

func (g *MessageGenerator) generateWithRetries(
	ctx context.Context,
	signals domain.ListingSignals,
	personalization domain.PersonalizationResult,
	variant domain.MessageVariant,
	isFirstInConversation bool,
) (*MessageResult, error) {
	systemPrompt, userPrompt := buildGenerationPrompt(signals, personalization, variant, g.persona)

	return g.runPipeline(ctx, signals, systemPrompt, userPrompt, func(processed string, score, attempt int) *domain.Message {
		return &domain.Message{
			Text:              processed,
			ListingID:         signals.ListingID,
			ListingURL:        signals.ListingURL,
			GeneratedAt:       time.Now(),
			SpamGuardScore:    score,
			GenerationAttempt: attempt,
			Stage:             domain.StageInitial,
			Variant:           variant,
		}
	}, isFirstInConversation)
}

// runPipeline is the shared attempt loop. build turns an accepted draft into
// the final Message.
func (g *MessageGenerator) runPipeline(
	ctx context.Context,
	signals domain.ListingSignals,
	systemPrompt, userPrompt string,
	build func(processed string, score, attempt int) *domain.Message,
	isFirstInConversation bool,
) (*MessageResult, error) {
	for attempt := 1; attempt <= g.maxRetries+1; attempt++ {
		raw, err := g.llm.Generate(ctx, systemPrompt, userPrompt)
		if err != nil {
			return nil, fmt.Errorf("llm generate: %w", err)
		}
		draft := cleanMessage(strings.TrimSpace(raw))

		if isSkip(draft) {
			g.logger.Printf("listing %s skipped by agent decision", signals.ListingID)
			delayResult := g.delay.Calculate(0, isFirstInConversation)
			return &MessageResult{Skipped: true, Delay: delayResult.Delay}, nil
		}

		processed := g.postProcessor.Process(draft)
		validation := g.spamGuard.Validate(ctx, processed, signals)

		duplicate, err := g.isDuplicate(ctx, processed)
		if err != nil {
			return nil, err
		}

		if validation.Passed && !duplicate {
			if g.useSafeguard {
				safeguardResult := g.safeguard.Check(ctx, processed)
				if !safeguardResult.Passed && attempt <= g.maxRetries {
					userPrompt += rejectionFeedback(safeguardResult.Reason)
					g.logger.Printf("attempt %d rejected by safeguard: %s", attempt, safeguardResult.Reason)
					continue
				}
			}

			if err := g.dedupe.Record(ctx, cache.HashMessage(processed)); err != nil {
				return nil, fmt.Errorf("record sent hash: %w", err)
			}
			g.delay.MarkActive()
			delayResult := g.delay.Calculate(utf8.RuneCountInString(processed), isFirstInConversation)

			return &MessageResult{
				Message: build(processed, validation.Score, attempt),
				Delay:   delayResult.Delay,
			}, nil
		}

		if attempt <= g.maxRetries {
			reasons := formatViolations(validation.RejectionReasons)
			if duplicate {
				reasons = appendReason(reasons, "Nachricht ist identisch mit einer bereits gesendeten")
			}
			userPrompt += rejectionFeedback(reasons)
			g.logger.Printf("attempt %d rejected: %s", attempt, reasons)
		}
	}

	return nil, fmt.Errorf("%w: %d attempts exhausted for listing %s", ErrGenerationFailed, g.maxRetries+1, signals.ListingID)
}

func rejectionFeedback(reasons string) string {
	return "\n\nVORHERIGER VERSUCH ABGELEHNT: " + reasons + "\nBitte korrigiere diese Probleme."
}

func formatViolations(violations []domain.Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.Message)
	}
	return strings.Join(parts, "; ")
}

func appendReason(reasons, extra string) string {
	if reasons == "" {
		return extra
	}
	return reasons + "; " + extra
}

func isSkip(message string) bool {
	return strings.ToUpper(strings.TrimSpace(message)) == skipToken
}

func (g *MessageGenerator) isDuplicate(ctx context.Context, message string) (bool, error) {
	seen, err := g.dedupe.Seen(ctx, cache.HashMessage(message))
	if err != nil {
		return false, fmt.Errorf("check sent hash: %w", err)
	}
	return seen, nil
}

// cleanMessage strips wrapping quotes and boilerplate prefixes models like to
// add around the actual draft.
func cleanMessage(text string) string {
	cleaned := text
	if strings.HasPrefix(cleaned, `"`) && strings.HasSuffix(cleaned, `"`) && len(cleaned) >= 2 {
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	if strings.HasPrefix(cleaned, "'") && strings.HasSuffix(cleaned, "'") && len(cleaned) >= 2 {
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	prefixes := []string{
		"Hier ist die Nachricht:",
		"Nachricht:",
		"Hier ist mein Vorschlag:",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(cleaned, prefix) {
			cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, prefix))
		}
	}
	return strings.TrimSpace(cleaned)
}
