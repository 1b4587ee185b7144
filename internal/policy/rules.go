package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/maklermatch/outreach/internal/domain"
)

// Violation codes. Callers branch on these, not on the human-readable text.
const (
	CodeForbiddenWord      = "forbidden_word"
	CodeForbiddenPhrase    = "forbidden_phrase"
	CodeForbiddenOpener    = "forbidden_opener"
	CodeTooLong            = "too_long"
	CodeTooManyExclamation = "too_many_exclamations"
	CodeTooManyQuestions   = "too_many_questions"
	CodeMissingQuestion    = "missing_question"
	CodeContainsURL        = "contains_url"
	CodeDashTypography     = "dash_typography"
	CodeFormalSignoff      = "formal_signoff"
	CodeLowercaseStarts    = "lowercase_sentence_starts"
	CodeNoPersonalization  = "no_personalization"
	CodeSelfFocused        = "self_focused"
	CodeMissingSellerName  = "missing_seller_name"
)

// Rules holds the unconditional checks a draft must clear before any LLM
// scoring is spent on it.
type Rules struct {
	ForbiddenWords      []string
	ForbiddenPhrases    []string
	ForbiddenOpeners    []string
	FormalSignoffs      []string
	MaxWords            int
	MaxExclamationMarks int
	MaxQuestionMarks    int
}

// DefaultRules returns the production rule set for German broker outreach.
func DefaultRules() Rules {
	return Rules{
		ForbiddenWords:      defaultForbiddenWords,
		ForbiddenPhrases:    defaultForbiddenPhrases,
		ForbiddenOpeners:    defaultForbiddenOpeners,
		FormalSignoffs:      defaultFormalSignoffs,
		MaxWords:            60,
		MaxExclamationMarks: 1,
		MaxQuestionMarks:    1,
	}
}

var (
	urlPattern       = regexp.MustCompile(`(?i)https?://|www\.`)
	selfWordPattern  = regexp.MustCompile(`\b(ich|mein|mir|mich|meine|meinem|meinen|meiner)\b`)
	sentenceStartPat = regexp.MustCompile(`[.!?]\s+(\p{Ll})`)
)

// Check runs every rule against the draft. An empty result means the draft is
// clean; any violation is an immediate rejection.
func (r Rules) Check(message string, signals domain.ListingSignals) []domain.Violation {
	var violations []domain.Violation
	violations = append(violations, r.checkForbiddenWords(message)...)
	violations = append(violations, r.checkForbiddenPhrases(message)...)
	violations = append(violations, r.checkForbiddenOpeners(message)...)
	violations = append(violations, r.checkStructure(message)...)
	violations = append(violations, r.checkPersonalization(message, signals)...)
	violations = append(violations, r.checkSelfFocus(message)...)
	violations = append(violations, r.checkSellerName(message, signals)...)
	return violations
}

func (r Rules) checkForbiddenWords(message string) []domain.Violation {
	var violations []domain.Violation
	lowered := strings.ToLower(message)
	for _, word := range r.ForbiddenWords {
		if strings.Contains(lowered, strings.ToLower(word)) {
			violations = append(violations, domain.Violation{
				Code:    CodeForbiddenWord,
				Message: fmt.Sprintf("Verbotenes Wort: '%s'", word),
			})
		}
	}
	return violations
}

func (r Rules) checkForbiddenPhrases(message string) []domain.Violation {
	var violations []domain.Violation
	lowered := strings.ToLower(message)
	for _, phrase := range r.ForbiddenPhrases {
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			violations = append(violations, domain.Violation{
				Code:    CodeForbiddenPhrase,
				Message: fmt.Sprintf("Verbotene Phrase: '%s'", phrase),
			})
		}
	}
	return violations
}

func (r Rules) checkForbiddenOpeners(message string) []domain.Violation {
	stripped := strings.TrimSpace(message)
	for _, opener := range r.ForbiddenOpeners {
		if strings.HasPrefix(stripped, opener) {
			return []domain.Violation{{
				Code:    CodeForbiddenOpener,
				Message: fmt.Sprintf("Verbotener Anfang: '%s...'", opener),
			}}
		}
	}
	return nil
}

func (r Rules) checkStructure(message string) []domain.Violation {
	var violations []domain.Violation

	wordCount := len(strings.Fields(message))
	if wordCount > r.MaxWords {
		violations = append(violations, domain.Violation{
			Code:    CodeTooLong,
			Message: fmt.Sprintf("Zu lang: %d Woerter (max %d)", wordCount, r.MaxWords),
		})
	}

	if n := strings.Count(message, "!"); n > r.MaxExclamationMarks {
		violations = append(violations, domain.Violation{
			Code:    CodeTooManyExclamation,
			Message: fmt.Sprintf("Zu viele Ausrufezeichen: %d (max %d)", n, r.MaxExclamationMarks),
		})
	}

	questionCount := strings.Count(message, "?")
	if questionCount > r.MaxQuestionMarks {
		violations = append(violations, domain.Violation{
			Code:    CodeTooManyQuestions,
			Message: fmt.Sprintf("Zu viele Fragezeichen: %d (max %d)", questionCount, r.MaxQuestionMarks),
		})
	}
	if questionCount == 0 {
		violations = append(violations, domain.Violation{
			Code:    CodeMissingQuestion,
			Message: "Kein Fragezeichen, Nachricht braucht genau eine Frage",
		})
	}

	if urlPattern.MatchString(message) {
		violations = append(violations, domain.Violation{
			Code:    CodeContainsURL,
			Message: "Enthaelt URL, nicht erlaubt",
		})
	}

	if strings.ContainsRune(message, '—') || strings.ContainsRune(message, '–') {
		violations = append(violations, domain.Violation{
			Code:    CodeDashTypography,
			Message: "Em-Dash/En-Dash gefunden (AI-Tell)",
		})
	}
	if strings.Contains(message, " -- ") {
		violations = append(violations, domain.Violation{
			Code:    CodeDashTypography,
			Message: "Doppelter Bindestrich als Gedankenstrich gefunden",
		})
	}

	lowered := strings.ToLower(strings.TrimRight(message, " \t\n"))
	tail := lowered
	if len(tail) > 60 {
		tail = tail[len(tail)-60:]
	}
	for _, signoff := range r.FormalSignoffs {
		if strings.Contains(tail, signoff) {
			violations = append(violations, domain.Violation{
				Code:    CodeFormalSignoff,
				Message: fmt.Sprintf("Zu formelle Grussformel: '%s'", signoff),
			})
		}
	}

	if n := len(sentenceStartPat.FindAllString(message, -1)); n >= 2 {
		violations = append(violations, domain.Violation{
			Code:    CodeLowercaseStarts,
			Message: fmt.Sprintf("%d Saetze beginnen kleingeschrieben", n),
		})
	}

	return violations
}

// checkPersonalization verifies the draft references at least one concrete
// fact from the listing. A message that mentions nothing specific reads like
// bulk spam no matter how well it is written.
func (r Rules) checkPersonalization(message string, signals domain.ListingSignals) []domain.Violation {
	lowered := strings.ToLower(message)

	for i, feature := range signals.UniqueFeatures {
		if i >= 5 {
			break
		}
		for _, word := range strings.Fields(feature) {
			if len(word) > 4 && strings.Contains(lowered, strings.ToLower(word)) {
				return nil
			}
		}
	}

	if signals.Price > 0 {
		plain := strconv.Itoa(signals.Price)
		if strings.Contains(strings.ReplaceAll(message, ".", ""), plain) {
			return nil
		}
		if strings.Contains(message, FormatPriceDE(signals.Price)) {
			return nil
		}
	}

	if signals.City != "" && strings.Contains(lowered, strings.ToLower(signals.City)) {
		return nil
	}
	if signals.PostalCode != "" && strings.Contains(message, signals.PostalCode) {
		return nil
	}
	if signals.LivingAreaSqm > 0 && strings.Contains(message, strconv.Itoa(int(signals.LivingAreaSqm))) {
		return nil
	}
	if signals.PlotAreaSqm > 0 && strings.Contains(message, strconv.Itoa(int(signals.PlotAreaSqm))) {
		return nil
	}

	return []domain.Violation{{
		Code:    CodeNoPersonalization,
		Message: "Keine Personalisierung, kein spezifisches Detail aus der Anzeige gefunden",
	}}
}

func (r Rules) checkSelfFocus(message string) []domain.Violation {
	opening := strings.ToLower(strings.TrimSpace(message))
	if len(opening) > 50 {
		opening = opening[:50]
	}
	if len(selfWordPattern.FindAllString(opening, -1)) >= 2 {
		return []domain.Violation{{
			Code:    CodeSelfFocused,
			Message: "Zu viel Ich-Fokus am Anfang, beginne mit der Immobilie",
		}}
	}
	return nil
}

func (r Rules) checkSellerName(message string, signals domain.ListingSignals) []domain.Violation {
	name := strings.TrimSpace(signals.SellerName)
	if name == "" {
		return nil
	}
	first := name
	if idx := strings.IndexByte(first, ' '); idx > 0 {
		first = first[:idx]
	}
	if strings.Contains(message, first) {
		return nil
	}
	return []domain.Violation{{
		Code:    CodeMissingSellerName,
		Message: fmt.Sprintf("Verkaeufername '%s' fehlt in der Anrede", first),
	}}
}

// FormatPriceDE renders 385000 as "385.000" the way German listings show it.
func FormatPriceDE(price int) string {
	digits := strconv.Itoa(price)
	if len(digits) <= 3 {
		return digits
	}
	var builder strings.Builder
	offset := len(digits) % 3
	if offset > 0 {
		builder.WriteString(digits[:offset])
	}
	for i := offset; i < len(digits); i += 3 {
		if builder.Len() > 0 {
			builder.WriteByte('.')
		}
		builder.WriteString(digits[i : i+3])
	}
	return builder.String()
}
