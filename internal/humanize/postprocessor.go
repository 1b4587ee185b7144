// Package humanize removes machine typography from drafts and occasionally
// plants one small human error.
package humanize

import (
	"math/rand"
	"regexp"
	"sort"
	"strings"
)

// Letter transpositions in frequent German words. Only swaps that a fast
// thumb actually produces.
var typoMap = map[string]string{
	"die": "dei",
	"und": "udn",
	"der": "dre",
	"das": "dsa",
	"mit": "mti",
	"hab": "ahb",
	"mal": "aml",
	"was": "wsa",
	"wie": "wei",
	"bei": "bie",
}

var typoWords = func() []string {
	words := make([]string, 0, len(typoMap))
	for word := range typoMap {
		words = append(words, word)
	}
	sort.Strings(words)
	return words
}()

var (
	emDashPattern    = regexp.MustCompile(`\s*\x{2014}\s*`)
	enDashPattern    = regexp.MustCompile(`\s*\x{2013}\s*`)
	doubleDashPat    = regexp.MustCompile(`\s+--\s+`)
	doubleCommaPat   = regexp.MustCompile(`,\s*,`)
	commaAfterDotPat = regexp.MustCompile(`\.\s*,`)
)

type Config struct {
	TypoProbability float64
}

func DefaultConfig() Config {
	return Config{TypoProbability: 0.08}
}

// PostProcessor deterministically rewrites dash typography and, with a small
// probability, introduces at most one typo-style edit.
type PostProcessor struct {
	config Config
}

func NewPostProcessor(config Config) *PostProcessor {
	return &PostProcessor{config: config}
}

func (p *PostProcessor) Process(text string) string {
	result := fixDashes(text)
	return p.addHumanError(result)
}

// fixDashes removes every dash used as a stylistic device. Hyphens inside
// compound words (Wohn-Ess-Bereich) stay untouched.
func fixDashes(text string) string {
	result := emDashPattern.ReplaceAllString(text, ", ")
	result = enDashPattern.ReplaceAllString(result, ", ")
	result = doubleDashPat.ReplaceAllString(result, ", ")
	result = doubleCommaPat.ReplaceAllString(result, ",")
	result = commaAfterDotPat.ReplaceAllString(result, ".")
	return result
}

func (p *PostProcessor) addHumanError(text string) string {
	if rand.Float64() > p.config.TypoProbability {
		return text
	}
	if rand.Float64() < 0.5 {
		return swapLetters(text)
	}
	return removeSpaceAfterComma(text)
}

func swapLetters(text string) string {
	candidates := make([]string, 0, len(typoWords))
	for _, word := range typoWords {
		if strings.Contains(text, word) {
			candidates = append(candidates, word)
		}
	}
	if len(candidates) == 0 {
		return text
	}

	word := candidates[rand.Intn(len(candidates))]
	idx := strings.Index(text, word)
	return text[:idx] + typoMap[word] + text[idx+len(word):]
}

func removeSpaceAfterComma(text string) string {
	var positions []int
	for i := 0; i+1 < len(text); i++ {
		if text[i] == ',' && text[i+1] == ' ' {
			positions = append(positions, i)
		}
	}
	if len(positions) == 0 {
		return text
	}

	pos := positions[rand.Intn(len(positions))]
	return text[:pos+1] + text[pos+2:]
}
