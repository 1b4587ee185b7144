package guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/maklermatch/outreach/internal/ai"
	"github.com/maklermatch/outreach/internal/domain"
	"github.com/maklermatch/outreach/internal/policy"
)

// ListingGate screens a listing before any message is drafted. Criteria
// checks run first so obvious mismatches never cost an LLM call; the LLM
// judgment afterwards fails open.
type ListingGate struct {
	llm ai.LLMClient
}

// NewListingGate builds a gate. llm may be nil; then only criteria are
// checked.
func NewListingGate(llm ai.LLMClient) *ListingGate {
	return &ListingGate{llm: llm}
}

func (g *ListingGate) Check(ctx context.Context, signals domain.ListingSignals, criteria *domain.BrokerCriteria) domain.GateResult {
	if criteria != nil {
		if result := checkCriteria(signals, *criteria); !result.Passed {
			return result
		}
	}

	if g.llm != nil {
		if result := g.checkLLM(ctx, signals, criteria); !result.Passed {
			return result
		}
	}

	return domain.GateResult{Passed: true}
}

func checkCriteria(signals domain.ListingSignals, criteria domain.BrokerCriteria) domain.GateResult {
	var mismatches []string

	if signals.Price > 0 {
		if criteria.MinPrice > 0 && signals.Price < criteria.MinPrice {
			mismatches = append(mismatches,
				fmt.Sprintf("Preis %d€ unter Minimum %d€", signals.Price, criteria.MinPrice))
		}
		if criteria.MaxPrice > 0 && signals.Price > criteria.MaxPrice {
			mismatches = append(mismatches,
				fmt.Sprintf("Preis %d€ über Maximum %d€", signals.Price, criteria.MaxPrice))
		}
	}

	if len(criteria.PropertyTypes) > 0 && signals.PropertyType != "" {
		if !containsFold(criteria.PropertyTypes, signals.PropertyType) {
			mismatches = append(mismatches,
				fmt.Sprintf("Immobilientyp %q nicht in [%s]", signals.PropertyType, strings.Join(criteria.PropertyTypes, ", ")))
		}
	}

	if len(criteria.PostalPrefixes) > 0 && signals.PostalCode != "" {
		matched := false
		for _, prefix := range criteria.PostalPrefixes {
			if strings.HasPrefix(signals.PostalCode, prefix) {
				matched = true
				break
			}
		}
		if !matched {
			mismatches = append(mismatches,
				fmt.Sprintf("PLZ %s nicht in Regionen [%s]", signals.PostalCode, strings.Join(criteria.PostalPrefixes, ", ")))
		}
	}

	if len(criteria.Cities) > 0 && signals.City != "" {
		cityLower := strings.ToLower(signals.City)
		matched := false
		for _, city := range criteria.Cities {
			candidate := strings.ToLower(city)
			if strings.Contains(cityLower, candidate) || strings.Contains(candidate, cityLower) {
				matched = true
				break
			}
		}
		if !matched {
			mismatches = append(mismatches,
				fmt.Sprintf("Stadt %q nicht in [%s]", signals.City, strings.Join(criteria.Cities, ", ")))
		}
	}

	if len(criteria.Regions) > 0 && signals.Region != "" {
		if !containsFold(criteria.Regions, signals.Region) {
			mismatches = append(mismatches,
				fmt.Sprintf("Bundesland %q nicht in [%s]", signals.Region, strings.Join(criteria.Regions, ", ")))
		}
	}

	if signals.LivingAreaSqm > 0 {
		if criteria.MinLivingAreaSqm > 0 && signals.LivingAreaSqm < criteria.MinLivingAreaSqm {
			mismatches = append(mismatches,
				fmt.Sprintf("Wohnfläche %.0fm² unter Minimum %.0fm²", signals.LivingAreaSqm, criteria.MinLivingAreaSqm))
		}
		if criteria.MaxLivingAreaSqm > 0 && signals.LivingAreaSqm > criteria.MaxLivingAreaSqm {
			mismatches = append(mismatches,
				fmt.Sprintf("Wohnfläche %.0fm² über Maximum %.0fm²", signals.LivingAreaSqm, criteria.MaxLivingAreaSqm))
		}
	}

	if criteria.MinRooms > 0 && signals.Rooms > 0 && signals.Rooms < criteria.MinRooms {
		mismatches = append(mismatches,
			fmt.Sprintf("%.1f Zimmer unter Minimum %.1f", signals.Rooms, criteria.MinRooms))
	}

	if len(mismatches) > 0 {
		return domain.GateResult{
			Passed:          false,
			RejectionType:   domain.GateRejectionCriteria,
			RejectionReason: "Inserat passt nicht zu Makler-Kriterien: " + mismatches[0],
			Details:         mismatches,
		}
	}
	return domain.GateResult{Passed: true}
}

func (g *ListingGate) checkLLM(ctx context.Context, signals domain.ListingSignals, criteria *domain.BrokerCriteria) domain.GateResult {
	passed, reason := ai.Verdict(ctx, g.llm, listingGatePrompt,
		buildGateContext(signals, criteria), "LLM-Gate: Inserat nicht geeignet")
	if passed {
		return domain.GateResult{Passed: true}
	}
	return domain.GateResult{
		Passed:          false,
		RejectionType:   domain.GateRejectionLLM,
		RejectionReason: reason,
		Details:         []string{reason},
	}
}

func buildGateContext(signals domain.ListingSignals, criteria *domain.BrokerCriteria) string {
	var parts []string

	parts = append(parts, "=== INSERAT ===")
	raw := signals.RawText
	if len(raw) > 2000 {
		raw = raw[:2000]
	}
	parts = append(parts, raw)

	parts = append(parts, "\n=== MAKLER-PROFIL ===")
	if criteria != nil {
		if len(criteria.PropertyTypes) > 0 {
			parts = append(parts, "Immobilientypen: "+strings.Join(criteria.PropertyTypes, ", "))
		}
		if len(criteria.Cities) > 0 {
			parts = append(parts, "Städte: "+strings.Join(criteria.Cities, ", "))
		}
		if len(criteria.Regions) > 0 {
			parts = append(parts, "Bundesländer: "+strings.Join(criteria.Regions, ", "))
		}
		if len(criteria.PostalPrefixes) > 0 {
			parts = append(parts, "PLZ-Bereiche: "+strings.Join(criteria.PostalPrefixes, ", "))
		}
		if criteria.MinPrice > 0 || criteria.MaxPrice > 0 {
			parts = append(parts, fmt.Sprintf("Preisbereich: %s€ bis %s€",
				policy.FormatPriceDE(criteria.MinPrice), policy.FormatPriceDE(criteria.MaxPrice)))
		}
	} else {
		parts = append(parts, "Keine spezifischen Kriterien hinterlegt.")
	}

	parts = append(parts, "\n=== EXTRAHIERTE DATEN ===")
	if signals.PropertyType != "" {
		parts = append(parts, "Erkannter Typ: "+signals.PropertyType)
	}
	if signals.Price > 0 {
		parts = append(parts, fmt.Sprintf("Erkannter Preis: %d€", signals.Price))
	}
	if signals.City != "" {
		parts = append(parts, "Erkannte Stadt: "+signals.City)
	}
	if signals.PostalCode != "" {
		parts = append(parts, "PLZ: "+signals.PostalCode)
	}

	return strings.Join(parts, "\n")
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(value, target) {
			return true
		}
	}
	return false
}
