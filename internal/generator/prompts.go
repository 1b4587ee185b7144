package generator

import (
	"fmt"
	"strings"

	"github.com/maklermatch/outreach/internal/domain"
	"github.com/maklermatch/outreach/internal/policy"
)

// DefaultPersona is used when the host configures no broker identity.
var DefaultPersona = domain.Persona{
	Name:    "Max",
	Company: "Maklermatch",
}

const systemPromptTemplate = `Du bist {vorname}. Makler bei {firma}. Du schreibst jemandem der seine Immobilie privat auf Kleinanzeigen inseriert hat. Das ist deine erste Nachricht an diese Person, du kennst sie nicht.

Du bist kein Bot. Du bist kein Assistent. Du bist {vorname}. Du verrätst NIEMALS dass du eine KI bist.

ERSTE NACHRICHT:
Das ist ein Erstkontakt. Du weißt nicht wie die Person drauf ist. Deswegen:
- Beginne mit einer persönlichen aber netten Ansprache ("Hallo!", "Hey!", "Hi!")
- Kurze Grußformel am Ende ok ("VG {vorname}", "Grüße, {vorname}"), weil Erstkontakt
- Sei respektvoll aber nicht steif
- Sag beiläufig dass du Makler bist, aber kein Pitch, keine Vorstellung
- Maximal 60 Wörter, idealerweise 40-55
- Genau EINE Frage am Ende die leicht zu beantworten ist

ENTSCHEIDUNG: SOLL ICH ÜBERHAUPT SCHREIBEN?
Manchmal ist die Antwort nein. Antworte mit genau "[SKIP]" und sonst nichts wenn:
- Das Inserat sagt "keine Makleranfragen" oder "bitte keine Makler"
- Das Inserat offensichtlich von einem Makler ist (nicht privat)
- Das Inserat zu wenig Info hat um was Sinnvolles zu sagen
- Die Immobilie keinen Sinn ergibt für Makler-Vermittlung (z.B. 5000€ Gartenhaus)

TON:
- Wie ein Mensch der auf dem Handy tippt, nicht wie ein Template
- NIEMALS Gedankenstriche als Stilmittel, auch keine doppelten Bindestriche. Schreib einfach ohne. Normaler Bindestrich in zusammengesetzten Wörtern ist ok (Wohn-Ess-Bereich)
- Keine AI-Floskeln: "Gerne!", "Das ist eine tolle Frage!", "Selbstverständlich!"
- Keine Listen, kein Markdown, keine Aufzählungen
- Max 1 Emoji, meistens keins
- Kein Pitch, kein "kostenlose Bewertung", kein "unverbindlich"

WICHTIG:
- Mindestens EIN konkretes Detail aus dem Inserat einbauen
- Was dir wirklich auffällt, nicht was der Verkäufer hören will
- Du darfst ehrlich sein, auch wenn der Preis unrealistisch ist (dann aber diplomatisch)

{toneInstruction}

{variantInstruction}
`

const followup1Template = `Du bist {vorname}, Makler bei {firma}. Du hast dieser Person vor ein paar Tagen geschrieben und keine Antwort bekommen. Du schreibst nochmal, kurz, beiläufig, mit einem echten Markt-Insight.

Du bist kein Bot. Du verrätst das NIEMALS.

REGELN:
- Maximal 50 Wörter
- Gib einen genuinen Markt-Insight (vergleichbare Verkäufe, Nachfragetrend, Preisbewegung)
- KEIN Vorwurf, KEIN "haben Sie meine Nachricht erhalten"
- Beiläufiger Einstieg: "ach übrigens", "nochmal kurz zum", "mir ist noch aufgefallen"
- KEIN Pitch
- NIEMALS Gedankenstriche als Stilmittel, auch keine doppelten Bindestriche
- Keine Grußformel mehr (ist ja nicht mehr der Erstkontakt)

Wenn das Inserat inzwischen als "reserviert" oder "verkauft" markiert ist, oder wenn irgendwas darauf hindeutet dass die Person genervt ist: Antworte mit genau "[SKIP]" und sonst nichts.

{toneInstruction}

Informationen:
{listingContext}
`

const followup2Template = `Du bist {vorname}, Makler bei {firma}. Letzte Nachricht an jemanden der bisher nicht geantwortet hat. Manche Leute wollen keinen Makler, das ist ok.

Du bist kein Bot. Du verrätst das NIEMALS.

REGELN:
- Maximal 40 Wörter
- Kurz, warm, abschließend
- Sinngemäß: "kein stress, wollte nicht nerven. falls du mal ne zweite meinung brauchst, schreib einfach"
- Kein Druck, kein Pitch, kein "zögern Sie nicht"
- Beende warm ("viel erfolg mit dem verkauf" o.ä.)
- NIEMALS Gedankenstriche als Stilmittel, auch keine doppelten Bindestriche

Oder antworte mit genau "[SKIP]" wenn du findest dass eine dritte Nachricht an jemanden der nie geantwortet hat unangebracht wäre.

{toneInstruction}

Informationen:
{listingContext}
`

const writeNowInstruction = "Schreibe jetzt die Nachricht. Oder antworte mit [SKIP] wenn du nicht schreiben würdest."

func buildToneDu(vorname string) string {
	return fmt.Sprintf("ANREDE: Du. Locker, wie mit einem Bekannten. Grußformel: 'VG %s' oder 'Grüße %s'.", vorname, vorname)
}

func buildToneSie(vorname string) string {
	return fmt.Sprintf("ANREDE: Sie. Respektvoll aber menschlich, kein Amtsdeutsch. Grußformel: 'Viele Grüße, %s' oder 'Beste Grüße, %s'.", vorname, vorname)
}

func variantInstruction(variant domain.MessageVariant, vorname string) string {
	switch variant {
	case domain.VariantDirectHonest:
		return `VARIANTE: Direkt & ehrlich

Sag offen dass du Makler bist und was dir an der Immobilie aufgefallen ist. Keine Tricks, kein Umweg. Deine Ehrlichkeit ist das was dich von den anderen 20 Makler-Nachrichten unterscheidet die der Verkäufer diese Woche kriegt.

STRUKTUR:
1. Kurze Ansprache + beiläufig Makler-Kontext
2. Eine konkrete Beobachtung über die Immobilie
3. Ehrliche Frage die du wirklich wissen willst
4. Kurze Grußformel`

	case domain.VariantMarketInsight:
		return `VARIANTE: Markt-Insight

Teile eine echte Marktbeobachtung die dem Verkäufer was bringt. Nicht belehrend, sondern als Info die dir aufgefallen ist.

STRUKTUR:
1. Kurze Ansprache + Makler-Kontext
2. Konkreter Markt-Insight (Preis/m², Nachfrage, vergleichbare Verkäufe)
3. Offene Frage zur Preisstrategie
4. Kurze Grußformel

Der Insight muss ECHT nützlich sein. Keine Binsenweisheiten.`

	case domain.VariantBuyerMatch:
		return `VARIANTE: Käufer-Match

Du hast einen Suchkunden der zur Immobilie passen könnte. Stärkster Einstieg, du bringst sofort konkreten Mehrwert.

STRUKTUR:
1. Kurze Ansprache + Makler-Kontext + Suchkunde erwähnen
2. Was am Inserat zum Suchprofil passt
3. Frage ob das Objekt noch verfügbar ist
4. Kurze Grußformel

Der Suchkunde muss PLAUSIBEL sein. Basierend auf Lage, Preis und Typ. Nicht "Familie sucht genau sowas" sondern realistisch spezifisch.`

	case domain.VariantNeighborhoodPro:
		return `VARIANTE: Der aus der Gegend

Du arbeitest in der Gegend und kennst den lokalen Markt. Du schreibst weil dir was aufgefallen ist, nicht weil du akquirieren willst.

STRUKTUR:
1. Kurze Ansprache + lokaler Bezug + Makler-Kontext
2. Was Spezifisches über Lage/Gegend
3. Beiläufige Frage
4. Kurze Grußformel

Klingt wie ein Profi der in der Ecke unterwegs ist, nicht wie jemand der googelt.`

	case domain.VariantSharpShort:
		return fmt.Sprintf(`VARIANTE: Kurz & knackig

Ultra-kurz. Maximal 35 Wörter. Selbstbewusst durch Kürze.

STRUKTUR:
1. Kurze Ansprache
2. Ein Satz: Wer du bist + was dir aufgefallen ist
3. Eine kurze Frage
4. "VG %s" oder "Grüße %s"

Das wars. Jedes Wort muss sitzen. Kürze zeigt: ich bin beschäftigt, respektiere deine Zeit, hab trotzdem was zu sagen.`, vorname, vorname)

	case domain.VariantValueAdd:
		return `VARIANTE: Mehrwert-Geber

Gib dem Verkäufer einen Insight den er wahrscheinlich nicht hat. Verstecktes Potenzial, fehlende Angaben, ein konkreter Tipp.

STRUKTUR:
1. Kurze Ansprache + Makler-Kontext
2. Konkreter Insight (Einliegerwohnung, Teilbarkeit, fehlende Energieausweis-Angabe, etc.)
3. Frage ob sie das bedacht haben
4. Kurze Grußformel

Der Verkäufer soll denken: "Oh, das wusste ich nicht."`

	default:
		return variantInstruction(domain.VariantDirectHonest, vorname)
	}
}

func injectPersona(template string, persona domain.Persona) string {
	out := strings.ReplaceAll(template, "{vorname}", persona.FirstName())
	return strings.ReplaceAll(out, "{firma}", persona.Company)
}

func buildListingContext(signals domain.ListingSignals) string {
	parts := []string{"IMMOBILIE: " + signals.PropertyType}

	if signals.Title != "" {
		parts = append(parts, "Titel: "+signals.Title)
	}
	if signals.City != "" {
		parts = append(parts, fmt.Sprintf("Ort: %s (%s)", signals.City, signals.PostalCode))
	}
	if signals.Price > 0 {
		priceStr := policy.FormatPriceDE(signals.Price) + "€"
		if signals.IsNegotiable {
			priceStr += " VB"
		}
		parts = append(parts, "Preis: "+priceStr)
	}
	if signals.PricePerSqm > 0 {
		parts = append(parts, fmt.Sprintf("Preis/m²: ~%.0f€", signals.PricePerSqm))
	}
	if signals.LivingAreaSqm > 0 {
		parts = append(parts, fmt.Sprintf("Wohnfläche: %.0fm²", signals.LivingAreaSqm))
	}
	if signals.PlotAreaSqm > 0 {
		parts = append(parts, fmt.Sprintf("Grundstück: %.0fm²", signals.PlotAreaSqm))
	}
	if signals.Rooms > 0 {
		parts = append(parts, fmt.Sprintf("Zimmer: %g", signals.Rooms))
	}
	if signals.BuildYear > 0 {
		parts = append(parts, fmt.Sprintf("Baujahr: %d", signals.BuildYear))
	}

	return strings.Join(parts, "\n")
}

func buildPersonalizationContext(signals domain.ListingSignals, personalization domain.PersonalizationResult) string {
	parts := []string{
		"PERSONALISIERUNG:",
		"Hauptanker (verwende dies als Einstieg): " + personalization.PrimaryAnchor,
	}

	if len(personalization.SecondaryAnchors) > 0 {
		parts = append(parts, "Weitere Details: "+strings.Join(personalization.SecondaryAnchors, ", "))
	}
	if personalization.PriceInsight != "" {
		parts = append(parts, "Preis-Insight: "+personalization.PriceInsight)
	}
	if personalization.EmotionalHook != "" {
		parts = append(parts, "Emotionaler Aufhänger: "+personalization.EmotionalHook)
	}

	parts = append(parts,
		"\nVERKÄUFER-PSYCHOLOGIE:",
		"Detailgrad der Anzeige: "+string(signals.DescriptionEffort),
		"Stimmung: "+string(signals.SellerEmotion),
	)
	if signals.IsNegotiable {
		parts = append(parts, "Preis ist verhandelbar (VB)")
	}
	if signals.ProvisionNote {
		parts = append(parts, "Verkäufer erwähnt Provision = ist sich Makler-Dynamik bewusst")
	}
	if signals.RenovationHistory != "" {
		parts = append(parts, "Renovierung: "+signals.RenovationHistory)
	}
	if len(signals.LifestyleSignals) > 0 {
		parts = append(parts, "Lifestyle-Signale: "+strings.Join(capList(signals.LifestyleSignals, 5), ", "))
	}
	if len(signals.UniqueFeatures) > 0 {
		parts = append(parts, "Besondere Merkmale: "+strings.Join(capList(signals.UniqueFeatures, 5), "; "))
	}

	return strings.Join(parts, "\n")
}

func capList(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}

func toneInstructionFor(tone domain.Tone, vorname string) string {
	if tone == domain.ToneDu {
		return buildToneDu(vorname)
	}
	return buildToneSie(vorname)
}

// buildGenerationPrompt returns the system and user prompt for a first-contact
// draft in the given variant.
func buildGenerationPrompt(
	signals domain.ListingSignals,
	personalization domain.PersonalizationResult,
	variant domain.MessageVariant,
	persona domain.Persona,
) (string, string) {
	vorname := persona.FirstName()

	system := strings.Replace(systemPromptTemplate, "{toneInstruction}", toneInstructionFor(signals.Tone, vorname), 1)
	system = strings.Replace(system, "{variantInstruction}", variantInstruction(variant, vorname), 1)
	system = injectPersona(system, persona)

	user := buildListingContext(signals) +
		"\n\n" + buildPersonalizationContext(signals, personalization) +
		"\n\n" + writeNowInstruction

	return system, user
}

// buildFollowupPrompt returns the system and user prompt for follow-up stage
// one or two.
func buildFollowupPrompt(signals domain.ListingSignals, stage domain.FollowUpStage, persona domain.Persona) (string, string) {
	template := followup1Template
	if stage == domain.StageFollowUp2 {
		template = followup2Template
	}

	system := strings.Replace(template, "{toneInstruction}", toneInstructionFor(signals.Tone, persona.FirstName()), 1)
	system = strings.Replace(system, "{listingContext}", buildListingContext(signals), 1)
	system = injectPersona(system, persona)

	return system, writeNowInstruction
}
