package policy

// Word lists for German broker outreach. The persona is openly a Makler, so
// "Makler" itself is allowed; what gets blocked is sales-template language
// that makes a message read like the twenty other broker mails a seller
// receives each week.

var defaultForbiddenWords = []string{
	// Sales-template language
	"kostenlos",
	"unverbindlich",
	"gratis",
	"kostenfrei",
	"Vermarktung",
	"vermarkten",
	"Dienstleistung",
	// Formal collaboration pitch
	"Zusammenarbeit",
	"zusammenarbeiten",
	"Partnerschaft",
	// Expertise bragging
	"jahrelange Erfahrung",
	"langjährige Erfahrung",
	"Erfahrung im Immobilienbereich",
	"Expertise",
	"Experte",
	"Expertin",
	// Client pitch / too salesy
	"Kundenstamm",
	"vorgemerkte Käufer",
	"exklusiv",
	"Premium",
	// Free services pitch
	"Wertermittlung",
	"Marktanalyse",
	"Exposé",
	// Overly formal/corporate
	"Begleitung",
	"ganzheitlich",
	"individuell",
	"maßgeschneidert",
	"Rundum-Service",
	"Full-Service",
	"Komplettpaket",
}

var defaultForbiddenPhrases = []string{
	// Classic spam openers
	"ich habe Ihr Inserat gesehen",
	"ich habe Ihre Anzeige gesehen",
	"ich bin auf Ihre Anzeige aufmerksam geworden",
	"ich bin auf Ihr Inserat aufmerksam geworden",
	"erlauben Sie mir",
	"gestatten Sie",
	"darf ich mich vorstellen",
	"ich möchte mich vorstellen",
	"ich kontaktiere Sie",
	// Template-language
	"kostenlose Bewertung",
	"unverbindliches Gespräch",
	"unverbindliches Angebot",
	"kostenlose Einschätzung",
	"ohne Verpflichtung",
	"keinerlei Kosten",
	"keine Kosten für Sie",
	// Pressure tactics
	"Zeitfenster schließt sich",
	"der Markt dreht",
	"jetzt ist der richtige Zeitpunkt",
	"warten Sie nicht zu lange",
	"bevor es zu spät ist",
}

// "Hallo", "Hey", "Hi" are allowed for first contact; what reads automated is
// a formal address or a message that opens with the sender instead of the
// property.
var defaultForbiddenOpeners = []string{
	"Sehr geehrte",
	"Sehr geehrter",
	"Ich ",
	"Mein ",
	"Wir ",
}

var defaultFormalSignoffs = []string{
	"mit freundlichen grüßen",
	"hochachtungsvoll",
}
