package domain

type Tone string

const (
	ToneDu  Tone = "du"
	ToneSie Tone = "sie"
)

type SellerEmotion string

const (
	EmotionProud     SellerEmotion = "proud"
	EmotionUrgent    SellerEmotion = "urgent"
	EmotionNeutral   SellerEmotion = "neutral"
	EmotionReluctant SellerEmotion = "reluctant"
)

type DescriptionEffort string

const (
	EffortHigh   DescriptionEffort = "high"
	EffortMedium DescriptionEffort = "medium"
	EffortLow    DescriptionEffort = "low"
)

// ListingSignals is the extracted view of one classifieds listing. Extraction
// happens upstream; this core only consumes the signals.
type ListingSignals struct {
	RawText    string
	ListingID  string
	ListingURL string

	PropertyType string
	Title        string

	Price         int
	PricePerSqm   float64
	IsNegotiable  bool
	ProvisionNote bool

	LivingAreaSqm float64
	PlotAreaSqm   float64
	Rooms         float64
	BuildYear     int

	PostalCode string
	City       string
	Region     string

	UniqueFeatures    []string
	RenovationHistory string
	LifestyleSignals  []string

	SellerName        string
	SellerEmotion     SellerEmotion
	DescriptionEffort DescriptionEffort
	Tone              Tone
	ListingAgeDays    int
}

// BrokerCriteria is the hard pre-filter a broker configures. Zero values mean
// "no constraint".
type BrokerCriteria struct {
	MinPrice         int
	MaxPrice         int
	PropertyTypes    []string
	PostalPrefixes   []string
	Cities           []string
	Regions          []string
	MinLivingAreaSqm float64
	MaxLivingAreaSqm float64
	MinRooms         float64
}

// PersonalizationResult is computed upstream: which listing detail the draft
// should foreground.
type PersonalizationResult struct {
	PrimaryAnchor       string
	SecondaryAnchors    []string
	Tone                Tone
	PriceInsight        string
	EmotionalHook       string
	RecommendedVariants []MessageVariant
}

// Persona identifies the broker the messages are written as.
type Persona struct {
	Name    string
	Company string
	Region  string
}

// FirstName returns the part of the persona name used in sign-offs.
func (p Persona) FirstName() string {
	for i := 0; i < len(p.Name); i++ {
		if p.Name[i] == ' ' {
			return p.Name[:i]
		}
	}
	return p.Name
}
