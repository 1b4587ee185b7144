package domain

import "time"

type FollowUpStage int

const (
	StageInitial FollowUpStage = iota
	StageFollowUp1
	StageFollowUp2
	StageDone
)

func (s FollowUpStage) String() string {
	switch s {
	case StageInitial:
		return "initial"
	case StageFollowUp1:
		return "followup_1"
	case StageFollowUp2:
		return "followup_2"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// MessageVariant selects the angle of a first-contact draft.
type MessageVariant string

const (
	VariantDirectHonest    MessageVariant = "direct_honest"
	VariantMarketInsight   MessageVariant = "market_insight"
	VariantBuyerMatch      MessageVariant = "buyer_match"
	VariantNeighborhoodPro MessageVariant = "neighborhood_pro"
	VariantSharpShort      MessageVariant = "sharp_short"
	VariantValueAdd        MessageVariant = "value_add"
)

// AllVariants lists every first-contact variant in generation order.
var AllVariants = []MessageVariant{
	VariantDirectHonest,
	VariantMarketInsight,
	VariantBuyerMatch,
	VariantNeighborhoodPro,
	VariantSharpShort,
	VariantValueAdd,
}

// Message is a validated, post-processed outbound draft. Immutable once built.
type Message struct {
	Text              string
	ListingID         string
	ListingURL        string
	GeneratedAt       time.Time
	SpamGuardScore    int
	GenerationAttempt int
	Stage             FollowUpStage
	Variant           MessageVariant
	PreviousMessageID string
}

type ReplySentiment string

const (
	SentimentNone               ReplySentiment = ""
	SentimentPositiveOpen       ReplySentiment = "positive_open"
	SentimentPositiveShort      ReplySentiment = "positive_short"
	SentimentNeutral            ReplySentiment = "neutral"
	SentimentNegativePolite     ReplySentiment = "negative_polite"
	SentimentNegativeAggressive ReplySentiment = "negative_aggressive"
)

func (s ReplySentiment) IsNegative() bool {
	return s == SentimentNegativePolite || s == SentimentNegativeAggressive
}

// ConversationState tracks the day-scale outreach cadence for one listing.
type ConversationState struct {
	ListingID          string
	ListingURL         string
	SellerID           string
	MessagesSent       []Message
	CurrentStage       FollowUpStage
	FirstContactAt     time.Time
	LastMessageAt      time.Time
	NextFollowupAt     time.Time
	ReplyReceived      bool
	ReplyAt            time.Time
	ReplySentiment     ReplySentiment
	ConversationActive bool
	ListingStillActive bool
}

// NewConversationState returns a fresh, active cadence record.
func NewConversationState(listingID, listingURL, sellerID string) *ConversationState {
	return &ConversationState{
		ListingID:          listingID,
		ListingURL:         listingURL,
		SellerID:           sellerID,
		CurrentStage:       StageInitial,
		ConversationActive: true,
		ListingStillActive: true,
	}
}

// ShouldStop reports whether outreach for this conversation is over for good.
func (s *ConversationState) ShouldStop() bool {
	if !s.ConversationActive {
		return true
	}
	if !s.ListingStillActive {
		return true
	}
	return s.CurrentStage == StageDone
}
