package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/maklermatch/outreach/internal/domain"
	"github.com/maklermatch/outreach/internal/repository"
)

// FollowUpConfig tunes the day-scale cadence. Days are fractional so the
// jitter spreads over whole hours, not calendar days.
type FollowUpConfig struct {
	Stage1MinDays float64
	Stage1MaxDays float64
	Stage2MinDays float64
	Stage2MaxDays float64

	MaxFollowups int

	// Follow-ups never go out before SendStartHour or at SendStartHour
	// rounding, nor at SendEndHour or later.
	SendStartHour int
	SendEndHour   int
}

func DefaultFollowUpConfig() FollowUpConfig {
	return FollowUpConfig{
		Stage1MinDays: 3,
		Stage1MaxDays: 5,
		Stage2MinDays: 10,
		Stage2MaxDays: 14,
		MaxFollowups:  2,
		SendStartHour: 8,
		SendEndHour:   21,
	}
}

// FollowUpStats is an aggregate snapshot over every tracked conversation.
type FollowUpStats struct {
	TotalConversations  int
	RepliesReceived     int
	ReplyRate           float64
	ActiveConversations int
	NegativeReplies     int
	SellersContacted    int
}

// FollowUpEngine drives the slow half of outreach: after the initial contact
// it decides whether, when and at which stage a listing gets another message.
// All state lives in the ConversationStore so the cadence survives restarts.
type FollowUpEngine struct {
	store  repository.ConversationStore
	config FollowUpConfig
}

func NewFollowUpEngine(store repository.ConversationStore, config FollowUpConfig) *FollowUpEngine {
	if store == nil {
		store = repository.NewMemoryConversationStore()
	}
	if config.MaxFollowups <= 0 {
		config = DefaultFollowUpConfig()
	}
	return &FollowUpEngine{store: store, config: config}
}

// RegisterConversation starts tracking a listing and marks its seller as
// contacted.
func (e *FollowUpEngine) RegisterConversation(ctx context.Context, state *domain.ConversationState) error {
	if err := e.store.Save(ctx, state); err != nil {
		return err
	}
	if state.SellerID != "" {
		if err := e.store.MarkSellerContacted(ctx, state.SellerID); err != nil {
			return err
		}
	}
	return nil
}

func (e *FollowUpEngine) GetConversation(ctx context.Context, listingID string) (*domain.ConversationState, error) {
	return e.store.Get(ctx, listingID)
}

// IsSellerContacted reports whether this seller was approached before, on any
// listing.
func (e *FollowUpEngine) IsSellerContacted(ctx context.Context, sellerID string) (bool, error) {
	return e.store.IsSellerContacted(ctx, sellerID)
}

// ShouldFollowup reports whether the listing is eligible for another message
// right now. Unknown listings are simply not eligible.
func (e *FollowUpEngine) ShouldFollowup(ctx context.Context, listingID string, now time.Time) (bool, error) {
	state, err := e.store.Get(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return e.eligible(state, now), nil
}

func (e *FollowUpEngine) eligible(state *domain.ConversationState, now time.Time) bool {
	if state.ShouldStop() {
		return false
	}
	if state.ReplyReceived {
		return false
	}

	followupsSent := len(state.MessagesSent) - 1
	if followupsSent >= e.config.MaxFollowups {
		return false
	}

	if !state.NextFollowupAt.IsZero() && now.Before(state.NextFollowupAt) {
		return false
	}
	return true
}

// GetNextStage returns the stage the next message would carry, or StageDone
// when both follow-ups went out already.
func (e *FollowUpEngine) GetNextStage(ctx context.Context, listingID string) (domain.FollowUpStage, error) {
	state, err := e.store.Get(ctx, listingID)
	if err != nil {
		return domain.StageDone, err
	}
	return nextStage(state.CurrentStage), nil
}

func nextStage(current domain.FollowUpStage) domain.FollowUpStage {
	switch current {
	case domain.StageInitial:
		return domain.StageFollowUp1
	case domain.StageFollowUp1:
		return domain.StageFollowUp2
	default:
		return domain.StageDone
	}
}

// ScheduleNextFollowup picks the send instant for the next stage and stores
// it. Returns the zero time when the cadence is finished.
func (e *FollowUpEngine) ScheduleNextFollowup(ctx context.Context, listingID string, now time.Time) (time.Time, error) {
	state, err := e.store.Get(ctx, listingID)
	if err != nil {
		return time.Time{}, err
	}

	next := nextStage(state.CurrentStage)
	if next == domain.StageDone {
		state.CurrentStage = domain.StageDone
		state.NextFollowupAt = time.Time{}
		if err := e.store.Save(ctx, state); err != nil {
			return time.Time{}, err
		}
		return time.Time{}, nil
	}

	minDays, maxDays := e.config.Stage1MinDays, e.config.Stage1MaxDays
	if next == domain.StageFollowUp2 {
		minDays, maxDays = e.config.Stage2MinDays, e.config.Stage2MaxDays
	}

	delayDays := minDays + rand.Float64()*(maxDays-minDays)
	scheduled := now.Add(time.Duration(delayDays * 24 * float64(time.Hour)))
	scheduled = e.clampToSendWindow(scheduled)

	state.NextFollowupAt = scheduled
	if err := e.store.Save(ctx, state); err != nil {
		return time.Time{}, err
	}
	return scheduled, nil
}

// clampToSendWindow pushes night-time instants into the morning and skips
// Sundays entirely.
func (e *FollowUpEngine) clampToSendWindow(t time.Time) time.Time {
	if t.Hour() < e.config.SendStartHour {
		t = morningSlot(t, e.config.SendStartHour)
	} else if t.Hour() >= e.config.SendEndHour {
		t = morningSlot(t.AddDate(0, 0, 1), e.config.SendStartHour)
	}

	if t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func morningSlot(t time.Time, hour int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, rand.Intn(60), 0, 0, t.Location())
}

// RecordMessageSent appends the sent message, advances the stage and
// schedules the next follow-up. Unknown listings are a no-op.
func (e *FollowUpEngine) RecordMessageSent(ctx context.Context, listingID string, message domain.Message, now time.Time) error {
	state, err := e.store.Get(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	state.MessagesSent = append(state.MessagesSent, message)
	state.LastMessageAt = now
	if state.FirstContactAt.IsZero() {
		state.FirstContactAt = now
	}
	state.CurrentStage = message.Stage

	if err := e.store.Save(ctx, state); err != nil {
		return err
	}

	if _, err := e.ScheduleNextFollowup(ctx, listingID, now); err != nil {
		return fmt.Errorf("schedule next followup: %w", err)
	}
	return nil
}

// RecordReply stops the cadence; a negative sentiment closes the
// conversation for good.
func (e *FollowUpEngine) RecordReply(ctx context.Context, listingID string, sentiment domain.ReplySentiment, now time.Time) error {
	state, err := e.store.Get(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	state.ReplyReceived = true
	state.ReplyAt = now
	state.ReplySentiment = sentiment
	state.NextFollowupAt = time.Time{}

	if sentiment.IsNegative() {
		state.ConversationActive = false
	}
	return e.store.Save(ctx, state)
}

// RecordListingRemoved kills the cadence when the listing disappeared,
// typically because it sold.
func (e *FollowUpEngine) RecordListingRemoved(ctx context.Context, listingID string) error {
	state, err := e.store.Get(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	state.ListingStillActive = false
	state.ConversationActive = false
	state.NextFollowupAt = time.Time{}
	return e.store.Save(ctx, state)
}

// GetDueFollowups lists every listing whose next follow-up instant has
// passed and is still eligible.
func (e *FollowUpEngine) GetDueFollowups(ctx context.Context, now time.Time) ([]string, error) {
	states, err := e.store.All(ctx)
	if err != nil {
		return nil, err
	}

	var due []string
	for _, state := range states {
		if !e.eligible(state, now) {
			continue
		}
		if !state.NextFollowupAt.IsZero() && !now.Before(state.NextFollowupAt) {
			due = append(due, state.ListingID)
		}
	}
	return due, nil
}

// Stats aggregates over every tracked conversation.
func (e *FollowUpEngine) Stats(ctx context.Context) (FollowUpStats, error) {
	states, err := e.store.All(ctx)
	if err != nil {
		return FollowUpStats{}, err
	}

	stats := FollowUpStats{TotalConversations: len(states)}
	sellers := make(map[string]bool)
	for _, state := range states {
		if state.ReplyReceived {
			stats.RepliesReceived++
		}
		if state.ConversationActive {
			stats.ActiveConversations++
		}
		if state.ReplySentiment.IsNegative() {
			stats.NegativeReplies++
		}
		if state.SellerID != "" {
			sellers[state.SellerID] = true
		}
	}
	if stats.TotalConversations > 0 {
		stats.ReplyRate = float64(stats.RepliesReceived) / float64(stats.TotalConversations)
	}
	stats.SellersContacted = len(sellers)
	return stats, nil
}
