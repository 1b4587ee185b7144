package repository

import (
	"context"
	"sync"

	"github.com/maklermatch/outreach/internal/domain"
)

// ConversationStore persists the day-scale follow-up cadence per listing,
// plus the set of sellers already contacted so the same person is never
// approached twice across listings.
type ConversationStore interface {
	// Save upserts the state keyed by listing id.
	Save(ctx context.Context, state *domain.ConversationState) error
	// Get returns ErrNotFound for unknown listing ids.
	Get(ctx context.Context, listingID string) (*domain.ConversationState, error)
	// All returns every tracked conversation.
	All(ctx context.Context) ([]*domain.ConversationState, error)
	MarkSellerContacted(ctx context.Context, sellerID string) error
	IsSellerContacted(ctx context.Context, sellerID string) (bool, error)
}

// MemoryConversationStore keeps cadence state in process memory.
type MemoryConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*domain.ConversationState
	sellers       map[string]bool
}

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		conversations: make(map[string]*domain.ConversationState),
		sellers:       make(map[string]bool),
	}
}

func (s *MemoryConversationStore) Save(_ context.Context, state *domain.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := cloneConversation(state)
	s.conversations[state.ListingID] = clone
	return nil
}

func (s *MemoryConversationStore) Get(_ context.Context, listingID string) (*domain.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.conversations[listingID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(state), nil
}

func (s *MemoryConversationStore) All(_ context.Context) ([]*domain.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.ConversationState, 0, len(s.conversations))
	for _, state := range s.conversations {
		all = append(all, cloneConversation(state))
	}
	return all, nil
}

func (s *MemoryConversationStore) MarkSellerContacted(_ context.Context, sellerID string) error {
	if sellerID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sellers[sellerID] = true
	return nil
}

func (s *MemoryConversationStore) IsSellerContacted(_ context.Context, sellerID string) (bool, error) {
	if sellerID == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sellers[sellerID], nil
}

func cloneConversation(state *domain.ConversationState) *domain.ConversationState {
	clone := *state
	if state.MessagesSent != nil {
		clone.MessagesSent = make([]domain.Message, len(state.MessagesSent))
		copy(clone.MessagesSent, state.MessagesSent)
	}
	return &clone
}
