package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maklermatch/outreach/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// JobStore abstracts scheduled-job persistence. The in-memory implementation
// is the reference; a durable backend can replace it without changing any
// caller, since ExecuteAfter is plain data and all execution is driven from
// outside the store.
type JobStore interface {
	// Create stores the job under a fresh id and returns the stored copy.
	Create(ctx context.Context, job *domain.ScheduledJob) (*domain.ScheduledJob, error)
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*domain.ScheduledJob, error)
	// GetActiveForConversation returns the first non-terminal job for the
	// conversation, or ErrNotFound.
	GetActiveForConversation(ctx context.Context, conversationID string) (*domain.ScheduledJob, error)
	// Update applies the partial update; unknown ids are a no-op.
	Update(ctx context.Context, id string, update domain.JobUpdate) error
	// GetDueJobs returns every waiting job whose ExecuteAfter has passed.
	GetDueJobs(ctx context.Context, now time.Time) ([]*domain.ScheduledJob, error)
	// CancelForConversation marks every non-terminal job of the conversation
	// cancelled.
	CancelForConversation(ctx context.Context, conversationID string) error
	// PruneTerminal deletes terminal jobs created before the cutoff and
	// reports how many were removed.
	PruneTerminal(ctx context.Context, olderThan time.Time) (int, error)
}

// MemoryJobStore stores jobs in process memory.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ScheduledJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*domain.ScheduledJob)}
}

func (s *MemoryJobStore) Create(_ context.Context, job *domain.ScheduledJob) (*domain.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *job
	clone.ID = uuid.NewString()
	s.jobs[clone.ID] = &clone

	result := clone
	return &result, nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (*domain.ScheduledJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (s *MemoryJobStore) GetActiveForConversation(_ context.Context, conversationID string) (*domain.ScheduledJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.jobs {
		if job.ConversationID == conversationID && !job.Status.IsTerminal() {
			clone := *job
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryJobStore) Update(_ context.Context, id string, update domain.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.GeneratedMessage != nil {
		job.GeneratedMessage = *update.GeneratedMessage
	}
	return nil
}

func (s *MemoryJobStore) GetDueJobs(_ context.Context, now time.Time) ([]*domain.ScheduledJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*domain.ScheduledJob
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusWaiting && !job.ExecuteAfter.After(now) {
			clone := *job
			due = append(due, &clone)
		}
	}
	return due, nil
}

func (s *MemoryJobStore) CancelForConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.ConversationID == conversationID && !job.Status.IsTerminal() {
			job.Status = domain.JobStatusCancelled
		}
	}
	return nil
}

func (s *MemoryJobStore) PruneTerminal(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if job.Status.IsTerminal() && job.CreatedAt.Before(olderThan) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}
