package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maklermatch/outreach/internal/domain"
)

func newWaitingJob(conversationID string) *domain.ScheduledJob {
	now := time.Now()
	return &domain.ScheduledJob{
		ConversationID:   conversationID,
		TriggerMessageID: "msg-1",
		CreatedAt:        now,
		ExecuteAfter:     now.Add(time.Minute),
		Status:           domain.JobStatusWaiting,
		BaseDelay:        time.Minute,
		AdjustedDelay:    time.Minute,
		TimePeriod:       domain.PeriodBusinessHours,
	}
}

func TestMemoryJobStoreCreateAssignsID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()

	job, err := store.Create(ctx, newWaitingJob("conv-1"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if job.ID == "" {
		t.Fatalf("expected assigned id")
	}

	fetched, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fetched.ConversationID != "conv-1" {
		t.Fatalf("unexpected conversation id: %s", fetched.ConversationID)
	}
}

func TestMemoryJobStoreGetUnknownID(t *testing.T) {
	store := NewMemoryJobStore()
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryJobStoreReturnsClones(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()

	job, _ := store.Create(ctx, newWaitingJob("conv-1"))
	job.Status = domain.JobStatusCompleted

	fetched, _ := store.Get(ctx, job.ID)
	if fetched.Status != domain.JobStatusWaiting {
		t.Fatalf("mutating a returned job leaked into the store")
	}
}

func TestMemoryJobStoreActiveForConversation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()

	created, _ := store.Create(ctx, newWaitingJob("conv-1"))

	active, err := store.GetActiveForConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("expected active job, got %v", err)
	}
	if active.ID != created.ID {
		t.Fatalf("unexpected active job: %s", active.ID)
	}

	status := domain.JobStatusCompleted
	if err := store.Update(ctx, created.ID, domain.JobUpdate{Status: &status}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, err := store.GetActiveForConversation(ctx, "conv-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no active job after completion, got %v", err)
	}
}

func TestMemoryJobStoreUpdateUnknownIDIsNoop(t *testing.T) {
	store := NewMemoryJobStore()
	status := domain.JobStatusCancelled
	if err := store.Update(context.Background(), "missing", domain.JobUpdate{Status: &status}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestMemoryJobStoreUpdatePartialFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()
	job, _ := store.Create(ctx, newWaitingJob("conv-1"))

	message := "Hallo! Noch zu haben? VG Max"
	if err := store.Update(ctx, job.ID, domain.JobUpdate{GeneratedMessage: &message}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	fetched, _ := store.Get(ctx, job.ID)
	if fetched.GeneratedMessage != message {
		t.Fatalf("generated message not stored")
	}
	if fetched.Status != domain.JobStatusWaiting {
		t.Fatalf("status changed by partial update: %s", fetched.Status)
	}
}

func TestMemoryJobStoreGetDueJobs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()
	now := time.Now()

	due := newWaitingJob("conv-due")
	due.ExecuteAfter = now.Add(-time.Minute)
	store.Create(ctx, due)

	future := newWaitingJob("conv-future")
	future.ExecuteAfter = now.Add(time.Hour)
	store.Create(ctx, future)

	done := newWaitingJob("conv-done")
	done.ExecuteAfter = now.Add(-time.Minute)
	done.Status = domain.JobStatusCompleted
	store.Create(ctx, done)

	jobs, err := store.GetDueJobs(ctx, now)
	if err != nil {
		t.Fatalf("get due jobs failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ConversationID != "conv-due" {
		t.Fatalf("expected only the overdue waiting job, got %v", jobs)
	}
}

func TestMemoryJobStoreCancelForConversation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()

	waiting, _ := store.Create(ctx, newWaitingJob("conv-1"))
	completedJob := newWaitingJob("conv-1")
	completedJob.Status = domain.JobStatusCompleted
	completed, _ := store.Create(ctx, completedJob)
	other, _ := store.Create(ctx, newWaitingJob("conv-2"))

	if err := store.CancelForConversation(ctx, "conv-1"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	job, _ := store.Get(ctx, waiting.ID)
	if job.Status != domain.JobStatusCancelled {
		t.Fatalf("expected waiting job cancelled, got %s", job.Status)
	}
	job, _ = store.Get(ctx, completed.ID)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("terminal job must not change, got %s", job.Status)
	}
	job, _ = store.Get(ctx, other.ID)
	if job.Status != domain.JobStatusWaiting {
		t.Fatalf("other conversation must be untouched, got %s", job.Status)
	}
}

func TestMemoryJobStorePruneTerminal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()
	now := time.Now()

	old := newWaitingJob("conv-old")
	old.CreatedAt = now.Add(-48 * time.Hour)
	old.Status = domain.JobStatusCompleted
	oldJob, _ := store.Create(ctx, old)

	fresh := newWaitingJob("conv-fresh")
	fresh.Status = domain.JobStatusCancelled
	freshJob, _ := store.Create(ctx, fresh)

	pending := newWaitingJob("conv-pending")
	pending.CreatedAt = now.Add(-48 * time.Hour)
	pendingJob, _ := store.Create(ctx, pending)

	removed, err := store.PruneTerminal(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned job, got %d", removed)
	}

	if _, err := store.Get(ctx, oldJob.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old terminal job removed")
	}
	if _, err := store.Get(ctx, freshJob.ID); err != nil {
		t.Fatalf("fresh terminal job must survive: %v", err)
	}
	if _, err := store.Get(ctx, pendingJob.ID); err != nil {
		t.Fatalf("non-terminal job must survive: %v", err)
	}
}
