package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/maklermatch/outreach/internal/domain"
	"github.com/maklermatch/outreach/internal/generator"
	"github.com/maklermatch/outreach/internal/pacing"
	"github.com/maklermatch/outreach/internal/repository"
)

const (
	typingMillisPerChar = 55
	maxTypingDelay      = 8 * time.Second

	// Base delay is computed for an assumed reply length before the actual
	// draft exists.
	assumedReplyLength = 100
)

// NewMessageChecker reports whether the seller wrote again after the given
// instant. The scheduler consults it at every checkpoint so a send never
// races a fresh incoming message.
type NewMessageChecker interface {
	HasNewMessage(ctx context.Context, conversationID string, since time.Time) (bool, error)
}

// MessageSender delivers the finished draft over the host's transport.
type MessageSender interface {
	Send(ctx context.Context, conversationID, message string) error
}

// ConversationContext resolves the listing signals behind a conversation at
// execution time, so generation always sees the current listing state.
type ConversationContext interface {
	GetSignals(ctx context.Context, conversationID string) (domain.ListingSignals, domain.PersonalizationResult, error)
}

type ScheduleResult struct {
	JobID   string
	Delay   time.Duration
	Period  domain.TimePeriod
	Skipped bool
}

// Deps wires a ReplyScheduler. Store, Generator, Checker, Sender and Context
// are required; everything else has defaults.
type Deps struct {
	Store     repository.JobStore
	Generator *generator.MessageGenerator
	Checker   NewMessageChecker
	Sender    MessageSender
	Context   ConversationContext

	Delay  *pacing.DelayCalculator
	Window *pacing.TimeWindow

	// Limiter caps how many sends get scheduled per day. Nil means no cap.
	Limiter *rate.Limiter

	PollInterval          time.Duration
	JobRetention          time.Duration
	MaxInterruptionResets int

	// SkipDelays makes timers fire immediately while keeping the computed
	// delays in the job rows. For tests.
	SkipDelays bool

	Logger *log.Logger
}

// ReplyScheduler decides when a generated reply actually goes out. Each
// trigger becomes a job with a humanized delay; an in-memory timer drives the
// happy path and a poll sweep picks up jobs whose timer was lost.
type ReplyScheduler struct {
	store     repository.JobStore
	generator *generator.MessageGenerator
	checker   NewMessageChecker
	sender    MessageSender
	context   ConversationContext

	delay   *pacing.DelayCalculator
	window  *pacing.TimeWindow
	limiter *rate.Limiter

	pollInterval          time.Duration
	retention             time.Duration
	maxInterruptionResets int
	skipDelays            bool
	logger                *log.Logger

	mu           sync.Mutex
	activeTimers map[string]*time.Timer
	processing   map[string]bool
	pollStop     chan struct{}
	pollDone     chan struct{}
}

func NewReplyScheduler(deps Deps) *ReplyScheduler {
	if deps.Delay == nil {
		deps.Delay = pacing.NewDelayCalculator(pacing.DefaultDelayConfig())
	}
	if deps.Window == nil {
		deps.Window = pacing.NewTimeWindow(pacing.DefaultWindowConfig())
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = 30 * time.Second
	}
	if deps.JobRetention <= 0 {
		deps.JobRetention = 24 * time.Hour
	}
	if deps.MaxInterruptionResets <= 0 {
		deps.MaxInterruptionResets = 3
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.Writer(), "[scheduler] ", log.LstdFlags)
	}
	return &ReplyScheduler{
		store:                 deps.Store,
		generator:             deps.Generator,
		checker:               deps.Checker,
		sender:                deps.Sender,
		context:               deps.Context,
		delay:                 deps.Delay,
		window:                deps.Window,
		limiter:               deps.Limiter,
		pollInterval:          deps.PollInterval,
		retention:             deps.JobRetention,
		maxInterruptionResets: deps.MaxInterruptionResets,
		skipDelays:            deps.SkipDelays,
		logger:                deps.Logger,
	}
}

// Schedule queues a reply to the given trigger message. Any active job for
// the conversation is cancelled first, so at most one job per conversation is
// ever pending.
func (s *ReplyScheduler) Schedule(
	ctx context.Context,
	conversationID, triggerMessageID string,
	isFirstInConversation bool,
	interruptionCount int,
) (*ScheduleResult, error) {
	if err := s.cancelInternal(ctx, conversationID); err != nil {
		return nil, err
	}

	now := time.Now()
	base := s.delay.Calculate(assumedReplyLength, isFirstInConversation)
	adjusted := s.window.AdjustDelay(base.Delay, now)

	skipped := adjusted.Skipped
	if !skipped && s.limiter != nil && !s.limiter.Allow() {
		s.logger.Printf("%s: daily send budget exhausted, skipping", conversationID)
		skipped = true
	}

	if skipped {
		job, err := s.store.Create(ctx, &domain.ScheduledJob{
			ConversationID:    conversationID,
			TriggerMessageID:  triggerMessageID,
			CreatedAt:         now,
			ExecuteAfter:      now,
			Status:            domain.JobStatusSkipped,
			BaseDelay:         base.Delay,
			AdjustedDelay:     0,
			TimePeriod:        adjusted.Period,
			InterruptionCount: interruptionCount,
		})
		if err != nil {
			return nil, fmt.Errorf("create skipped job: %w", err)
		}
		return &ScheduleResult{JobID: job.ID, Period: adjusted.Period, Skipped: true}, nil
	}

	job, err := s.store.Create(ctx, &domain.ScheduledJob{
		ConversationID:    conversationID,
		TriggerMessageID:  triggerMessageID,
		CreatedAt:         now,
		ExecuteAfter:      now.Add(adjusted.Delay),
		Status:            domain.JobStatusWaiting,
		BaseDelay:         base.Delay,
		AdjustedDelay:     adjusted.Delay,
		TimePeriod:        adjusted.Period,
		InterruptionCount: interruptionCount,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	effectiveDelay := adjusted.Delay
	if s.skipDelays {
		effectiveDelay = 0
	}

	s.logger.Printf("%s: delay=%s (base=%s, period=%s)", conversationID, adjusted.Delay, base.Delay, adjusted.Period)

	jobID := job.ID
	s.mu.Lock()
	if s.activeTimers == nil {
		s.activeTimers = make(map[string]*time.Timer)
	}
	s.activeTimers[jobID] = time.AfterFunc(effectiveDelay, func() {
		s.mu.Lock()
		delete(s.activeTimers, jobID)
		s.mu.Unlock()
		if err := s.ProcessJob(context.Background(), jobID); err != nil {
			s.logger.Printf("job %s failed: %v", jobID, err)
		}
	})
	s.mu.Unlock()

	s.delay.MarkActive()

	return &ScheduleResult{
		JobID:  job.ID,
		Delay:  adjusted.Delay,
		Period: adjusted.Period,
	}, nil
}

// Cancel stops any pending job for the conversation.
func (s *ReplyScheduler) Cancel(ctx context.Context, conversationID string) error {
	return s.cancelInternal(ctx, conversationID)
}

// StartPolling launches the sweep that catches due jobs with no live timer
// and prunes terminal jobs past the retention window. Idempotent.
func (s *ReplyScheduler) StartPolling() {
	s.mu.Lock()
	if s.pollStop != nil {
		s.mu.Unlock()
		return
	}
	s.pollStop = make(chan struct{})
	s.pollDone = make(chan struct{})
	stop, done := s.pollStop, s.pollDone
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.sweep(context.Background())
			}
		}
	}()
}

func (s *ReplyScheduler) StopPolling() {
	s.mu.Lock()
	stop, done := s.pollStop, s.pollDone
	s.pollStop, s.pollDone = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// Dispose stops polling and drops every pending timer. Jobs stay in the
// store; a fresh scheduler's poll sweep can pick them up again.
func (s *ReplyScheduler) Dispose() {
	s.StopPolling()

	s.mu.Lock()
	for id, timer := range s.activeTimers {
		timer.Stop()
		delete(s.activeTimers, id)
	}
	s.mu.Unlock()
}

func (s *ReplyScheduler) sweep(ctx context.Context) {
	now := time.Now()

	due, err := s.store.GetDueJobs(ctx, now)
	if err != nil {
		s.logger.Printf("poll sweep: %v", err)
		return
	}
	for _, job := range due {
		s.mu.Lock()
		_, hasTimer := s.activeTimers[job.ID]
		busy := s.processing[job.ID]
		s.mu.Unlock()
		if hasTimer || busy {
			continue
		}
		if err := s.ProcessJob(ctx, job.ID); err != nil {
			s.logger.Printf("job %s failed: %v", job.ID, err)
		}
	}

	pruned, err := s.store.PruneTerminal(ctx, now.Add(-s.retention))
	if err != nil {
		s.logger.Printf("prune: %v", err)
		return
	}
	if pruned > 0 {
		s.logger.Printf("pruned %d terminal jobs", pruned)
	}
}

// ProcessJob runs a single job to completion. Safe to call concurrently for
// the same id; only one invocation proceeds.
func (s *ReplyScheduler) ProcessJob(ctx context.Context, jobID string) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if job.Status != domain.JobStatusWaiting {
		return nil
	}

	s.mu.Lock()
	if s.processing == nil {
		s.processing = make(map[string]bool)
	}
	if s.processing[jobID] {
		s.mu.Unlock()
		return nil
	}
	s.processing[jobID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.processing, jobID)
		s.mu.Unlock()
	}()

	return s.executeJob(ctx, job)
}

func (s *ReplyScheduler) executeJob(ctx context.Context, job *domain.ScheduledJob) error {
	// Checkpoint 1: did the seller write again before generation started?
	interrupted, err := s.checkInterruption(ctx, job)
	if err != nil || interrupted {
		return err
	}

	if err := s.setStatus(ctx, job.ID, domain.JobStatusGenerating); err != nil {
		return err
	}

	signals, personalization, err := s.context.GetSignals(ctx, job.ConversationID)
	if err != nil {
		return fmt.Errorf("resolve conversation context: %w", err)
	}

	result, err := s.generator.Generate(ctx, signals, personalization, "")
	if err != nil {
		return err
	}

	if result.Skipped || result.Message == nil {
		return s.setStatus(ctx, job.ID, domain.JobStatusSkipped)
	}

	// Checkpoint 2: did the seller write again while the draft was generated?
	interrupted, err = s.checkInterruption(ctx, job)
	if err != nil || interrupted {
		return err
	}

	text := result.Message.Text
	if err := s.store.Update(ctx, job.ID, domain.JobUpdate{
		Status:           statusPtr(domain.JobStatusSending),
		GeneratedMessage: &text,
	}); err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	if err := s.typingPause(ctx, text); err != nil {
		return err
	}

	// Checkpoint 3: did the seller write again while we were "typing"?
	interrupted, err = s.checkInterruption(ctx, job)
	if err != nil || interrupted {
		return err
	}

	if err := s.sender.Send(ctx, job.ConversationID, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return s.setStatus(ctx, job.ID, domain.JobStatusCompleted)
}

// checkInterruption cancels the job when a new incoming message arrived after
// it was created. Up to maxInterruptionResets a replacement job is scheduled
// with the count bumped; past that the reply is dropped for good.
func (s *ReplyScheduler) checkInterruption(ctx context.Context, job *domain.ScheduledJob) (bool, error) {
	hasNew, err := s.checker.HasNewMessage(ctx, job.ConversationID, job.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("check new messages: %w", err)
	}
	if !hasNew {
		return false, nil
	}

	if err := s.setStatus(ctx, job.ID, domain.JobStatusCancelled); err != nil {
		return true, err
	}
	if job.InterruptionCount < s.maxInterruptionResets {
		if _, err := s.Schedule(ctx, job.ConversationID, job.TriggerMessageID, false, job.InterruptionCount+1); err != nil {
			return true, err
		}
	} else {
		s.logger.Printf("%s: dropped after %d interruptions", job.ConversationID, job.InterruptionCount)
	}
	return true, nil
}

// typingPause simulates typing the draft before it appears.
func (s *ReplyScheduler) typingPause(ctx context.Context, text string) error {
	if s.skipDelays {
		return nil
	}
	pause := time.Duration(utf8.RuneCountInString(text)*typingMillisPerChar) * time.Millisecond
	if pause > maxTypingDelay {
		pause = maxTypingDelay
	}

	timer := time.NewTimer(pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *ReplyScheduler) cancelInternal(ctx context.Context, conversationID string) error {
	existing, err := s.store.GetActiveForConversation(ctx, conversationID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup active job: %w", err)
	}
	if existing != nil {
		s.mu.Lock()
		if timer, ok := s.activeTimers[existing.ID]; ok {
			timer.Stop()
			delete(s.activeTimers, existing.ID)
		}
		s.mu.Unlock()
	}
	if err := s.store.CancelForConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("cancel jobs: %w", err)
	}
	return nil
}

func (s *ReplyScheduler) setStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	if err := s.store.Update(ctx, jobID, domain.JobUpdate{Status: &status}); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func statusPtr(status domain.JobStatus) *domain.JobStatus {
	return &status
}
