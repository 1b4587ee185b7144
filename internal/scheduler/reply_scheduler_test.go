package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/maklermatch/outreach/internal/cache"
	"github.com/maklermatch/outreach/internal/domain"
	"github.com/maklermatch/outreach/internal/generator"
	"github.com/maklermatch/outreach/internal/guard"
	"github.com/maklermatch/outreach/internal/humanize"
	"github.com/maklermatch/outreach/internal/pacing"
	"github.com/maklermatch/outreach/internal/policy"
	"github.com/maklermatch/outreach/internal/repository"
)

// scriptedLLM replays queued responses. Safe for concurrent use because jobs
// run on timer goroutines.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
}

func (s *scriptedLLM) Generate(_ context.Context, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return "", errors.New("scripted llm exhausted")
	}
	response := s.responses[0]
	s.responses = s.responses[1:]
	return response, nil
}

// scriptedChecker pops queued answers and reports false once they run out.
type scriptedChecker struct {
	mu      sync.Mutex
	answers []bool
	always  bool
	calls   int
}

func (c *scriptedChecker) HasNewMessage(context.Context, string, time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.always {
		return true, nil
	}
	if len(c.answers) == 0 {
		return false, nil
	}
	answer := c.answers[0]
	c.answers = c.answers[1:]
	return answer, nil
}

func (c *scriptedChecker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSender) Send(_ context.Context, _, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, message)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type staticContext struct{}

func (staticContext) GetSignals(context.Context, string) (domain.ListingSignals, domain.PersonalizationResult, error) {
	signals := domain.ListingSignals{
		ListingID:     "listing-1",
		PropertyType:  "Einfamilienhaus",
		Price:         385000,
		LivingAreaSqm: 140,
		City:          "Leipzig",
		Tone:          domain.ToneSie,
	}
	personalization := domain.PersonalizationResult{
		PrimaryAnchor:       "140m² Einfamilienhaus in Leipzig",
		RecommendedVariants: []domain.MessageVariant{domain.VariantDirectHonest},
	}
	return signals, personalization, nil
}

const testDraft = "Hallo! Bin Makler hier in Leipzig, das Haus mit 140m² ist mir aufgefallen. Noch zu haben? VG Max"

// flatWindow makes every instant business hours so tests do not depend on the
// wall clock.
func flatWindow() *pacing.TimeWindow {
	return pacing.NewTimeWindow(pacing.WindowConfig{
		ChatStartHour:         0,
		ChatEndHour:           24,
		BusinessStartHour:     0,
		BusinessEndHour:       24,
		OffHoursMultiplierMin: 1,
		OffHoursMultiplierMax: 1,
		WeekendMultiplierMin:  1,
		WeekendMultiplierMax:  1,
	})
}

func testDelayCalculator(testMode bool) *pacing.DelayCalculator {
	config := pacing.DefaultDelayConfig()
	config.TestMode = testMode
	return pacing.NewDelayCalculator(config)
}

func newTestScheduler(t *testing.T, llm *scriptedLLM, checker *scriptedChecker, sender *recordingSender, deps Deps) *ReplyScheduler {
	t.Helper()
	delay := deps.Delay
	if delay == nil {
		delay = testDelayCalculator(true)
	}
	gen := generator.NewMessageGenerator(
		llm,
		guard.NewSpamGuard(nil, policy.DefaultRules(), 6),
		humanize.NewPostProcessor(humanize.Config{TypoProbability: 0}),
		delay,
		cache.NewMemoryDedupeStore(cache.MemoryConfig{}),
		generator.Options{Logger: log.New(io.Discard, "", 0)},
	)

	deps.Generator = gen
	deps.Checker = checker
	deps.Sender = sender
	deps.Context = staticContext{}
	if deps.Store == nil {
		deps.Store = repository.NewMemoryJobStore()
	}
	if deps.Window == nil {
		deps.Window = flatWindow()
	}
	if deps.Delay == nil {
		deps.Delay = delay
	}
	deps.Logger = log.New(io.Discard, "", 0)

	s := NewReplyScheduler(deps)
	t.Cleanup(s.Dispose)
	return s
}

func waitFor(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", message)
}

func jobStatus(t *testing.T, store repository.JobStore, jobID string) domain.JobStatus {
	t.Helper()
	job, err := store.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("get job %s: %v", jobID, err)
	}
	return job.Status
}

func TestScheduleRunsJobToCompletion(t *testing.T) {
	llm := &scriptedLLM{responses: []string{testDraft}}
	checker := &scriptedChecker{}
	sender := &recordingSender{}
	store := repository.NewMemoryJobStore()
	s := newTestScheduler(t, llm, checker, sender, Deps{Store: store, SkipDelays: true})

	result, err := s.Schedule(context.Background(), "conv-1", "msg-1", true, 0)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if result.Skipped {
		t.Fatalf("expected a scheduled job, got skip")
	}

	waitFor(t, func() bool {
		return jobStatus(t, store, result.JobID) == domain.JobStatusCompleted
	}, "job completion")

	if sender.count() != 1 {
		t.Fatalf("expected 1 sent message, got %d", sender.count())
	}
	job, _ := store.Get(context.Background(), result.JobID)
	if job.GeneratedMessage != testDraft {
		t.Fatalf("expected generated message on the job, got %q", job.GeneratedMessage)
	}
	// All three checkpoints consulted the checker.
	if checker.callCount() != 3 {
		t.Fatalf("expected 3 interruption checks, got %d", checker.callCount())
	}
}

func TestScheduleReplacesActiveJob(t *testing.T) {
	llm := &scriptedLLM{}
	checker := &scriptedChecker{}
	sender := &recordingSender{}
	store := repository.NewMemoryJobStore()
	// Real delays keep the timers from firing during the test.
	s := newTestScheduler(t, llm, checker, sender, Deps{
		Store: store,
		Delay: testDelayCalculator(false),
	})

	first, err := s.Schedule(context.Background(), "conv-1", "msg-1", true, 0)
	if err != nil {
		t.Fatalf("first schedule failed: %v", err)
	}
	second, err := s.Schedule(context.Background(), "conv-1", "msg-2", false, 0)
	if err != nil {
		t.Fatalf("second schedule failed: %v", err)
	}

	if jobStatus(t, store, first.JobID) != domain.JobStatusCancelled {
		t.Fatalf("expected first job cancelled")
	}
	active, err := store.GetActiveForConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("expected an active job: %v", err)
	}
	if active.ID != second.JobID {
		t.Fatalf("expected the second job to be active, got %s", active.ID)
	}
}

func TestConversationsAreIndependent(t *testing.T) {
	llm := &scriptedLLM{}
	checker := &scriptedChecker{}
	sender := &recordingSender{}
	store := repository.NewMemoryJobStore()
	s := newTestScheduler(t, llm, checker, sender, Deps{
		Store: store,
		Delay: testDelayCalculator(false),
	})

	a, err := s.Schedule(context.Background(), "conv-a", "msg-1", true, 0)
	if err != nil {
		t.Fatalf("schedule a failed: %v", err)
	}
	b, err := s.Schedule(context.Background(), "conv-b", "msg-2", true, 0)
	if err != nil {
		t.Fatalf("schedule b failed: %v", err)
	}

	if err := s.Cancel(context.Background(), "conv-a"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if jobStatus(t, store, a.JobID) != domain.JobStatusCancelled {
		t.Fatalf("expected job a cancelled")
	}
	if jobStatus(t, store, b.JobID) != domain.JobStatusWaiting {
		t.Fatalf("expected job b untouched")
	}
}

func TestInterruptionReschedulesOnce(t *testing.T) {
	llm := &scriptedLLM{responses: []string{testDraft}}
	checker := &scriptedChecker{answers: []bool{true}}
	sender := &recordingSender{}
	store := repository.NewMemoryJobStore()
	s := newTestScheduler(t, llm, checker, sender, Deps{Store: store, SkipDelays: true})

	result, err := s.Schedule(context.Background(), "conv-1", "msg-1", true, 0)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	// The first checkpoint sees a new message, cancels the job and schedules a
	// replacement that then runs clean.
	waitFor(t, func() bool { return sender.count() == 1 }, "replacement job to send")

	if jobStatus(t, store, result.JobID) != domain.JobStatusCancelled {
		t.Fatalf("expected the interrupted job cancelled")
	}
	if _, err := store.GetActiveForConversation(context.Background(), "conv-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected no remaining active job, got %v", err)
	}
}

func TestInterruptionsDropAfterMaxResets(t *testing.T) {
	llm := &scriptedLLM{}
	checker := &scriptedChecker{always: true}
	sender := &recordingSender{}
	store := repository.NewMemoryJobStore()
	s := newTestScheduler(t, llm, checker, sender, Deps{
		Store:                 store,
		SkipDelays:            true,
		MaxInterruptionResets: 3,
	})

	if _, err := s.Schedule(context.Background(), "conv-1", "msg-1", true, 0); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	// Counts 0 through 3 each hit the checkpoint, then the reply is dropped.
	waitFor(t, func() bool { return checker.callCount() == 4 }, "all interruption resets")
	waitFor(t, func() bool {
		_, err := store.GetActiveForConversation(context.Background(), "conv-1")
		return errors.Is(err, repository.ErrNotFound)
	}, "no active job after drop")

	if sender.count() != 0 {
		t.Fatalf("expected no sends, got %d", sender.count())
	}
}

func TestGeneratorSkipMarksJobSkipped(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"[SKIP]"}}
	checker := &scriptedChecker{}
	sender := &recordingSender{}
	store := repository.NewMemoryJobStore()
	s := newTestScheduler(t, llm, checker, sender, Deps{Store: store, SkipDelays: true})

	result, err := s.Schedule(context.Background(), "conv-1", "msg-1", true, 0)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	waitFor(t, func() bool {
		return jobStatus(t, store, result.JobID) == domain.JobStatusSkipped
	}, "job to be skipped")

	if sender.count() != 0 {
		t.Fatalf("expected no sends, got %d", sender.count())
	}
}

func TestExhaustedDailyBudgetSkips(t *testing.T) {
	llm := &scriptedLLM{}
	checker := &scriptedChecker{}
	sender := &recordingSender{}
	store := repository.NewMemoryJobStore()
	limiter := rate.NewLimiter(rate.Every(24*time.Hour), 1)
	limiter.Allow()
	s := newTestScheduler(t, llm, checker, sender, Deps{
		Store:      store,
		SkipDelays: true,
		Limiter:    limiter,
	})

	result, err := s.Schedule(context.Background(), "conv-1", "msg-1", true, 0)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if !result.Skipped {
		t.Fatalf("expected skip when the budget is spent")
	}
	if jobStatus(t, store, result.JobID) != domain.JobStatusSkipped {
		t.Fatalf("expected a skipped job row")
	}
	if sender.count() != 0 {
		t.Fatalf("expected no sends, got %d", sender.count())
	}
}

func TestProcessJobIgnoresUnknownAndTerminal(t *testing.T) {
	llm := &scriptedLLM{responses: []string{testDraft}}
	checker := &scriptedChecker{}
	sender := &recordingSender{}
	store := repository.NewMemoryJobStore()
	s := newTestScheduler(t, llm, checker, sender, Deps{Store: store, SkipDelays: true})

	if err := s.ProcessJob(context.Background(), "no-such-job"); err != nil {
		t.Fatalf("expected unknown job to be a no-op, got %v", err)
	}

	result, err := s.Schedule(context.Background(), "conv-1", "msg-1", true, 0)
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	waitFor(t, func() bool {
		return jobStatus(t, store, result.JobID) == domain.JobStatusCompleted
	}, "job completion")

	if err := s.ProcessJob(context.Background(), result.JobID); err != nil {
		t.Fatalf("expected terminal job to be a no-op, got %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("expected no second send, got %d", sender.count())
	}
}

func TestPollSweepPicksUpDueJobs(t *testing.T) {
	llm := &scriptedLLM{responses: []string{testDraft}}
	checker := &scriptedChecker{}
	sender := &recordingSender{}
	store := repository.NewMemoryJobStore()

	// A due job with no live timer, as if a previous process died.
	orphan, err := store.Create(context.Background(), &domain.ScheduledJob{
		ConversationID:   "conv-1",
		TriggerMessageID: "msg-1",
		CreatedAt:        time.Now().Add(-time.Minute),
		ExecuteAfter:     time.Now().Add(-time.Second),
		Status:           domain.JobStatusWaiting,
	})
	if err != nil {
		t.Fatalf("create orphan job: %v", err)
	}

	s := newTestScheduler(t, llm, checker, sender, Deps{
		Store:        store,
		SkipDelays:   true,
		PollInterval: 10 * time.Millisecond,
	})
	s.StartPolling()

	waitFor(t, func() bool {
		return jobStatus(t, store, orphan.ID) == domain.JobStatusCompleted
	}, "sweep to complete the orphan job")

	if sender.count() != 1 {
		t.Fatalf("expected 1 sent message, got %d", sender.count())
	}
}

func TestPollSweepPrunesOldTerminalJobs(t *testing.T) {
	llm := &scriptedLLM{}
	checker := &scriptedChecker{}
	sender := &recordingSender{}
	store := repository.NewMemoryJobStore()

	stale, err := store.Create(context.Background(), &domain.ScheduledJob{
		ConversationID: "conv-1",
		CreatedAt:      time.Now().Add(-48 * time.Hour),
		ExecuteAfter:   time.Now().Add(-48 * time.Hour),
		Status:         domain.JobStatusCompleted,
	})
	if err != nil {
		t.Fatalf("create stale job: %v", err)
	}

	s := newTestScheduler(t, llm, checker, sender, Deps{
		Store:        store,
		SkipDelays:   true,
		PollInterval: 10 * time.Millisecond,
		JobRetention: 24 * time.Hour,
	})
	s.StartPolling()

	waitFor(t, func() bool {
		_, err := store.Get(context.Background(), stale.ID)
		return errors.Is(err, repository.ErrNotFound)
	}, "stale job to be pruned")
}
