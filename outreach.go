// Package outreach wires the scheduling and validation core into one engine.
// Hosts supply transport and conversation lookup; everything else is
// assembled here from configuration.
package outreach

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/maklermatch/outreach/internal/ai"
	"github.com/maklermatch/outreach/internal/cache"
	"github.com/maklermatch/outreach/internal/config"
	"github.com/maklermatch/outreach/internal/domain"
	"github.com/maklermatch/outreach/internal/generator"
	"github.com/maklermatch/outreach/internal/guard"
	"github.com/maklermatch/outreach/internal/humanize"
	"github.com/maklermatch/outreach/internal/pacing"
	"github.com/maklermatch/outreach/internal/policy"
	"github.com/maklermatch/outreach/internal/repository"
	"github.com/maklermatch/outreach/internal/scheduler"
)

// Aliases so hosts can name the types they interact with.
type (
	Config = config.Config

	LLMClient           = ai.LLMClient
	NewMessageChecker   = scheduler.NewMessageChecker
	MessageSender       = scheduler.MessageSender
	ConversationContext = scheduler.ConversationContext
	ScheduleResult      = scheduler.ScheduleResult
	FollowUpStats       = scheduler.FollowUpStats

	Persona           = domain.Persona
	ListingSignals    = domain.ListingSignals
	BrokerCriteria    = domain.BrokerCriteria
	Message           = domain.Message
	ConversationState = domain.ConversationState
	GateResult        = domain.GateResult
	ValidationResult  = domain.ValidationResult
	SafeguardResult   = domain.SafeguardResult
	MessageResult     = generator.MessageResult
)

// LoadConfig reads the environment, applying optional .env files first.
func LoadConfig(dotenvPaths ...string) Config {
	return config.Load(dotenvPaths...)
}

// HostDeps is what the embedding application has to provide.
type HostDeps struct {
	Checker NewMessageChecker
	Sender  MessageSender
	Context ConversationContext

	// Persona is the broker identity messages are written as. Zero value
	// falls back to the built-in default.
	Persona Persona

	// LLM overrides the configured OpenAI client, mainly for tests.
	LLM LLMClient

	// TestMode zeroes all humanized delays while keeping them reported.
	TestMode bool

	Logger *log.Logger
}

// Engine bundles the wired components. Fields are live and share state; use
// them directly rather than rebuilding pieces.
type Engine struct {
	Scheduler *scheduler.ReplyScheduler
	FollowUps *scheduler.FollowUpEngine
	Generator *generator.MessageGenerator
	Gate      *guard.ListingGate
	SpamGuard *guard.SpamGuard
	Safeguard *guard.Safeguard

	Jobs          repository.JobStore
	Conversations repository.ConversationStore
	Dedupe        cache.DedupeStore

	closers []func() error
}

// New assembles an Engine. Durable backends are chosen by configuration:
// Postgres for jobs when DATABASE_URL is set, Redis for dedupe when
// REDIS_ADDR is set, SQLite for cadence state when SQLITE_PATH is set.
// Unset backends fall back to in-memory implementations.
func New(ctx context.Context, cfg Config, deps HostDeps) (*Engine, error) {
	if deps.Logger == nil {
		deps.Logger = log.New(log.Writer(), "[outreach] ", log.LstdFlags)
	}

	engine := &Engine{}

	llm := deps.LLM
	if llm == nil {
		llm = ai.NewOpenAIClient(ai.OpenAIClientConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			Timeout:    time.Duration(cfg.OpenAITimeoutMS) * time.Millisecond,
			MaxRetries: cfg.OpenAIMaxRetries,
		})
	}

	var dedupe cache.DedupeStore
	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedisDedupeStore(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		engine.closers = append(engine.closers, redisStore.Close)
		dedupe = redisStore
	} else {
		dedupe = cache.NewMemoryDedupeStore(cache.MemoryConfig{})
	}

	var jobs repository.JobStore
	if cfg.DatabaseURL != "" {
		pgStore, err := repository.NewPostgresJobStore(ctx, cfg.DatabaseURL)
		if err != nil {
			engine.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		engine.closers = append(engine.closers, func() error {
			pgStore.Close()
			return nil
		})
		jobs = pgStore
	} else {
		jobs = repository.NewMemoryJobStore()
	}

	var conversations repository.ConversationStore
	if cfg.SQLitePath != "" {
		sqliteStore, err := repository.NewSQLiteConversationStore(cfg.SQLitePath)
		if err != nil {
			engine.Close()
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		engine.closers = append(engine.closers, sqliteStore.Close)
		conversations = sqliteStore
	} else {
		conversations = repository.NewMemoryConversationStore()
	}

	rules := policy.DefaultRules()
	rules.MaxWords = cfg.MaxWords
	rules.MaxExclamationMarks = cfg.MaxExclamationMarks
	rules.MaxQuestionMarks = cfg.MaxQuestionMarks

	spamGuard := guard.NewSpamGuard(llm, rules, cfg.MinQualityScore)
	safeguard := guard.NewSafeguard(llm, cfg.SafeguardEnabled)
	gate := guard.NewListingGate(llm)

	delay := pacing.NewDelayCalculator(pacing.DelayConfig{
		FirstMessageMin: time.Duration(cfg.FirstMessageDelayMinMS) * time.Millisecond,
		FirstMessageMax: time.Duration(cfg.FirstMessageDelayMaxMS) * time.Millisecond,
		NotActiveMin:    time.Duration(cfg.NotActiveDelayMinMS) * time.Millisecond,
		NotActiveMax:    time.Duration(cfg.NotActiveDelayMaxMS) * time.Millisecond,
		OnlineMin:       time.Duration(cfg.OnlineDelayMinMS) * time.Millisecond,
		OnlineMax:       time.Duration(cfg.OnlineDelayMaxMS) * time.Millisecond,
		AFKMin:          time.Duration(cfg.AFKDelayMinMS) * time.Millisecond,
		AFKMax:          time.Duration(cfg.AFKDelayMaxMS) * time.Millisecond,
		AFKProbability:  cfg.AFKProbability,
		CharsPerSecond:  cfg.CharsPerSecond,
		TestMode:        deps.TestMode,
	})

	window := pacing.NewTimeWindow(pacing.WindowConfig{
		ChatStartHour:           cfg.ChatWindowStartHour,
		ChatStartMinute:         cfg.ChatWindowStartMinute,
		ChatEndHour:             cfg.ChatWindowEndHour,
		BusinessStartHour:       cfg.BusinessHoursStart,
		BusinessEndHour:         cfg.BusinessHoursEnd,
		OffHoursSkipProbability: cfg.OffHoursSkipProbability,
		OffHoursMultiplierMin:   cfg.OffHoursMultiplierMin,
		OffHoursMultiplierMax:   cfg.OffHoursMultiplierMax,
		WeekendSkipProbability:  cfg.WeekendSkipProbability,
		WeekendMultiplierMin:    cfg.WeekendMultiplierMin,
		WeekendMultiplierMax:    cfg.WeekendMultiplierMax,
	})

	gen := generator.NewMessageGenerator(
		llm,
		spamGuard,
		humanize.NewPostProcessor(humanize.Config{TypoProbability: cfg.TypoProbability}),
		delay,
		dedupe,
		generator.Options{
			Persona:          deps.Persona,
			MaxRetries:       cfg.MaxGenerationRetries,
			SafeguardEnabled: cfg.SafeguardEnabled,
			Logger:           deps.Logger,
		},
	)

	var limiter *rate.Limiter
	if cfg.MaxMessagesPerDay > 0 {
		limiter = rate.NewLimiter(
			rate.Every(24*time.Hour/time.Duration(cfg.MaxMessagesPerDay)),
			cfg.MaxMessagesPerDay,
		)
	}

	engine.Scheduler = scheduler.NewReplyScheduler(scheduler.Deps{
		Store:                 jobs,
		Generator:             gen,
		Checker:               deps.Checker,
		Sender:                deps.Sender,
		Context:               deps.Context,
		Delay:                 delay,
		Window:                window,
		Limiter:               limiter,
		PollInterval:          cfg.PollInterval(),
		JobRetention:          cfg.JobRetention(),
		MaxInterruptionResets: cfg.MaxInterruptionResets,
		SkipDelays:            deps.TestMode,
		Logger:                deps.Logger,
	})

	engine.FollowUps = scheduler.NewFollowUpEngine(conversations, scheduler.FollowUpConfig{
		Stage1MinDays: cfg.Followup1MinDays,
		Stage1MaxDays: cfg.Followup1MaxDays,
		Stage2MinDays: cfg.Followup2MinDays,
		Stage2MaxDays: cfg.Followup2MaxDays,
		MaxFollowups:  cfg.MaxFollowups,
		SendStartHour: 8,
		SendEndHour:   21,
	})

	engine.Generator = gen
	engine.Gate = gate
	engine.SpamGuard = spamGuard
	engine.Safeguard = safeguard
	engine.Jobs = jobs
	engine.Conversations = conversations
	engine.Dedupe = dedupe

	return engine, nil
}

// Start launches the scheduler's poll sweep.
func (e *Engine) Start() {
	e.Scheduler.StartPolling()
}

// Close stops timers and the poll loop, then releases every backend.
func (e *Engine) Close() error {
	if e.Scheduler != nil {
		e.Scheduler.Dispose()
	}
	var firstErr error
	for _, closeFn := range e.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
