package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config centralizes every runtime tunable of the outreach core. All values
// can be overridden through the environment; defaults are the production ones.
type Config struct {
	DatabaseURL string
	SQLitePath  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	OpenAITimeoutMS  int
	OpenAIMaxRetries int

	// Delay model (milliseconds).
	FirstMessageDelayMinMS int
	FirstMessageDelayMaxMS int
	NotActiveDelayMinMS    int
	NotActiveDelayMaxMS    int
	OnlineDelayMinMS       int
	OnlineDelayMaxMS       int
	AFKDelayMinMS          int
	AFKDelayMaxMS          int
	AFKProbability         float64
	CharsPerSecond         int
	TypingDelayPerCharMS   int
	TypingDelayMaxMS       int

	// Chat window and time-of-day adjustment.
	ChatWindowStartHour     int
	ChatWindowStartMinute   int
	ChatWindowEndHour       int
	BusinessHoursStart      int
	BusinessHoursEnd        int
	OffHoursSkipProbability float64
	OffHoursMultiplierMin   float64
	OffHoursMultiplierMax   float64
	WeekendSkipProbability  float64
	WeekendMultiplierMin    float64
	WeekendMultiplierMax    float64

	// Scheduler.
	PollIntervalMS        int
	MaxInterruptionResets int
	MaxMessagesPerDay     int
	JobRetentionHours     int

	// Generation and validation.
	MaxGenerationRetries int
	MinQualityScore      int
	MaxWords             int
	MaxExclamationMarks  int
	MaxQuestionMarks     int
	SafeguardEnabled     bool
	TypoProbability      float64

	// Follow-up cadence (days).
	MaxFollowups     int
	Followup1MinDays float64
	Followup1MaxDays float64
	Followup2MinDays float64
	Followup2MaxDays float64
}

// Load reads configuration from the environment. Optional .env files are
// applied first; real environment variables keep precedence.
func Load(dotenvPaths ...string) Config {
	for _, path := range dotenvPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}

	return Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "outreach.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4.1-mini"),
		OpenAITimeoutMS:  getEnvInt("OPENAI_TIMEOUT_MS", 15000),
		OpenAIMaxRetries: getEnvInt("OPENAI_MAX_RETRIES", 2),

		FirstMessageDelayMinMS: getEnvInt("FIRST_MESSAGE_DELAY_MIN_MS", 120_000),
		FirstMessageDelayMaxMS: getEnvInt("FIRST_MESSAGE_DELAY_MAX_MS", 1_200_000),
		NotActiveDelayMinMS:    getEnvInt("NOT_ACTIVE_DELAY_MIN_MS", 120_000),
		NotActiveDelayMaxMS:    getEnvInt("NOT_ACTIVE_DELAY_MAX_MS", 600_000),
		OnlineDelayMinMS:       getEnvInt("ONLINE_DELAY_MIN_MS", 5_000),
		OnlineDelayMaxMS:       getEnvInt("ONLINE_DELAY_MAX_MS", 45_000),
		AFKDelayMinMS:          getEnvInt("AFK_DELAY_MIN_MS", 60_000),
		AFKDelayMaxMS:          getEnvInt("AFK_DELAY_MAX_MS", 180_000),
		AFKProbability:         getEnvFloat("AFK_PROBABILITY", 0.15),
		CharsPerSecond:         getEnvInt("CHARS_PER_SECOND", 4),
		TypingDelayPerCharMS:   getEnvInt("TYPING_DELAY_PER_CHAR_MS", 55),
		TypingDelayMaxMS:       getEnvInt("TYPING_DELAY_MAX_MS", 8_000),

		ChatWindowStartHour:     getEnvInt("CHAT_WINDOW_START_HOUR", 7),
		ChatWindowStartMinute:   getEnvInt("CHAT_WINDOW_START_MINUTE", 22),
		ChatWindowEndHour:       getEnvInt("CHAT_WINDOW_END_HOUR", 24),
		BusinessHoursStart:      getEnvInt("BUSINESS_HOURS_START", 9),
		BusinessHoursEnd:        getEnvInt("BUSINESS_HOURS_END", 17),
		OffHoursSkipProbability: getEnvFloat("OFF_HOURS_SKIP_PROBABILITY", 0.10),
		OffHoursMultiplierMin:   getEnvFloat("OFF_HOURS_MULTIPLIER_MIN", 3),
		OffHoursMultiplierMax:   getEnvFloat("OFF_HOURS_MULTIPLIER_MAX", 8),
		WeekendSkipProbability:  getEnvFloat("WEEKEND_SKIP_PROBABILITY", 0.20),
		WeekendMultiplierMin:    getEnvFloat("WEEKEND_MULTIPLIER_MIN", 5),
		WeekendMultiplierMax:    getEnvFloat("WEEKEND_MULTIPLIER_MAX", 15),

		PollIntervalMS:        getEnvInt("SCHEDULER_POLL_INTERVAL_MS", 30_000),
		MaxInterruptionResets: getEnvInt("MAX_INTERRUPTION_RESETS", 3),
		MaxMessagesPerDay:     getEnvInt("MAX_MESSAGES_PER_DAY", 20),
		JobRetentionHours:     getEnvInt("JOB_RETENTION_HOURS", 24),

		MaxGenerationRetries: getEnvInt("MAX_GENERATION_RETRIES", 2),
		MinQualityScore:      getEnvInt("MIN_QUALITY_SCORE", 6),
		MaxWords:             getEnvInt("MAX_WORDS", 60),
		MaxExclamationMarks:  getEnvInt("MAX_EXCLAMATION_MARKS", 1),
		MaxQuestionMarks:     getEnvInt("MAX_QUESTION_MARKS", 1),
		SafeguardEnabled:     getEnvBool("SAFEGUARD_ENABLED", true),
		TypoProbability:      getEnvFloat("TYPO_PROBABILITY", 0.08),

		MaxFollowups:     getEnvInt("MAX_FOLLOWUPS", 2),
		Followup1MinDays: getEnvFloat("FOLLOWUP_1_MIN_DAYS", 3),
		Followup1MaxDays: getEnvFloat("FOLLOWUP_1_MAX_DAYS", 5),
		Followup2MinDays: getEnvFloat("FOLLOWUP_2_MIN_DAYS", 10),
		Followup2MaxDays: getEnvFloat("FOLLOWUP_2_MAX_DAYS", 14),
	}
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c Config) JobRetention() time.Duration {
	return time.Duration(c.JobRetentionHours) * time.Hour
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
