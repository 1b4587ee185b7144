package pacing

import (
	"math/rand"
	"sync/atomic"
	"time"
)

const (
	ReasonFirstMessage = "first_message"
	ReasonNotActive    = "not_active"
	ReasonAFK          = "afk"
	ReasonOnline       = "online"
)

type DelayConfig struct {
	FirstMessageMin time.Duration
	FirstMessageMax time.Duration
	NotActiveMin    time.Duration
	NotActiveMax    time.Duration
	OnlineMin       time.Duration
	OnlineMax       time.Duration
	AFKMin          time.Duration
	AFKMax          time.Duration
	AFKProbability  float64
	CharsPerSecond  int
	TestMode        bool
}

func DefaultDelayConfig() DelayConfig {
	return DelayConfig{
		FirstMessageMin: 2 * time.Minute,
		FirstMessageMax: 20 * time.Minute,
		NotActiveMin:    2 * time.Minute,
		NotActiveMax:    10 * time.Minute,
		OnlineMin:       5 * time.Second,
		OnlineMax:       45 * time.Second,
		AFKMin:          1 * time.Minute,
		AFKMax:          3 * time.Minute,
		AFKProbability:  0.15,
		CharsPerSecond:  4,
	}
}

// DelayResult reports the chosen waiting time. In test mode Delay is zero but
// Computed and Reason still describe what production would have done.
type DelayResult struct {
	Delay    time.Duration
	Computed time.Duration
	Reason   string
	TestMode bool
}

// DelayCalculator models how long a human would take to notice a message and
// start answering. Once the conversation has had any online interaction the
// calculator stays "active" for its lifetime.
type DelayCalculator struct {
	config DelayConfig
	active atomic.Bool
}

func NewDelayCalculator(config DelayConfig) *DelayCalculator {
	if config.CharsPerSecond <= 0 {
		config.CharsPerSecond = 4
	}
	return &DelayCalculator{config: config}
}

func (c *DelayCalculator) Calculate(messageLength int, isFirstInConversation bool) DelayResult {
	var computed time.Duration
	var reason string

	switch {
	case isFirstInConversation:
		computed = randomDuration(c.config.FirstMessageMin, c.config.FirstMessageMax)
		reason = ReasonFirstMessage
	case !c.active.Load():
		computed = randomDuration(c.config.NotActiveMin, c.config.NotActiveMax)
		reason = ReasonNotActive
	case rand.Float64() < c.config.AFKProbability:
		computed = randomDuration(c.config.AFKMin, c.config.AFKMax)
		reason = ReasonAFK
	default:
		typing := time.Duration(float64(messageLength) / float64(c.config.CharsPerSecond) * float64(time.Second))
		computed = randomDuration(c.config.OnlineMin, c.config.OnlineMax) + typing*3/10
		reason = ReasonOnline
	}

	delay := computed
	if c.config.TestMode {
		delay = 0
	}
	return DelayResult{
		Delay:    delay,
		Computed: computed,
		Reason:   reason,
		TestMode: c.config.TestMode,
	}
}

// MarkActive records that the conversation has had an online interaction.
// Sticky: there is no way back to the not_active state.
func (c *DelayCalculator) MarkActive() {
	c.active.Store(true)
}

func (c *DelayCalculator) IsActive() bool {
	return c.active.Load()
}

func randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}
