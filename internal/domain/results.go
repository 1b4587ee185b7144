package domain

type TimePeriod string

const (
	PeriodBusinessHours     TimePeriod = "business_hours"
	PeriodOffHours          TimePeriod = "off_hours"
	PeriodWeekend           TimePeriod = "weekend"
	PeriodOutsideChatWindow TimePeriod = "outside_chat_window"
)

type GateRejectionType string

const (
	GateRejectionCriteria GateRejectionType = "criteria_mismatch"
	GateRejectionLLM      GateRejectionType = "llm_rejection"
)

// GateResult is the outcome of the pre-engagement listing screen. Soft data,
// never an error.
type GateResult struct {
	Passed          bool
	RejectionType   GateRejectionType
	RejectionReason string
	Details         []string
}

// ValidationResult is SpamGuard's verdict on one draft. A rule violation
// rejects with score 0; otherwise Score carries the 1-10 LLM quality rating.
type ValidationResult struct {
	Passed           bool
	Score            int
	RejectionReasons []Violation
}

// Violation is a single typed rejection reason. Callers branch on Code.
type Violation struct {
	Code    string
	Message string
}

// SafeguardResult is the AI-tell detector's verdict.
type SafeguardResult struct {
	Passed bool
	Reason string
}
