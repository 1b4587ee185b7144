package domain

import "time"

type JobStatus string

const (
	JobStatusWaiting    JobStatus = "waiting"
	JobStatusGenerating JobStatus = "generating"
	JobStatusSending    JobStatus = "sending"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusSkipped    JobStatus = "skipped"
)

// IsTerminal reports whether a job can no longer change state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusSkipped
}

// ScheduledJob is one armed reply: created by the scheduler, advanced in place
// through waiting -> generating -> sending -> completed, or cancelled/skipped
// along the way.
type ScheduledJob struct {
	ID                string
	ConversationID    string
	TriggerMessageID  string
	CreatedAt         time.Time
	ExecuteAfter      time.Time
	Status            JobStatus
	BaseDelay         time.Duration
	AdjustedDelay     time.Duration
	TimePeriod        TimePeriod
	InterruptionCount int
	GeneratedMessage  string
}

// JobUpdate carries partial field updates for a stored job. Nil pointers leave
// the stored value untouched.
type JobUpdate struct {
	Status           *JobStatus
	GeneratedMessage *string
}
