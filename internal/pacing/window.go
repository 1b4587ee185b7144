package pacing

import (
	"math/rand"
	"time"

	"github.com/maklermatch/outreach/internal/domain"
)

type WindowConfig struct {
	ChatStartHour   int
	ChatStartMinute int
	ChatEndHour     int

	BusinessStartHour int
	BusinessEndHour   int

	OffHoursSkipProbability float64
	OffHoursMultiplierMin   float64
	OffHoursMultiplierMax   float64

	WeekendSkipProbability float64
	WeekendMultiplierMin   float64
	WeekendMultiplierMax   float64
}

func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		ChatStartHour:           7,
		ChatStartMinute:         22,
		ChatEndHour:             24,
		BusinessStartHour:       9,
		BusinessEndHour:         17,
		OffHoursSkipProbability: 0.10,
		OffHoursMultiplierMin:   3,
		OffHoursMultiplierMax:   8,
		WeekendSkipProbability:  0.20,
		WeekendMultiplierMin:    5,
		WeekendMultiplierMax:    15,
	}
}

// TimeAdjustment is recomputed on every call; it depends on the wall clock
// and must never be cached.
type TimeAdjustment struct {
	Period  domain.TimePeriod
	Delay   time.Duration
	Skipped bool
}

// TimeWindow classifies wall-clock time into outreach periods and stretches
// or skips delays so that sending behavior follows a plausible daily rhythm.
type TimeWindow struct {
	config WindowConfig
}

func NewTimeWindow(config WindowConfig) *TimeWindow {
	return &TimeWindow{config: config}
}

func (w *TimeWindow) Classify(now time.Time) domain.TimePeriod {
	if !w.InChatWindow(now) {
		return domain.PeriodOutsideChatWindow
	}

	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return domain.PeriodWeekend
	}

	minutes := now.Hour()*60 + now.Minute()
	if minutes >= w.config.BusinessStartHour*60 && minutes < w.config.BusinessEndHour*60 {
		return domain.PeriodBusinessHours
	}
	return domain.PeriodOffHours
}

func (w *TimeWindow) InChatWindow(now time.Time) bool {
	minutes := now.Hour()*60 + now.Minute()
	start := w.config.ChatStartHour*60 + w.config.ChatStartMinute
	end := w.config.ChatEndHour * 60
	return minutes >= start && minutes < end
}

// NextChatWindowStart returns now when already inside the window, today's
// window start when now is before it, and tomorrow's otherwise.
func (w *TimeWindow) NextChatWindowStart(now time.Time) time.Time {
	if w.InChatWindow(now) {
		return now
	}

	start := time.Date(
		now.Year(), now.Month(), now.Day(),
		w.config.ChatStartHour, w.config.ChatStartMinute, 0, 0,
		now.Location(),
	)
	if now.Before(start) {
		return start
	}
	return start.AddDate(0, 0, 1)
}

func (w *TimeWindow) AdjustDelay(base time.Duration, now time.Time) TimeAdjustment {
	period := w.Classify(now)

	switch period {
	case domain.PeriodOutsideChatWindow:
		wait := w.NextChatWindowStart(now).Sub(now)
		return TimeAdjustment{Period: period, Delay: wait + base}

	case domain.PeriodWeekend:
		if rand.Float64() < w.config.WeekendSkipProbability {
			return TimeAdjustment{Period: period, Skipped: true}
		}
		multiplier := randomFloat(w.config.WeekendMultiplierMin, w.config.WeekendMultiplierMax)
		return TimeAdjustment{Period: period, Delay: scale(base, multiplier)}

	case domain.PeriodOffHours:
		if rand.Float64() < w.config.OffHoursSkipProbability {
			return TimeAdjustment{Period: period, Skipped: true}
		}
		multiplier := randomFloat(w.config.OffHoursMultiplierMin, w.config.OffHoursMultiplierMax)
		return TimeAdjustment{Period: period, Delay: scale(base, multiplier)}

	default:
		return TimeAdjustment{Period: period, Delay: base}
	}
}

func randomFloat(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rand.Float64()*(max-min)
}

func scale(base time.Duration, multiplier float64) time.Duration {
	return time.Duration(float64(base) * multiplier)
}
