// Package models defines reminder engine structures for TimeGrid.
package models

import (
	"fmt"
	"time"
)

// ReminderMode controls how aggressively reminders are spaced.
type ReminderMode string

const (
	// ReminderModeLow spaces reminders widely apart.
	ReminderModeLow ReminderMode = "low"
	// ReminderModeMedium is the default spacing.
	ReminderModeMedium ReminderMode = "medium"
	// ReminderModeHigh reminds most frequently.
	ReminderModeHigh ReminderMode = "high"
)

// IsValidReminderMode checks if the given reminder mode is supported.
func IsValidReminderMode(m ReminderMode) bool {
	switch m {
	case ReminderModeLow, ReminderModeMedium, ReminderModeHigh:
		return true
	default:
		return false
	}
}

// Default reminder settings applied when a user has no stored configuration.
const (
	DefaultMinSpacingMinutes         = 30
	DefaultMaxRemindersPerDay        = 8
	DefaultAutoSnoozeAfterDismissals = 3
	DefaultAutoSnoozeMinutes         = 120
)

// IntervalRange is the target reminder interval window for a mode, in minutes.
type IntervalRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ModeIntervals maps each reminder mode to its interval range in minutes.
var ModeIntervals = map[ReminderMode]IntervalRange{
	ReminderModeLow:    {Min: 180, Max: 300},
	ReminderModeMedium: {Min: 90, Max: 180},
	ReminderModeHigh:   {Min: 45, Max: 90},
}

// ReminderSettings holds a user's reminder configuration. Loaded once per
// evaluation cycle; DefaultReminderSettings applies when absent.
type ReminderSettings struct {
	UserID                    string       `json:"user_id"`
	Mode                      ReminderMode `json:"mode"`
	MinSpacingMinutes         int          `json:"min_spacing_minutes"`
	MaxRemindersPerDay        int          `json:"max_reminders_per_day"`
	QuietHoursStart           string       `json:"quiet_hours_start,omitempty"` // "HH:MM" local time, empty = none
	QuietHoursEnd             string       `json:"quiet_hours_end,omitempty"`
	AutoSnoozeAfterDismissals int          `json:"auto_snooze_after_dismissals"`
	AutoSnoozeMinutes         int          `json:"auto_snooze_minutes"`
}

// DefaultReminderSettings returns the single default-construction path for
// reminder settings.
func DefaultReminderSettings(userID string) ReminderSettings {
	return ReminderSettings{
		UserID:                    userID,
		Mode:                      ReminderModeMedium,
		MinSpacingMinutes:         DefaultMinSpacingMinutes,
		MaxRemindersPerDay:        DefaultMaxRemindersPerDay,
		AutoSnoozeAfterDismissals: DefaultAutoSnoozeAfterDismissals,
		AutoSnoozeMinutes:         DefaultAutoSnoozeMinutes,
	}
}

// Normalize fills absent fields with defaults so partially stored settings
// never reach the throttle engine with zero values.
func (s *ReminderSettings) Normalize() {
	if !IsValidReminderMode(s.Mode) {
		s.Mode = ReminderModeMedium
	}
	if s.MinSpacingMinutes <= 0 {
		s.MinSpacingMinutes = DefaultMinSpacingMinutes
	}
	if s.MaxRemindersPerDay <= 0 {
		s.MaxRemindersPerDay = DefaultMaxRemindersPerDay
	}
	if s.AutoSnoozeAfterDismissals <= 0 {
		s.AutoSnoozeAfterDismissals = DefaultAutoSnoozeAfterDismissals
	}
	if s.AutoSnoozeMinutes <= 0 {
		s.AutoSnoozeMinutes = DefaultAutoSnoozeMinutes
	}
}

// Intervals returns the interval range for the settings' mode.
func (s *ReminderSettings) Intervals() IntervalRange {
	if r, ok := ModeIntervals[s.Mode]; ok {
		return r
	}
	return ModeIntervals[ReminderModeMedium]
}

// Validate checks quiet hours format if configured.
func (s *ReminderSettings) Validate() error {
	if (s.QuietHoursStart == "") != (s.QuietHoursEnd == "") {
		return fmt.Errorf("%w: quiet hours require both start and end", ErrValidationFailed)
	}
	for _, v := range []string{s.QuietHoursStart, s.QuietHoursEnd} {
		if v == "" {
			continue
		}
		if _, err := time.Parse("15:04", v); err != nil {
			return fmt.Errorf("%w: quiet hours must be in HH:MM format", ErrValidationFailed)
		}
	}
	return nil
}

// ReminderState is an ephemeral snapshot of user-activity signals, recomputed
// per evaluation and never persisted.
type ReminderState struct {
	IsIdle              bool       `json:"is_idle"`
	IdleDurationMinutes int        `json:"idle_duration_minutes"`
	LastLogTime         *time.Time `json:"last_log_time,omitempty"`
	RecentContextSwitch bool       `json:"recent_context_switch"`
	LogsTodayCount      int        `json:"logs_today_count"`
}

// ReminderHistory tracks per-user firing history. Mutated every time a
// reminder fires or is dismissed; FiredToday resets at the local-day boundary.
type ReminderHistory struct {
	UserID                string     `json:"user_id"`
	LastFiredAt           *time.Time `json:"last_fired_at,omitempty"`
	FiredToday            int        `json:"fired_today"`
	ConsecutiveDismissals int        `json:"consecutive_dismissals"`
	SnoozedUntil          *time.Time `json:"snoozed_until,omitempty"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// DenyReason explains why a FireDecision vetoed firing.
type DenyReason string

const (
	DenyReasonNone       DenyReason = ""
	DenyReasonSnoozed    DenyReason = "snoozed"
	DenyReasonQuietHours DenyReason = "quiet_hours"
	DenyReasonDailyCap   DenyReason = "daily_cap"
	DenyReasonMinSpacing DenyReason = "min_spacing"
	DenyReasonNotDue     DenyReason = "not_due"
)

// FireDecision is the throttle engine's verdict on whether a reminder may be
// shown right now.
type FireDecision struct {
	Allow          bool       `json:"allow"`
	Reason         DenyReason `json:"reason,omitempty"`
	NextEligibleAt time.Time  `json:"next_eligible_at"`
}

// ReminderMessage is a composed notification, independent of delivery
// mechanism.
type ReminderMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
