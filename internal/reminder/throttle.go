// Package reminder implements the reminder throttle engine and message
// composer.
//
// The throttle engine decides, from a user's firing history, settings, and an
// ephemeral activity snapshot, whether a reminder may be surfaced right now.
// It owns the anti-annoyance invariants: a hard spacing floor, a daily cap,
// quiet hours, and auto-snooze after repeated dismissals. All functions are
// pure decisions; persisting the mutated history is the caller's concern.
package reminder

import (
	"log/slog"
	"time"

	"github.com/timegrid/timegrid/internal/models"
)

// Weights control how activity signals shorten the target reminder interval.
// Signals shorten the target inside [mode.min, mode.max] but never bypass the
// hard spacing floor, which is enforced as an independent earlier veto.
type Weights struct {
	// Baseline is the urgency with no signals present; 0.5 lands the target
	// on the midpoint of the mode's interval range.
	Baseline float64
	// Idle is added when the user is idle.
	Idle float64
	// ContextSwitch is added when a recent context switch was detected.
	ContextSwitch float64
}

// DefaultWeights returns the default signal weighting.
func DefaultWeights() Weights {
	return Weights{Baseline: 0.5, Idle: 0.3, ContextSwitch: 0.2}
}

// Engine evaluates fire decisions. The zero value is not usable; construct
// with NewEngine.
type Engine struct {
	weights Weights
}

// NewEngine creates a throttle engine with default signal weights.
func NewEngine() *Engine {
	return &Engine{weights: DefaultWeights()}
}

// NewEngineWithWeights creates a throttle engine with custom signal weights.
func NewEngineWithWeights(w Weights) *Engine {
	return &Engine{weights: w}
}

// ShouldFire evaluates the veto chain in order; the first matching veto wins.
//
//  1. auto-snooze window
//  2. quiet hours (wraparound past midnight supported)
//  3. daily cap (FiredToday counts reset at the local-day boundary)
//  4. hard spacing floor, independent of mode
//  5. target interval within the mode's range, weighted toward firing sooner
//     when idle or after a context switch
func (e *Engine) ShouldFire(history models.ReminderHistory, settings models.ReminderSettings, state models.ReminderState, now time.Time) models.FireDecision {
	settings.Normalize()

	// 1. Auto-snoozed.
	if history.SnoozedUntil != nil && now.Before(*history.SnoozedUntil) {
		return deny(models.DenyReasonSnoozed, *history.SnoozedUntil)
	}

	// 2. Quiet hours.
	if inQuiet, quietEnd := inQuietHours(settings, now); inQuiet {
		return deny(models.DenyReasonQuietHours, quietEnd)
	}

	// 3. Daily cap.
	if firedToday(history, now) >= settings.MaxRemindersPerDay {
		return deny(models.DenyReasonDailyCap, nextLocalMidnight(now))
	}

	// 4. Hard spacing floor.
	minSpacing := time.Duration(settings.MinSpacingMinutes) * time.Minute
	if history.LastFiredAt != nil {
		if elapsed := now.Sub(*history.LastFiredAt); elapsed < minSpacing {
			return deny(models.DenyReasonMinSpacing, history.LastFiredAt.Add(minSpacing))
		}
	}

	// 5. Target interval since the last firing, or since the local day start
	// if the user was never reminded.
	ref := localMidnight(now)
	if history.LastFiredAt != nil {
		ref = *history.LastFiredAt
	}
	target := e.targetInterval(settings, state)
	if now.Sub(ref) < target {
		return deny(models.DenyReasonNotDue, ref.Add(target))
	}

	slog.Debug("reminder.ShouldFire allowed", "userID", history.UserID, "target", target, "isIdle", state.IsIdle, "contextSwitch", state.RecentContextSwitch)
	return models.FireDecision{Allow: true, NextEligibleAt: now}
}

// targetInterval linearly interpolates inside the mode's interval range:
// higher urgency moves the target from max toward min.
func (e *Engine) targetInterval(settings models.ReminderSettings, state models.ReminderState) time.Duration {
	r := settings.Intervals()

	urgency := e.weights.Baseline
	if state.IsIdle {
		urgency += e.weights.Idle
	}
	if state.RecentContextSwitch {
		urgency += e.weights.ContextSwitch
	}
	if urgency > 1 {
		urgency = 1
	}
	if urgency < 0 {
		urgency = 0
	}

	minutes := float64(r.Max) - urgency*float64(r.Max-r.Min)
	return time.Duration(minutes * float64(time.Minute))
}

// RecordFire mutates history for a reminder that was actually delivered.
// Callers must invoke this at most once per real firing, in the same apply
// step as delivery.
func RecordFire(history *models.ReminderHistory, now time.Time) {
	history.FiredToday = firedToday(*history, now) + 1
	history.LastFiredAt = &now
	history.UpdatedAt = now
	slog.Debug("reminder.RecordFire", "userID", history.UserID, "firedToday", history.FiredToday)
}

// RecordDismissal mutates history for an explicit user dismissal. Reaching
// the configured dismissal count triggers the auto-snooze escape valve and
// resets the counter.
func RecordDismissal(history *models.ReminderHistory, settings models.ReminderSettings, now time.Time) {
	settings.Normalize()
	history.ConsecutiveDismissals++
	history.UpdatedAt = now
	if history.ConsecutiveDismissals >= settings.AutoSnoozeAfterDismissals {
		until := now.Add(time.Duration(settings.AutoSnoozeMinutes) * time.Minute)
		history.SnoozedUntil = &until
		history.ConsecutiveDismissals = 0
		slog.Info("reminder.RecordDismissal auto-snoozed", "userID", history.UserID, "until", until)
		return
	}
	slog.Debug("reminder.RecordDismissal", "userID", history.UserID, "consecutive", history.ConsecutiveDismissals)
}

// RecordLogged resets the dismissal counter after any successful
// user-initiated log: the reminder worked.
func RecordLogged(history *models.ReminderHistory, now time.Time) {
	history.ConsecutiveDismissals = 0
	history.UpdatedAt = now
}

// firedToday returns the effective fired-today count, treating counts from a
// previous local day as reset.
func firedToday(history models.ReminderHistory, now time.Time) int {
	if history.LastFiredAt == nil {
		return 0
	}
	if history.LastFiredAt.Before(localMidnight(now)) {
		return 0
	}
	return history.FiredToday
}

// inQuietHours reports whether now falls inside the configured quiet window
// and, if so, when the window ends. Windows may wrap past midnight
// (e.g. 22:00-07:00).
func inQuietHours(settings models.ReminderSettings, now time.Time) (bool, time.Time) {
	if settings.QuietHoursStart == "" || settings.QuietHoursEnd == "" {
		return false, time.Time{}
	}
	start, err := time.Parse("15:04", settings.QuietHoursStart)
	if err != nil {
		return false, time.Time{}
	}
	end, err := time.Parse("15:04", settings.QuietHoursEnd)
	if err != nil {
		return false, time.Time{}
	}

	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	nowMin := now.Hour()*60 + now.Minute()

	midnight := localMidnight(now)
	endToday := midnight.Add(time.Duration(endMin) * time.Minute)

	if startMin <= endMin {
		// Window contained within one day.
		if nowMin >= startMin && nowMin < endMin {
			return true, endToday
		}
		return false, time.Time{}
	}

	// Wraparound window: active from start until midnight, then until end.
	if nowMin >= startMin {
		return true, endToday.Add(24 * time.Hour)
	}
	if nowMin < endMin {
		return true, endToday
	}
	return false, time.Time{}
}

func deny(reason models.DenyReason, nextEligible time.Time) models.FireDecision {
	return models.FireDecision{Allow: false, Reason: reason, NextEligibleAt: nextEligible}
}

func localMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func nextLocalMidnight(t time.Time) time.Time {
	m := localMidnight(t)
	return time.Date(m.Year(), m.Month(), m.Day()+1, 0, 0, 0, 0, t.Location())
}
