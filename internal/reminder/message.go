package reminder

import (
	"time"

	"github.com/timegrid/timegrid/internal/models"
)

// Thresholds for the composer's decision tree, in minutes.
const (
	// LongIdleMinutes is the idle duration beyond which the "back at it"
	// prompt takes priority.
	LongIdleMinutes = 10
	// StaleLogMinutes is how long since the last log before nudging.
	StaleLogMinutes = 120
)

// ComposeMessage maps an activity snapshot to a notification title and body.
//
// The rules form a priority list evaluated top-down; the first match wins.
// The composer performs no I/O.
func ComposeMessage(state models.ReminderState, now time.Time) models.ReminderMessage {
	switch {
	case state.IsIdle && state.IdleDurationMinutes > LongIdleMinutes:
		return models.ReminderMessage{
			Title: "Back at it?",
			Body:  "Looks like you stepped away for a while. Log what you're working on now.",
		}
	case state.RecentContextSwitch:
		return models.ReminderMessage{
			Title: "New task?",
			Body:  "You switched contexts. Take a second to log what you moved on to.",
		}
	case state.LastLogTime != nil && now.Sub(*state.LastLogTime) > StaleLogMinutes*time.Minute:
		return models.ReminderMessage{
			Title: "Time to log?",
			Body:  "It's been a while since your last entry. A quick log keeps your timeline accurate.",
		}
	case state.LogsTodayCount == 0:
		return models.ReminderMessage{
			Title: "Start tracking",
			Body:  "Nothing logged yet today. Add your first entry to get the day on record.",
		}
	case state.IsIdle:
		return models.ReminderMessage{
			Title: "Taking a break?",
			Body:  "Short pause detected. Log the break so your day adds up.",
		}
	default:
		return models.ReminderMessage{
			Title: "What are you doing right now?",
			Body:  "Log your current activity to keep your timeline up to date.",
		}
	}
}
