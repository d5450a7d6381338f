package reminder

import (
	"testing"
	"time"

	"github.com/timegrid/timegrid/internal/models"
)

var composeNow = time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)

func TestComposeMessageLongIdleWinsOverLaterRules(t *testing.T) {
	lastLog := composeNow.Add(-time.Hour)
	state := models.ReminderState{
		IsIdle:              true,
		IdleDurationMinutes: 15,
		LogsTodayCount:      3,
		LastLogTime:         &lastLog,
		RecentContextSwitch: false,
	}
	got := ComposeMessage(state, composeNow)
	if got.Title != "Back at it?" {
		t.Errorf("title = %q, want %q", got.Title, "Back at it?")
	}
}

func TestComposeMessageContextSwitch(t *testing.T) {
	state := models.ReminderState{RecentContextSwitch: true, LogsTodayCount: 1}
	got := ComposeMessage(state, composeNow)
	if got.Title != "New task?" {
		t.Errorf("title = %q, want %q", got.Title, "New task?")
	}
}

func TestComposeMessageStaleLog(t *testing.T) {
	lastLog := composeNow.Add(-3 * time.Hour)
	state := models.ReminderState{LastLogTime: &lastLog, LogsTodayCount: 2}
	got := ComposeMessage(state, composeNow)
	if got.Title != "Time to log?" {
		t.Errorf("title = %q, want %q", got.Title, "Time to log?")
	}
}

func TestComposeMessageNoLogsToday(t *testing.T) {
	state := models.ReminderState{}
	got := ComposeMessage(state, composeNow)
	if got.Title != "Start tracking" {
		t.Errorf("title = %q, want %q", got.Title, "Start tracking")
	}
}

func TestComposeMessageShortIdle(t *testing.T) {
	lastLog := composeNow.Add(-30 * time.Minute)
	state := models.ReminderState{
		IsIdle:              true,
		IdleDurationMinutes: 5,
		LogsTodayCount:      2,
		LastLogTime:         &lastLog,
	}
	got := ComposeMessage(state, composeNow)
	if got.Title != "Taking a break?" {
		t.Errorf("title = %q, want %q", got.Title, "Taking a break?")
	}
}

func TestComposeMessageDefault(t *testing.T) {
	lastLog := composeNow.Add(-30 * time.Minute)
	state := models.ReminderState{LogsTodayCount: 2, LastLogTime: &lastLog}
	got := ComposeMessage(state, composeNow)
	if got.Title != "What are you doing right now?" {
		t.Errorf("title = %q, want %q", got.Title, "What are you doing right now?")
	}
	if got.Body == "" {
		t.Error("default message must carry a body")
	}
}
