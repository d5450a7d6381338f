package models

import (
	"errors"
	"strings"
	"testing"
)

func TestIsValidTaskStatus(t *testing.T) {
	for _, s := range []TaskStatus{TaskStatusPending, TaskStatusScheduled, TaskStatusInProgress, TaskStatusCompleted} {
		if !IsValidTaskStatus(s) {
			t.Errorf("IsValidTaskStatus(%s) = false, want true", s)
		}
	}
	if IsValidTaskStatus("archived") {
		t.Error("IsValidTaskStatus(archived) = true, want false")
	}
}

func TestIsValidTaskAction(t *testing.T) {
	for _, a := range []TaskAction{TaskActionStart, TaskActionStop, TaskActionCancel, TaskActionReschedule} {
		if !IsValidTaskAction(a) {
			t.Errorf("IsValidTaskAction(%s) = false, want true", a)
		}
	}
	if IsValidTaskAction("pause") {
		t.Error("IsValidTaskAction(pause) = true, want false")
	}
}

func TestCreateTaskRequestValidate(t *testing.T) {
	negative := -1
	long := strings.Repeat("a", MaxActivityLength+1)

	cases := []struct {
		name string
		req  CreateTaskRequest
		want error
	}{
		{"valid", CreateTaskRequest{UserID: "u", Activity: "work"}, nil},
		{"empty user", CreateTaskRequest{Activity: "work"}, ErrEmptyUserID},
		{"empty activity", CreateTaskRequest{UserID: "u"}, ErrEmptyActivity},
		{"activity too long", CreateTaskRequest{UserID: "u", Activity: long}, ErrActivityTooLong},
		{"negative duration", CreateTaskRequest{UserID: "u", Activity: "work", DurationMinutes: &negative}, ErrNegativeDuration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidationErrorsWrapCategory(t *testing.T) {
	for _, err := range []error{ErrEmptyUserID, ErrEmptyActivity, ErrActivityTooLong, ErrNegativeDuration, ErrNegativeInterval} {
		if !errors.Is(err, ErrValidationFailed) {
			t.Errorf("%v does not wrap ErrValidationFailed", err)
		}
	}
}

func TestDefaultReminderSettings(t *testing.T) {
	s := DefaultReminderSettings("user-1")
	if s.Mode != ReminderModeMedium {
		t.Errorf("mode = %s, want medium", s.Mode)
	}
	if s.MinSpacingMinutes != DefaultMinSpacingMinutes {
		t.Errorf("minSpacing = %d, want %d", s.MinSpacingMinutes, DefaultMinSpacingMinutes)
	}
	if s.MaxRemindersPerDay != DefaultMaxRemindersPerDay {
		t.Errorf("maxPerDay = %d, want %d", s.MaxRemindersPerDay, DefaultMaxRemindersPerDay)
	}
}

func TestReminderSettingsNormalize(t *testing.T) {
	s := ReminderSettings{UserID: "user-1", Mode: "extreme", MaxRemindersPerDay: -1}
	s.Normalize()
	if s.Mode != ReminderModeMedium {
		t.Errorf("mode = %s, want medium fallback", s.Mode)
	}
	if s.MinSpacingMinutes != DefaultMinSpacingMinutes {
		t.Errorf("minSpacing = %d, want default", s.MinSpacingMinutes)
	}
	if s.MaxRemindersPerDay != DefaultMaxRemindersPerDay {
		t.Errorf("maxPerDay = %d, want default", s.MaxRemindersPerDay)
	}
}

func TestReminderSettingsIntervalsOrdered(t *testing.T) {
	for mode, r := range ModeIntervals {
		if r.Min <= 0 || r.Max <= r.Min {
			t.Errorf("mode %s has invalid interval range %+v", mode, r)
		}
	}
	if ModeIntervals[ReminderModeHigh].Max > ModeIntervals[ReminderModeLow].Min {
		t.Error("high mode should remind more frequently than low mode")
	}
}

func TestReminderSettingsValidateQuietHours(t *testing.T) {
	s := DefaultReminderSettings("user-1")
	if err := s.Validate(); err != nil {
		t.Errorf("settings without quiet hours should validate: %v", err)
	}

	s.QuietHoursStart = "22:00"
	if err := s.Validate(); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("start without end should fail validation, got %v", err)
	}

	s.QuietHoursEnd = "07:00"
	if err := s.Validate(); err != nil {
		t.Errorf("wraparound quiet window should validate: %v", err)
	}

	s.QuietHoursEnd = "25:99"
	if err := s.Validate(); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("malformed quiet hours should fail validation, got %v", err)
	}
}
