package task

import (
	"errors"
	"testing"
	"time"

	"github.com/timegrid/timegrid/internal/models"
)

var testNow = time.Date(2025, 6, 15, 10, 17, 0, 0, time.UTC)

func validRequest() models.CreateTaskRequest {
	return models.CreateTaskRequest{UserID: "user-1", Activity: "writing"}
}

func TestCreateDefaultsToPending(t *testing.T) {
	got, err := Create(validRequest(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.TaskStatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if got.EndTime != nil {
		t.Error("end time must be unset on creation")
	}
	if got.StartTime == nil || !got.StartTime.Equal(testNow) {
		t.Errorf("start time = %v, want now", got.StartTime)
	}
	if got.ID == "" {
		t.Error("task must be assigned an ID")
	}
}

func TestCreateFutureStartIsScheduled(t *testing.T) {
	future := testNow.Add(2 * time.Hour)
	req := validRequest()
	req.StartTime = &future

	got, err := Create(req, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.TaskStatusScheduled {
		t.Errorf("status = %s, want scheduled", got.Status)
	}

	// A future start must win over an immediate-start request.
	req.StartNow = true
	got, err = Create(req, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.TaskStatusScheduled {
		t.Errorf("status with StartNow = %s, want scheduled", got.Status)
	}
}

func TestCreateStartNowIsInProgress(t *testing.T) {
	req := validRequest()
	req.StartNow = true

	got, err := Create(req, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.TaskStatusInProgress {
		t.Errorf("status = %s, want in_progress", got.Status)
	}
	if got.EndTime != nil {
		t.Error("end time must be unset for in_progress tasks")
	}
}

func TestCreateValidation(t *testing.T) {
	negative := -5
	cases := []struct {
		name string
		req  models.CreateTaskRequest
		want error
	}{
		{"empty user", models.CreateTaskRequest{Activity: "x"}, models.ErrEmptyUserID},
		{"empty activity", models.CreateTaskRequest{UserID: "u"}, models.ErrEmptyActivity},
		{"negative duration", models.CreateTaskRequest{UserID: "u", Activity: "x", DurationMinutes: &negative}, models.ErrNegativeDuration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Create(tc.req, testNow)
			if !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
			if !errors.Is(err, models.ErrValidationFailed) {
				t.Errorf("error %v should wrap ErrValidationFailed", err)
			}
		})
	}
}

func TestCreateBlockLogQuantizes(t *testing.T) {
	got, err := CreateBlockLog(validRequest(), testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.TaskStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	wantStart := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	if got.StartTime == nil || !got.StartTime.Equal(wantStart) {
		t.Errorf("start = %v, want %v", got.StartTime, wantStart)
	}
	if got.EndTime == nil || !got.EndTime.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", got.EndTime, wantEnd)
	}
	if got.DurationMinutes == nil || *got.DurationMinutes != 30 {
		t.Errorf("duration = %v, want 30", got.DurationMinutes)
	}
}

func inProgressTask() models.Task {
	start := testNow.Add(-45 * time.Minute)
	return models.Task{
		ID:        "task-1",
		UserID:    "user-1",
		Activity:  "writing",
		Status:    models.TaskStatusInProgress,
		StartTime: &start,
	}
}

func completedTask() models.Task {
	start := testNow.Add(-2 * time.Hour)
	end := testNow.Add(-time.Hour)
	duration := 60
	return models.Task{
		ID:              "task-2",
		UserID:          "user-1",
		Activity:        "review",
		Status:          models.TaskStatusCompleted,
		StartTime:       &start,
		EndTime:         &end,
		DurationMinutes: &duration,
	}
}

func TestStartTransition(t *testing.T) {
	for _, status := range []models.TaskStatus{models.TaskStatusPending, models.TaskStatusScheduled} {
		in := models.Task{ID: "t", Status: status}
		got, err := Apply(in, models.TaskActionStart, testNow, models.TransitionOverrides{})
		if err != nil {
			t.Fatalf("start from %s: unexpected error: %v", status, err)
		}
		if got.Status != models.TaskStatusInProgress {
			t.Errorf("start from %s: status = %s, want in_progress", status, got.Status)
		}
		if got.StartTime == nil || !got.StartTime.Equal(testNow) {
			t.Errorf("start from %s: start time = %v, want now", status, got.StartTime)
		}
	}
}

func TestStartRejectedFromTerminalStates(t *testing.T) {
	for _, status := range []models.TaskStatus{models.TaskStatusInProgress, models.TaskStatusCompleted} {
		in := models.Task{ID: "t", Status: status}
		got, err := Apply(in, models.TaskActionStart, testNow, models.TransitionOverrides{})
		if !errors.Is(err, models.ErrInvalidTransition) {
			t.Errorf("start from %s: error = %v, want ErrInvalidTransition", status, err)
		}
		if got.Status != status {
			t.Errorf("start from %s: task was mutated to %s", status, got.Status)
		}
	}
}

func TestStopCompletesAndRecomputesDuration(t *testing.T) {
	got, err := Apply(inProgressTask(), models.TaskActionStop, testNow, models.TransitionOverrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.TaskStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.EndTime == nil || !got.EndTime.Equal(testNow) {
		t.Errorf("end = %v, want now", got.EndTime)
	}
	if got.DurationMinutes == nil || *got.DurationMinutes != 45 {
		t.Errorf("duration = %v, want 45", got.DurationMinutes)
	}
}

func TestStopWithExplicitEndOverride(t *testing.T) {
	override := testNow.Add(-15 * time.Minute)
	got, err := Apply(inProgressTask(), models.TaskActionStop, testNow, models.TransitionOverrides{EndTime: &override})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EndTime == nil || !got.EndTime.Equal(override) {
		t.Errorf("end = %v, want override %v", got.EndTime, override)
	}
	if got.DurationMinutes == nil || *got.DurationMinutes != 30 {
		t.Errorf("duration = %v, want 30", got.DurationMinutes)
	}
}

func TestStopRejectsNegativeInterval(t *testing.T) {
	in := inProgressTask()
	override := in.StartTime.Add(-time.Minute)
	got, err := Apply(in, models.TaskActionStop, testNow, models.TransitionOverrides{EndTime: &override})
	if !errors.Is(err, models.ErrNegativeInterval) {
		t.Errorf("error = %v, want ErrNegativeInterval", err)
	}
	if got.Status != models.TaskStatusInProgress {
		t.Error("failed stop must leave the task unchanged")
	}
}

func TestStopRejectedOutsideInProgress(t *testing.T) {
	for _, status := range []models.TaskStatus{models.TaskStatusPending, models.TaskStatusScheduled, models.TaskStatusCompleted} {
		in := models.Task{ID: "t", Status: status}
		got, err := Apply(in, models.TaskActionStop, testNow, models.TransitionOverrides{})
		if !errors.Is(err, models.ErrInvalidTransition) {
			t.Errorf("stop from %s: error = %v, want ErrInvalidTransition", status, err)
		}
		if got.Status != status {
			t.Errorf("stop from %s: task was mutated to %s", status, got.Status)
		}
	}
}

func TestCancelDiscardsRun(t *testing.T) {
	got, err := Apply(inProgressTask(), models.TaskActionCancel, testNow, models.TransitionOverrides{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.TaskStatusScheduled {
		t.Errorf("status = %s, want scheduled", got.Status)
	}
	if got.StartTime != nil || got.EndTime != nil || got.DurationMinutes != nil {
		t.Error("cancel must clear start, end, and duration")
	}
}

func TestCancelRejectedOutsideInProgress(t *testing.T) {
	for _, status := range []models.TaskStatus{models.TaskStatusPending, models.TaskStatusScheduled, models.TaskStatusCompleted} {
		in := models.Task{ID: "t", Status: status}
		_, err := Apply(in, models.TaskActionCancel, testNow, models.TransitionOverrides{})
		if !errors.Is(err, models.ErrInvalidTransition) {
			t.Errorf("cancel from %s: error = %v, want ErrInvalidTransition", status, err)
		}
	}
}

func TestRescheduleCompletedTask(t *testing.T) {
	newStart := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	newEnd := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	got, err := Apply(completedTask(), models.TaskActionReschedule, testNow, models.TransitionOverrides{
		StartTime: &newStart,
		NewEnd:    &newEnd,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.TaskStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.DurationMinutes == nil || *got.DurationMinutes != 90 {
		t.Errorf("duration = %v, want 90", got.DurationMinutes)
	}
}

func TestRescheduleForbiddenOutsideCompleted(t *testing.T) {
	newStart := testNow
	newEnd := testNow.Add(time.Hour)
	for _, status := range []models.TaskStatus{models.TaskStatusPending, models.TaskStatusScheduled, models.TaskStatusInProgress} {
		in := models.Task{ID: "t", Status: status}
		got, err := Apply(in, models.TaskActionReschedule, testNow, models.TransitionOverrides{
			StartTime: &newStart,
			NewEnd:    &newEnd,
		})
		if !errors.Is(err, models.ErrForbidden) {
			t.Errorf("reschedule from %s: error = %v, want ErrForbidden", status, err)
		}
		if got.Status != status {
			t.Errorf("reschedule from %s: task was mutated to %s", status, got.Status)
		}
	}
}

func TestApplyRejectsUnknownAction(t *testing.T) {
	_, err := Apply(inProgressTask(), models.TaskAction("pause"), testNow, models.TransitionOverrides{})
	if !errors.Is(err, models.ErrInvalidTaskAction) {
		t.Errorf("error = %v, want ErrInvalidTaskAction", err)
	}
}
