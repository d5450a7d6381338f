// Package task implements the task lifecycle state machine.
//
// All functions here are pure decision steps: they validate input, compute
// the next task value, and return errors without performing any I/O. Applying
// the result to durable storage is the caller's responsibility (see the
// engine package). Transition functions are the only way a task's status
// changes.
package task

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/timegrid/timegrid/internal/block"
	"github.com/timegrid/timegrid/internal/models"
)

// Create builds a new task from a creation request.
//
// The status is derived from the requested start time: a future start yields
// scheduled, an immediate-start request yields in_progress, anything else
// yields pending. EndTime is left unset for all non-completed statuses; it is
// populated only on completion.
func Create(req models.CreateTaskRequest, now time.Time) (models.Task, error) {
	if err := req.Validate(); err != nil {
		slog.Debug("task.Create validation failed", "error", err, "userID", req.UserID)
		return models.Task{}, err
	}

	start := now
	if req.StartTime != nil {
		start = *req.StartTime
	}

	status := models.TaskStatusPending
	switch {
	case start.After(now):
		status = models.TaskStatusScheduled
	case req.StartNow:
		status = models.TaskStatusInProgress
	}

	t := models.Task{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Activity:        req.Activity,
		CategoryID:      req.CategoryID,
		Status:          status,
		StartTime:       &start,
		DurationMinutes: req.DurationMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	slog.Debug("task.Create succeeded", "id", t.ID, "userID", t.UserID, "status", t.Status)
	return t, nil
}

// CreateBlockLog builds a completed task covering the full 30-minute block
// containing now. Block logs represent a retrospective claim about the
// current block, so they commit immediately with no intermediate state.
func CreateBlockLog(req models.CreateTaskRequest, now time.Time) (models.Task, error) {
	if err := req.Validate(); err != nil {
		slog.Debug("task.CreateBlockLog validation failed", "error", err, "userID", req.UserID)
		return models.Task{}, err
	}

	b := block.Quantize(now)
	duration := models.BlockDurationMinutes
	t := models.Task{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Activity:        req.Activity,
		CategoryID:      req.CategoryID,
		Status:          models.TaskStatusCompleted,
		StartTime:       &b.Start,
		EndTime:         &b.End,
		DurationMinutes: &duration,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	slog.Debug("task.CreateBlockLog succeeded", "id", t.ID, "userID", t.UserID, "blockStart", b.Start)
	return t, nil
}

// Apply executes a lifecycle action against a task and returns the updated
// task value. On any error the input task is returned unchanged.
func Apply(t models.Task, action models.TaskAction, now time.Time, overrides models.TransitionOverrides) (models.Task, error) {
	if !models.IsValidTaskAction(action) {
		return t, models.ErrInvalidTaskAction
	}

	var (
		next models.Task
		err  error
	)
	switch action {
	case models.TaskActionStart:
		next, err = start(t, now)
	case models.TaskActionStop:
		next, err = stop(t, now, overrides.EndTime)
	case models.TaskActionCancel:
		next, err = cancel(t)
	case models.TaskActionReschedule:
		next, err = reschedule(t, overrides.StartTime, overrides.NewEnd)
	}
	if err != nil {
		slog.Debug("task.Apply rejected", "id", t.ID, "action", action, "status", t.Status, "error", err)
		return t, err
	}

	next.UpdatedAt = now
	slog.Debug("task.Apply succeeded", "id", t.ID, "action", action, "from", t.Status, "to", next.Status)
	return next, nil
}

// start transitions pending or scheduled tasks to in_progress and records the
// actual run start.
func start(t models.Task, now time.Time) (models.Task, error) {
	switch t.Status {
	case models.TaskStatusPending, models.TaskStatusScheduled:
	default:
		return t, fmt.Errorf("%w: cannot start a %s task", models.ErrInvalidTransition, t.Status)
	}
	t.Status = models.TaskStatusInProgress
	t.StartTime = &now
	return t, nil
}

// stop transitions in_progress to completed, sets the end time, and
// recomputes the duration from the actual interval.
func stop(t models.Task, now time.Time, override *time.Time) (models.Task, error) {
	if t.Status != models.TaskStatusInProgress {
		return t, fmt.Errorf("%w: cannot stop a %s task", models.ErrInvalidTransition, t.Status)
	}
	if t.StartTime == nil {
		return t, models.ErrMissingStartTime
	}

	end := now
	if override != nil {
		end = *override
	}
	if end.Before(*t.StartTime) {
		return t, models.ErrNegativeInterval
	}

	duration := int(end.Sub(*t.StartTime) / time.Minute)
	t.Status = models.TaskStatusCompleted
	t.EndTime = &end
	t.DurationMinutes = &duration
	return t, nil
}

// cancel abandons an in_progress run entirely. The task returns to scheduled
// with its times cleared, so no near-zero-duration entry pollutes analytics.
func cancel(t models.Task) (models.Task, error) {
	if t.Status != models.TaskStatusInProgress {
		return t, fmt.Errorf("%w: cannot cancel a %s task", models.ErrInvalidTransition, t.Status)
	}
	t.Status = models.TaskStatusScheduled
	t.StartTime = nil
	t.EndTime = nil
	t.DurationMinutes = nil
	return t, nil
}

// reschedule re-times a completed historical record. Any other status is
// rejected with Forbidden so calendar drags cannot corrupt in-flight timers.
func reschedule(t models.Task, newStart, newEnd *time.Time) (models.Task, error) {
	if t.Status != models.TaskStatusCompleted {
		return t, fmt.Errorf("%w: cannot reschedule a %s task", models.ErrForbidden, t.Status)
	}
	if newStart == nil {
		return t, models.ErrMissingStartTime
	}
	if newEnd == nil {
		return t, models.ErrMissingEndTime
	}
	if newEnd.Before(*newStart) {
		return t, models.ErrNegativeInterval
	}

	duration := int(newEnd.Sub(*newStart) / time.Minute)
	t.StartTime = newStart
	t.EndTime = newEnd
	t.DurationMinutes = &duration
	return t, nil
}
