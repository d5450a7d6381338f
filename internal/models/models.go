// Package models defines the core data structures for TimeGrid.
//
// It includes types for tasks, activity blocks, and the reminder engine,
// which are shared across modules.
package models

import (
	"errors"
	"fmt"
	"time"
)

// TaskStatus represents the lifecycle status of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates an immediate task with no explicit times committed yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusScheduled indicates a task whose start time is in the future.
	TaskStatusScheduled TaskStatus = "scheduled"
	// TaskStatusInProgress indicates a task that is actively running.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates a terminal task with both start and end time.
	TaskStatusCompleted TaskStatus = "completed"
)

// TaskAction represents an action that drives a task through its lifecycle.
type TaskAction string

const (
	// TaskActionStart begins running a pending or scheduled task.
	TaskActionStart TaskAction = "start"
	// TaskActionStop completes an in-progress task.
	TaskActionStop TaskAction = "stop"
	// TaskActionCancel abandons an in-progress run without recording it.
	TaskActionCancel TaskAction = "cancel"
	// TaskActionReschedule re-times a completed historical record.
	TaskActionReschedule TaskAction = "reschedule"
)

// Validation constants for input validation
const (
	// MaxActivityLength defines the maximum allowed length for a task's activity label
	MaxActivityLength = 256
	// BlockDuration is the fixed length of an accounting block
	BlockDuration = 30 * time.Minute
	// BlockDurationMinutes is BlockDuration expressed in whole minutes
	BlockDurationMinutes = 30
)

// Error taxonomy. ErrValidationFailed, ErrInvalidTransition, ErrForbidden and
// ErrNotFound are the categories callers branch on; the more specific
// validation sentinels wrap ErrValidationFailed.
var (
	ErrValidationFailed  = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")

	ErrEmptyUserID       = fmt.Errorf("%w: user id cannot be empty", ErrValidationFailed)
	ErrEmptyActivity     = fmt.Errorf("%w: activity cannot be empty", ErrValidationFailed)
	ErrActivityTooLong   = fmt.Errorf("%w: activity exceeds maximum length", ErrValidationFailed)
	ErrNegativeDuration  = fmt.Errorf("%w: duration cannot be negative", ErrValidationFailed)
	ErrNegativeInterval  = fmt.Errorf("%w: end time precedes start time", ErrValidationFailed)
	ErrMissingStartTime  = fmt.Errorf("%w: start time is required", ErrValidationFailed)
	ErrMissingEndTime    = fmt.Errorf("%w: end time is required", ErrValidationFailed)
	ErrInvalidTaskStatus = fmt.Errorf("%w: invalid task status", ErrValidationFailed)
	ErrInvalidTaskAction = fmt.Errorf("%w: invalid task action", ErrValidationFailed)
)

// IsValidTaskStatus checks if the given task status is supported.
func IsValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusPending, TaskStatusScheduled, TaskStatusInProgress, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// IsValidTaskAction checks if the given task action is supported.
func IsValidTaskAction(a TaskAction) bool {
	switch a {
	case TaskActionStart, TaskActionStop, TaskActionCancel, TaskActionReschedule:
		return true
	default:
		return false
	}
}

// ActivityBlock is a half-open interval [Start, End) aligned to the 30-minute
// grid. End is always Start + 30m for block-mode logs.
type ActivityBlock struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Task represents a unit of tracked work.
//
// EndTime is nil unless Status is completed. DurationMinutes holds the planned
// duration for non-completed tasks and the recomputed actual duration once
// completed.
type Task struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Activity        string     `json:"activity"`
	CategoryID      string     `json:"category_id,omitempty"`
	Status          TaskStatus `json:"status"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateTaskRequest represents the payload for creating a task.
type CreateTaskRequest struct {
	UserID          string     `json:"user_id"`
	Activity        string     `json:"activity"`
	CategoryID      string     `json:"category_id,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"` // defaults to now
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	StartNow        bool       `json:"start_now,omitempty"` // request immediate start
}

// Validate performs validation on a CreateTaskRequest before any state mutation.
func (r *CreateTaskRequest) Validate() error {
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	if r.Activity == "" {
		return ErrEmptyActivity
	}
	if len(r.Activity) > MaxActivityLength {
		return ErrActivityTooLong
	}
	if r.DurationMinutes != nil && *r.DurationMinutes < 0 {
		return ErrNegativeDuration
	}
	return nil
}

// TransitionOverrides carries optional explicit times for stop and reschedule
// actions. Nil fields fall back to the action's defaults.
type TransitionOverrides struct {
	EndTime   *time.Time `json:"end_time,omitempty"`   // stop: explicit completion time
	StartTime *time.Time `json:"start_time,omitempty"` // reschedule: new interval start
	NewEnd    *time.Time `json:"new_end,omitempty"`    // reschedule: new interval end
}
