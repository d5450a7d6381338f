// Package store provides storage backends for TimeGrid.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL implementations behind the same repository interfaces. The core
// decision logic never touches these directly; the engine performs all reads
// and writes around the pure decide step.
package store

import (
	"time"

	"github.com/timegrid/timegrid/internal/models"
)

// TaskRepo defines persistence for tasks.
type TaskRepo interface {
	// CreateTask inserts a new task row.
	CreateTask(t models.Task) error

	// GetTask fetches a task by ID. Returns models.ErrNotFound if absent.
	GetTask(id string) (*models.Task, error)

	// UpdateTaskIf applies an updated task value conditionally on the row
	// still holding fromStatus. A concurrent transition loses the race and
	// surfaces as models.ErrInvalidTransition; a missing row surfaces as
	// models.ErrNotFound.
	UpdateTaskIf(t models.Task, fromStatus models.TaskStatus) error

	// DeleteTask removes a task by ID. Returns models.ErrNotFound if absent.
	DeleteTask(id string) error

	// ListTasks returns all tasks for a user, newest first.
	ListTasks(userID string) ([]models.Task, error)

	// CountCompletedSince counts a user's completed logs since the given time.
	CountCompletedSince(userID string, since time.Time) (int, error)

	// LastLogTime returns the most recent completion end time for a user, or
	// nil if the user has no completed logs.
	LastLogTime(userID string) (*time.Time, error)

	// DeleteCompletedBefore removes completed tasks older than cutoff and
	// returns the number of rows removed (age-based retention).
	DeleteCompletedBefore(cutoff time.Time) (int, error)
}

// ReminderRepo defines persistence for reminder history and settings.
type ReminderRepo interface {
	// GetReminderHistory fetches a user's firing history, or nil if the user
	// was never reminded.
	GetReminderHistory(userID string) (*models.ReminderHistory, error)

	// SaveReminderHistory upserts a user's firing history.
	SaveReminderHistory(h models.ReminderHistory) error

	// GetReminderSettings fetches a user's stored settings, or nil if the
	// user has none (callers fall back to defaults).
	GetReminderSettings(userID string) (*models.ReminderSettings, error)

	// SaveReminderSettings upserts a user's settings.
	SaveReminderSettings(s models.ReminderSettings) error

	// ListReminderUsers returns the IDs of all users with stored settings,
	// for evaluation sweeps.
	ListReminderUsers() ([]string, error)
}

// ContextRepo defines persistence for raw context-detection samples. The
// unique constraint on (user_id, bucket_start) is the durable backstop behind
// the in-memory throttle: if two concurrent requests both pass the in-memory
// check, the second insert is rejected here and reported as not stored.
type ContextRepo interface {
	// RecordContextSample stores a context sample for the user's current
	// throttle bucket. Returns false if a sample for that bucket already
	// exists.
	RecordContextSample(userID, context string, bucketStart, recordedAt time.Time) (bool, error)
}

// NotificationDedupRepo records delivered notifications by dedupe tag so a
// retried evaluation cannot deliver the same reminder twice.
type NotificationDedupRepo interface {
	// RecordNotification inserts the dedupe tag. Returns false if the tag was
	// already recorded.
	RecordNotification(dedupeTag, userID string, sentAt time.Time) (bool, error)
}

// Store combines all repositories behind one durable backend.
type Store interface {
	TaskRepo
	ReminderRepo
	ContextRepo
	NotificationDedupRepo

	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store construction.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}
