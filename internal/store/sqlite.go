// Package store provides storage backends for TimeGrid.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/timegrid/timegrid/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateTask(t models.Task) error {
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, user_id, activity, category_id, status, start_time, end_time, duration_minutes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Activity, nilIfEmpty(t.CategoryID), t.Status,
		nilIfNilTime(t.StartTime), nilIfNilTime(t.EndTime), nilIfNilInt(t.DurationMinutes),
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateTask failed", "error", err, "id", t.ID)
		return fmt.Errorf("failed to insert task %s: %w", t.ID, err)
	}
	slog.Debug("SQLiteStore CreateTask succeeded", "id", t.ID, "status", t.Status)
	return nil
}

func (s *SQLiteStore) GetTask(id string) (*models.Task, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, activity, category_id, status, start_time, end_time, duration_minutes, created_at, updated_at
		 FROM tasks WHERE id = ?`, id)
	t, err := scanTaskRow(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetTask failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return &t, nil
}

func (s *SQLiteStore) UpdateTaskIf(t models.Task, fromStatus models.TaskStatus) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET status = ?, start_time = ?, end_time = ?, duration_minutes = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		t.Status, nilIfNilTime(t.StartTime), nilIfNilTime(t.EndTime), nilIfNilInt(t.DurationMinutes),
		t.UpdatedAt, t.ID, fromStatus,
	)
	if err != nil {
		slog.Error("SQLiteStore UpdateTaskIf failed", "error", err, "id", t.ID)
		return fmt.Errorf("failed to update task %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for task %s: %w", t.ID, err)
	}
	if n == 0 {
		// Either the row is gone or another transition won the race.
		if _, err := s.GetTask(t.ID); err != nil {
			return err
		}
		slog.Debug("SQLiteStore UpdateTaskIf lost transition race", "id", t.ID, "expected", fromStatus)
		return models.ErrInvalidTransition
	}
	slog.Debug("SQLiteStore UpdateTaskIf succeeded", "id", t.ID, "from", fromStatus, "to", t.Status)
	return nil
}

func (s *SQLiteStore) DeleteTask(id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteTask failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListTasks(userID string) ([]models.Task, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, activity, category_id, status, start_time, end_time, duration_minutes, created_at, updated_at
		 FROM tasks WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("SQLiteStore ListTasks query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			slog.Error("SQLiteStore ListTasks scan failed", "error", err)
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task rows: %w", err)
	}
	slog.Debug("SQLiteStore ListTasks succeeded", "userID", userID, "count", len(tasks))
	return tasks, nil
}

func (s *SQLiteStore) CountCompletedSince(userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE user_id = ? AND status = ? AND end_time >= ?`,
		userID, models.TaskStatusCompleted, since,
	).Scan(&count)
	if err != nil {
		slog.Error("SQLiteStore CountCompletedSince failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to count completed tasks: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) LastLogTime(userID string) (*time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRow(
		`SELECT MAX(end_time) FROM tasks WHERE user_id = ? AND status = ?`,
		userID, models.TaskStatusCompleted,
	).Scan(&last)
	if err != nil {
		slog.Error("SQLiteStore LastLogTime failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query last log time: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (s *SQLiteStore) DeleteCompletedBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(
		`DELETE FROM tasks WHERE status = ? AND end_time < ?`,
		models.TaskStatusCompleted, cutoff,
	)
	if err != nil {
		slog.Error("SQLiteStore DeleteCompletedBefore failed", "error", err)
		return 0, fmt.Errorf("failed to delete old completed tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	slog.Debug("SQLiteStore DeleteCompletedBefore succeeded", "removed", n)
	return int(n), nil
}

func (s *SQLiteStore) GetReminderHistory(userID string) (*models.ReminderHistory, error) {
	row := s.db.QueryRow(
		`SELECT user_id, last_fired_at, fired_today, consecutive_dismissals, snoozed_until, updated_at
		 FROM reminder_history WHERE user_id = ?`, userID)
	h, err := scanReminderHistoryRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetReminderHistory failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get reminder history for %s: %w", userID, err)
	}
	return &h, nil
}

func (s *SQLiteStore) SaveReminderHistory(h models.ReminderHistory) error {
	_, err := s.db.Exec(
		`INSERT INTO reminder_history (user_id, last_fired_at, fired_today, consecutive_dismissals, snoozed_until, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   last_fired_at = excluded.last_fired_at,
		   fired_today = excluded.fired_today,
		   consecutive_dismissals = excluded.consecutive_dismissals,
		   snoozed_until = excluded.snoozed_until,
		   updated_at = excluded.updated_at`,
		h.UserID, nilIfNilTime(h.LastFiredAt), h.FiredToday, h.ConsecutiveDismissals,
		nilIfNilTime(h.SnoozedUntil), h.UpdatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveReminderHistory failed", "error", err, "userID", h.UserID)
		return fmt.Errorf("failed to save reminder history for %s: %w", h.UserID, err)
	}
	slog.Debug("SQLiteStore SaveReminderHistory succeeded", "userID", h.UserID)
	return nil
}

func (s *SQLiteStore) GetReminderSettings(userID string) (*models.ReminderSettings, error) {
	row := s.db.QueryRow(
		`SELECT user_id, mode, min_spacing_minutes, max_reminders_per_day, quiet_hours_start, quiet_hours_end,
		        auto_snooze_after_dismissals, auto_snooze_minutes
		 FROM reminder_settings WHERE user_id = ?`, userID)
	v, err := scanReminderSettingsRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetReminderSettings failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get reminder settings for %s: %w", userID, err)
	}
	return &v, nil
}

func (s *SQLiteStore) SaveReminderSettings(v models.ReminderSettings) error {
	_, err := s.db.Exec(
		`INSERT INTO reminder_settings (user_id, mode, min_spacing_minutes, max_reminders_per_day, quiet_hours_start, quiet_hours_end, auto_snooze_after_dismissals, auto_snooze_minutes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   mode = excluded.mode,
		   min_spacing_minutes = excluded.min_spacing_minutes,
		   max_reminders_per_day = excluded.max_reminders_per_day,
		   quiet_hours_start = excluded.quiet_hours_start,
		   quiet_hours_end = excluded.quiet_hours_end,
		   auto_snooze_after_dismissals = excluded.auto_snooze_after_dismissals,
		   auto_snooze_minutes = excluded.auto_snooze_minutes`,
		v.UserID, v.Mode, v.MinSpacingMinutes, v.MaxRemindersPerDay,
		nilIfEmpty(v.QuietHoursStart), nilIfEmpty(v.QuietHoursEnd),
		v.AutoSnoozeAfterDismissals, v.AutoSnoozeMinutes,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveReminderSettings failed", "error", err, "userID", v.UserID)
		return fmt.Errorf("failed to save reminder settings for %s: %w", v.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) ListReminderUsers() ([]string, error) {
	rows, err := s.db.Query(`SELECT user_id FROM reminder_settings ORDER BY user_id`)
	if err != nil {
		slog.Error("SQLiteStore ListReminderUsers query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminder users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan reminder user row: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) RecordContextSample(userID, context string, bucketStart, recordedAt time.Time) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO context_samples (user_id, context, bucket_start, recorded_at) VALUES (?, ?, ?, ?)`,
		userID, context, bucketStart, recordedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore RecordContextSample failed", "error", err, "userID", userID)
		return false, fmt.Errorf("failed to record context sample for %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) RecordNotification(dedupeTag, userID string, sentAt time.Time) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO notification_dedup (dedupe_tag, user_id, sent_at) VALUES (?, ?, ?)`,
		dedupeTag, userID, sentAt,
	)
	if err != nil {
		slog.Error("SQLiteStore RecordNotification failed", "error", err, "tag", dedupeTag)
		return false, fmt.Errorf("failed to record notification %s: %w", dedupeTag, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
