// Package store provides storage backends for TimeGrid.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/timegrid/timegrid/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateTask(t models.Task) error {
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, user_id, activity, category_id, status, start_time, end_time, duration_minutes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.UserID, t.Activity, nilIfEmpty(t.CategoryID), t.Status,
		nilIfNilTime(t.StartTime), nilIfNilTime(t.EndTime), nilIfNilInt(t.DurationMinutes),
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore CreateTask failed", "error", err, "id", t.ID)
		return fmt.Errorf("failed to insert task %s: %w", t.ID, err)
	}
	slog.Debug("PostgresStore CreateTask succeeded", "id", t.ID, "status", t.Status)
	return nil
}

func (s *PostgresStore) GetTask(id string) (*models.Task, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, activity, category_id, status, start_time, end_time, duration_minutes, created_at, updated_at
		 FROM tasks WHERE id = $1`, id)
	t, err := scanTaskRow(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetTask failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return &t, nil
}

func (s *PostgresStore) UpdateTaskIf(t models.Task, fromStatus models.TaskStatus) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET status = $1, start_time = $2, end_time = $3, duration_minutes = $4, updated_at = $5
		 WHERE id = $6 AND status = $7`,
		t.Status, nilIfNilTime(t.StartTime), nilIfNilTime(t.EndTime), nilIfNilInt(t.DurationMinutes),
		t.UpdatedAt, t.ID, fromStatus,
	)
	if err != nil {
		slog.Error("PostgresStore UpdateTaskIf failed", "error", err, "id", t.ID)
		return fmt.Errorf("failed to update task %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for task %s: %w", t.ID, err)
	}
	if n == 0 {
		if _, err := s.GetTask(t.ID); err != nil {
			return err
		}
		slog.Debug("PostgresStore UpdateTaskIf lost transition race", "id", t.ID, "expected", fromStatus)
		return models.ErrInvalidTransition
	}
	slog.Debug("PostgresStore UpdateTaskIf succeeded", "id", t.ID, "from", fromStatus, "to", t.Status)
	return nil
}

func (s *PostgresStore) DeleteTask(id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteTask failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListTasks(userID string) ([]models.Task, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, activity, category_id, status, start_time, end_time, duration_minutes, created_at, updated_at
		 FROM tasks WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("PostgresStore ListTasks query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			slog.Error("PostgresStore ListTasks scan failed", "error", err)
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task rows: %w", err)
	}
	slog.Debug("PostgresStore ListTasks succeeded", "userID", userID, "count", len(tasks))
	return tasks, nil
}

func (s *PostgresStore) CountCompletedSince(userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE user_id = $1 AND status = $2 AND end_time >= $3`,
		userID, models.TaskStatusCompleted, since,
	).Scan(&count)
	if err != nil {
		slog.Error("PostgresStore CountCompletedSince failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to count completed tasks: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) LastLogTime(userID string) (*time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRow(
		`SELECT MAX(end_time) FROM tasks WHERE user_id = $1 AND status = $2`,
		userID, models.TaskStatusCompleted,
	).Scan(&last)
	if err != nil {
		slog.Error("PostgresStore LastLogTime failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query last log time: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (s *PostgresStore) DeleteCompletedBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(
		`DELETE FROM tasks WHERE status = $1 AND end_time < $2`,
		models.TaskStatusCompleted, cutoff,
	)
	if err != nil {
		slog.Error("PostgresStore DeleteCompletedBefore failed", "error", err)
		return 0, fmt.Errorf("failed to delete old completed tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	slog.Debug("PostgresStore DeleteCompletedBefore succeeded", "removed", n)
	return int(n), nil
}

func (s *PostgresStore) GetReminderHistory(userID string) (*models.ReminderHistory, error) {
	row := s.db.QueryRow(
		`SELECT user_id, last_fired_at, fired_today, consecutive_dismissals, snoozed_until, updated_at
		 FROM reminder_history WHERE user_id = $1`, userID)
	h, err := scanReminderHistoryRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetReminderHistory failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get reminder history for %s: %w", userID, err)
	}
	return &h, nil
}

func (s *PostgresStore) SaveReminderHistory(h models.ReminderHistory) error {
	_, err := s.db.Exec(
		`INSERT INTO reminder_history (user_id, last_fired_at, fired_today, consecutive_dismissals, snoozed_until, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   last_fired_at = EXCLUDED.last_fired_at,
		   fired_today = EXCLUDED.fired_today,
		   consecutive_dismissals = EXCLUDED.consecutive_dismissals,
		   snoozed_until = EXCLUDED.snoozed_until,
		   updated_at = EXCLUDED.updated_at`,
		h.UserID, nilIfNilTime(h.LastFiredAt), h.FiredToday, h.ConsecutiveDismissals,
		nilIfNilTime(h.SnoozedUntil), h.UpdatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveReminderHistory failed", "error", err, "userID", h.UserID)
		return fmt.Errorf("failed to save reminder history for %s: %w", h.UserID, err)
	}
	slog.Debug("PostgresStore SaveReminderHistory succeeded", "userID", h.UserID)
	return nil
}

func (s *PostgresStore) GetReminderSettings(userID string) (*models.ReminderSettings, error) {
	row := s.db.QueryRow(
		`SELECT user_id, mode, min_spacing_minutes, max_reminders_per_day, quiet_hours_start, quiet_hours_end,
		        auto_snooze_after_dismissals, auto_snooze_minutes
		 FROM reminder_settings WHERE user_id = $1`, userID)
	v, err := scanReminderSettingsRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetReminderSettings failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get reminder settings for %s: %w", userID, err)
	}
	return &v, nil
}

func (s *PostgresStore) SaveReminderSettings(v models.ReminderSettings) error {
	_, err := s.db.Exec(
		`INSERT INTO reminder_settings (user_id, mode, min_spacing_minutes, max_reminders_per_day, quiet_hours_start, quiet_hours_end, auto_snooze_after_dismissals, auto_snooze_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE SET
		   mode = EXCLUDED.mode,
		   min_spacing_minutes = EXCLUDED.min_spacing_minutes,
		   max_reminders_per_day = EXCLUDED.max_reminders_per_day,
		   quiet_hours_start = EXCLUDED.quiet_hours_start,
		   quiet_hours_end = EXCLUDED.quiet_hours_end,
		   auto_snooze_after_dismissals = EXCLUDED.auto_snooze_after_dismissals,
		   auto_snooze_minutes = EXCLUDED.auto_snooze_minutes`,
		v.UserID, v.Mode, v.MinSpacingMinutes, v.MaxRemindersPerDay,
		nilIfEmpty(v.QuietHoursStart), nilIfEmpty(v.QuietHoursEnd),
		v.AutoSnoozeAfterDismissals, v.AutoSnoozeMinutes,
	)
	if err != nil {
		slog.Error("PostgresStore SaveReminderSettings failed", "error", err, "userID", v.UserID)
		return fmt.Errorf("failed to save reminder settings for %s: %w", v.UserID, err)
	}
	return nil
}

func (s *PostgresStore) ListReminderUsers() ([]string, error) {
	rows, err := s.db.Query(`SELECT user_id FROM reminder_settings ORDER BY user_id`)
	if err != nil {
		slog.Error("PostgresStore ListReminderUsers query failed", "error", err)
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

func (s *PostgresStore) RecordContextSample(userID, context string, bucketStart, recordedAt time.Time) (bool, error) {
	res, err := s.db.Exec(
		`INSERT INTO context_samples (user_id, context, bucket_start, recorded_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, bucket_start) DO NOTHING`,
		userID, context, bucketStart, recordedAt,
	)
	if err != nil {
		slog.Error("PostgresStore RecordContextSample failed", "error", err, "userID", userID)
		return false, fmt.Errorf("failed to record context sample for %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) RecordNotification(dedupeTag, userID string, sentAt time.Time) (bool, error) {
	res, err := s.db.Exec(
		`INSERT INTO notification_dedup (dedupe_tag, user_id, sent_at) VALUES ($1, $2, $3)
		 ON CONFLICT (dedupe_tag) DO NOTHING`,
		dedupeTag, userID, sentAt,
	)
	if err != nil {
		slog.Error("PostgresStore RecordNotification failed", "error", err, "tag", dedupeTag)
		return false, fmt.Errorf("failed to record notification %s: %w", dedupeTag, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
