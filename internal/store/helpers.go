package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/timegrid/timegrid/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nilIfNilTime converts a *time.Time into a driver-friendly nullable value.
func nilIfNilTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// nilIfNilInt converts a *int into a driver-friendly nullable value.
func nilIfNilInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// scanTask scans a Task from sql.Rows.
func scanTask(rows *sql.Rows) (models.Task, error) {
	var t models.Task
	var categoryID sql.NullString
	var startTime, endTime sql.NullTime
	var duration sql.NullInt64
	err := rows.Scan(
		&t.ID, &t.UserID, &t.Activity, &categoryID, &t.Status,
		&startTime, &endTime, &duration, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return t, fmt.Errorf("scan task failed: %w", err)
	}
	applyTaskNulls(&t, categoryID, startTime, endTime, duration)
	return t, nil
}

// scanTaskRow scans a Task from a single sql.Row.
func scanTaskRow(row *sql.Row) (models.Task, error) {
	var t models.Task
	var categoryID sql.NullString
	var startTime, endTime sql.NullTime
	var duration sql.NullInt64
	err := row.Scan(
		&t.ID, &t.UserID, &t.Activity, &categoryID, &t.Status,
		&startTime, &endTime, &duration, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}
	applyTaskNulls(&t, categoryID, startTime, endTime, duration)
	return t, nil
}

func applyTaskNulls(t *models.Task, categoryID sql.NullString, startTime, endTime sql.NullTime, duration sql.NullInt64) {
	t.CategoryID = categoryID.String
	if startTime.Valid {
		t.StartTime = &startTime.Time
	}
	if endTime.Valid {
		t.EndTime = &endTime.Time
	}
	if duration.Valid {
		d := int(duration.Int64)
		t.DurationMinutes = &d
	}
}

// scanReminderHistoryRow scans a ReminderHistory from a single sql.Row.
func scanReminderHistoryRow(row *sql.Row) (models.ReminderHistory, error) {
	var h models.ReminderHistory
	var lastFired, snoozedUntil sql.NullTime
	err := row.Scan(
		&h.UserID, &lastFired, &h.FiredToday, &h.ConsecutiveDismissals, &snoozedUntil, &h.UpdatedAt,
	)
	if err != nil {
		return h, err
	}
	if lastFired.Valid {
		h.LastFiredAt = &lastFired.Time
	}
	if snoozedUntil.Valid {
		h.SnoozedUntil = &snoozedUntil.Time
	}
	return h, nil
}

// scanReminderSettingsRow scans ReminderSettings from a single sql.Row.
func scanReminderSettingsRow(row *sql.Row) (models.ReminderSettings, error) {
	var v models.ReminderSettings
	var quietStart, quietEnd sql.NullString
	err := row.Scan(
		&v.UserID, &v.Mode, &v.MinSpacingMinutes, &v.MaxRemindersPerDay,
		&quietStart, &quietEnd, &v.AutoSnoozeAfterDismissals, &v.AutoSnoozeMinutes,
	)
	if err != nil {
		return v, err
	}
	v.QuietHoursStart = quietStart.String
	v.QuietHoursEnd = quietEnd.String
	return v, nil
}
