// Package engine wires the pure decision cores to storage and delivery.
//
// Every operation follows the same shape: read the current durable state,
// run a pure decide step (task lifecycle, reminder throttle, composer), then
// apply the result with conditional writes. The engine never retries; failed
// applies leave durable state exactly as it was.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/timegrid/timegrid/internal/block"
	"github.com/timegrid/timegrid/internal/contextdetect"
	"github.com/timegrid/timegrid/internal/models"
	"github.com/timegrid/timegrid/internal/notify"
	"github.com/timegrid/timegrid/internal/reminder"
	"github.com/timegrid/timegrid/internal/store"
	"github.com/timegrid/timegrid/internal/task"
)

// DefaultNotificationAutoClose is how long delivered reminders stay visible.
const DefaultNotificationAutoClose = 30 * time.Second

// Opts holds configuration options for the engine.
type Opts struct {
	Clock         func() time.Time
	Throttle      *contextdetect.Throttle
	Weights       *reminder.Weights
	AutoClose     time.Duration
	ContextWindow time.Duration
}

// Option defines a configuration option for the engine.
type Option func(*Opts)

// WithClock injects the time source. Defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

// WithContextThrottle injects the in-memory context throttle. The engine's
// durable-backstop bucket size follows the throttle's window.
func WithContextThrottle(t *contextdetect.Throttle) Option {
	return func(o *Opts) { o.Throttle = t }
}

// WithContextWindow sets the context-sample spacing window used for both the
// in-memory throttle and the store's bucket size. Ignored when a throttle is
// injected via WithContextThrottle; its window wins.
func WithContextWindow(d time.Duration) Option {
	return func(o *Opts) { o.ContextWindow = d }
}

// WithWeights overrides the reminder signal weights.
func WithWeights(w reminder.Weights) Option {
	return func(o *Opts) { o.Weights = &w }
}

// WithAutoClose sets the notification auto-close duration.
func WithAutoClose(d time.Duration) Option {
	return func(o *Opts) { o.AutoClose = d }
}

// Engine coordinates tasks, reminders, and context logging over a Store and
// a Notifier. The clock is injected so evaluations are testable.
type Engine struct {
	store         store.Store
	notifier      notify.Notifier
	throttle      *contextdetect.Throttle
	reminders     *reminder.Engine
	clock         func() time.Time
	autoClose     time.Duration
	contextWindow time.Duration
}

// NewEngine creates an engine over the given store and notifier.
func NewEngine(st store.Store, notifier notify.Notifier, opts ...Option) *Engine {
	cfg := Opts{
		Clock:         time.Now,
		AutoClose:     DefaultNotificationAutoClose,
		ContextWindow: contextdetect.DefaultWindow,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Throttle == nil {
		cfg.Throttle = contextdetect.NewThrottle(cfg.ContextWindow, contextdetect.DefaultMaxEntries)
	} else {
		// The throttle fast path and the store bucket must agree on the
		// window, or configured spacing silently diverges from the backstop.
		cfg.ContextWindow = cfg.Throttle.Window()
	}

	reminders := reminder.NewEngine()
	if cfg.Weights != nil {
		reminders = reminder.NewEngineWithWeights(*cfg.Weights)
	}

	slog.Debug("Creating Engine", "autoClose", cfg.AutoClose, "contextWindow", cfg.ContextWindow)
	return &Engine{
		store:         st,
		notifier:      notifier,
		throttle:      cfg.Throttle,
		reminders:     reminders,
		clock:         cfg.Clock,
		autoClose:     cfg.AutoClose,
		contextWindow: cfg.ContextWindow,
	}
}

// CreateTask validates and persists a new task.
func (e *Engine) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	now := e.clock()
	t, err := task.Create(req, now)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateTask(t); err != nil {
		slog.Error("Engine.CreateTask store write failed", "error", err, "id", t.ID)
		return nil, err
	}
	slog.Info("Engine.CreateTask succeeded", "id", t.ID, "userID", t.UserID, "status", t.Status)
	return &t, nil
}

// CreateBlockLog persists a completed log covering the current 30-minute
// block and resets the user's reminder dismissal streak: a successful log
// means the reminders worked.
func (e *Engine) CreateBlockLog(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	now := e.clock()
	t, err := task.CreateBlockLog(req, now)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateTask(t); err != nil {
		slog.Error("Engine.CreateBlockLog store write failed", "error", err, "id", t.ID)
		return nil, err
	}
	e.markLogged(ctx, t.UserID)
	slog.Info("Engine.CreateBlockLog succeeded", "id", t.ID, "userID", t.UserID, "blockStart", t.StartTime)
	return &t, nil
}

// TransitionTask applies a lifecycle action to a stored task. The write is
// conditional on the status the decision was computed against, so concurrent
// transitions on the same task are rejected as InvalidTransition rather than
// silently overwriting each other.
func (e *Engine) TransitionTask(ctx context.Context, taskID string, action models.TaskAction, overrides models.TransitionOverrides) (*models.Task, error) {
	now := e.clock()

	current, err := e.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}

	next, err := task.Apply(*current, action, now, overrides)
	if err != nil {
		return nil, err
	}

	if err := e.store.UpdateTaskIf(next, current.Status); err != nil {
		slog.Error("Engine.TransitionTask apply failed", "error", err, "id", taskID, "action", action)
		return nil, err
	}

	if next.Status == models.TaskStatusCompleted && current.Status != models.TaskStatusCompleted {
		e.markLogged(ctx, next.UserID)
	}
	slog.Info("Engine.TransitionTask succeeded", "id", taskID, "action", action, "from", current.Status, "to", next.Status)
	return &next, nil
}

// DeleteTask removes a task by ID.
func (e *Engine) DeleteTask(ctx context.Context, taskID string) error {
	return e.store.DeleteTask(taskID)
}

// ListTasks returns a user's tasks, newest first.
func (e *Engine) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	return e.store.ListTasks(userID)
}

// QuantizeToBlock maps a timestamp to its canonical block interval.
func (e *Engine) QuantizeToBlock(t time.Time) models.ActivityBlock {
	return block.Quantize(t)
}

// EvaluateReminder runs one throttle evaluation for the user and, when
// permitted, composes and delivers the reminder. Firing counters are updated
// in the same apply step as delivery, and a store-level dedupe tag ensures a
// retried evaluation cannot deliver the same block's reminder twice.
func (e *Engine) EvaluateReminder(ctx context.Context, userID string, state models.ReminderState) (models.FireDecision, error) {
	now := e.clock()

	history, settings, err := e.loadReminderRows(userID)
	if err != nil {
		return models.FireDecision{}, err
	}

	decision := e.reminders.ShouldFire(*history, *settings, state, now)
	if !decision.Allow {
		slog.Debug("Engine.EvaluateReminder denied", "userID", userID, "reason", decision.Reason, "nextEligibleAt", decision.NextEligibleAt)
		return decision, nil
	}

	tag := fmt.Sprintf("reminder:%s:%d", userID, block.RoundToBlock(now).Unix())
	fresh, err := e.store.RecordNotification(tag, userID, now)
	if err != nil {
		return models.FireDecision{}, err
	}
	if !fresh {
		slog.Debug("Engine.EvaluateReminder suppressed duplicate", "userID", userID, "tag", tag)
		return models.FireDecision{Allow: false, Reason: models.DenyReasonMinSpacing, NextEligibleAt: block.End(now)}, nil
	}

	msg := reminder.ComposeMessage(state, now)
	notification := notify.Notification{Message: msg, DedupeTag: tag, AutoClose: e.autoClose}
	if err := e.notifier.Send(ctx, userID, notification); err != nil {
		slog.Error("Engine.EvaluateReminder delivery failed", "error", err, "userID", userID, "tag", tag)
		return models.FireDecision{}, err
	}

	reminder.RecordFire(history, now)
	if err := e.store.SaveReminderHistory(*history); err != nil {
		slog.Error("Engine.EvaluateReminder history save failed", "error", err, "userID", userID)
		return models.FireDecision{}, err
	}

	slog.Info("Engine.EvaluateReminder fired", "userID", userID, "title", msg.Title, "firedToday", history.FiredToday)
	return decision, nil
}

// DismissReminder records an explicit dismissal, possibly triggering
// auto-snooze.
func (e *Engine) DismissReminder(ctx context.Context, userID string) error {
	now := e.clock()
	history, settings, err := e.loadReminderRows(userID)
	if err != nil {
		return err
	}
	reminder.RecordDismissal(history, *settings, now)
	if err := e.store.SaveReminderHistory(*history); err != nil {
		slog.Error("Engine.DismissReminder history save failed", "error", err, "userID", userID)
		return err
	}
	return nil
}

// RecordActivityLogged resets the user's dismissal streak in response to a
// log recorded outside the engine's own write paths (e.g. an import).
func (e *Engine) RecordActivityLogged(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	now := e.clock()

	history, err := e.store.GetReminderHistory(userID)
	if err != nil {
		return err
	}
	if history == nil || history.ConsecutiveDismissals == 0 {
		return nil
	}
	reminder.RecordLogged(history, now)
	if err := e.store.SaveReminderHistory(*history); err != nil {
		slog.Error("Engine.RecordActivityLogged history save failed", "error", err, "userID", userID)
		return err
	}
	return nil
}

// LogContext records a raw context-detection sample, rate-limited to one per
// user per window. The in-memory throttle is the fast path; the store's
// unique constraint is the durable backstop when concurrent requests both
// pass it.
func (e *Engine) LogContext(ctx context.Context, userID, contextName string) (bool, error) {
	if userID == "" {
		return false, models.ErrEmptyUserID
	}
	now := e.clock()

	if !e.throttle.TryLog(userID, now) {
		return false, nil
	}

	bucketStart := now.Truncate(e.contextWindow)
	stored, err := e.store.RecordContextSample(userID, contextName, bucketStart, now)
	if err != nil {
		return false, err
	}
	if !stored {
		slog.Debug("Engine.LogContext rejected by store backstop", "userID", userID, "bucketStart", bucketStart)
	}
	return stored, nil
}

// BuildReminderState derives an activity snapshot for a user from stored
// logs, merging in client-reported idle and context-switch signals.
func (e *Engine) BuildReminderState(ctx context.Context, userID string, isIdle bool, idleMinutes int, recentContextSwitch bool) (models.ReminderState, error) {
	now := e.clock()

	lastLog, err := e.store.LastLogTime(userID)
	if err != nil {
		return models.ReminderState{}, err
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	logsToday, err := e.store.CountCompletedSince(userID, midnight)
	if err != nil {
		return models.ReminderState{}, err
	}

	return models.ReminderState{
		IsIdle:              isIdle,
		IdleDurationMinutes: idleMinutes,
		LastLogTime:         lastLog,
		RecentContextSwitch: recentContextSwitch,
		LogsTodayCount:      logsToday,
	}, nil
}

// Sweep evaluates reminders for every user with stored settings. Used by the
// cron schedule; client-reported signals are unavailable here, so the
// snapshot carries only store-derived facts.
func (e *Engine) Sweep(ctx context.Context) error {
	users, err := e.store.ListReminderUsers()
	if err != nil {
		return err
	}
	slog.Debug("Engine.Sweep starting", "users", len(users))

	for _, userID := range users {
		state, err := e.BuildReminderState(ctx, userID, false, 0, false)
		if err != nil {
			slog.Error("Engine.Sweep state build failed", "error", err, "userID", userID)
			continue
		}
		if _, err := e.EvaluateReminder(ctx, userID, state); err != nil {
			slog.Error("Engine.Sweep evaluation failed", "error", err, "userID", userID)
		}
	}
	return nil
}

// CleanupCompletedTasks removes completed tasks older than the retention
// period and returns the number removed.
func (e *Engine) CleanupCompletedTasks(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := e.clock().Add(-retention)
	n, err := e.store.DeleteCompletedBefore(cutoff)
	if err != nil {
		slog.Error("Engine.CleanupCompletedTasks failed", "error", err)
		return 0, err
	}
	if n > 0 {
		slog.Info("Engine.CleanupCompletedTasks removed old tasks", "count", n)
	}
	return n, nil
}

// loadReminderRows fetches history and settings, substituting empty history
// and default settings when the user has none stored.
func (e *Engine) loadReminderRows(userID string) (*models.ReminderHistory, *models.ReminderSettings, error) {
	history, err := e.store.GetReminderHistory(userID)
	if err != nil {
		return nil, nil, err
	}
	if history == nil {
		history = &models.ReminderHistory{UserID: userID}
	}

	settings, err := e.store.GetReminderSettings(userID)
	if err != nil {
		return nil, nil, err
	}
	if settings == nil {
		defaults := models.DefaultReminderSettings(userID)
		settings = &defaults
	}
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		slog.Error("Engine.loadReminderRows settings invalid", "error", err, "userID", userID)
		return nil, nil, err
	}
	return history, settings, nil
}

// markLogged resets the user's dismissal streak after a successful log. The
// log itself already committed, so a failed reset is logged and dropped.
func (e *Engine) markLogged(ctx context.Context, userID string) {
	if err := e.RecordActivityLogged(ctx, userID); err != nil {
		slog.Error("Engine.markLogged dismissal reset failed", "error", err, "userID", userID)
	}
}
