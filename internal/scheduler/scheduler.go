// Package scheduler runs TimeGrid's periodic jobs (reminder-evaluation
// sweeps, completed-task retention cleanup) on cron expressions.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// slogAdapter bridges cron's logger interface onto slog, so recovered job
// panics land in the same structured log as everything else.
type slogAdapter struct{}

func (slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("Scheduler "+msg, keysAndValues...)
}

func (slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("Scheduler "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a scheduler using standard 5-field cron
// expressions (min, hour, dom, month, dow). A panicking job is recovered and
// logged instead of taking the daemon down.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(slogAdapter{})))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a job using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, job func()) error {
	if _, err := s.cron.AddFunc(expr, job); err != nil {
		return fmt.Errorf("failed to schedule job on %q: %w", expr, err)
	}
	slog.Debug("Scheduler job registered", "cron", expr)
	return nil
}

// Stop stops the cron scheduler; already-running jobs finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
