package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/timegrid/timegrid/internal/contextdetect"
	"github.com/timegrid/timegrid/internal/engine"
	"github.com/timegrid/timegrid/internal/lockfile"
	"github.com/timegrid/timegrid/internal/notify"
	"github.com/timegrid/timegrid/internal/scheduler"
	"github.com/timegrid/timegrid/internal/store"
	"github.com/timegrid/timegrid/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for TimeGrid state data
	DefaultStateDir = "/var/lib/timegrid"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "timegrid.db"
	// DefaultSweepCron runs the reminder-evaluation sweep every 5 minutes
	DefaultSweepCron = "*/5 * * * *"
	// DefaultCleanupCron runs completed-task retention cleanup nightly
	DefaultCleanupCron = "30 3 * * *"
	// DefaultRetentionDays is how long completed tasks are kept
	DefaultRetentionDays = 365
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// Two daemons sharing one state directory would race on the SQLite file
	// and double-deliver reminders.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	notifier, err := notify.NewTwilioNotifier()
	if err != nil {
		slog.Error("Failed to create Twilio notifier", "error", err)
		os.Exit(1)
	}

	contextWindow := util.ParseDurationEnv("CONTEXT_THROTTLE_WINDOW", contextdetect.DefaultWindow)
	eng := engine.NewEngine(st, notifier,
		engine.WithContextWindow(contextWindow),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler()
	defer sched.Stop()

	if err := sched.AddJob(*flags.sweepCron, func() {
		if err := eng.Sweep(ctx); err != nil {
			slog.Error("Reminder sweep failed", "error", err)
		}
	}); err != nil {
		slog.Error("Failed to schedule reminder sweep", "error", err, "cron", *flags.sweepCron)
		os.Exit(1)
	}

	retention := time.Duration(*flags.retentionDays) * 24 * time.Hour
	if err := sched.AddJob(*flags.cleanupCron, func() {
		if _, err := eng.CleanupCompletedTasks(ctx, retention); err != nil {
			slog.Error("Retention cleanup failed", "error", err)
		}
	}); err != nil {
		slog.Error("Failed to schedule retention cleanup", "error", err, "cron", *flags.cleanupCron)
		os.Exit(1)
	}

	slog.Info("TimeGrid running", "sweep_cron", *flags.sweepCron, "cleanup_cron", *flags.cleanupCron, "retention_days", *flags.retentionDays)
	<-ctx.Done()
	slog.Info("TimeGrid shutting down")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	StateDir      string
	SweepCron     string
	CleanupCron   string
	RetentionDays int
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	sweepCron     *string
	cleanupCron   *string
	retentionDays *int
}

// initializeLogger sets up structured logging. Debug level by default;
// set TIMEGRID_DEBUG=false to quiet it down to info.
func initializeLogger() {
	level := slog.LevelDebug
	if !util.ParseBoolEnv("TIMEGRID_DEBUG", true) {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("TIMEGRID_STATE_DIR"),
		SweepCron:     os.Getenv("SWEEP_SCHEDULE"),
		CleanupCron:   os.Getenv("CLEANUP_SCHEDULE"),
		RetentionDays: util.ParseIntEnv("TASK_RETENTION_DAYS", DefaultRetentionDays),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No TIMEGRID_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.SweepCron == "" {
		config.SweepCron = DefaultSweepCron
	}
	if config.CleanupCron == "" {
		config.CleanupCron = DefaultCleanupCron
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"TIMEGRID_STATE_DIR", config.StateDir,
		"SWEEP_SCHEDULE", config.SweepCron,
		"CLEANUP_SCHEDULE", config.CleanupCron,
		"TASK_RETENTION_DAYS", config.RetentionDays)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for TimeGrid data (overrides $TIMEGRID_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN, SQLite path or postgres:// URL (overrides $DATABASE_URL)"),
		sweepCron:     flag.String("sweep-cron", config.SweepCron, "cron schedule for reminder evaluation sweeps (overrides $SWEEP_SCHEDULE)"),
		cleanupCron:   flag.String("cleanup-cron", config.CleanupCron, "cron schedule for retention cleanup (overrides $CLEANUP_SCHEDULE)"),
		retentionDays: flag.Int("retention-days", config.RetentionDays, "days to keep completed tasks (overrides $TASK_RETENTION_DAYS)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"sweepCron", *flags.sweepCron,
		"cleanupCron", *flags.cleanupCron,
		"retentionDays", *flags.retentionDays)

	return flags
}

// openStore selects the storage backend by DSN scheme: postgres URLs get the
// Postgres store, anything else is treated as a SQLite file path.
func openStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if strings.Contains(dsn, "postgres://") || strings.Contains(dsn, "host=") {
		slog.Info("Using Postgres store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Info("Using SQLite store", "path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}
