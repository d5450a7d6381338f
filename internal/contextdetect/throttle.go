// Package contextdetect rate-limits persistence of raw user-context signals.
//
// Clients report "what app/context is the user in" far more often than is
// worth storing. The Throttle keeps a per-user last-logged timestamp in
// process memory and rejects samples inside the window. Losing the map on
// restart is harmless: it only limits write frequency, and the storage
// layer's unique constraint is the durable backstop.
package contextdetect

import (
	"log/slog"
	"sync"
	"time"
)

// Defaults for throttle construction.
const (
	// DefaultWindow is the minimum spacing between stored context samples per user.
	DefaultWindow = 5 * time.Minute
	// DefaultMaxEntries bounds the in-memory map size.
	DefaultMaxEntries = 10000
)

// Throttle is an explicitly-owned, injected cache of per-user last-log times.
// It is safe for concurrent use across requests; per-user keys avoid
// cross-user interference.
type Throttle struct {
	mu         sync.Mutex
	lastLogged map[string]time.Time
	window     time.Duration
	maxEntries int
}

// NewThrottle creates a throttle with the given spacing window and entry
// bound. Non-positive arguments fall back to the defaults.
func NewThrottle(window time.Duration, maxEntries int) *Throttle {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Throttle{
		lastLogged: make(map[string]time.Time),
		window:     window,
		maxEntries: maxEntries,
	}
}

// TryLog reports whether a context sample for userID may be persisted at now.
// On allow it records now for the user. Stale entries are evicted
// opportunistically during calls; there is no background goroutine.
func (t *Throttle) TryLog(userID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.lastLogged[userID]; ok && now.Sub(last) < t.window {
		slog.Debug("contextdetect.TryLog throttled", "userID", userID, "sinceLast", now.Sub(last))
		return false
	}

	t.evictLocked(now)
	t.lastLogged[userID] = now
	slog.Debug("contextdetect.TryLog allowed", "userID", userID)
	return true
}

// Window returns the throttle's spacing window.
func (t *Throttle) Window() time.Duration {
	return t.window
}

// Len returns the number of tracked users.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastLogged)
}

// evictLocked drops entries older than the window. If the map is still over
// its bound afterwards (many users active inside one window), the oldest
// entries go too. Callers must hold mu.
func (t *Throttle) evictLocked(now time.Time) {
	for id, last := range t.lastLogged {
		if now.Sub(last) >= t.window {
			delete(t.lastLogged, id)
		}
	}
	for len(t.lastLogged) >= t.maxEntries {
		oldestID := ""
		var oldest time.Time
		for id, last := range t.lastLogged {
			if oldestID == "" || last.Before(oldest) {
				oldestID, oldest = id, last
			}
		}
		delete(t.lastLogged, oldestID)
	}
}
