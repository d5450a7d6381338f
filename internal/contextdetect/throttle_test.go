package contextdetect

import (
	"fmt"
	"testing"
	"time"
)

var throttleNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func TestTryLogThrottlesWithinWindow(t *testing.T) {
	th := NewThrottle(5*time.Minute, 100)

	if !th.TryLog("user-1", throttleNow) {
		t.Fatal("first call must be allowed")
	}
	if th.TryLog("user-1", throttleNow.Add(2*time.Minute)) {
		t.Error("second call within the window must be denied")
	}
	if th.TryLog("user-1", throttleNow.Add(4*time.Minute+59*time.Second)) {
		t.Error("call just inside the window must be denied")
	}
	if !th.TryLog("user-1", throttleNow.Add(5*time.Minute)) {
		t.Error("call at the window boundary must be allowed")
	}
}

func TestTryLogIsPerUser(t *testing.T) {
	th := NewThrottle(5*time.Minute, 100)

	if !th.TryLog("user-1", throttleNow) {
		t.Fatal("first call for user-1 must be allowed")
	}
	if !th.TryLog("user-2", throttleNow) {
		t.Error("user-2 must not be affected by user-1's entry")
	}
}

func TestEvictionOfStaleEntries(t *testing.T) {
	th := NewThrottle(5*time.Minute, 100)

	for i := 0; i < 10; i++ {
		th.TryLog(fmt.Sprintf("user-%d", i), throttleNow)
	}
	if th.Len() != 10 {
		t.Fatalf("expected 10 tracked users, got %d", th.Len())
	}

	// A call past the window evicts everything stale.
	th.TryLog("user-fresh", throttleNow.Add(10*time.Minute))
	if th.Len() != 1 {
		t.Errorf("expected stale entries evicted, got %d tracked users", th.Len())
	}
}

func TestBoundedSize(t *testing.T) {
	th := NewThrottle(time.Hour, 50)

	for i := 0; i < 200; i++ {
		th.TryLog(fmt.Sprintf("user-%d", i), throttleNow.Add(time.Duration(i)*time.Second))
	}
	if th.Len() > 50 {
		t.Errorf("throttle map exceeded its bound: %d entries", th.Len())
	}
}

func TestDefaultsApplied(t *testing.T) {
	th := NewThrottle(0, 0)
	if th.window != DefaultWindow {
		t.Errorf("window = %v, want default %v", th.window, DefaultWindow)
	}
	if th.maxEntries != DefaultMaxEntries {
		t.Errorf("maxEntries = %d, want default %d", th.maxEntries, DefaultMaxEntries)
	}
}
