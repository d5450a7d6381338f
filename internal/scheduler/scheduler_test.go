package scheduler

import (
	"testing"
)

func TestAddJobAcceptsFiveFieldExpressions(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	for _, expr := range []string{"*/5 * * * *", "30 3 * * *", "0 0 1 1 *"} {
		if err := s.AddJob(expr, func() {}); err != nil {
			t.Errorf("AddJob(%q) failed: %v", expr, err)
		}
	}
}

func TestAddJobRejectsInvalidExpressions(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	// Six-field (seconds) expressions are rejected by the 5-field parser.
	for _, expr := range []string{"not-a-cron", "0 */5 * * * *", "61 * * * *", ""} {
		if err := s.AddJob(expr, func() {}); err == nil {
			t.Errorf("AddJob(%q) should have failed", expr)
		}
	}
}
