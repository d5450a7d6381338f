package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value    string
		def      bool
		expected bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"OFF", true, false},
		{"", true, true},
		{"", false, false},
		{"garbage", true, true},
	}
	for _, tt := range tests {
		t.Setenv("TEST_BOOL_ENV", tt.value)
		if got := ParseBoolEnv("TEST_BOOL_ENV", tt.def); got != tt.expected {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.expected)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("TEST_INT_ENV", "42")
	if got := ParseIntEnv("TEST_INT_ENV", 7); got != 42 {
		t.Errorf("ParseIntEnv = %d, want 42", got)
	}
	t.Setenv("TEST_INT_ENV", "not-a-number")
	if got := ParseIntEnv("TEST_INT_ENV", 7); got != 7 {
		t.Errorf("ParseIntEnv with invalid value = %d, want default 7", got)
	}
	t.Setenv("TEST_INT_ENV", "")
	if got := ParseIntEnv("TEST_INT_ENV", 7); got != 7 {
		t.Errorf("ParseIntEnv with empty value = %d, want default 7", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DURATION_ENV", "5m")
	if got := ParseDurationEnv("TEST_DURATION_ENV", time.Minute); got != 5*time.Minute {
		t.Errorf("ParseDurationEnv = %v, want 5m", got)
	}
	t.Setenv("TEST_DURATION_ENV", "soon")
	if got := ParseDurationEnv("TEST_DURATION_ENV", time.Minute); got != time.Minute {
		t.Errorf("ParseDurationEnv with invalid value = %v, want default 1m", got)
	}
}
