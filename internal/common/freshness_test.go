package common

import (
	"testing"
	"time"
)

func TestIsFresh(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		updated time.Time
		maxAge  time.Duration
		want    bool
	}{
		{"just written", now, 10 * time.Minute, true},
		{"inside window", now.Add(-9 * time.Minute), 10 * time.Minute, true},
		{"exactly max age", now.Add(-10 * time.Minute), 10 * time.Minute, false},
		{"older than window", now.Add(-time.Hour), 10 * time.Minute, false},
		{"zero timestamp", time.Time{}, 10 * time.Minute, false},
		{"zero max age", now, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFresh(tt.updated, now, tt.maxAge); got != tt.want {
				t.Errorf("IsFresh() = %v, want %v", got, tt.want)
			}
		})
	}
}
