package typedcache

import (
	"testing"
	"time"
)

func TestFormatTimeAgoAt(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"seconds", 30 * time.Second, "30s ago"},
		{"minutes", 5 * time.Minute, "5m ago"},
		{"hours", 3 * time.Hour, "3h ago"},
		{"days", 2 * 24 * time.Hour, "2d ago"},
		{"months", 60 * 24 * time.Hour, "2mo ago"},
		{"years", 400 * 24 * time.Hour, "1y ago"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := formatTimeAgoAt(now.Add(-c.ago), now)
			if got != c.want {
				t.Errorf("formatTimeAgoAt(-%v) = %q, want %q", c.ago, got, c.want)
			}
		})
	}
}

func TestFormatTimeAgoAt_FutureClampsToZero(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	got := formatTimeAgoAt(now.Add(time.Hour), now)
	if got != "0s ago" {
		t.Errorf("formatTimeAgoAt(future) = %q, want %q", got, "0s ago")
	}
}
