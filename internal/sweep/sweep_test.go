package sweep

import (
	"testing"
	"time"

	"github.com/exodium/gptgate/internal/db"
)

func TestShouldNotify(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute

	for _, tc := range []struct {
		name   string
		expiry string
		want   bool
	}{
		{"expired within window", db.FormatTime(now.Add(-200 * time.Second)), true},
		{"expired exactly now", db.FormatTime(now), true},
		{"expired before window", db.FormatTime(now.Add(-310 * time.Second)), false},
		{"still active", db.FormatTime(now.Add(time.Hour)), false},
		{"unparseable", "garbage", false},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ShouldNotify(tc.expiry, now, window); got != tc.want {
				t.Fatalf("ShouldNotify(%q) = %v, want %v", tc.expiry, got, tc.want)
			}
		})
	}
}

func TestShouldNotifyWindowBoundary(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute

	// Exactly window ago falls outside the half-open interval, so the next
	// tick does not renotify a user already reported by the previous one.
	if ShouldNotify(db.FormatTime(now.Add(-window)), now, window) {
		t.Fatal("expiry at window edge should not notify again")
	}
	if !ShouldNotify(db.FormatTime(now.Add(-window+time.Second)), now, window) {
		t.Fatal("expiry just inside window should notify")
	}
}
