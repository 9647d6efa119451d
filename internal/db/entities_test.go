package db

import (
	"strings"
	"testing"
	"time"
)

func TestTimeRoundTrip(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*3600)
	local := time.Date(2025, 6, 1, 15, 0, 0, 0, loc)

	stored := FormatTime(local)
	if stored != "2025-06-01 12:00:00" {
		t.Fatalf("FormatTime = %q, want UTC rendering", stored)
	}

	parsed, err := ParseTime(stored)
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !parsed.Equal(local) {
		t.Fatalf("round trip mismatch: %v != %v", parsed, local)
	}
	if parsed.Location() != time.UTC {
		t.Fatalf("parsed location = %v, want UTC", parsed.Location())
	}
}

func TestParseTimeRejectsRFC3339(t *testing.T) {
	t.Parallel()

	if _, err := ParseTime("2025-06-01T12:00:00Z"); err == nil {
		t.Fatal("expected parse error for RFC3339 input")
	}
}

func TestNewReferralCode(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	code := NewReferralCode(42, now)
	if code != "EX42_1700000000" {
		t.Fatalf("code = %q", code)
	}
	if !strings.HasPrefix(code, "EX") {
		t.Fatalf("code missing prefix: %q", code)
	}
}

func TestFullName(t *testing.T) {
	t.Parallel()

	u := &User{FirstName: "Ada"}
	if got := u.FullName(); got != "Ada" {
		t.Fatalf("FullName = %q", got)
	}
	u.LastName = "Lovelace"
	if got := u.FullName(); got != "Ada Lovelace" {
		t.Fatalf("FullName = %q", got)
	}
}
