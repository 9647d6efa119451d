package access

import (
	"fmt"
	"time"

	"github.com/exodium/gptgate/internal/db"
)

const (
	StatusNoAccess = "No access"
	StatusExpired  = "Expired"
	StatusError    = "Error"
)

// HasAccess reports whether the user is currently authorized to use the AI
// relay: a stored expiry that parses and is strictly in the future, plus
// membership in every required channel as of the last membership snapshot.
// An unparseable expiry denies access.
func HasAccess(user *db.User, requiredChannels int, now time.Time) bool {
	return HasTime(user, now) && user.JoinedChannels >= requiredChannels
}

// HasTime checks the expiry alone, ignoring channel membership.
func HasTime(user *db.User, now time.Time) bool {
	if user == nil || !user.AccessExpiry.Valid {
		return false
	}
	expiry, err := db.ParseTime(user.AccessExpiry.String)
	if err != nil {
		return false
	}
	return expiry.After(now)
}

// TimeRemaining renders the time left until expiry, floored to whole minutes,
// as "{hours}h {minutes}m".
func TimeRemaining(user *db.User, now time.Time) string {
	if user == nil || !user.AccessExpiry.Valid {
		return StatusNoAccess
	}
	expiry, err := db.ParseTime(user.AccessExpiry.String)
	if err != nil {
		return StatusError
	}
	if !expiry.After(now) {
		return StatusExpired
	}
	remaining := expiry.Sub(now)
	hours := int(remaining / time.Hour)
	minutes := int(remaining % time.Hour / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// InitialExpiry is the access granted on first contact.
func InitialExpiry(now time.Time, hours int) string {
	return db.FormatTime(now.Add(time.Duration(hours) * time.Hour))
}
