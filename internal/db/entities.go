package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the canonical timestamp format for every stored timestamp
// column. It matches sqlite's datetime() output, so lexicographic comparison
// in SQL agrees with chronological order. All stored values are UTC.
const TimeLayout = "2006-01-02 15:04:05"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.UTC)
}

type (
	User struct {
		ID             int64          `db:"user_id"`
		UserName       string         `db:"username"`
		FirstName      string         `db:"first_name"`
		LastName       string         `db:"last_name"`
		JoinedAt       string         `db:"joined_at"`
		LastActive     string         `db:"last_active"`
		ReferralCode   string         `db:"referral_code"`
		ReferredBy     sql.NullInt64  `db:"referred_by"`
		ReferralCount  int            `db:"referral_count"`
		APIToken       sql.NullString `db:"api_token"`
		AccessExpiry   sql.NullString `db:"access_expiry"`
		JoinedChannels int            `db:"joined_channels"`
		MessageCount   int            `db:"message_count"`
		IsBanned       bool           `db:"is_banned"`
		BanReason      sql.NullString `db:"ban_reason"`
		BannedAt       sql.NullString `db:"banned_at"`
	}

	Referral struct {
		ID         int64  `db:"referral_id"`
		ReferrerID int64  `db:"referrer_id"`
		ReferredID int64  `db:"referred_id"`
		ReferredAt string `db:"referred_at"`
	}

	Message struct {
		ID        int64  `db:"message_id"`
		UserID    int64  `db:"user_id"`
		Prompt    string `db:"prompt"`
		Response  string `db:"response"`
		CreatedAt string `db:"created_at"`
	}

	Statistics struct {
		TotalUsers     int `db:"total_users"`
		ActiveUsers    int `db:"active_users"`
		NeedsReferral  int `db:"needs_referral"`
		TotalReferrals int `db:"total_referrals"`
		TotalMessages  int `db:"total_messages"`
		BannedUsers    int `db:"banned_users"`
		NewToday       int `db:"new_today"`
		APIUsers       int `db:"api_users"`
	}
)

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NewReferralCode issues the invite code embedded into a user's referral
// link. The epoch suffix keeps codes unique even if a row is ever recreated.
func NewReferralCode(userID int64, now time.Time) string {
	return fmt.Sprintf("EX%d_%d", userID, now.Unix())
}
