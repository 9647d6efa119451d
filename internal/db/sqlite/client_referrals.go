package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/exodium/gptgate/internal/db"
)

// RecordReferral inserts the (referrer, referred) edge at most once. On first
// insert it increments the referrer's referral_count and extends their access
// expiry by bonus on top of max(now, current expiry), so extensions stack only
// on unexpired time. Returns whether a new edge was created.
func (c *sqliteClient) RecordReferral(ctx context.Context, referrerID int64, referredID int64, bonus time.Duration) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin referral tx: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.GetContext(ctx, &existing,
		`SELECT COUNT(*) FROM referrals WHERE referrer_id = ? AND referred_id = ?`,
		referrerID, referredID); err != nil {
		return false, fmt.Errorf("failed to check referral edge: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO referrals (referrer_id, referred_id, referred_at) VALUES (?, ?, ?)`,
		referrerID, referredID, db.FormatTime(now)); err != nil {
		return false, fmt.Errorf("failed to insert referral edge: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET referral_count = referral_count + 1 WHERE user_id = ?`,
		referrerID); err != nil {
		return false, fmt.Errorf("failed to increment referral count: %w", err)
	}

	var expiry sql.NullString
	if err := tx.GetContext(ctx, &expiry,
		`SELECT access_expiry FROM users WHERE user_id = ?`, referrerID); err != nil {
		return false, fmt.Errorf("failed to read referrer expiry: %w", err)
	}

	base := now
	if expiry.Valid {
		if current, err := db.ParseTime(expiry.String); err == nil && current.After(now) {
			base = current
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET access_expiry = ? WHERE user_id = ?`,
		db.FormatTime(base.Add(bonus)), referrerID); err != nil {
		return false, fmt.Errorf("failed to extend referrer expiry: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET referred_by = ? WHERE user_id = ? AND referred_by IS NULL`,
		referrerID, referredID); err != nil {
		return false, fmt.Errorf("failed to set referred_by: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit referral tx: %w", err)
	}
	return true, nil
}
