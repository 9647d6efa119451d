package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/exodium/gptgate/internal/db"
	apperrors "github.com/exodium/gptgate/internal/errors"
)

const userColumns = `user_id, username, first_name, last_name, joined_at, last_active,
	referral_code, referred_by, referral_count, api_token, access_expiry,
	joined_channels, message_count, is_banned, ban_reason, banned_at`

func (c *sqliteClient) CreateUserIfAbsent(ctx context.Context, user *db.User) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT OR IGNORE INTO users
		(user_id, username, first_name, last_name, joined_at, last_active, referral_code, access_expiry)
		VALUES (:user_id, :username, :first_name, :last_name, :joined_at, :last_active, :referral_code, :access_expiry)
	`
	result, err := c.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return false, fmt.Errorf("failed to create user %d: %w", user.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

func (c *sqliteClient) GetUser(ctx context.Context, userID int64) (*db.User, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	user := &db.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = ?`
	if err := c.db.QueryRowxContext(ctx, query, userID).StructScan(user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return user, nil
}

func (c *sqliteClient) GetUserByReferralCode(ctx context.Context, code string) (*db.User, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	user := &db.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code = ?`
	if err := c.db.QueryRowxContext(ctx, query, code).StructScan(user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by referral code: %w", err)
	}
	return user, nil
}

func (c *sqliteClient) GetAllUsers(ctx context.Context) ([]*db.User, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var users []*db.User
	query := `SELECT ` + userColumns + ` FROM users ORDER BY joined_at DESC`
	if err := c.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}
	return users, nil
}

func (c *sqliteClient) GetUsersWithExpiry(ctx context.Context) ([]*db.User, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var users []*db.User
	query := `SELECT ` + userColumns + ` FROM users WHERE is_banned = 0 AND access_expiry IS NOT NULL`
	if err := c.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to get users with expiry: %w", err)
	}
	return users, nil
}

func (c *sqliteClient) TouchLastActive(ctx context.Context, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx,
		`UPDATE users SET last_active = ? WHERE user_id = ?`,
		db.FormatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("failed to touch last_active for user %d: %w", userID, err)
	}
	return nil
}

func (c *sqliteClient) SetJoinedChannels(ctx context.Context, userID int64, count int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx,
		`UPDATE users SET joined_channels = ? WHERE user_id = ?`,
		count, userID)
	if err != nil {
		return fmt.Errorf("failed to set joined_channels for user %d: %w", userID, err)
	}
	return nil
}

func (c *sqliteClient) BanUser(ctx context.Context, userID int64, reason string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	result, err := c.db.ExecContext(ctx,
		`UPDATE users SET is_banned = 1, ban_reason = ?, banned_at = ? WHERE user_id = ?`,
		reason, db.FormatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("failed to ban user %d: %w", userID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("ban user %d: %w", userID, apperrors.ErrNotFound)
	}
	return nil
}

func (c *sqliteClient) UnbanUser(ctx context.Context, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	result, err := c.db.ExecContext(ctx,
		`UPDATE users SET is_banned = 0, ban_reason = NULL, banned_at = NULL WHERE user_id = ?`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to unban user %d: %w", userID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("unban user %d: %w", userID, apperrors.ErrNotFound)
	}
	return nil
}

func (c *sqliteClient) SetAPIToken(ctx context.Context, userID int64, token string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx,
		`UPDATE users SET api_token = ? WHERE user_id = ?`,
		token, userID)
	if err != nil {
		return fmt.Errorf("failed to set api token for user %d: %w", userID, err)
	}
	return nil
}

func (c *sqliteClient) GetStatistics(ctx context.Context, requiredChannels int) (*db.Statistics, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := &db.Statistics{}
	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&stats.TotalUsers, `SELECT COUNT(*) FROM users`, nil},
		{&stats.ActiveUsers, `SELECT COUNT(*) FROM users WHERE last_active > datetime('now', '-24 hours') AND is_banned = 0`, nil},
		{&stats.NeedsReferral, `SELECT COUNT(*) FROM users WHERE (access_expiry <= datetime('now') OR joined_channels < ?) AND is_banned = 0`, []any{requiredChannels}},
		{&stats.TotalReferrals, `SELECT COUNT(*) FROM referrals`, nil},
		{&stats.TotalMessages, `SELECT COUNT(*) FROM messages`, nil},
		{&stats.BannedUsers, `SELECT COUNT(*) FROM users WHERE is_banned = 1`, nil},
		{&stats.NewToday, `SELECT COUNT(*) FROM users WHERE date(joined_at) = date('now')`, nil},
		{&stats.APIUsers, `SELECT COUNT(*) FROM users WHERE api_token IS NOT NULL`, nil},
	}
	for _, count := range counts {
		if err := c.db.GetContext(ctx, count.dest, count.query, count.args...); err != nil {
			return nil, fmt.Errorf("failed to get statistics: %w", err)
		}
	}
	return stats, nil
}
