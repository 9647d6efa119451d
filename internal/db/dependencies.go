package db

import (
	"context"
	"time"
)

type Client interface {
	Close() error

	CreateUserIfAbsent(ctx context.Context, user *User) (bool, error)
	GetUser(ctx context.Context, userID int64) (*User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*User, error)
	GetAllUsers(ctx context.Context) ([]*User, error)
	GetUsersWithExpiry(ctx context.Context) ([]*User, error)
	TouchLastActive(ctx context.Context, userID int64) error
	SetJoinedChannels(ctx context.Context, userID int64, count int) error
	BanUser(ctx context.Context, userID int64, reason string) error
	UnbanUser(ctx context.Context, userID int64) error
	SetAPIToken(ctx context.Context, userID int64, token string) error

	RecordReferral(ctx context.Context, referrerID int64, referredID int64, bonus time.Duration) (bool, error)

	AddMessage(ctx context.Context, userID int64, prompt string, response string) error
	GetChatHistory(ctx context.Context, userID int64, limit int) ([]*Message, error)

	GetStatistics(ctx context.Context, requiredChannels int) (*Statistics, error)

	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
}
