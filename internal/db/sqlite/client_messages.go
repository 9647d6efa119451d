package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/exodium/gptgate/internal/db"
)

func (c *sqliteClient) AddMessage(ctx context.Context, userID int64, prompt string, response string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin message tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (user_id, prompt, response, created_at) VALUES (?, ?, ?, ?)`,
		userID, prompt, response, db.FormatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET message_count = message_count + 1 WHERE user_id = ?`,
		userID); err != nil {
		return fmt.Errorf("failed to increment message count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message tx: %w", err)
	}
	return nil
}

// GetChatHistory returns the last limit exchanges in chronological order.
func (c *sqliteClient) GetChatHistory(ctx context.Context, userID int64, limit int) ([]*db.Message, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var messages []*db.Message
	query := `
		SELECT message_id, user_id, prompt, response, created_at
		FROM messages
		WHERE user_id = ?
		ORDER BY created_at DESC, message_id DESC
		LIMIT ?
	`
	if err := c.db.SelectContext(ctx, &messages, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
