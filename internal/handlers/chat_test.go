package handlers

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/exodium/gptgate/internal/adapters"
	"github.com/exodium/gptgate/internal/adapters/llm"
	"github.com/exodium/gptgate/internal/bot"
	"github.com/exodium/gptgate/internal/config"
	"github.com/exodium/gptgate/internal/db"
	"github.com/exodium/gptgate/internal/relay"
)

func newTestChat(t *testing.T, client db.Client) *Chat {
	t.Helper()
	store, err := config.NewStore(context.Background(), client, 0)
	if err != nil {
		t.Fatalf("new settings store: %v", err)
	}
	return NewChat(bot.NewService(nil, client, store), nil)
}

func textUpdate(userID int64, body string) *api.Update {
	return &api.Update{
		Message: &api.Message{
			Date: int(time.Now().Unix()),
			Chat: api.Chat{ID: userID},
			From: &api.User{ID: userID},
			Text: body,
		},
	}
}

func TestChatIgnoresBannedUserSilently(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.users[42] = &db.User{ID: 42, IsBanned: true}
	chat := newTestChat(t, client)

	u := textUpdate(42, "tell me something")
	proceed, err := chat.Handle(context.Background(), u, u.FromChat(), u.SentFrom())
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proceed {
		t.Fatal("banned user's message should be claimed, not passed on")
	}
}

func TestChatPassesOnCommandsAndEmptyText(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	chat := newTestChat(t, newFakeClient())

	cmd := textUpdate(42, "/status")
	cmd.Message.Entities = []api.MessageEntity{{Type: "bot_command", Offset: 0, Length: 7}}
	proceed, err := chat.Handle(ctx, cmd, cmd.FromChat(), cmd.SentFrom())
	if err != nil {
		t.Fatalf("handle command: %v", err)
	}
	if !proceed {
		t.Fatal("commands belong to earlier handlers")
	}

	empty := textUpdate(42, "")
	proceed, err = chat.Handle(ctx, empty, empty.FromChat(), empty.SentFrom())
	if err != nil {
		t.Fatalf("handle empty: %v", err)
	}
	if !proceed {
		t.Fatal("non-text updates should pass through")
	}
}

// scriptedLLM runs a callback before answering, so tests can change state
// while a completion is in flight.
type scriptedLLM struct {
	reply      string
	onComplete func()
}

func (s *scriptedLLM) WithModel(string) adapters.LLM { return s }

func (s *scriptedLLM) ChatCompletion(context.Context, []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error) {
	if s.onComplete != nil {
		s.onComplete()
	}
	return llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{{Message: llm.ChatCompletionMessage{Role: llm.RoleAssistant, Content: s.reply}}},
	}, nil
}

// recordingSender captures every outgoing message body.
type recordingSender struct {
	nextID int
	texts  []string
}

func (r *recordingSender) Send(c api.Chattable) (api.Message, error) {
	switch m := c.(type) {
	case api.MessageConfig:
		r.texts = append(r.texts, m.Text)
	case api.EditMessageTextConfig:
		r.texts = append(r.texts, m.Text)
	}
	r.nextID++
	return api.Message{MessageID: r.nextID}, nil
}

func (r *recordingSender) Request(api.Chattable) (*api.APIResponse, error) {
	return &api.APIResponse{Ok: true}, nil
}

func TestChatAccessHeaderUsesPostCompletionState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeClient()
	now := time.Now()
	client.users[42] = &db.User{
		ID:           42,
		AccessExpiry: sql.NullString{String: db.FormatTime(now.Add(90 * time.Minute)), Valid: true},
	}

	// A referral bonus lands while the completion is running.
	fake := &scriptedLLM{
		reply: "here is your answer",
		onComplete: func() {
			client.users[42].AccessExpiry = sql.NullString{
				String: db.FormatTime(now.Add(90*time.Minute + 24*time.Hour)),
				Valid:  true,
			}
		},
	}

	store, err := config.NewStore(ctx, client, 0)
	if err != nil {
		t.Fatalf("new settings store: %v", err)
	}
	chat := NewChat(bot.NewService(nil, client, store), relay.New(fake, "", time.Minute))
	out := &recordingSender{}
	chat.bot = out

	u := textUpdate(42, "what is the answer")
	proceed, err := chat.Handle(ctx, u, u.FromChat(), u.SentFrom())
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proceed {
		t.Fatal("prompt should be claimed by the chat handler")
	}

	delivered := strings.Join(out.texts, "\n")
	if !strings.Contains(delivered, "here is your answer") {
		t.Fatalf("response not delivered, got %q", delivered)
	}
	if !strings.Contains(delivered, "Access Left:</b> 25h") {
		t.Fatalf("header should reflect the extended access, got %q", delivered)
	}
}
