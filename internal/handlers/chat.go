package handlers

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/exodium/gptgate/internal/access"
	"github.com/exodium/gptgate/internal/bot"
	"github.com/exodium/gptgate/internal/db"
	"github.com/exodium/gptgate/internal/observability"
	"github.com/exodium/gptgate/internal/relay"
	"github.com/exodium/gptgate/internal/utils/text"
)

// sender is the slice of the bot API the chat pipeline needs.
type sender interface {
	Send(c api.Chattable) (api.Message, error)
	Request(c api.Chattable) (*api.APIResponse, error)
}

// Chat is the terminal handler: every plain text message that survived the
// admin and user handlers is treated as an AI prompt, gated by access checks.
type Chat struct {
	s          bot.Service
	bot        sender
	store      db.Client
	relay      *relay.Relay
	membership *access.MembershipChecker
}

func NewChat(s bot.Service, r *relay.Relay) *Chat {
	return &Chat{
		s:          s,
		bot:        s.GetBot(),
		store:      s.GetDB(),
		relay:      r,
		membership: access.NewMembershipChecker(s.GetBot()),
	}
}

func (h *Chat) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u == nil || u.Message == nil || user == nil || chat == nil {
		return true, nil
	}
	msg := u.Message
	if msg.IsCommand() || msg.Text == "" {
		return true, nil
	}

	record, err := h.store.GetUser(ctx, user.ID)
	if err != nil {
		return true, err
	}
	if record == nil {
		h.send(user.ID, "❌ Use /start first")
		return false, nil
	}
	if record.IsBanned {
		return false, nil
	}

	settings := h.s.GetConfig().Get()
	// Membership is re-checked live on every prompt so a user who left a
	// channel loses access immediately.
	if !h.membership.IsMemberOfAll(user.ID, settings.MustJoinChannels) {
		h.send(user.ID, "❌ Join all channels first! Use /start")
		return false, nil
	}
	now := time.Now()
	if !access.HasTime(record, now) {
		h.send(user.ID, "🚫 <b>ACCESS EXPIRED!</b>\nShare your referral link to get +24h access. See /status")
		return false, nil
	}

	if err := h.store.TouchLastActive(ctx, user.ID); err != nil {
		h.getLogEntry().WithField("error", err.Error()).Error("cant touch last_active")
	}

	done := observability.StartMessageProcessing()
	_, _ = h.bot.Request(api.NewChatAction(user.ID, api.ChatTyping))
	placeholder := api.NewMessage(user.ID, "⚡ <b>GPTGate is thinking...</b>")
	placeholder.ParseMode = api.ModeHTML
	waiting, waitErr := h.bot.Send(placeholder)

	history, err := h.store.GetChatHistory(ctx, user.ID, relay.HistoryLimit)
	if err != nil {
		h.getLogEntry().WithField("error", err.Error()).Error("cant load chat history")
	}

	response := h.relay.Complete(ctx, settings.AIModel, msg.Text, history)

	// The completion can take minutes and a referral may land meanwhile, so
	// the remaining-time header is rendered from fresh state.
	current := record
	if fresh, err := h.store.GetUser(ctx, user.ID); err == nil && fresh != nil {
		current = fresh
	}
	full := "⏰ <b>Access Left:</b> " + access.TimeRemaining(current, time.Now()) + "\n\n" + response
	h.deliver(user.ID, full, waiting, waitErr == nil)

	if err := h.store.AddMessage(ctx, user.ID, msg.Text, response); err != nil {
		h.getLogEntry().WithField("error", err.Error()).Error("cant store message")
	}
	done("ok")
	return false, nil
}

// deliver edits the placeholder into the first chunk and sends the rest as
// separate messages. A failed edit falls back to a plain send.
func (h *Chat) deliver(chatID int64, full string, waiting api.Message, hasPlaceholder bool) {
	chunks := text.SplitMessage(full, text.MaxMessageLength)
	if len(chunks) == 0 {
		return
	}
	rest := chunks
	if hasPlaceholder {
		edit := api.NewEditMessageText(chatID, waiting.MessageID, chunks[0])
		edit.ParseMode = api.ModeHTML
		if err := tool.Err(h.bot.Send(edit)); err == nil {
			rest = chunks[1:]
		}
	}
	for _, chunk := range rest {
		h.send(chatID, chunk)
	}
}

func (h *Chat) send(chatID int64, body string) {
	msg := api.NewMessage(chatID, body)
	msg.ParseMode = api.ModeHTML
	if err := tool.Err(h.bot.Send(msg)); err != nil {
		h.getLogEntry().WithField("error", err.Error()).Error("cant send message")
	}
}

func (h *Chat) getLogEntry() *log.Entry {
	return log.WithField("context", "chat")
}
