package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/exodium/gptgate/internal/access"
	"github.com/exodium/gptgate/internal/bot"
	"github.com/exodium/gptgate/internal/config"
	"github.com/exodium/gptgate/internal/db"
)

// referralBonus is the fixed expiry extension granted per successful referral.
const referralBonus = 24 * time.Hour

type User struct {
	s          bot.Service
	store      db.Client
	membership *access.MembershipChecker
}

func NewUser(s bot.Service) *User {
	return &User{
		s:          s,
		store:      s.GetDB(),
		membership: access.NewMembershipChecker(s.GetBot()),
	}
}

func (h *User) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u == nil {
		return true, nil
	}

	if u.CallbackQuery != nil && strings.HasPrefix(u.CallbackQuery.Data, "verify_") {
		h.handleVerifyCallback(ctx, u.CallbackQuery)
		return false, nil
	}

	if u.Message == nil || user == nil || chat == nil || !u.Message.IsCommand() {
		return true, nil
	}

	switch u.Message.Command() {
	case "start":
		return false, h.handleStart(ctx, u.Message, user)
	case "status":
		return false, h.handleStatus(ctx, user)
	case "api":
		return false, h.handleAPI(ctx, user)
	case "buybot":
		return false, h.handleBuyBot(ctx, user)
	default:
		return true, nil
	}
}

func (h *User) handleStart(ctx context.Context, msg *api.Message, user *api.User) error {
	entry := h.getLogEntry().WithField("method", "handleStart").WithField("user_id", user.ID)
	settings := h.s.GetConfig().Get()

	existing, err := h.store.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.IsBanned {
		reason := "No reason"
		if existing.BanReason.Valid {
			reason = existing.BanReason.String
		}
		h.reply(user.ID, fmt.Sprintf("🚫 <b>You are banned!</b>\nReason: %s", reason), nil)
		return nil
	}

	now := time.Now()
	created, err := h.store.CreateUserIfAbsent(ctx, &db.User{
		ID:           user.ID,
		UserName:     user.UserName,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		JoinedAt:     db.FormatTime(now),
		LastActive:   db.FormatTime(now),
		ReferralCode: db.NewReferralCode(user.ID, now),
		AccessExpiry: sql.NullString{String: access.InitialExpiry(now, settings.AccessHours), Valid: true},
	})
	if err != nil {
		return err
	}
	if err := h.store.TouchLastActive(ctx, user.ID); err != nil {
		entry.WithField("error", err.Error()).Error("cant touch last_active")
	}

	// Referral attribution happens only once, at first contact.
	if payload := strings.TrimSpace(msg.CommandArguments()); payload != "" && created {
		h.attributeReferral(ctx, payload, user)
	}

	isMember := h.membership.IsMemberOfAll(user.ID, settings.MustJoinChannels)
	joined := 0
	if isMember {
		joined = len(settings.MustJoinChannels)
	}
	if err := h.store.SetJoinedChannels(ctx, user.ID, joined); err != nil {
		entry.WithField("error", err.Error()).Error("cant set joined_channels")
	}

	markup := channelKeyboard(settings.MustJoinChannels, user.ID, isMember)
	if isMember {
		h.reply(user.ID, welcomeText(user.FirstName, settings.AccessHours), &markup)
	} else {
		h.reply(user.ID, joinRequiredText(user.FirstName, settings.MustJoinChannels), &markup)
	}
	return nil
}

func (h *User) attributeReferral(ctx context.Context, code string, referred *api.User) {
	entry := h.getLogEntry().WithField("method", "attributeReferral")

	referrer, err := h.store.GetUserByReferralCode(ctx, code)
	if err != nil {
		entry.WithField("error", err.Error()).Error("cant look up referral code")
		return
	}
	if referrer == nil || referrer.ID == referred.ID {
		return
	}

	recorded, err := h.store.RecordReferral(ctx, referrer.ID, referred.ID, referralBonus)
	if err != nil {
		entry.WithField("error", err.Error()).Error("cant record referral")
		return
	}
	if recorded {
		h.reply(referrer.ID, fmt.Sprintf(
			"🎉 <b>Referral Successful!</b>\n👤 New user: %s\n✅ You got +24 hours access!",
			bot.GetFullName(referred)), nil)
	}
}

func (h *User) handleVerifyCallback(ctx context.Context, cq *api.CallbackQuery) {
	targetID, err := strconv.ParseInt(strings.TrimPrefix(cq.Data, "verify_"), 10, 64)
	if err != nil {
		return
	}
	b := h.s.GetBot()
	if cq.From.ID != targetID {
		_, _ = b.Request(api.NewCallbackWithAlert(cq.ID, "❌ Not your button!"))
		return
	}

	settings := h.s.GetConfig().Get()
	if h.membership.IsMemberOfAll(targetID, settings.MustJoinChannels) {
		if err := h.store.SetJoinedChannels(ctx, targetID, len(settings.MustJoinChannels)); err != nil {
			h.getLogEntry().WithField("error", err.Error()).Error("cant set joined_channels")
		}
		_, _ = b.Request(api.NewCallback(cq.ID, "✅ Verified! Access granted!"))
		h.reply(targetID, "✅ <b>Access Granted!</b>\n🔥 <b>GPTGate is ready!</b>\n💬 Ask anything!", nil)
	} else {
		_, _ = b.Request(api.NewCallbackWithAlert(cq.ID, "❌ You haven't joined all channels!"))
	}
}

func (h *User) handleStatus(ctx context.Context, user *api.User) error {
	record, err := h.store.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if record == nil {
		h.reply(user.ID, "❌ Use /start first", nil)
		return nil
	}
	settings := h.s.GetConfig().Get()
	h.reply(user.ID, statusText(record, settings.BotUsername, len(settings.MustJoinChannels), time.Now()), nil)
	return nil
}

func (h *User) handleAPI(ctx context.Context, user *api.User) error {
	record, err := h.store.GetUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	h.reply(user.ID, apiReplyText(record, h.s.GetConfig().Get().APIReferralsRequired), nil)
	return nil
}

func (h *User) handleBuyBot(ctx context.Context, user *api.User) error {
	settings := h.s.GetConfig().Get()
	referrals := 0
	if record, err := h.store.GetUser(ctx, user.ID); err == nil && record != nil {
		referrals = record.ReferralCount
	}
	body := fmt.Sprintf("🤖 <b>GET YOUR OWN BOT</b>\n\n"+
		"💰 Price: $10\n"+
		"🆓 Or free with %d referrals (you have %d)", settings.BotReferralsRequired, referrals)
	if contact := strings.TrimPrefix(settings.UsersChannel, "@"); contact != "" {
		markup := api.NewInlineKeyboardMarkup(api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonURL("💬 Contact us", "https://t.me/"+contact),
		))
		h.reply(user.ID, body+fmt.Sprintf("\n\nContact @%s", contact), &markup)
		return nil
	}
	h.reply(user.ID, body, nil)
	return nil
}

func (h *User) reply(chatID int64, text string, markup *api.InlineKeyboardMarkup) {
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = api.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	_ = tool.Err(h.s.GetBot().Send(msg))
}

func (h *User) getLogEntry() *log.Entry {
	return log.WithField("context", "user")
}

func channelKeyboard(channels []config.Channel, userID int64, verified bool) api.InlineKeyboardMarkup {
	rows := make([][]api.InlineKeyboardButton, 0, len(channels)+1)
	for _, channel := range channels {
		rows = append(rows, api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonURL("📢 "+channel.Name, channel.URL),
		))
	}
	verifyLabel := "✅ I've Joined All"
	if verified {
		verifyLabel = "🔄 Verify"
	}
	rows = append(rows, api.NewInlineKeyboardRow(
		api.NewInlineKeyboardButtonData(verifyLabel, fmt.Sprintf("verify_%d", userID)),
	))
	return api.NewInlineKeyboardMarkup(rows...)
}

func welcomeText(firstName string, accessHours int) string {
	return fmt.Sprintf("👋 <b>Welcome %s to GPTGate!</b>\n\n"+
		"✅ <b>Access Granted!</b>\n\n"+
		"🎯 <b>Commands:</b>\n"+
		"• /status - Check status\n"+
		"• /api - Get API\n"+
		"• /buybot - Get custom bot\n"+
		"• /admin - Admin panel\n\n"+
		"⏰ <b>Free Access:</b> %d hours\n\n"+
		"💬 <b>Ask GPTGate anything!</b>", firstName, accessHours)
}

func joinRequiredText(firstName string, channels []config.Channel) string {
	lines := make([]string, 0, len(channels))
	for _, channel := range channels {
		lines = append(lines, "• "+channel.Name)
	}
	return fmt.Sprintf("👋 <b>Welcome %s to GPTGate!</b>\n\n"+
		"⚠️ <b>Join these channels to continue:</b>\n\n%s\n\n"+
		"<b>After joining, click the button below:</b>", firstName, strings.Join(lines, "\n"))
}

func statusText(user *db.User, botUsername string, requiredChannels int, now time.Time) string {
	status := "❌ INACTIVE"
	if access.HasAccess(user, requiredChannels, now) {
		status = "✅ ACTIVE"
	}
	return fmt.Sprintf("👤 <b>USER STATUS</b>\n"+
		"├─ Name: %s\n"+
		"├─ ID: %d\n\n"+
		"⏰ <b>ACCESS</b>\n"+
		"├─ Status: %s\n"+
		"├─ Time Left: %s\n\n"+
		"📊 <b>REFERRALS</b>\n"+
		"├─ Total: %d\n\n"+
		"🔗 <b>YOUR REFERRAL LINK:</b>\n"+
		"https://t.me/%s?start=%s",
		user.FullName(), user.ID, status, access.TimeRemaining(user, now),
		user.ReferralCount, botUsername, user.ReferralCode)
}

func apiReplyText(user *db.User, required int) string {
	if user.ReferralCount < required {
		return fmt.Sprintf("❌ Need %d referrals. You have %d.", required, user.ReferralCount)
	}
	if user.APIToken.Valid && user.APIToken.String != "" {
		return fmt.Sprintf("✅ Your API Token: <code>%s</code>", user.APIToken.String)
	}
	return "⏳ API token pending admin approval."
}
