package handlers

import (
	"context"
	"fmt"
	"sync"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/exodium/gptgate/internal/bot"
	"github.com/exodium/gptgate/internal/db"
)

type adminAction string

const (
	actionBan          adminAction = "ban"
	actionUnban        adminAction = "unban"
	actionBroadcast    adminAction = "broadcast"
	actionSetModel     adminAction = "set_model"
	actionSetReferrals adminAction = "set_referrals"
	actionSetHours     adminAction = "set_hours"
	actionAddAdmin     adminAction = "add_admin"
	actionRemoveAdmin  adminAction = "remove_admin"
	actionIssueToken   adminAction = "issue_token"
)

const (
	btnStatistics = "📊 Statistics"
	btnAllUsers   = "👥 All Users"
	btnChannels   = "📢 Channels"
	btnAdmins     = "👑 Admins"
	btnBan        = "🚫 Ban User"
	btnUnban      = "✅ Unban User"
	btnAPIUsers   = "🔧 API Users"
	btnBroadcast  = "📝 Broadcast"
	btnSettings   = "⚙️ Settings"
	btnAddAdmin   = "➕ Add Admin"
	btnRemove     = "➖ Remove Admin"
	btnClose      = "❌ Close"

	btnChangeModel     = "Change Model"
	btnChangeReferrals = "Change Referrals"
	btnChangeHours     = "Change Hours"
	btnBackToAdmin     = "Back to Admin"
)

// Admin implements the reply keyboard console. Every mutating action is a
// two-step exchange: a menu button arms a pending action, the next plain
// message from the same admin is its input.
type Admin struct {
	s     bot.Service
	store db.Client

	mu      sync.Mutex
	pending map[int64]adminAction
}

func NewAdmin(s bot.Service) *Admin {
	return &Admin{
		s:       s,
		store:   s.GetDB(),
		pending: map[int64]adminAction{},
	}
}

func (h *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if u == nil || u.Message == nil || user == nil || chat == nil {
		return true, nil
	}
	msg := u.Message
	isAdmin := h.s.GetConfig().IsAdmin(user.ID)

	if msg.IsCommand() && msg.Command() == "admin" {
		if !isAdmin {
			h.reply(user.ID, "🚫 Access denied!", nil)
			return false, nil
		}
		h.clearPending(user.ID)
		h.showMainMenu(user.ID)
		return false, nil
	}
	if !isAdmin || msg.IsCommand() {
		return true, nil
	}

	if h.isMenuButton(msg.Text) {
		h.handleMenuButton(ctx, user.ID, msg.Text)
		return false, nil
	}

	if action, ok := h.takePending(user.ID); ok {
		h.reply(user.ID, h.applyPendingAction(ctx, user.ID, action, msg.Text), nil)
		return false, nil
	}
	return true, nil
}

func (h *Admin) isMenuButton(text string) bool {
	switch text {
	case btnStatistics, btnAllUsers, btnChannels, btnAdmins,
		btnBan, btnUnban, btnAPIUsers, btnBroadcast,
		btnSettings, btnAddAdmin, btnRemove, btnClose,
		btnChangeModel, btnChangeReferrals, btnChangeHours, btnBackToAdmin:
		return true
	}
	return false
}

func (h *Admin) handleMenuButton(ctx context.Context, adminID int64, text string) {
	// Selecting any button replaces whatever action was armed before.
	h.clearPending(adminID)

	switch text {
	case btnStatistics:
		h.showStatistics(ctx, adminID)
	case btnAllUsers:
		h.showAllUsers(ctx, adminID)
	case btnChannels:
		h.showChannels(adminID)
	case btnAdmins:
		h.showAdmins(adminID)
	case btnAPIUsers:
		h.showAPIUsers(ctx, adminID)
		h.armPending(adminID, actionIssueToken, "Enter User ID to issue an API token:")
	case btnBan:
		h.armPending(adminID, actionBan, "Enter User ID to ban:")
	case btnUnban:
		h.armPending(adminID, actionUnban, "Enter User ID to unban:")
	case btnBroadcast:
		h.armPending(adminID, actionBroadcast, "Enter the message to broadcast:")
	case btnAddAdmin:
		h.armPending(adminID, actionAddAdmin, "Enter User ID to add as admin:")
	case btnRemove:
		h.armPending(adminID, actionRemoveAdmin, "Enter User ID to remove from admins:")
	case btnSettings:
		h.showSettingsMenu(adminID)
	case btnChangeModel:
		h.armPending(adminID, actionSetModel, "Enter the new AI model name:")
	case btnChangeReferrals:
		h.armPending(adminID, actionSetReferrals, "Enter the new referral requirement:")
	case btnChangeHours:
		h.armPending(adminID, actionSetHours, "Enter the new access hours:")
	case btnBackToAdmin:
		h.showMainMenu(adminID)
	case btnClose:
		h.closeMenu(adminID)
	}
}

func (h *Admin) armPending(adminID int64, action adminAction, prompt string) {
	h.mu.Lock()
	h.pending[adminID] = action
	h.mu.Unlock()
	h.reply(adminID, prompt, nil)
}

func (h *Admin) takePending(adminID int64) (adminAction, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	action, ok := h.pending[adminID]
	if ok {
		delete(h.pending, adminID)
	}
	return action, ok
}

func (h *Admin) clearPending(adminID int64) {
	h.mu.Lock()
	delete(h.pending, adminID)
	h.mu.Unlock()
}

func (h *Admin) showMainMenu(adminID int64) {
	markup := api.NewReplyKeyboard(
		api.NewKeyboardButtonRow(
			api.NewKeyboardButton(btnStatistics), api.NewKeyboardButton(btnAllUsers),
			api.NewKeyboardButton(btnChannels), api.NewKeyboardButton(btnAdmins),
		),
		api.NewKeyboardButtonRow(
			api.NewKeyboardButton(btnBan), api.NewKeyboardButton(btnUnban),
			api.NewKeyboardButton(btnAPIUsers), api.NewKeyboardButton(btnBroadcast),
		),
		api.NewKeyboardButtonRow(
			api.NewKeyboardButton(btnSettings), api.NewKeyboardButton(btnAddAdmin),
			api.NewKeyboardButton(btnRemove), api.NewKeyboardButton(btnClose),
		),
	)
	markup.ResizeKeyboard = true
	msg := api.NewMessage(adminID, "🛠 <b>ADMIN PANEL</b>\nPick an action:")
	msg.ParseMode = api.ModeHTML
	msg.ReplyMarkup = markup
	_ = tool.Err(h.s.GetBot().Send(msg))
}

func (h *Admin) showSettingsMenu(adminID int64) {
	settings := h.s.GetConfig().Get()
	markup := api.NewReplyKeyboard(
		api.NewKeyboardButtonRow(
			api.NewKeyboardButton(btnChangeModel),
			api.NewKeyboardButton(btnChangeReferrals),
		),
		api.NewKeyboardButtonRow(
			api.NewKeyboardButton(btnChangeHours),
			api.NewKeyboardButton(btnBackToAdmin),
		),
	)
	markup.ResizeKeyboard = true
	msg := api.NewMessage(adminID, settingsText(settings.AIModel, settings.APIReferralsRequired, settings.AccessHours))
	msg.ParseMode = api.ModeHTML
	msg.ReplyMarkup = markup
	_ = tool.Err(h.s.GetBot().Send(msg))
}

func (h *Admin) closeMenu(adminID int64) {
	msg := api.NewMessage(adminID, "✅ Admin panel closed")
	msg.ReplyMarkup = api.NewRemoveKeyboard(true)
	_ = tool.Err(h.s.GetBot().Send(msg))
}

func (h *Admin) reply(chatID int64, text string, markup *api.InlineKeyboardMarkup) {
	msg := api.NewMessage(chatID, text)
	msg.ParseMode = api.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	_ = tool.Err(h.s.GetBot().Send(msg))
}

func (h *Admin) getLogEntry() *log.Entry {
	return log.WithField("context", "admin")
}

func settingsText(model string, referrals, hours int) string {
	return fmt.Sprintf("⚙️ <b>SETTINGS</b>\n"+
		"├─ Model: %s\n"+
		"├─ API Referrals: %d\n"+
		"├─ Access Hours: %d", model, referrals, hours)
}
