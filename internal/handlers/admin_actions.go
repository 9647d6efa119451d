package handlers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	"github.com/pborman/uuid"

	"github.com/exodium/gptgate/internal/config"
	apperrors "github.com/exodium/gptgate/internal/errors"
	"github.com/exodium/gptgate/internal/observability"
)

// broadcastDelay throttles sequential broadcast sends to stay under the
// Telegram per-bot rate limit.
const broadcastDelay = 50 * time.Millisecond

// applyPendingAction consumes one armed action with the admin's follow-up
// input and returns the reply text. Invalid input reports an error and leaves
// the action disarmed either way.
func (h *Admin) applyPendingAction(ctx context.Context, adminID int64, action adminAction, input string) string {
	input = strings.TrimSpace(input)

	switch action {
	case actionBan:
		targetID, ok := parseUserID(input)
		if !ok {
			return "❌ Invalid ID"
		}
		if err := h.store.BanUser(ctx, targetID, "Banned by admin"); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return "❌ User not found"
			}
			return "❌ Failed to ban user"
		}
		return fmt.Sprintf("✅ User %d banned", targetID)

	case actionUnban:
		targetID, ok := parseUserID(input)
		if !ok {
			return "❌ Invalid ID"
		}
		if err := h.store.UnbanUser(ctx, targetID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return "❌ User not found"
			}
			return "❌ Failed to unban user"
		}
		return fmt.Sprintf("✅ User %d unbanned", targetID)

	case actionBroadcast:
		return h.runBroadcast(ctx, input)

	case actionSetModel:
		if input == "" {
			return "❌ Model name cannot be empty"
		}
		if err := h.s.GetConfig().Update(ctx, func(s *config.Settings) { s.AIModel = input }); err != nil {
			return "❌ Failed to save settings"
		}
		return "✅ Model set to: " + input

	case actionSetReferrals:
		count, err := strconv.Atoi(input)
		if err != nil || count < 0 {
			return "❌ Invalid number"
		}
		if err := h.s.GetConfig().Update(ctx, func(s *config.Settings) { s.APIReferralsRequired = count }); err != nil {
			return "❌ Failed to save settings"
		}
		return fmt.Sprintf("✅ Referrals set to: %d", count)

	case actionSetHours:
		hours, err := strconv.Atoi(input)
		if err != nil || hours <= 0 {
			return "❌ Invalid number"
		}
		if err := h.s.GetConfig().Update(ctx, func(s *config.Settings) { s.AccessHours = hours }); err != nil {
			return "❌ Failed to save settings"
		}
		return fmt.Sprintf("✅ Hours set to: %d", hours)

	case actionAddAdmin:
		targetID, ok := parseUserID(input)
		if !ok {
			return "❌ Invalid ID"
		}
		if h.s.GetConfig().IsAdmin(targetID) {
			return "❌ Already an admin"
		}
		if err := h.s.GetConfig().Update(ctx, func(s *config.Settings) {
			s.AdminIDs = append(s.AdminIDs, targetID)
		}); err != nil {
			return "❌ Failed to save settings"
		}
		return fmt.Sprintf("✅ Admin %d added", targetID)

	case actionRemoveAdmin:
		targetID, ok := parseUserID(input)
		if !ok {
			return "❌ Invalid ID"
		}
		if targetID == adminID {
			return "❌ Cannot remove yourself"
		}
		if !h.s.GetConfig().IsAdmin(targetID) {
			return "❌ Not an admin"
		}
		if err := h.s.GetConfig().Update(ctx, func(s *config.Settings) {
			s.AdminIDs = slices.DeleteFunc(s.AdminIDs, func(id int64) bool { return id == targetID })
		}); err != nil {
			return "❌ Failed to save settings"
		}
		return fmt.Sprintf("✅ Admin %d removed", targetID)

	case actionIssueToken:
		targetID, ok := parseUserID(input)
		if !ok {
			return "❌ Invalid ID"
		}
		target, err := h.store.GetUser(ctx, targetID)
		if err != nil || target == nil {
			return "❌ User not found"
		}
		token := uuid.NewRandom().String()
		if err := h.store.SetAPIToken(ctx, targetID, token); err != nil {
			return "❌ Failed to issue token"
		}
		h.reply(targetID, fmt.Sprintf("✅ Your API Token: <code>%s</code>", token), nil)
		return fmt.Sprintf("✅ API token issued to %d", targetID)
	}
	return "❌ Unknown action"
}

func (h *Admin) runBroadcast(ctx context.Context, text string) string {
	users, err := h.store.GetAllUsers(ctx)
	if err != nil {
		h.getLogEntry().WithField("error", err.Error()).Error("cant load users for broadcast")
		return "❌ Failed to load users"
	}

	sent := 0
	for _, user := range users {
		msg := api.NewMessage(user.ID, "📢 <b>Announcement</b>\n\n"+text)
		msg.ParseMode = api.ModeHTML
		if err := tool.Err(h.s.GetBot().Send(msg)); err != nil {
			observability.RecordBroadcast("failed")
			continue
		}
		observability.RecordBroadcast("sent")
		sent++
		time.Sleep(broadcastDelay)
	}
	return fmt.Sprintf("✅ Broadcast sent to %d users", sent)
}

func (h *Admin) showStatistics(ctx context.Context, adminID int64) {
	stats, err := h.store.GetStatistics(ctx, len(h.s.GetConfig().Get().MustJoinChannels))
	if err != nil {
		h.reply(adminID, "❌ Failed to load statistics", nil)
		return
	}
	h.reply(adminID, fmt.Sprintf("📊 <b>BOT STATISTICS</b>\n"+
		"├─ Total Users: %d\n"+
		"├─ Active Access: %d\n"+
		"├─ Needs Referral: %d\n"+
		"├─ Banned: %d\n"+
		"├─ Referrals: %d\n"+
		"├─ Messages: %d\n"+
		"├─ API Users: %d\n"+
		"└─ New Today: %d",
		stats.TotalUsers, stats.ActiveUsers, stats.NeedsReferral, stats.BannedUsers,
		stats.TotalReferrals, stats.TotalMessages, stats.APIUsers, stats.NewToday), nil)
}

func (h *Admin) showAllUsers(ctx context.Context, adminID int64) {
	users, err := h.store.GetAllUsers(ctx)
	if err != nil {
		h.reply(adminID, "❌ Failed to load users", nil)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👥 <b>USERS</b> (%d total, latest 10)\n\n", len(users))
	for i, user := range users {
		if i >= 10 {
			break
		}
		flag := ""
		if user.IsBanned {
			flag = " 🚫"
		}
		fmt.Fprintf(&b, "• %s (<code>%d</code>) refs:%d%s\n", user.FullName(), user.ID, user.ReferralCount, flag)
	}
	h.reply(adminID, b.String(), nil)
}

func (h *Admin) showChannels(adminID int64) {
	channels := h.s.GetConfig().Get().MustJoinChannels
	var b strings.Builder
	b.WriteString("📢 <b>REQUIRED CHANNELS</b>\n\n")
	for _, channel := range channels {
		fmt.Fprintf(&b, "• %s\n  %s\n", channel.Name, channel.URL)
	}
	if len(channels) == 0 {
		b.WriteString("No channels configured")
	}
	h.reply(adminID, b.String(), nil)
}

func (h *Admin) showAdmins(adminID int64) {
	var b strings.Builder
	b.WriteString("👑 <b>ADMINS</b>\n\n")
	for _, id := range h.s.GetConfig().Get().AdminIDs {
		fmt.Fprintf(&b, "• <code>%d</code>\n", id)
	}
	h.reply(adminID, b.String(), nil)
}

// showAPIUsers lists everyone who cleared the referral threshold, with their
// token state, before arming the issue action.
func (h *Admin) showAPIUsers(ctx context.Context, adminID int64) {
	users, err := h.store.GetAllUsers(ctx)
	if err != nil {
		h.reply(adminID, "❌ Failed to load users", nil)
		return
	}
	required := h.s.GetConfig().Get().APIReferralsRequired
	var b strings.Builder
	b.WriteString("🔧 <b>API USERS</b>\n\n")
	found := 0
	for _, user := range users {
		if user.ReferralCount < required {
			continue
		}
		state := "⏳ pending"
		if user.APIToken.Valid && user.APIToken.String != "" {
			state = "✅ issued"
		}
		fmt.Fprintf(&b, "• %s (<code>%d</code>) refs:%d %s\n", user.FullName(), user.ID, user.ReferralCount, state)
		found++
	}
	if found == 0 {
		fmt.Fprintf(&b, "No users with %d+ referrals yet", required)
	}
	h.reply(adminID, b.String(), nil)
}

func parseUserID(input string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
