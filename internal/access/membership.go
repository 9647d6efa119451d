package access

import (
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/exodium/gptgate/internal/config"
)

// ChatMemberGetter is the slice of the bot API the checker needs.
type ChatMemberGetter interface {
	GetChatMember(config api.GetChatMemberConfig) (api.ChatMember, error)
}

type MembershipChecker struct {
	api    ChatMemberGetter
	logger *log.Entry
}

func NewMembershipChecker(getter ChatMemberGetter) *MembershipChecker {
	return &MembershipChecker{
		api:    getter,
		logger: log.WithField("context", "membership"),
	}
}

// CheckTarget extracts the checkable @username for a required-channel URL.
// Video-platform links and private invite links have no identifier the
// membership API can answer for, so they return "" and are skipped.
func CheckTarget(url string) string {
	lower := strings.ToLower(strings.TrimSpace(url))
	if strings.Contains(lower, "youtube.com") || strings.Contains(lower, "youtu.be") {
		return ""
	}
	idx := strings.Index(lower, "t.me/")
	if idx == -1 {
		return ""
	}
	target := lower[idx+len("t.me/"):]
	if slash := strings.IndexAny(target, "/?"); slash != -1 {
		target = target[:slash]
	}
	if target == "" || strings.HasPrefix(target, "+") {
		return ""
	}
	if !strings.HasPrefix(target, "@") {
		target = "@" + target
	}
	return target
}

// IsMemberOfAll checks the user against every checkable required channel.
// Only an explicit left/kicked status fails; a query error passes, since the
// bot may simply not be an admin in that channel.
func (c *MembershipChecker) IsMemberOfAll(userID int64, channels []config.Channel) bool {
	for _, channel := range channels {
		target := CheckTarget(channel.URL)
		if target == "" {
			continue
		}
		member, err := c.api.GetChatMember(api.GetChatMemberConfig{
			ChatConfigWithUser: api.ChatConfigWithUser{
				ChatConfig: api.ChatConfig{
					SuperGroupUsername: target,
				},
				UserID: userID,
			},
		})
		if err != nil {
			c.logger.WithField("channel", channel.Name).WithField("error", err.Error()).Error("cant check channel membership")
			continue
		}
		if member.HasLeft() || member.WasKicked() {
			return false
		}
	}
	return true
}
