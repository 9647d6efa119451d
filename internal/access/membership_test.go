package access

import (
	"errors"
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/exodium/gptgate/internal/config"
)

func TestCheckTarget(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		url  string
		want string
	}{
		{"https://t.me/mychannel", "@mychannel"},
		{"http://t.me/MyChannel", "@mychannel"},
		{"t.me/mychannel/123", "@mychannel"},
		{"https://t.me/mychannel?start=x", "@mychannel"},
		{"https://t.me/+AbCdEf123", ""},
		{"https://youtube.com/@somecreator", ""},
		{"https://youtu.be/dQw4w9WgXcQ", ""},
		{"https://example.com/whatever", ""},
		{"https://t.me/", ""},
	} {
		tc := tc
		t.Run(tc.url, func(t *testing.T) {
			t.Parallel()
			if got := CheckTarget(tc.url); got != tc.want {
				t.Fatalf("CheckTarget(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}

type fakeMemberGetter struct {
	statuses map[string]string
	errs     map[string]error
	queried  []string
}

func (f *fakeMemberGetter) GetChatMember(cfg api.GetChatMemberConfig) (api.ChatMember, error) {
	target := cfg.SuperGroupUsername
	f.queried = append(f.queried, target)
	if err, ok := f.errs[target]; ok {
		return api.ChatMember{}, err
	}
	return api.ChatMember{Status: f.statuses[target]}, nil
}

func TestIsMemberOfAll(t *testing.T) {
	t.Parallel()

	channels := []config.Channel{
		{Name: "Main", URL: "https://t.me/main"},
		{Name: "News", URL: "https://t.me/news"},
		{Name: "Videos", URL: "https://youtube.com/@videos"},
	}

	t.Run("member everywhere", func(t *testing.T) {
		t.Parallel()
		getter := &fakeMemberGetter{statuses: map[string]string{"@main": "member", "@news": "administrator"}}
		if !NewMembershipChecker(getter).IsMemberOfAll(1, channels) {
			t.Fatal("expected membership to pass")
		}
		if len(getter.queried) != 2 {
			t.Fatalf("expected uncheckable channel to be skipped, queried %v", getter.queried)
		}
	})

	t.Run("left one channel", func(t *testing.T) {
		t.Parallel()
		getter := &fakeMemberGetter{statuses: map[string]string{"@main": "member", "@news": "left"}}
		if NewMembershipChecker(getter).IsMemberOfAll(1, channels) {
			t.Fatal("expected left status to fail")
		}
	})

	t.Run("kicked", func(t *testing.T) {
		t.Parallel()
		getter := &fakeMemberGetter{statuses: map[string]string{"@main": "kicked", "@news": "member"}}
		if NewMembershipChecker(getter).IsMemberOfAll(1, channels) {
			t.Fatal("expected kicked status to fail")
		}
	})

	t.Run("query error passes", func(t *testing.T) {
		t.Parallel()
		getter := &fakeMemberGetter{
			statuses: map[string]string{"@news": "member"},
			errs:     map[string]error{"@main": errors.New("bot is not an admin")},
		}
		if !NewMembershipChecker(getter).IsMemberOfAll(1, channels) {
			t.Fatal("expected query error to be non-fatal")
		}
	})
}
