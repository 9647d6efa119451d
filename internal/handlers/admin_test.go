package handlers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/exodium/gptgate/internal/bot"
	"github.com/exodium/gptgate/internal/config"
	"github.com/exodium/gptgate/internal/db"
	apperrors "github.com/exodium/gptgate/internal/errors"
)

// fakeClient is an in-memory db.Client for handler tests.
type fakeClient struct {
	users map[int64]*db.User
}

func newFakeClient() *fakeClient {
	return &fakeClient{users: map[int64]*db.User{}}
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) CreateUserIfAbsent(_ context.Context, user *db.User) (bool, error) {
	if _, ok := f.users[user.ID]; ok {
		return false, nil
	}
	clone := *user
	f.users[user.ID] = &clone
	return true, nil
}

func (f *fakeClient) GetUser(_ context.Context, userID int64) (*db.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

func (f *fakeClient) GetUserByReferralCode(_ context.Context, code string) (*db.User, error) {
	for _, user := range f.users {
		if user.ReferralCode == code {
			clone := *user
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeClient) GetAllUsers(_ context.Context) ([]*db.User, error) {
	users := make([]*db.User, 0, len(f.users))
	for _, user := range f.users {
		clone := *user
		users = append(users, &clone)
	}
	return users, nil
}

func (f *fakeClient) GetUsersWithExpiry(_ context.Context) ([]*db.User, error) {
	return f.GetAllUsers(context.Background())
}

func (f *fakeClient) TouchLastActive(_ context.Context, _ int64) error { return nil }

func (f *fakeClient) SetJoinedChannels(_ context.Context, userID int64, count int) error {
	if user, ok := f.users[userID]; ok {
		user.JoinedChannels = count
	}
	return nil
}

func (f *fakeClient) BanUser(_ context.Context, userID int64, reason string) error {
	user, ok := f.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	user.IsBanned = true
	user.BanReason = sql.NullString{String: reason, Valid: true}
	return nil
}

func (f *fakeClient) UnbanUser(_ context.Context, userID int64) error {
	user, ok := f.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	user.IsBanned = false
	user.BanReason = sql.NullString{}
	return nil
}

func (f *fakeClient) SetAPIToken(_ context.Context, userID int64, token string) error {
	if user, ok := f.users[userID]; ok {
		user.APIToken = sql.NullString{String: token, Valid: true}
	}
	return nil
}

func (f *fakeClient) RecordReferral(_ context.Context, referrerID int64, referredID int64, _ time.Duration) (bool, error) {
	referrer, ok := f.users[referrerID]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	if referred, ok := f.users[referredID]; ok && referred.ReferredBy.Valid {
		return false, nil
	}
	referrer.ReferralCount++
	if referred, ok := f.users[referredID]; ok {
		referred.ReferredBy = sql.NullInt64{Int64: referrerID, Valid: true}
	}
	return true, nil
}

func (f *fakeClient) AddMessage(_ context.Context, _ int64, _ string, _ string) error { return nil }

func (f *fakeClient) GetChatHistory(_ context.Context, _ int64, _ int) ([]*db.Message, error) {
	return nil, nil
}

func (f *fakeClient) GetStatistics(_ context.Context, _ int) (*db.Statistics, error) {
	return &db.Statistics{TotalUsers: len(f.users)}, nil
}

func (f *fakeClient) GetKV(_ context.Context, _ string) (string, error) { return "", nil }
func (f *fakeClient) SetKV(_ context.Context, _ string, _ string) error { return nil }

func newTestAdmin(t *testing.T, client db.Client) (*Admin, *config.Store) {
	t.Helper()
	store, err := config.NewStore(context.Background(), client, 777)
	if err != nil {
		t.Fatalf("new settings store: %v", err)
	}
	return NewAdmin(bot.NewService(nil, client, store)), store
}

func TestApplyPendingActionBan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeClient()
	client.users[100] = &db.User{ID: 100}
	admin, _ := newTestAdmin(t, client)

	if got := admin.applyPendingAction(ctx, 777, actionBan, "100"); got != "✅ User 100 banned" {
		t.Fatalf("reply = %q", got)
	}
	if !client.users[100].IsBanned {
		t.Fatal("user not banned")
	}

	if got := admin.applyPendingAction(ctx, 777, actionUnban, "100"); got != "✅ User 100 unbanned" {
		t.Fatalf("reply = %q", got)
	}
	if client.users[100].IsBanned {
		t.Fatal("user still banned")
	}
}

func TestApplyPendingActionBanUnknownUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	admin, _ := newTestAdmin(t, newFakeClient())

	if got := admin.applyPendingAction(ctx, 777, actionBan, "9999"); got != "❌ User not found" {
		t.Fatalf("reply = %q", got)
	}
	if got := admin.applyPendingAction(ctx, 777, actionUnban, "9999"); got != "❌ User not found" {
		t.Fatalf("reply = %q", got)
	}
}

func TestApplyPendingActionRejectsBadIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	admin, _ := newTestAdmin(t, newFakeClient())

	for _, input := range []string{"abc", "", "-5", "12.3"} {
		if got := admin.applyPendingAction(ctx, 777, actionBan, input); got != "❌ Invalid ID" {
			t.Fatalf("reply for %q = %q", input, got)
		}
	}
}

func TestApplyPendingActionSettings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	admin, store := newTestAdmin(t, newFakeClient())

	if got := admin.applyPendingAction(ctx, 777, actionSetHours, "48"); got != "✅ Hours set to: 48" {
		t.Fatalf("reply = %q", got)
	}
	if hours := store.Get().AccessHours; hours != 48 {
		t.Fatalf("AccessHours = %d", hours)
	}

	if got := admin.applyPendingAction(ctx, 777, actionSetHours, "not a number"); got != "❌ Invalid number" {
		t.Fatalf("reply = %q", got)
	}
	if hours := store.Get().AccessHours; hours != 48 {
		t.Fatalf("AccessHours changed by invalid input: %d", hours)
	}

	if got := admin.applyPendingAction(ctx, 777, actionSetReferrals, "5"); got != "✅ Referrals set to: 5" {
		t.Fatalf("reply = %q", got)
	}
	if got := admin.applyPendingAction(ctx, 777, actionSetModel, "  some/model  "); got != "✅ Model set to: some/model" {
		t.Fatalf("reply = %q", got)
	}
	if model := store.Get().AIModel; model != "some/model" {
		t.Fatalf("AIModel = %q", model)
	}
}

func TestApplyPendingActionAdminSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	admin, store := newTestAdmin(t, newFakeClient())

	if got := admin.applyPendingAction(ctx, 777, actionAddAdmin, "888"); got != "✅ Admin 888 added" {
		t.Fatalf("reply = %q", got)
	}
	if !store.IsAdmin(888) {
		t.Fatal("admin not added")
	}
	if got := admin.applyPendingAction(ctx, 777, actionAddAdmin, "888"); got != "❌ Already an admin" {
		t.Fatalf("reply = %q", got)
	}

	if got := admin.applyPendingAction(ctx, 777, actionRemoveAdmin, "777"); got != "❌ Cannot remove yourself" {
		t.Fatalf("reply = %q", got)
	}
	if got := admin.applyPendingAction(ctx, 777, actionRemoveAdmin, "888"); got != "✅ Admin 888 removed" {
		t.Fatalf("reply = %q", got)
	}
	if store.IsAdmin(888) {
		t.Fatal("admin not removed")
	}
	if got := admin.applyPendingAction(ctx, 777, actionRemoveAdmin, "888"); got != "❌ Not an admin" {
		t.Fatalf("reply = %q", got)
	}
}

func TestPendingActionConsumedOnce(t *testing.T) {
	t.Parallel()

	admin, _ := newTestAdmin(t, newFakeClient())

	admin.mu.Lock()
	admin.pending[777] = actionBan
	admin.mu.Unlock()

	action, ok := admin.takePending(777)
	if !ok || action != actionBan {
		t.Fatalf("takePending = %v, %v", action, ok)
	}
	if _, ok := admin.takePending(777); ok {
		t.Fatal("pending action consumed twice")
	}
}

func TestMenuButtonRecognition(t *testing.T) {
	t.Parallel()

	admin, _ := newTestAdmin(t, newFakeClient())

	for _, button := range []string{btnStatistics, btnBan, btnClose, btnChangeModel, btnBackToAdmin} {
		if !admin.isMenuButton(button) {
			t.Fatalf("%q not recognized as menu button", button)
		}
	}
	for _, text := range []string{"hello", "100", "", "📝 broadcast"} {
		if admin.isMenuButton(text) {
			t.Fatalf("%q wrongly recognized as menu button", text)
		}
	}
}
