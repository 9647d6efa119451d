package config

import (
	"context"
	"errors"
	"testing"
)

type memKV struct {
	data   map[string]string
	setErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}}
}

func (m *memKV) GetKV(_ context.Context, key string) (string, error) {
	return m.data[key], nil
}

func (m *memKV) SetKV(_ context.Context, key string, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func TestNewStoreSeedsDefaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := newMemKV()
	store, err := NewStore(ctx, kv, 0)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	settings := store.Get()
	if settings.APIReferralsRequired != 20 || settings.AccessHours != 24 {
		t.Fatalf("unexpected defaults: %+v", settings)
	}
	if kv.data[settingsKey] == "" {
		t.Fatal("defaults were not persisted")
	}
}

func TestNewStoreBootstrapsAdmin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewStore(ctx, newMemKV(), 777)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if !store.IsAdmin(777) {
		t.Fatal("bootstrap admin missing")
	}
	if store.IsAdmin(778) {
		t.Fatal("unexpected admin")
	}
}

func TestUpdatePersistsAndSurvivesReload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := newMemKV()
	store, err := NewStore(ctx, kv, 777)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := store.Update(ctx, func(s *Settings) {
		s.AccessHours = 48
		s.AIModel = "another-model"
		s.MustJoinChannels = append(s.MustJoinChannels, Channel{Name: "Main", URL: "https://t.me/main"})
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	reloaded, err := NewStore(ctx, kv, 0)
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	settings := reloaded.Get()
	if settings.AccessHours != 48 {
		t.Fatalf("AccessHours = %d after reload", settings.AccessHours)
	}
	if settings.AIModel != "another-model" {
		t.Fatalf("AIModel = %q after reload", settings.AIModel)
	}
	if reloaded.RequiredChannels() != 1 {
		t.Fatalf("RequiredChannels = %d", reloaded.RequiredChannels())
	}
	if !reloaded.IsAdmin(777) {
		t.Fatal("admin lost on reload")
	}
}

func TestUpdateKeepsOldSettingsOnPersistFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := newMemKV()
	store, err := NewStore(ctx, kv, 0)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	kv.setErr = errors.New("disk full")
	if err := store.Update(ctx, func(s *Settings) { s.AccessHours = 1 }); err == nil {
		t.Fatal("expected persist error")
	}
	if got := store.Get().AccessHours; got != 24 {
		t.Fatalf("AccessHours = %d, want unchanged 24", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewStore(ctx, newMemKV(), 777)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	settings := store.Get()
	settings.AdminIDs[0] = 1
	if !store.IsAdmin(777) {
		t.Fatal("mutation of returned copy leaked into store")
	}
}
