package config

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"
)

const settingsKey = "bot_config"

type (
	Channel struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}

	// Settings is the persisted runtime configuration document. Admin actions
	// mutate it through Store.Update, which persists and swaps atomically.
	Settings struct {
		MustJoinChannels     []Channel `json:"must_join_channels"`
		AdminIDs             []int64   `json:"admin_ids"`
		UsersChannel         string    `json:"users_channel"`
		APIReferralsRequired int       `json:"api_referrals_required"`
		BotReferralsRequired int       `json:"bot_referrals_required"`
		AccessHours          int       `json:"access_hours"`
		BotUsername          string    `json:"bot_username"`
		AIModel              string    `json:"ai_model"`
	}

	KV interface {
		GetKV(ctx context.Context, key string) (string, error)
		SetKV(ctx context.Context, key string, value string) error
	}

	Store struct {
		mu      sync.RWMutex
		kv      KV
		current Settings
	}
)

func DefaultSettings() Settings {
	return Settings{
		MustJoinChannels:     []Channel{},
		AdminIDs:             []int64{},
		APIReferralsRequired: 20,
		BotReferralsRequired: 200,
		AccessHours:          24,
		AIModel:              "google/gemini-3-flash-preview",
	}
}

// NewStore loads the settings document from the KV table, seeding defaults on
// first start. A non-zero bootstrapAdmin is ensured into the admin set so a
// fresh deployment has at least one console operator.
func NewStore(ctx context.Context, kv KV, bootstrapAdmin int64) (*Store, error) {
	s := &Store{kv: kv, current: DefaultSettings()}

	raw, err := kv.GetKV(ctx, settingsKey)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if raw == "" {
		if err := s.persist(ctx, s.current); err != nil {
			return nil, err
		}
		log.Info("seeded default settings")
	} else if err := json.Unmarshal([]byte(raw), &s.current); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if bootstrapAdmin != 0 && !slices.Contains(s.current.AdminIDs, bootstrapAdmin) {
		if err := s.Update(ctx, func(settings *Settings) {
			settings.AdminIDs = append(settings.AdminIDs, bootstrapAdmin)
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSettings(s.current)
}

// Update applies mutate to a copy, persists it, and swaps it in. The old
// document stays current if persisting fails.
func (s *Store) Update(ctx context.Context, mutate func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneSettings(s.current)
	mutate(&next)
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.current = next
	return nil
}

func (s *Store) IsAdmin(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.current.AdminIDs, userID)
}

func (s *Store) RequiredChannels() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.current.MustJoinChannels)
}

func (s *Store) persist(ctx context.Context, settings Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.kv.SetKV(ctx, settingsKey, string(data)); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	return nil
}

func cloneSettings(settings Settings) Settings {
	settings.MustJoinChannels = slices.Clone(settings.MustJoinChannels)
	settings.AdminIDs = slices.Clone(settings.AdminIDs)
	return settings
}
