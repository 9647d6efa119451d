// Package sweep runs the periodic expiry notifier. Users whose access lapsed
// since the previous tick get a single best-effort reminder.
package sweep

import (
	"context"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/exodium/gptgate/internal/db"
	"github.com/exodium/gptgate/internal/infra"
	"github.com/exodium/gptgate/internal/observability"
)

const (
	// DefaultPeriod is how often the sweep runs.
	DefaultPeriod = 5 * time.Minute
	// DefaultWindow bounds how far back an expiry still counts as fresh.
	// Keeping it equal to the period means each lapse is reported once.
	DefaultWindow = 5 * time.Minute
)

const expiredNotice = "⏰ <b>ACCESS EXPIRED!</b>\nShare your referral link to reactivate. See /status"

type Sender interface {
	Send(c api.Chattable) (api.Message, error)
}

type Sweeper struct {
	bot    Sender
	store  db.Client
	period time.Duration
	window time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(bot Sender, store db.Client) *Sweeper {
	return &Sweeper{
		bot:    bot,
		store:  store,
		period: DefaultPeriod,
		window: DefaultWindow,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(runCtx)
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			infra.GoRecoverable(1, "expiry-sweep", func() { s.sweep(ctx) })
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	entry := s.getLogEntry().WithField("method", "sweep")
	users, err := s.store.GetUsersWithExpiry(ctx)
	if err != nil {
		entry.WithField("error", err.Error()).Error("cant load users with expiry")
		return
	}
	now := time.Now()
	for _, user := range users {
		if user.IsBanned || !user.AccessExpiry.Valid {
			continue
		}
		if !ShouldNotify(user.AccessExpiry.String, now, s.window) {
			continue
		}
		msg := api.NewMessage(user.ID, expiredNotice)
		msg.ParseMode = api.ModeHTML
		if err := tool.Err(s.bot.Send(msg)); err != nil {
			entry.WithField("user_id", user.ID).WithField("error", err.Error()).Warn("cant notify expired user")
			continue
		}
		observability.RecordExpiryNotification()
	}
}

// ShouldNotify reports whether expiry lies in the half-open interval
// (now-window, now]. Unparseable values never notify.
func ShouldNotify(expiry string, now time.Time, window time.Duration) bool {
	at, err := db.ParseTime(expiry)
	if err != nil {
		return false
	}
	if at.After(now) {
		return false
	}
	return now.Sub(at) < window
}

func (s *Sweeper) getLogEntry() *log.Entry {
	return log.WithField("context", "sweep")
}
