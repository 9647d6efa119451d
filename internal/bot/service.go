package bot

import (
	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/exodium/gptgate/internal/config"
	"github.com/exodium/gptgate/internal/db"
)

type ServiceBot interface {
	GetBot() *api.BotAPI
}

type ServiceDB interface {
	GetDB() db.Client
}

type ServiceConfig interface {
	GetConfig() *config.Store
}

type Service interface {
	ServiceBot
	ServiceDB
	ServiceConfig
}

type service struct {
	bot *api.BotAPI
	db  db.Client
	cfg *config.Store
}

func NewService(bot *api.BotAPI, db db.Client, cfg *config.Store) *service {
	return &service{
		bot: bot,
		db:  db,
		cfg: cfg,
	}
}

func (s *service) GetBot() *api.BotAPI {
	return s.bot
}

func (s *service) GetDB() db.Client {
	return s.db
}

func (s *service) GetConfig() *config.Store {
	return s.cfg
}
