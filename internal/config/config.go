package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string   `env:"TOKEN"`
		AdminID          int64    `env:"ADMIN_ID"`
		EnabledHandlers  []string `env:"HANDLERS,default=admin,user,chat"`
		LogLevel         int      `env:"LOG_LEVEL,default=4"`
		DBName           string   `env:"DB_NAME,default=gptgate.db"`
		MetricsAddr      string   `env:"METRICS_ADDR,default=:2112"`
		LLM              LLM
	}

	LLM struct {
		APIKey  string `env:"LLM_API_KEY"`
		BaseURL string `env:"LLM_API_URL,default=https://openrouter.ai/api/v1"`
		Type    string `env:"LLM_API_TYPE,default=openai"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("GG_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		if cfg.TelegramAPIToken == "" {
			log.Warn("GG_TOKEN is not set")
		}
		if cfg.LLM.APIKey == "" {
			log.Warn("GG_LLM_API_KEY is not set")
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
