package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/exodium/gptgate/internal/adapters"
	"github.com/exodium/gptgate/internal/adapters/llm/gemini"
	"github.com/exodium/gptgate/internal/adapters/llm/openai"
	"github.com/exodium/gptgate/internal/bot"
	"github.com/exodium/gptgate/internal/config"
	"github.com/exodium/gptgate/internal/db/sqlite"
	"github.com/exodium/gptgate/internal/handlers"
	"github.com/exodium/gptgate/internal/infra"
	"github.com/exodium/gptgate/internal/lifecycle"
	"github.com/exodium/gptgate/internal/observability"
	"github.com/exodium/gptgate/internal/relay"
	"github.com/exodium/gptgate/internal/sweep"
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.GgFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	recoverable(func() {
		run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg config.Config) {
	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithField("error", err.Error()).Errorln("cant initialize bot api")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	defer botAPI.StopReceivingUpdates()

	workDir := infra.GetWorkDir()
	client, err := sqlite.NewSQLiteClient(ctx, workDir, cfg.DBName)
	if err != nil {
		log.WithField("error", err.Error()).Fatalln("cant open database")
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.WithField("error", err.Error()).Errorln("cant close database")
		}
	}()

	store, err := config.NewStore(ctx, client, cfg.AdminID)
	if err != nil {
		log.WithField("error", err.Error()).Fatalln("cant load settings")
	}
	if err := store.Update(ctx, func(s *config.Settings) {
		s.BotUsername = botAPI.Self.UserName
	}); err != nil {
		log.WithField("error", err.Error()).Errorln("cant persist bot username")
	}

	if err := observability.Init(ctx, cfg.MetricsAddr); err != nil {
		log.WithField("error", err.Error()).Errorln("cant start metrics endpoint")
	}

	var llmAPI adapters.LLM
	switch cfg.LLM.Type {
	case "gemini":
		llmAPI = gemini.NewGemini(cfg.LLM.APIKey, gemini.DefaultModel, log.WithField("context", "gemini"))
	default:
		llmAPI = openai.NewOpenAI(cfg.LLM.APIKey, openai.DefaultModel, cfg.LLM.BaseURL, log.WithField("context", "openai"))
	}
	chatRelay := relay.New(llmAPI, relay.LoadSystemPrompt(workDir), relay.DefaultTimeout)

	service := bot.NewService(botAPI, client, store)

	bot.RegisterUpdateHandler("admin", handlers.NewAdmin(service))
	bot.RegisterUpdateHandler("user", handlers.NewUser(service))
	bot.RegisterUpdateHandler("chat", handlers.NewChat(service, chatRelay))

	runtime := lifecycle.NewRuntime(sweep.NewSweeper(botAPI, client))
	if err := runtime.Start(ctx); err != nil {
		log.WithField("error", err.Error()).Fatalln("cant start components")
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithField("error", err.Error()).Errorln("cant stop components")
		}
	}()

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateProcessor := bot.NewUpdateProcessor(service)

	updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

	log.WithField("username", botAPI.Self.UserName).Infoln("bot started")
	for {
		select {
		case err := <-errorChan:
			log.WithField("error", err.Error()).Errorln("updates channel closed")
			return
		case update := <-updateChan:
			if err := updateProcessor.Process(ctx, &update); err != nil {
				log.WithField("error", err.Error()).Errorln("cant process update")
			}
		case <-ctx.Done():
			log.Infoln("no more updates")
			return
		}
	}
}

func recoverable(f func()) {
	defer func() {
		if err := recover(); err != nil {
			log.Errorf("panic with message: %s", err)
			time.Sleep(5 * time.Second)
			go recoverable(f)
		}
	}()
	log.Debug("going recoverable")
	f()
}
