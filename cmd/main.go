package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"ventishh/backend/internal/api/handler"
	"ventishh/backend/internal/config"
	"ventishh/backend/internal/localization"
	"ventishh/backend/internal/logger"
	"ventishh/backend/internal/matchhub"
	"ventishh/backend/internal/storage"
	"ventishh/backend/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

// setupRedis підключає Redis, якщо він налаштований. nil means single-instance mode.
func setupRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	// Перевірка з'єднання Redis
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, err
	}
	slog.Info("redis connection established", slog.String("addr", cfg.Redis.Addr))
	return rdb, nil
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", slog.String("error", err.Error()))
	}
	cfg := config.Load()
	logger.Init(cfg.Server.LogLevel, cfg.Server.LogFormat)
	slog.Info("starting ventishh backend", slog.String("port", cfg.Server.Port), slog.String("db_driver", cfg.Database.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	store, err := storage.Open(cfg)
	if err != nil {
		fatal("failed to open storage", err)
	}
	rdb, err := setupRedis(ctx, cfg)
	if err != nil {
		fatal("failed to connect redis", err)
	}
	localizer, err := localization.NewLocalizer()
	if err != nil {
		fatal("failed to load translations", err)
	}

	// 2. Push-хаб та Matcher
	hub := matchhub.NewManagerService()
	go hub.Run(ctx)

	var notifier matchhub.Notifier = hub
	if rdb != nil {
		defer rdb.Close()
		bus := storage.NewMatchBus(rdb, config.MatchEventsChannel)
		hub.StartPubSubListener(ctx, bus)
		notifier = bus
	}
	matcher := matchhub.NewMatcherService(store, notifier)

	// 3. Фонові задачі
	sweeper := matchhub.NewPresenceSweeper(store, cfg.Presence.StaleAfter)
	if err := sweeper.Start(cfg.Presence.SweepSchedule); err != nil {
		fatal("invalid presence sweep schedule", err)
	}
	defer sweeper.Stop()

	if cfg.Telegram.BotToken != "" {
		bot, err := telegram.NewBotService(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID, matcher, localizer)
		if err != nil {
			fatal("failed to start telegram bot", err)
		}
		go bot.Run(ctx)
	} else {
		slog.Info("TELEGRAM_BOT_TOKEN not set, ops bot disabled")
	}

	// 4. Налаштування Gin та роутингу
	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(matcher, hub, localizer)
	h.PollInterval = cfg.Server.PollInterval
	h.AllowedOrigins = cfg.Server.AllowedOrigins

	server := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        handler.NewRouter(h),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("http server failed", err)
		}
	}()
	slog.Info("http server listening", slog.String("addr", server.Addr))

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
	<-hub.Done()
}
