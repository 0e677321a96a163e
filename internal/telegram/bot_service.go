// Package telegram runs the operator bot. It answers only the configured
// admin chat and exposes queue statistics and a manual connection end.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ventishh/backend/internal/localization"
	"ventishh/backend/internal/logger"
	"ventishh/backend/internal/matchhub"
)

// Sender is the part of tgbotapi.BotAPI the bot replies through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotService receives Telegram updates and turns admin commands into matcher calls.
type BotService struct {
	BotAPI      *tgbotapi.BotAPI
	Sender      Sender
	Matcher     *matchhub.MatcherService
	Localizer   *localization.Localizer
	AdminChatID int64
}

// NewBotService creates a new BotService instance.
func NewBotService(token string, adminChatID int64, matcher *matchhub.MatcherService, localizer *localization.Localizer) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	bot.Debug = false
	slog.Info("telegram bot authorized", slog.String("account", bot.Self.UserName))

	return &BotService{
		BotAPI:      bot,
		Sender:      bot,
		Matcher:     matcher,
		Localizer:   localizer,
		AdminChatID: adminChatID,
	}, nil
}

// Run polls Telegram until ctx is cancelled.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one update. Anything but a command from the admin chat is ignored.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if msg.Chat == nil || msg.Chat.ID != s.AdminChatID {
		slog.WarnContext(ctx, "telegram command from foreign chat ignored", slog.Int64("chat_id", chatID(msg)))
		return
	}

	lang := localization.DefaultLanguage
	if msg.From != nil {
		lang = s.Localizer.Negotiate(msg.From.LanguageCode)
	}

	switch msg.Command() {
	case "stats":
		s.handleStats(ctx, msg.Chat.ID, lang)
	case "end":
		s.handleEnd(ctx, msg.Chat.ID, lang, msg.CommandArguments())
	default:
		s.reply(msg.Chat.ID, s.Localizer.GetString(lang, "bot.unknown_command"))
	}
}

func (s *BotService) handleStats(ctx context.Context, chat int64, lang string) {
	stats, err := s.Matcher.Stats(ctx)
	if err != nil {
		logger.LogError(ctx, "bot stats failed", err)
		s.reply(chat, s.Localizer.GetString(lang, "bot.failed"))
		return
	}
	s.reply(chat, fmt.Sprintf(s.Localizer.GetString(lang, "bot.stats"),
		stats.Listeners, stats.Venters, stats.ActiveConnections))
}

func (s *BotService) handleEnd(ctx context.Context, chat int64, lang, args string) {
	connectionID := strings.TrimSpace(args)
	if connectionID == "" {
		s.reply(chat, s.Localizer.GetString(lang, "bot.end_usage"))
		return
	}
	if err := s.Matcher.End(ctx, connectionID); err != nil {
		logger.LogError(ctx, "bot end failed", err, slog.String("connection_id", connectionID))
		s.reply(chat, s.Localizer.GetString(lang, "bot.failed"))
		return
	}
	slog.InfoContext(ctx, "connection ended by operator", slog.String("connection_id", connectionID))
	s.reply(chat, fmt.Sprintf(s.Localizer.GetString(lang, "bot.end_done"), connectionID))
}

func (s *BotService) reply(chat int64, text string) {
	if _, err := s.Sender.Send(tgbotapi.NewMessage(chat, text)); err != nil {
		slog.Error("telegram send failed", slog.Int64("chat_id", chat), slog.String("error", err.Error()))
	}
}

func chatID(msg *tgbotapi.Message) int64 {
	if msg.Chat == nil {
		return 0
	}
	return msg.Chat.ID
}
