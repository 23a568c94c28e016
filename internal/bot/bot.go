package bot

import (
	"context"
	"time"

	"prokat/internal/config"
	"prokat/internal/domain"
	"prokat/internal/menu"
	"prokat/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Dialog is the menu as seen by a chat front-end.
type Dialog interface {
	Handle(ctx context.Context, sessionID int64, input string) (menu.Reply, error)
	Reset(ctx context.Context, sessionID int64) error
	Forget(ctx context.Context, sessionID int64) error
}

// RateLimiter caps how many messages one chat may send per window.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

// Bot serves the rental menu over Telegram. Every chat is its own menu
// session.
type Bot struct {
	tgService *service.TelegramService
	sender    domain.TelegramSender
	dialog    Dialog
	limiter   RateLimiter
	config    config.MenuConfig
	metrics   *Metrics
	logger    *zerolog.Logger
}

func NewBot(
	sender domain.TelegramSender,
	dialog Dialog,
	limiter RateLimiter,
	cfg config.MenuConfig,
	metrics *Metrics,
	logger *zerolog.Logger,
) *Bot {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Bot{
		tgService: service.NewTelegramService(sender),
		sender:    sender,
		dialog:    dialog,
		limiter:   limiter,
		config:    cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// Stop stops receiving Telegram updates (best-effort).
func (b *Bot) Stop() {
	if b == nil || b.sender == nil {
		return
	}
	b.sender.StopReceivingUpdates()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	if update.Message == nil || update.Message.Chat == nil {
		return
	}

	// Создаем контекст для обработки каждого обновления
	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		chatID := update.Message.Chat.ID
		if !b.allowed(updateCtx, chatID) {
			b.send(chatID, "You are sending messages too fast. Please wait a moment.")
			return
		}
		b.handleMessage(updateCtx, update.Message)
	})
}
