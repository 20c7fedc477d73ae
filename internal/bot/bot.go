package bot

import (
	"context"
	"os"
	"time"

	"peregovorka/internal/config"
	"peregovorka/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MessageLimiter decides whether a user may send another message right now.
type MessageLimiter interface {
	Allow(ctx context.Context, userID int64) bool
}

type Bot struct {
	tgService domain.TelegramService
	service   domain.ReservationService
	limiter   MessageLimiter
	config    *config.Config
	metrics   *Metrics
	logger    *zerolog.Logger
}

func NewBot(
	tgService domain.TelegramService,
	service domain.ReservationService,
	limiter MessageLimiter,
	config *config.Config,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	return &Bot{
		tgService: tgService,
		service:   service,
		limiter:   limiter,
		config:    config,
		metrics:   metrics,
		logger:    logger,
	}, nil
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
			b.tgService.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) requestTimeout() time.Duration {
	if b.config == nil || b.config.Bot.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.config.Bot.RequestTimeout) * time.Second
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	updateCtx, cancel := context.WithTimeout(ctx, b.requestTimeout())
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		msg := update.Message
		if msg == nil || msg.From == nil {
			return
		}

		if b.metrics != nil {
			b.metrics.MessagesProcessed.Inc()
		}

		if b.limiter != nil && !b.limiter.Allow(updateCtx, msg.From.ID) {
			l.Warn().Int64("user_id", msg.From.ID).Msg("Rate limit exceeded")
			b.sendMessage(msg.Chat.ID, "⚠️ Вы отправляете сообщения слишком часто. Пожалуйста, подождите немного.")
			return
		}

		b.handleMessage(updateCtx, msg)
	})
}
