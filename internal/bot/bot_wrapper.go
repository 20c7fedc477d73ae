package bot

import (
	"peregovorka/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotWrapper adapts *tgbotapi.BotAPI to domain.TelegramSender.
type BotWrapper struct {
	*tgbotapi.BotAPI
}

var _ domain.TelegramSender = (*BotWrapper)(nil)

func (w *BotWrapper) GetSelf() tgbotapi.User {
	return w.Self
}

func NewBotWrapper(bot *tgbotapi.BotAPI) *BotWrapper {
	return &BotWrapper{BotAPI: bot}
}
