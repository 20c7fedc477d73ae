package service

import (
	"peregovorka/internal/domain"
	"peregovorka/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramService struct {
	bot domain.TelegramSender
}

var _ domain.TelegramService = (*TelegramService)(nil)

func NewTelegramService(bot domain.TelegramSender) *TelegramService {
	return &TelegramService{
		bot: bot,
	}
}

func (s *TelegramService) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.bot.Send(c)
}

func (s *TelegramService) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return s.bot.Request(c)
}

// SendMessage sends plain text; room names are user input and may contain Markdown characters.
func (s *TelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	return s.bot.Send(msg)
}

func (s *TelegramService) SendMarkdown(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = models.ParseModeMarkdown
	return s.bot.Send(msg)
}

// SendDocument uploads a local file.
func (s *TelegramService) SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	return s.bot.Send(doc)
}

func (s *TelegramService) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return s.bot.GetUpdatesChan(config)
}

func (s *TelegramService) GetSelf() tgbotapi.User {
	return s.bot.GetSelf()
}

func (s *TelegramService) StopReceivingUpdates() {
	s.bot.StopReceivingUpdates()
}
