package bot

import (
	"context"
	"errors"
)

func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "⚠️ Запрос обрабатывался слишком долго. Пожалуйста, попробуйте еще раз."
	}

	return "❌ Произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте позже."
}
