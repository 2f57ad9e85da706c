// Package middleware содержит промежуточные обработчики апдейтов:
// логирование, восстановление после паники и ограничение частоты.
package middleware

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const maxLoggedText = 50

// LogMessage логирует входящее сообщение (текст обрезается).
func LogMessage(message *tgbotapi.Message) {
	if message == nil || message.From == nil || message.Chat == nil {
		return
	}

	log.WithFields(log.Fields{
		"user_id":  message.From.ID,
		"chat_id":  message.Chat.ID,
		"username": message.From.UserName,
		"text":     truncate(message.Text),
	}).Debug("Входящее сообщение")
}

// LogCallback логирует нажатие inline-кнопки.
func LogCallback(cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.From == nil {
		return
	}

	log.WithFields(log.Fields{
		"user_id":  cq.From.ID,
		"username": cq.From.UserName,
		"data":     truncate(cq.Data),
	}).Debug("Нажатие кнопки")
}

// truncate режет по рунам, чтобы не рвать UTF-8.
func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxLoggedText {
		return s
	}
	return string(r[:maxLoggedText]) + "..."
}
