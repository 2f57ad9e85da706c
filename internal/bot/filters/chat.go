// Package filters отсекает апдейты, которые бот не обслуживает.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Sender: отправка сообщений (tgbotapi.BotAPI).
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatFilter пропускает только личные чаты. Денежные команды в группе
// видели бы все участники, поэтому в группу уходит подсказка перейти в личку.
type ChatFilter struct {
	bot         Sender
	botUsername string
}

func NewChatFilter(bot Sender, botUsername string) *ChatFilter {
	return &ChatFilter{bot: bot, botUsername: botUsername}
}

func (f *ChatFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Warn("nil message.From (service/channel message?)")
		return false
	}
	if message.From.IsBot {
		return false
	}

	if message.Chat.IsPrivate() {
		return true
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	// в группе отвечаем только на явные команды
	if !message.IsCommand() || f.bot == nil {
		logger.Debug("deny: not private")
		return false
	}

	text := "🔒 Use o bot no privado"
	if f.botUsername != "" {
		text += ": https://t.me/" + f.botUsername
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyToMessageID = message.MessageID
	if _, err := f.bot.Send(msg); err != nil {
		logger.WithError(err).Warn("failed to send deny message")
	}
	logger.Info("deny: group command")
	return false
}
