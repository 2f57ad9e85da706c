package filters

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func message(chatType, text string) *tgbotapi.Message {
	m := &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: 42},
		Chat:      &tgbotapi.Chat{ID: -100, Type: chatType},
		Text:      text,
	}
	if chatType == "private" {
		m.Chat.ID = 42
	}
	if len(text) > 0 && text[0] == '/' {
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return m
}

func TestCheckAccess_Private(t *testing.T) {
	s := &fakeSender{}
	f := NewChatFilter(s, "fazendaton_bot")

	assert.True(t, f.CheckAccess(message("private", "/saldo")))
	assert.Empty(t, s.sent)
}

func TestCheckAccess_GroupCommandGetsHint(t *testing.T) {
	s := &fakeSender{}
	f := NewChatFilter(s, "fazendaton_bot")

	assert.False(t, f.CheckAccess(message("supergroup", "/saldo")))
	require.Len(t, s.sent, 1)
	assert.Contains(t, s.sent[0].Text, "t.me/fazendaton_bot")
	assert.Equal(t, 7, s.sent[0].ReplyToMessageID)
}

func TestCheckAccess_GroupChatterIgnored(t *testing.T) {
	s := &fakeSender{}
	f := NewChatFilter(s, "fazendaton_bot")

	assert.False(t, f.CheckAccess(message("group", "oi pessoal")))
	assert.Empty(t, s.sent)
}

func TestCheckAccess_Malformed(t *testing.T) {
	f := NewChatFilter(&fakeSender{}, "")

	assert.False(t, f.CheckAccess(nil))
	assert.False(t, f.CheckAccess(&tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1, Type: "private"}}))

	fromBot := message("private", "/saldo")
	fromBot.From.IsBot = true
	assert.False(t, f.CheckAccess(fromBot))
}
