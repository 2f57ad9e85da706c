// Package farm: handlers.go обрабатывает /animais и рисует витрину.
package farm

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/common"
)

// Handler обрабатывает команды фермы.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleAnimals: /animais: поголовье, выработка в сутки и накопленное.
// kb: кнопки «Coletar» и «Converter» с одноразовыми токенами, может быть nil.
func (h *Handler) HandleAnimals(ctx context.Context, chatID, userID int64, kb *tgbotapi.InlineKeyboardMarkup) {
	o, err := h.service.Overview(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения животных")
		h.sendMessage(chatID, common.ErrorText(err), nil)
		return
	}
	h.sendMessage(chatID, FormatOverview(o), kb)
}

// HandleShop: /comprar без аргумента: витрина с кнопками покупки.
func (h *Handler) HandleShop(chatID int64, kb *tgbotapi.InlineKeyboardMarkup) {
	h.sendMessage(chatID, FormatShop(), kb)
}

// FormatOverview рисует экран «Meus animais».
func FormatOverview(o *Overview) string {
	if len(o.Holdings) == 0 {
		return "🐾 Você ainda não tem animais.\nCompre o primeiro em /comprar"
	}

	var sb strings.Builder
	sb.WriteString("🐾 Meus animais\n\n")
	var total int64
	for _, h := range o.Holdings {
		total += h.Quantity
		sb.WriteString(fmt.Sprintf("%s %s × %d — %s/dia\n",
			h.Unit.Emoji, h.Unit.Name, h.Quantity,
			common.FormatCash(h.Unit.DailyYield*float64(h.Quantity))))
	}
	sb.WriteString(fmt.Sprintf("\n📦 Total: %s\n", common.FormatAnimals(total)))
	sb.WriteString(fmt.Sprintf("🌾 Produção: %s materiais/dia\n", common.FormatCash(o.Daily)))
	sb.WriteString(fmt.Sprintf("⏳ Para coletar: %s materiais", common.FormatCash(o.Pending)))
	return sb.String()
}

// FormatShop рисует витрину каталога.
func FormatShop() string {
	var sb strings.Builder
	sb.WriteString("🛒 Loja de animais\n\n")
	for _, u := range catalog {
		sb.WriteString(fmt.Sprintf("%s %s — %s (rende %s/dia)\n",
			u.Emoji, u.Name, common.FormatCash(u.Price), common.FormatCash(u.DailyYield)))
	}
	sb.WriteString("\nToque em um animal ou envie /comprar <animal>")
	return sb.String()
}

func (h *Handler) sendMessage(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
