package deposits

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/common"
)

// Handler обрабатывает /depositar.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleDeposit: /depositar <reais>: выставляет счёт и присылает кнопку оплаты.
func (h *Handler) HandleDeposit(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		h.sendMessage(chatID, fmt.Sprintf(
			"➕ Depósito via @CryptoBot\n\nEnvie: /depositar <valor em reais>\nExemplo: /depositar 50\nMínimo: %s",
			common.FormatFiat(h.service.Options().MinFiat),
		))
		return
	}

	fiat, err := common.ParseAmount(strings.Join(args, ""))
	if err != nil {
		h.sendMessage(chatID, common.ErrorText(err))
		return
	}

	link, err := h.service.CreateInvoice(ctx, userID, fiat)
	if err != nil {
		h.sendMessage(chatID, common.ErrorText(err))
		return
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"🧾 Fatura de %s criada.\nPague pelo botão abaixo; o cash cai automaticamente após a confirmação.",
		common.FormatFiat(fiat),
	))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("💳 Pagar", link)),
	)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки счёта")
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
