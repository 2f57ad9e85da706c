// Package payout: handlers.go обрабатывает /saques (история выводов).
package payout

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/config"
)

// Handler обрабатывает команды вывода.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
	asset   string
	loc     *time.Location
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, bot *tgbotapi.BotAPI, cfg *config.Config) *Handler {
	return &Handler{
		service: service,
		bot:     bot,
		asset:   cfg.CryptoAsset,
		loc:     common.LoadLocation(cfg.AppTimezone),
	}
}

// HandleHistory: /saques: последние 10 заявок.
func (h *Handler) HandleHistory(ctx context.Context, chatID, userID int64) {
	list, err := h.service.History(ctx, userID, 10)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения заявок")
		h.sendMessage(chatID, common.ErrorText(err))
		return
	}
	h.sendMessage(chatID, FormatHistory(list, h.asset, h.loc))
}

var statusLabels = map[string]string{
	StatusPending:    "⏳ pendente",
	StatusProcessing: "⏳ processando",
	StatusDone:       "✅ concluído",
	StatusFailed:     "❌ estornado",
}

// FormatHistory рисует список заявок.
func FormatHistory(list []*Withdrawal, asset string, loc *time.Location) string {
	if len(list) == 0 {
		return "💸 Você ainda não fez saques"
	}
	var sb strings.Builder
	sb.WriteString("💸 Seus saques:\n\n")
	for _, w := range list {
		sb.WriteString(fmt.Sprintf("%s | %s | %s\n",
			common.FormatDateTime(w.CreatedAt, loc), common.FormatCrypto(w.Amount, asset), statusLabels[w.Status]))
		if w.VoucherURL != "" {
			sb.WriteString(fmt.Sprintf("   🎟 %s\n", w.VoucherURL))
		}
	}
	return sb.String()
}

// FormatResult: ответ на успешный вывод.
func FormatResult(r *Result, asset string) string {
	amount := common.FormatCrypto(r.Withdrawal.Amount, asset)
	if r.Outcome == OutcomeVoucher {
		return fmt.Sprintf("✅ Saque de %s gerado como cheque.\n🎟 Resgate aqui: %s", amount, r.VoucherURL)
	}
	return fmt.Sprintf("✅ Saque de %s enviado para %s\n🧾 ID: %s", amount, r.Withdrawal.Wallet, r.Reference)
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
