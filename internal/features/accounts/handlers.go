// Package accounts: handlers.go обрабатывает команды:
// /saldo, /carteira, /indicar, /extrato.
package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/config"
)

// Handler обрабатывает команды счёта.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
	cfg     *config.Config
	loc     *time.Location
}

// NewHandler создаёт обработчик команд счёта.
func NewHandler(service *Service, bot *tgbotapi.BotAPI, cfg *config.Config) *Handler {
	return &Handler{
		service: service,
		bot:     bot,
		cfg:     cfg,
		loc:     common.LoadLocation(cfg.AppTimezone),
	}
}

// HandleBalance: /saldo.
func (h *Handler) HandleBalance(ctx context.Context, chatID, userID int64) {
	acc, err := h.service.Account(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения счёта")
		h.sendMessage(chatID, common.ErrorText(err))
		return
	}
	h.sendMessage(chatID, FormatBalances(acc, h.cfg.CryptoAsset))
}

// FormatBalances рисует карточку баланса.
func FormatBalances(acc *Account, asset string) string {
	var sb strings.Builder
	sb.WriteString("💰 Seu saldo\n\n")
	sb.WriteString(fmt.Sprintf("🛒 Saldo para compras: %s\n", common.FormatCash(acc.AvailableCash)))
	sb.WriteString(fmt.Sprintf("💵 Saldo para saque: %s\n", common.FormatCash(acc.PaymentCash)))
	sb.WriteString(fmt.Sprintf("🌾 Materiais: %s\n", common.FormatCash(acc.Materials)))
	sb.WriteString(fmt.Sprintf("💎 %s\n", common.FormatCrypto(acc.Crypto, asset)))
	if acc.Wallet != "" {
		sb.WriteString(fmt.Sprintf("\n👛 Carteira: %s", acc.Wallet))
	} else {
		sb.WriteString("\n👛 Carteira não cadastrada: /carteira <endereço>")
	}
	return sb.String()
}

// HandleWallet: /carteira [адрес]. Без аргумента показывает текущий адрес.
func (h *Handler) HandleWallet(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		acc, err := h.service.Account(ctx, userID)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка получения счёта")
			h.sendMessage(chatID, common.ErrorText(err))
			return
		}
		if acc.Wallet == "" {
			h.sendMessage(chatID, "👛 Nenhuma carteira cadastrada.\nEnvie: /carteira <endereço TON>")
			return
		}
		h.sendMessage(chatID, fmt.Sprintf("👛 Sua carteira: %s", acc.Wallet))
		return
	}

	addr, err := h.service.SetWallet(ctx, userID, strings.Join(args, ""))
	if err != nil {
		h.sendMessage(chatID, common.ErrorText(err))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Carteira salva: %s", addr))
}

// HandleReferral: /indicar: ссылка и число приглашённых.
func (h *Handler) HandleReferral(ctx context.Context, chatID, userID int64) {
	n, err := h.service.CountReferrals(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка подсчёта рефералов")
		h.sendMessage(chatID, common.ErrorText(err))
		return
	}
	link := fmt.Sprintf("https://t.me/%s?start=%d", h.cfg.BotUsername, userID)
	h.sendMessage(chatID, fmt.Sprintf(
		"🤝 Convide amigos e ganhe %s%% de cada depósito deles!\n\n🔗 %s\n\n👥 Você tem %d %s",
		decimal.NewFromFloat(h.cfg.RefPct).String(),
		link, n, common.PluralizeReferrals(n),
	))
}

// HandleHistory: /extrato: последние 10 движений.
func (h *Handler) HandleHistory(ctx context.Context, chatID, userID int64) {
	entries, err := h.service.History(ctx, userID, 10)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения журнала")
		h.sendMessage(chatID, common.ErrorText(err))
		return
	}
	h.sendMessage(chatID, FormatHistory(entries, h.cfg.CryptoAsset, h.loc))
}

var kindLabels = map[string]string{
	KindCollect:          "Coleta",
	KindBuy:              "Compra",
	KindConvertMaterials: "Conversão",
	KindSwap:             "Troca",
	KindWithdraw:         "Saque",
	KindWithdrawReversal: "Estorno de saque",
	KindDeposit:          "Depósito",
	KindReferralBonus:    "Bônus de indicação",
	KindAdminPayment:     "Crédito admin",
	KindAdminDeposit:     "Crédito admin",
}

// FormatHistory рисует выписку. Нулевые корзины не показываются.
func FormatHistory(entries []*Entry, asset string, loc *time.Location) string {
	if len(entries) == 0 {
		return "📋 Nenhuma movimentação ainda"
	}

	var sb strings.Builder
	sb.WriteString("📋 Últimas movimentações:\n\n")
	for i, e := range entries {
		label, ok := kindLabels[e.Kind]
		if !ok {
			label = e.Kind
		}
		var parts []string
		if e.Deltas.AvailableCash != 0 {
			parts = append(parts, "compras "+signed(common.FormatCash(e.Deltas.AvailableCash), e.Deltas.AvailableCash))
		}
		if e.Deltas.PaymentCash != 0 {
			parts = append(parts, "saque "+signed(common.FormatCash(e.Deltas.PaymentCash), e.Deltas.PaymentCash))
		}
		if e.Deltas.Materials != 0 {
			parts = append(parts, "materiais "+signed(common.FormatCash(e.Deltas.Materials), e.Deltas.Materials))
		}
		if e.Deltas.Crypto != 0 {
			parts = append(parts, signed(common.FormatCrypto(e.Deltas.Crypto, asset), e.Deltas.Crypto))
		}
		sb.WriteString(fmt.Sprintf("%d. %s | %s | %s\n",
			i+1, common.FormatDateTime(e.CreatedAt, loc), label, strings.Join(parts, ", ")))
	}
	return sb.String()
}

func signed(s string, v float64) string {
	if v > 0 {
		return "+" + s
	}
	return s
}

// sendMessage: вспомогательный метод для отправки текстовых сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
