// Package admin: handlers.go обрабатывает /login, /logout, /addpag, /adddep и /showbal.
// Работает только в личных сообщениях.
package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/features/accounts"
)

// Handler обрабатывает админ-команды.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
	asset   string
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, bot *tgbotapi.BotAPI, asset string) *Handler {
	return &Handler{service: service, bot: bot, asset: asset}
}

// HandleAdminMessage перехватывает пароль, если диалог ждёт его после /login.
// Возвращает true, если сообщение обработано.
func (h *Handler) HandleAdminMessage(ctx context.Context, chatID, userID int64, text string) bool {
	if !h.service.IsAdmin(userID) {
		return false
	}
	state := h.service.GetState(userID)
	if state == nil || state.State != StateAwaitingPassword {
		return false
	}
	h.service.ClearState(userID)
	h.login(ctx, chatID, userID, strings.TrimSpace(text))
	return true
}

// HandleLogin: /login [senha]. Без пароля бот ждёт его следующим сообщением.
func (h *Handler) HandleLogin(ctx context.Context, chatID, userID int64, args []string) {
	if !h.service.IsAdmin(userID) {
		h.sendMessage(chatID, common.ErrorText(common.ErrNotAdmin))
		return
	}
	if len(args) == 0 {
		h.service.SetState(userID, StateAwaitingPassword)
		h.sendMessage(chatID, "🔐 Envie a senha de administrador:")
		return
	}
	h.login(ctx, chatID, userID, strings.Join(args, " "))
}

func (h *Handler) login(ctx context.Context, chatID, userID int64, password string) {
	if err := h.service.Login(ctx, userID, password); err != nil {
		h.sendMessage(chatID, common.ErrorText(err))
		return
	}
	h.sendMessage(chatID, "✅ Login realizado. Sessão válida por 24h.\nComandos: /addpag, /adddep, /showbal, /logout")
}

// HandleLogout: /logout.
func (h *Handler) HandleLogout(ctx context.Context, chatID, userID int64) {
	if !h.service.IsAdmin(userID) {
		return
	}
	if err := h.service.Logout(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка закрытия сессии")
		h.sendMessage(chatID, common.ErrorText(err))
		return
	}
	h.sendMessage(chatID, "👋 Sessão encerrada")
}

// HandleCredit: /addpag и /adddep: <valor> [user_id].
func (h *Handler) HandleCredit(ctx context.Context, chatID, userID int64, bucket string, args []string) {
	usage := "Uso: /addpag <valor> [user_id]"
	label := "pagamentos"
	if bucket == BucketAvailable {
		usage = "Uso: /adddep <valor> [user_id]"
		label = "depósitos"
	}

	if len(args) == 0 {
		h.sendMessage(chatID, usage)
		return
	}
	amount, err := common.ParseAmount(args[0])
	if err != nil {
		h.sendMessage(chatID, common.ErrorText(err))
		return
	}
	target := parseTarget(args[1:], userID)

	value, _ := amount.Float64()
	if _, err := h.service.Credit(ctx, userID, target, bucket, value); err != nil {
		h.sendMessage(chatID, common.ErrorText(err))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ +%s cash (%s) creditados para %d.", common.FormatCash(value), label, target))
}

// HandleShowBalance: /showbal [user_id].
func (h *Handler) HandleShowBalance(ctx context.Context, chatID, userID int64, args []string) {
	target := parseTarget(args, userID)
	acc, err := h.service.ShowBalance(ctx, userID, target)
	if err != nil {
		h.sendMessage(chatID, common.ErrorText(err))
		return
	}
	h.sendMessage(chatID, FormatAdminBalance(acc, h.asset))
}

// FormatAdminBalance рисует все четыре корзины пользователя.
func FormatAdminBalance(acc *accounts.Account, asset string) string {
	wallet := acc.Wallet
	if wallet == "" {
		wallet = "—"
	}
	return fmt.Sprintf(
		"📊 Saldos\nUser: %d\n• Cash (depósitos): %s\n• Cash (pagamentos): %s\n• Materiais: %s\n• %s\n• Carteira: %s",
		acc.UserID,
		common.FormatCash(acc.AvailableCash),
		common.FormatCash(acc.PaymentCash),
		common.FormatCash(acc.Materials),
		common.FormatCrypto(acc.Crypto, asset),
		wallet,
	)
}

// parseTarget берёт user_id из первого аргумента, иначе самого админа.
func parseTarget(args []string, self int64) int64 {
	if len(args) == 0 {
		return self
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || id <= 0 {
		return self
	}
	return id
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
