// Package bot содержит главный модуль бота: приём апдейтов, разбор команд
// и кнопок, маршрутизацию к обработчикам. Денежные действия уходят в ledger.Engine.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/bot/filters"
	"fazenda.ton/farm-bot/internal/bot/middleware"
	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/config"
	"fazenda.ton/farm-bot/internal/features/accounts"
	"fazenda.ton/farm-bot/internal/features/admin"
	"fazenda.ton/farm-bot/internal/features/deposits"
	"fazenda.ton/farm-bot/internal/features/exchange"
	"fazenda.ton/farm-bot/internal/features/farm"
	"fazenda.ton/farm-bot/internal/features/payout"
	"fazenda.ton/farm-bot/internal/features/tokens"
	"fazenda.ton/farm-bot/internal/ledger"
)

// Services: сервисы, к которым обращается бот напрямую.
type Services struct {
	Accounts *accounts.Service
	Exchange *exchange.Service
	Tokens   *tokens.Service
	Engine   *ledger.Engine
}

// Handlers: обработчики команд по фичам.
type Handlers struct {
	Accounts *accounts.Handler
	Farm     *farm.Handler
	Payout   *payout.Handler
	Deposits *deposits.Handler
	Admin    *admin.Handler
}

// Bot: главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	accounts *accounts.Service
	exchange *exchange.Service
	tokens   *tokens.Service
	engine   *ledger.Engine
	handlers Handlers

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт бота со всеми зависимостями.
func New(api *tgbotapi.BotAPI, cfg *config.Config, svc Services, h Handlers, chatFilter *filters.ChatFilter) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:         api,
		cfg:         cfg,
		chatFilter:  chatFilter,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		accounts:    svc.Accounts,
		exchange:    svc.Exchange,
		tokens:      svc.Tokens,
		engine:      svc.Engine,
		handlers:    h,
		parser:      NewCommandParser(),
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram. Возвращается после
// отмены ctx; запущенные обработчики дорабатывают сами.
func (b *Bot) Start(ctx context.Context) {
	defer b.rateLimiter.Close()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.Text == "" {
		return
	}
	message := update.Message

	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	userID := message.From.ID
	if !b.rateLimiter.Allow(userID) {
		log.WithField("user_id", userID).Debug("rate limited")
		return
	}
	chatID := message.Chat.ID

	// пароль после /login приходит обычным сообщением
	if b.handlers.Admin.HandleAdminMessage(ctx, chatID, userID, message.Text) {
		return
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		b.sendMenu(chatID, "Use o menu abaixo 👇")
		return
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"cmd":     cmd,
		"args":    args,
	}).Debug("parsed command")

	// счёт создаётся при первом обращении; /start делает это сам с рефералом
	if cmd != "start" {
		if err := b.accounts.Register(ctx, userID, 0); err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("EnsureAccount failed")
		}
	}

	b.routeCommand(ctx, chatID, userID, cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, cmd string, args []string) {
	// сначала денежные действия: текст и кнопка дают один и тот же Intent
	in, err := ParseIntent(cmd, args)
	switch {
	case err == nil:
		b.execute(ctx, chatID, userID, in)
		return
	case errors.Is(err, errNoArgs):
		// меню ниже
	case !errors.Is(err, errNotLedger):
		b.sendMessage(chatID, common.ErrorText(err))
		return
	}

	switch cmd {
	case "start":
		b.handleStart(ctx, chatID, userID, args)

	case "ajuda", "help":
		b.sendMenu(chatID, helpText)

	case "saldo":
		b.handlers.Accounts.HandleBalance(ctx, chatID, userID)

	case "animais":
		kb, err := b.farmKeyboard(ctx, userID)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка выпуска токенов")
		}
		b.handlers.Farm.HandleAnimals(ctx, chatID, userID, kb)

	case "comprar":
		kb, err := b.shopKeyboard(ctx, userID)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка выпуска токенов")
		}
		b.handlers.Farm.HandleShop(chatID, kb)

	case "trocar":
		b.showSwapMenu(ctx, chatID, userID)

	case "sacar":
		b.showWithdrawMenu(ctx, chatID, userID)

	case "carteira":
		b.handlers.Accounts.HandleWallet(ctx, chatID, userID, args)

	case "depositar":
		b.handlers.Deposits.HandleDeposit(ctx, chatID, userID, args)

	case "saques":
		b.handlers.Payout.HandleHistory(ctx, chatID, userID)

	case "extrato":
		b.handlers.Accounts.HandleHistory(ctx, chatID, userID)

	case "indicar":
		b.handlers.Accounts.HandleReferral(ctx, chatID, userID)

	// --- админ ---
	case "login":
		b.handlers.Admin.HandleLogin(ctx, chatID, userID, args)
	case "logout":
		b.handlers.Admin.HandleLogout(ctx, chatID, userID)
	case "addpag":
		b.handlers.Admin.HandleCredit(ctx, chatID, userID, admin.BucketPayment, args)
	case "adddep":
		b.handlers.Admin.HandleCredit(ctx, chatID, userID, admin.BucketAvailable, args)
	case "showbal":
		b.handlers.Admin.HandleShowBalance(ctx, chatID, userID, args)

	default:
		b.sendMessage(chatID, "🤔 Comando desconhecido. Veja /ajuda")
	}
}

// handleStart: /start [id пригласившего].
func (b *Bot) handleStart(ctx context.Context, chatID, userID int64, args []string) {
	var referrerID int64
	if len(args) > 0 {
		if id, err := strconv.ParseInt(args[0], 10, 64); err == nil && id > 0 && id != userID {
			referrerID = id
		}
	}
	if err := b.accounts.Register(ctx, userID, referrerID); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка регистрации")
		b.sendMessage(chatID, common.ErrorText(err))
		return
	}
	b.sendMenu(chatID, "🌾 Bem-vindo à Fazenda TON!\n\n"+helpText)
}

// execute выполняет денежное действие и отвечает итогом.
func (b *Bot) execute(ctx context.Context, chatID, userID int64, in ledger.Intent) {
	if _, ok := in.(ledger.Withdraw); ok {
		b.sendMessage(chatID, "⏳ Processando saque...")
	}
	out, err := b.engine.Execute(ctx, userID, in)
	if err != nil {
		b.sendMessage(chatID, common.ErrorText(err))
		return
	}
	b.sendMessage(chatID, RenderOutcome(out, b.cfg.CryptoAsset))
}

// handleCallback гасит токен кнопки и выполняет действие.
// Повторное нажатие или чужая кнопка получают причину отказа.
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil {
		return
	}
	userID := cq.From.ID
	chatID := userID
	if cq.Message != nil && cq.Message.Chat != nil {
		chatID = cq.Message.Chat.ID
	}

	middleware.LogCallback(cq)

	if !b.rateLimiter.Allow(userID) {
		b.answerCallback(cq.ID, "⏳ Aguarde um pouco", false)
		return
	}

	action, id, ok := tokens.ParseCallbackData(cq.Data)
	if !ok {
		b.answerCallback(cq.ID, string(tokens.ReasonWrongPlace), true)
		return
	}

	res, err := b.tokens.Consume(ctx, id, userID, action)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка погашения токена")
		b.answerCallback(cq.ID, common.ErrorText(err), true)
		return
	}
	if !res.OK {
		b.answerCallback(cq.ID, string(res.Reason), true)
		return
	}

	in, err := IntentFromCallback(action, res.Payload)
	if err != nil {
		b.answerCallback(cq.ID, common.ErrorText(err), true)
		return
	}
	b.answerCallback(cq.ID, "", false)
	b.execute(ctx, chatID, userID, in)
}

// showSwapMenu: /trocar без аргумента: курс, баланс и кнопки с суммами.
func (b *Bot) showSwapMenu(ctx context.Context, chatID, userID int64) {
	bal, err := b.accounts.Balances(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения баланса")
		b.sendMessage(chatID, common.ErrorText(err))
		return
	}
	q := b.exchange.Quote(ctx)
	text := swapMenuText(q, b.exchange.Rules(), bal.PaymentCash, b.cfg.CryptoAsset)

	msg := tgbotapi.NewMessage(chatID, text)
	if kb, err := b.swapKeyboard(ctx, userID, bal.PaymentCash); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка выпуска токенов")
	} else {
		msg.ReplyMarkup = kb
	}
	b.send(msg)
}

// showWithdrawMenu: /sacar без аргумента.
func (b *Bot) showWithdrawMenu(ctx context.Context, chatID, userID int64) {
	acc, err := b.accounts.Account(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения счёта")
		b.sendMessage(chatID, common.ErrorText(err))
		return
	}
	wallet := acc.Wallet
	if wallet == "" {
		wallet = "não cadastrada (/carteira <endereço>)"
	}
	b.sendMessage(chatID, fmt.Sprintf(
		"🏦 Sacar %s\n\n💎 Disponível: %s\n👛 Carteira: %s\nMínimo: %s\n\nEnvie /sacar <valor>",
		b.cfg.CryptoAsset,
		common.FormatCrypto(acc.Crypto, b.cfg.CryptoAsset),
		wallet,
		common.FormatCrypto(b.cfg.MinWithdrawCrypto, b.cfg.CryptoAsset),
	))
}

func (b *Bot) answerCallback(id, text string, alert bool) {
	cfg := tgbotapi.NewCallback(id, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(id, text)
	}
	if _, err := b.api.Request(cfg); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}
}

func (b *Bot) sendMenu(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = mainMenu()
	b.send(msg)
}

// sendMessage: утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", msg.ChatID).Error("Ошибка отправки сообщения")
	}
}

// Notify отправляет сообщение пользователю в личку (депозиты, алерты).
func (b *Bot) Notify(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось отправить уведомление")
		return
	}
	log.WithField("user_id", userID).Debug("notification sent")
}
