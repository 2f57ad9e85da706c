// Package app инициализирует все компоненты приложения.
// app.go: точка сборки: создаёт БД-пул, внешние клиенты, репозитории,
// сервисы, обработчики и собирает их в бота, HTTP-сервер и планировщик.
package app

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/bot"
	"fazenda.ton/farm-bot/internal/bot/filters"
	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/config"
	"fazenda.ton/farm-bot/internal/cryptopay"
	"fazenda.ton/farm-bot/internal/db/postgres"
	"fazenda.ton/farm-bot/internal/features/accounts"
	"fazenda.ton/farm-bot/internal/features/admin"
	"fazenda.ton/farm-bot/internal/features/deposits"
	"fazenda.ton/farm-bot/internal/features/exchange"
	"fazenda.ton/farm-bot/internal/features/farm"
	"fazenda.ton/farm-bot/internal/features/payout"
	"fazenda.ton/farm-bot/internal/features/tokens"
	"fazenda.ton/farm-bot/internal/jobs"
	"fazenda.ton/farm-bot/internal/ledger"
	"fazenda.ton/farm-bot/internal/price"
	"fazenda.ton/farm-bot/internal/server"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	Server    *server.Server
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен: компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := postgres.Migrate(ctx, pool, migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Внешние сервисы ===
	payClient := cryptopay.NewClient(cryptopay.Config{
		Token:   cfg.CryptoPayToken,
		BaseURL: cfg.CryptoPayBaseURL,
		Timeout: cfg.CryptoPayTimeout,
	})

	priceOpts := price.OptionsFromConfig(cfg)
	oracle := price.NewOracle(
		price.DefaultSources(&http.Client{Timeout: cfg.PriceHTTPTimeout}, price.DefaultEndpoints(), priceOpts.Policy, cfg.FiatCurrency),
		priceOpts,
	)

	// === 4. Репозитории ===
	accountsRepo := accounts.NewRepository(pool)
	farmRepo := farm.NewRepository(pool, accountsRepo)
	payoutRepo := payout.NewRepository(pool, accountsRepo)
	depositsRepo := deposits.NewRepository(pool, accountsRepo)
	tokensRepo := tokens.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 5. Сервисы ===
	accountsService := accounts.NewService(accountsRepo)
	farmService := farm.NewService(farmRepo)
	exchangeService := exchange.NewService(accountsRepo, oracle, exchange.RulesFromConfig(cfg))
	payoutService := payout.NewService(payoutRepo, accountsRepo, payClient, payout.OptionsFromConfig(cfg))
	depositsService := deposits.NewService(depositsRepo, payClient, deposits.OptionsFromConfig(cfg))
	tokensService := tokens.NewService(tokensRepo, cfg.CallbackTokenTTL)
	adminService := admin.NewService(adminRepo, accountsService, cfg)

	engine := ledger.NewEngine(farmService, exchangeService, payoutService)

	// === 6. Обработчики ===
	handlers := bot.Handlers{
		Accounts: accounts.NewHandler(accountsService, botAPI, cfg),
		Farm:     farm.NewHandler(farmService, botAPI),
		Payout:   payout.NewHandler(payoutService, botAPI, cfg),
		Deposits: deposits.NewHandler(depositsService, botAPI),
		Admin:    admin.NewHandler(adminService, botAPI, cfg.CryptoAsset),
	}

	// === 7. Собираем бота ===
	chatFilter := filters.NewChatFilter(botAPI, cfg.BotUsername)
	b := bot.New(botAPI, cfg, bot.Services{
		Accounts: accountsService,
		Exchange: exchangeService,
		Tokens:   tokensService,
		Engine:   engine,
	}, handlers, chatFilter)

	// === 8. HTTP: вебхук CryptoPay, /metrics, /healthz ===
	webhook := deposits.NewWebhook(depositsService, cfg.CryptoPayToken, b)
	srv := server.New(cfg.HTTPAddr, server.NewRouter(webhook, pool))

	// === 9. Планировщик задач ===
	scheduler := jobs.NewScheduler(
		jobs.Options{
			Location:      common.LoadLocation(cfg.AppTimezone),
			PriceInterval: cfg.PriceRefreshInterval,
			StuckAfter:    cfg.StuckWithdrawalAfter,
			AdminIDs:      cfg.AdminIDs,
		},
		oracle,
		tokensService,
		jobs.PurgerFunc(adminService.PurgeExpired),
		payoutService,
		b.Notify,
	)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		Server:    srv,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}
