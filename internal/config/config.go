// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Имя бота без @, нужно для реферальной ссылки t.me/<bot>?start=<id>
	BotUsername string `envconfig:"BOT_USERNAME" default:"FazendaTonBot"`

	// --- Admin ---
	AdminIDsRaw       string  `envconfig:"ADMIN_IDS"`
	AdminIDs          []int64 `envconfig:"-"` // заполняется в Load
	AdminPasswordHash string  `envconfig:"ADMIN_PASSWORD_HASH"`

	// --- Database ---
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"fazenda"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"fazenda"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"America/Sao_Paulo"`

	// --- Bot runtime ---
	BotMaxInflight          int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"20"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- HTTP (вебхук CryptoPay, /metrics, /healthz) ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8000"`

	// --- CryptoPay ---
	CryptoPayToken   string        `envconfig:"CRYPTOPAY_TOKEN" required:"true"`
	CryptoPayBaseURL string        `envconfig:"CRYPTOPAY_API_URL" default:"https://pay.crypt.bot/api"`
	CryptoPayTimeout time.Duration `envconfig:"CRYPTOPAY_TIMEOUT" default:"30s"`
	CryptoAsset      string        `envconfig:"CRYPTO_ASSET" default:"TON"`
	FiatCurrency     string        `envconfig:"FIAT_CURRENCY" default:"BRL"`

	// --- Economy ---
	// Сколько cash даёт один real
	CashPerFiat int64 `envconfig:"CASH_POR_REAL" default:"100"`
	// Реферальный бонус, % от зачисленного депозита
	RefPct              float64 `envconfig:"REF_PCT" default:"4"`
	MaterialsLotSize    int64   `envconfig:"MATERIALS_LOT_SIZE" default:"1000"`
	MaterialsMinHolding int64   `envconfig:"MATERIALS_MIN_HOLDING" default:"2000"`
	// Доля лота, уходящая в payment_cash; остальное в available_cash
	PaymentSharePct   int64   `envconfig:"PAYMENT_SHARE_PCT" default:"40"`
	MinSwapCash       float64 `envconfig:"MIN_SWAP_CASH" default:"20"`
	MinWithdrawCrypto float64 `envconfig:"MIN_WITHDRAW_CRYPTO" default:"0.1"`
	MinDepositFiat    float64 `envconfig:"MIN_DEPOSIT_FIAT" default:"1"`

	// Проверять баланс оператора в CryptoPay перед списанием
	PayoutLiquidityCheck bool          `envconfig:"PAYOUT_LIQUIDITY_CHECK" default:"true"`
	StuckWithdrawalAfter time.Duration `envconfig:"STUCK_WITHDRAWAL_AFTER" default:"15m"`

	CallbackTokenTTL time.Duration `envconfig:"CALLBACK_TOKEN_TTL" default:"5m"`

	// --- Price oracle ---
	PriceCacheTTL        time.Duration `envconfig:"PRICE_CACHE_TTL" default:"60s"`
	PriceRefreshInterval time.Duration `envconfig:"PRICE_REFRESH_INTERVAL" default:"45s"`
	PriceHTTPTimeout     time.Duration `envconfig:"PRICE_HTTP_TIMEOUT" default:"10s"`
	PriceMin             float64       `envconfig:"PRICE_MIN" default:"0.1"`
	PriceMax             float64       `envconfig:"PRICE_MAX" default:"1000"`
	PriceFallback        float64       `envconfig:"PRICE_FALLBACK" default:"17.0"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// IsAdmin сообщает, входит ли пользователь в ADMIN_IDS.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.CashPerFiat <= 0 {
		return fmt.Errorf("CASH_POR_REAL должен быть > 0")
	}
	if c.RefPct < 0 || c.RefPct > 100 {
		return fmt.Errorf("REF_PCT должен быть в диапазоне 0..100")
	}
	if c.MaterialsLotSize <= 0 {
		return fmt.Errorf("MATERIALS_LOT_SIZE должен быть > 0")
	}
	if c.MaterialsMinHolding < c.MaterialsLotSize {
		return fmt.Errorf("MATERIALS_MIN_HOLDING не может быть меньше MATERIALS_LOT_SIZE")
	}
	if c.PaymentSharePct < 0 || c.PaymentSharePct > 100 {
		return fmt.Errorf("PAYMENT_SHARE_PCT должен быть в диапазоне 0..100")
	}
	if c.MinSwapCash <= 0 || c.MinWithdrawCrypto <= 0 {
		return fmt.Errorf("MIN_SWAP_CASH и MIN_WITHDRAW_CRYPTO должны быть > 0")
	}
	if c.PriceMin <= 0 || c.PriceMin >= c.PriceMax {
		return fmt.Errorf("некорректные PRICE_MIN/PRICE_MAX")
	}
	if c.PriceFallback <= 0 {
		return fmt.Errorf("PRICE_FALLBACK должен быть > 0")
	}
	if c.CallbackTokenTTL <= 0 {
		return fmt.Errorf("CALLBACK_TOKEN_TTL должен быть > 0")
	}
	if len(c.AdminIDs) > 0 && c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH обязателен, если задан ADMIN_IDS")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
