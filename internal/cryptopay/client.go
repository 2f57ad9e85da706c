// Package cryptopay содержит клиент Crypto Pay API (pay.crypt.bot): выплаты на адрес,
// чеки, баланс оператора и счета на пополнение. Плюс проверка подписи вебхука.
package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"fazenda.ton/farm-bot/internal/retry"
)

const defaultBaseURL = "https://pay.crypt.bot/api"

var (
	// ErrMethodUnavailable: метод отключён для этого приложения (например, прямые выплаты)
	ErrMethodUnavailable = errors.New("cryptopay: метод недоступен")
	// ErrTransport: сеть, таймаут или 5xx; такие ошибки повторяются
	ErrTransport = errors.New("cryptopay: транспортная ошибка")
)

// APIError: ответ с ok=false.
type APIError struct {
	Status int    `json:"-"`
	Code   int    `json:"code"`
	Name   string `json:"name"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cryptopay: %s (code %d, http %d)", e.Name, e.Code, e.Status)
}

// Is позволяет errors.Is(err, ErrMethodUnavailable).
func (e *APIError) Is(target error) bool {
	if target != ErrMethodUnavailable {
		return false
	}
	return e.Name == "METHOD_DISABLED" || e.Status == http.StatusMethodNotAllowed
}

// Config: параметры клиента.
type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// Client ходит в Crypto Pay API через circuit breaker и политику повторов.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	policy     retry.Policy
}

// NewClient создаёт клиента.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	policy := retry.Default("cryptopay")
	policy.Retryable = func(err error) bool { return errors.Is(err, ErrTransport) }

	settings := gobreaker.Settings{
		Name:        "CryptoPay",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Ответ API с ok=false: это отказ по делу, а не поломка провайдера
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || errors.As(err, &apiErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker CryptoPay сменил состояние")
		},
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		policy:     policy,
	}
}

type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  *APIError       `json:"error"`
}

// repeatable: методы, которые можно повторить после транспортной ошибки.
// createPayout провайдер отсекает по spend_id, getBalance только читает.
// Остальные создают объекты (чек, счёт), и ответ мог потеряться уже после
// создания, поэтому они выполняются одной попыткой.
var repeatable = map[string]bool{
	"createPayout": true,
	"getBalance":   true,
}

// call выполняет POST <base>/<method>. idemKey уходит в заголовок Idempotency-Key.
func (c *Client) call(ctx context.Context, method, idemKey string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cryptopay %s: ошибка сериализации: %w", method, err)
	}

	policy := c.policy
	if !repeatable[method] {
		policy.Delays = nil
	}

	_, err = c.breaker.Execute(func() (any, error) {
		_, err := retry.Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.do(ctx, method, idemKey, body, out)
		})
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("cryptopay %s: %w: %w", method, ErrTransport, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, idemKey string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cryptopay %s: ошибка создания запроса: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Crypto-Pay-API-Token", c.cfg.Token)
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cryptopay %s: %w: %w", method, ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("cryptopay %s: %w: %w", method, ErrTransport, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("cryptopay %s: %w: http %d", method, ErrTransport, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Name: "BAD_RESPONSE"}
	}
	if resp.StatusCode != http.StatusOK || !env.OK {
		apiErr := env.Error
		if apiErr == nil {
			apiErr = &APIError{Name: "UNKNOWN"}
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("cryptopay %s: ошибка разбора result: %w", method, err)
	}
	return nil
}

// Payout: результат createPayout.
type Payout struct {
	ID     int64  `json:"payout_id"`
	Status string `json:"status"`
	Hash   string `json:"hash"`
}

// CreatePayout переводит asset на внешний адрес. spendID: ключ идемпотентности.
func (c *Client) CreatePayout(ctx context.Context, asset string, amount decimal.Decimal, address, spendID string) (*Payout, error) {
	payload := map[string]string{
		"asset":    asset,
		"amount":   amount.String(),
		"address":  address,
		"spend_id": spendID,
	}
	var out Payout
	if err := c.call(ctx, "createPayout", spendID, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Check: чек, который пользователь активирует в @CryptoBot.
type Check struct {
	ID     int64  `json:"check_id"`
	Hash   string `json:"hash"`
	Status string `json:"status"`
	URL    string `json:"bot_check_url"`
}

// CreateCheck создаёт чек на сумму; запасной путь, когда выплаты на адрес отключены.
// pinUserID привязывает чек к Telegram-пользователю, idemKey: ключ заявки на вывод.
// Транспортная ошибка не повторяется: чек мог быть создан.
func (c *Client) CreateCheck(ctx context.Context, asset string, amount decimal.Decimal, pinUserID int64, idemKey string) (*Check, error) {
	payload := map[string]string{
		"asset":  asset,
		"amount": amount.String(),
	}
	if pinUserID != 0 {
		payload["pin_to_user_id"] = strconv.FormatInt(pinUserID, 10)
	}
	var out Check
	if err := c.call(ctx, "createCheck", idemKey, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance: баланс приложения по одной валюте.
type Balance struct {
	CurrencyCode string          `json:"currency_code"`
	Available    decimal.Decimal `json:"available"`
	Onhold       decimal.Decimal `json:"onhold"`
}

// Balances возвращает балансы приложения.
func (c *Client) Balances(ctx context.Context) ([]Balance, error) {
	var out []Balance
	if err := c.call(ctx, "getBalance", "", struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Available возвращает доступный остаток по asset (ноль, если валюты нет в ответе).
func (c *Client) Available(ctx context.Context, asset string) (decimal.Decimal, error) {
	balances, err := c.Balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, b := range balances {
		if b.CurrencyCode == asset {
			return b.Available, nil
		}
	}
	return decimal.Zero, nil
}

// Invoice: счёт на оплату.
type Invoice struct {
	ID            int64  `json:"invoice_id"`
	Status        string `json:"status"`
	BotInvoiceURL string `json:"bot_invoice_url"`
	PayURL        string `json:"pay_url"`
}

// Link возвращает ссылку для оплаты.
func (i *Invoice) Link() string {
	if i.BotInvoiceURL != "" {
		return i.BotInvoiceURL
	}
	return i.PayURL
}

// InvoiceRequest: фиатный счёт, оплачиваемый криптой.
type InvoiceRequest struct {
	Fiat           string
	Amount         decimal.Decimal
	AcceptedAssets string
	Payload        string
	Description    string
}

// CreateInvoice создаёт счёт с currency_type=fiat.
func (c *Client) CreateInvoice(ctx context.Context, r InvoiceRequest) (*Invoice, error) {
	payload := map[string]string{
		"currency_type":   "fiat",
		"fiat":            r.Fiat,
		"amount":          r.Amount.StringFixed(2),
		"accepted_assets": r.AcceptedAssets,
		"payload":         r.Payload,
		"description":     r.Description,
	}
	var out Invoice
	if err := c.call(ctx, "createInvoice", "", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
