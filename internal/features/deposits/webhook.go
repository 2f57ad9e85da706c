// Package deposits: webhook.go принимает уведомления CryptoPay об оплате счёта.
package deposits

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/cryptopay"
	"fazenda.ton/farm-bot/internal/metrics"
)

// Notifier отправляет пользователю сообщение в личку бота.
type Notifier interface {
	Notify(userID int64, text string)
}

// Webhook: http.Handler для POST /webhook/cryptopay.
type Webhook struct {
	service  *Service
	token    string
	notifier Notifier
}

// NewWebhook создаёт обработчик. token: API-токен CryptoPay, из него
// выводится ключ подписи. notifier может быть nil.
func NewWebhook(service *Service, token string, notifier Notifier) *Webhook {
	return &Webhook{service: service, token: token, notifier: notifier}
}

type update struct {
	UpdateType string          `json:"update_type"`
	Payload    json.RawMessage `json:"payload"`
}

type invoice struct {
	InvoiceID     json.RawMessage `json:"invoice_id"`
	ID            json.RawMessage `json:"id"`
	Payload       json.RawMessage `json:"payload"`
	CustomPayload json.RawMessage `json:"custom_payload"`
	PriceAmount   json.RawMessage `json:"price_amount"`
	FiatAmount    json.RawMessage `json:"fiat_amount"`
	Amount        json.RawMessage `json:"amount"`
	PaidAmount    json.RawMessage `json:"paid_amount"`
}

// paid: разобранное уведомление, готовое к зачислению.
type paid struct {
	InvoiceID string
	UserID    int64
	Fiat      decimal.Decimal
}

func (wh *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !cryptopay.VerifySignature(wh.token, body, r.Header.Get(cryptopay.SignatureHeader)) {
		metrics.Deposits.WithLabelValues("bad_signature").Inc()
		log.WithField("remote", r.RemoteAddr).Warn("Вебхук CryptoPay с неверной подписью")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	p, reason := parseUpdate(body)
	if reason != "" {
		metrics.Deposits.WithLabelValues("ignored").Inc()
		log.WithField("reason", reason).Info("Вебхук CryptoPay пропущен")
		writeOK(w)
		return
	}

	res, err := wh.service.RecordDeposit(r.Context(), p.InvoiceID, p.UserID, p.Fiat)
	if err != nil {
		if common.IsRejection(err) {
			metrics.Deposits.WithLabelValues("ignored").Inc()
			log.WithError(err).WithField("invoice_id", p.InvoiceID).Warn("Вебхук CryptoPay отклонён")
			writeOK(w)
			return
		}
		metrics.Deposits.WithLabelValues("error").Inc()
		log.WithError(err).WithField("invoice_id", p.InvoiceID).Error("Ошибка зачисления депозита")
		// 5xx: CryptoPay пришлёт уведомление ещё раз
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if res.Duplicate {
		metrics.Deposits.WithLabelValues("duplicate").Inc()
		writeOK(w)
		return
	}
	metrics.Deposits.WithLabelValues("credited").Inc()
	wh.notify(res)
	writeOK(w)
}

func (wh *Webhook) notify(res *Result) {
	if wh.notifier == nil {
		return
	}
	wh.notifier.Notify(res.UserID, UserNotice(res))
	if res.ReferrerID != 0 && res.Bonus > 0 {
		wh.notifier.Notify(res.ReferrerID, ReferrerNotice(res))
	}
}

// UserNotice: сообщение плательщику.
func UserNotice(res *Result) string {
	return "✅ Pagamento confirmado!\n" +
		common.FormatFiat(res.Fiat) + " → " + common.FormatCash(float64(res.Cash)) + " cash creditados."
}

// ReferrerNotice: сообщение пригласившему.
func ReferrerNotice(res *Result) string {
	return "🎁 Bônus de indicação: +" + common.FormatCash(float64(res.Bonus)) +
		" cash (amigo depositou " + common.FormatFiat(res.Fiat) + ")."
}

// parseUpdate достаёт счёт из тела. Непустой reason: уведомление
// подтверждается без зачисления.
func parseUpdate(body []byte) (*paid, string) {
	var u update
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, "json inválido"
	}
	if u.UpdateType != "invoice_paid" {
		return nil, "update_type " + u.UpdateType
	}

	// счёт либо лежит в payload.invoice, либо payload и есть счёт
	raw := u.Payload
	var wrapper struct {
		Invoice json.RawMessage `json:"invoice"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Invoice) > 0 && string(wrapper.Invoice) != "null" {
		raw = wrapper.Invoice
	}
	var inv invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, "fatura inválida"
	}

	id := firstText(inv.InvoiceID, inv.ID)
	if id == "" {
		return nil, "sem invoice_id"
	}
	userID, err := strconv.ParseInt(firstText(inv.Payload, inv.CustomPayload), 10, 64)
	if err != nil || userID <= 0 {
		return nil, "payload sem usuário"
	}

	fiat, ok := firstAmount(inv.PriceAmount, inv.FiatAmount, inv.Amount, inv.PaidAmount)
	if !ok {
		return nil, "valor ausente"
	}
	if !fiat.IsPositive() {
		return nil, "valor não positivo"
	}
	return &paid{InvoiceID: id, UserID: userID, Fiat: fiat}, ""
}

// rawText возвращает значение поля строкой: и "123", и 123 дают "123".
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func firstText(fields ...json.RawMessage) string {
	for _, f := range fields {
		if s := rawText(f); s != "" {
			return s
		}
	}
	return ""
}

// firstAmount берёт первое поле, которое разбирается как число.
func firstAmount(fields ...json.RawMessage) (decimal.Decimal, bool) {
	for _, f := range fields {
		s := rawText(f)
		if s == "" {
			continue
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}
