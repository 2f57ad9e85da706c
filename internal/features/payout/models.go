// Package payout проводит вывод крипты на внешний кошелёк через CryptoPay.
// Состояния заявки: pending -> processing -> done | failed, только вперёд.
package payout

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Статусы заявки на вывод
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Withdrawal: строка таблицы withdrawals.
type Withdrawal struct {
	ID             int64
	UserID         int64
	Amount         float64
	Wallet         string
	Status         string
	IdempotencyKey string
	ProviderRef    string
	VoucherURL     string
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Outcome: чем закончился вывод.
type Outcome string

const (
	OutcomePayout  Outcome = "payout"  // перевод на адрес
	OutcomeVoucher Outcome = "voucher" // чек вместо перевода
)

// Result: итог успешного вывода.
type Result struct {
	Withdrawal *Withdrawal
	Outcome    Outcome
	Reference  string // id выплаты или чека у провайдера
	VoucherURL string
}

// NewIdempotencyKey: ключ «wd-<uid>-<unix>-<8 hex>», новый на каждую попытку.
func NewIdempotencyKey(userID int64, now time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("wd-%d-%d-%s", userID, now.Unix(), hex.EncodeToString(u[:4]))
}
