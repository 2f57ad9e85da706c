// Package accounts хранит балансы игроков: четыре корзины, кошелёк,
// реферальные связи и журнал движений.
// models.go описывает балансы и правило «ни одна корзина не уходит в минус».
package accounts

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"fazenda.ton/farm-bot/internal/common"
)

// Balances: состояние счёта. Нулевое значение: счёт без денег.
type Balances struct {
	AvailableCash float64 // тратится на покупку животных
	PaymentCash   float64 // меняется на крипту
	Materials     float64 // собранный урожай
	Crypto        float64 // выводится на кошелёк
}

// Deltas: знаковые изменения по корзинам.
type Deltas struct {
	AvailableCash float64
	PaymentCash   float64
	Materials     float64
	Crypto        float64
}

// IsZero сообщает, что изменений нет.
func (d Deltas) IsZero() bool {
	return d == Deltas{}
}

// Apply возвращает баланс после изменения. Если хотя бы одна корзина
// оказывается ниже -Epsilon, возвращается ErrInsufficientFunds и исходный баланс.
func (b Balances) Apply(d Deltas) (Balances, error) {
	next := Balances{
		AvailableCash: b.AvailableCash + d.AvailableCash,
		PaymentCash:   b.PaymentCash + d.PaymentCash,
		Materials:     b.Materials + d.Materials,
		Crypto:        b.Crypto + d.Crypto,
	}
	if next.AvailableCash < -common.Epsilon ||
		next.PaymentCash < -common.Epsilon ||
		next.Materials < -common.Epsilon ||
		next.Crypto < -common.Epsilon {
		return b, common.ErrInsufficientFunds
	}
	return next, nil
}

// Account: строка таблицы accounts.
type Account struct {
	UserID int64
	Balances
	Wallet    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry: запись журнала ledger_entries.
type Entry struct {
	ID          int64
	UserID      int64
	Kind        string
	Deltas      Deltas
	Description string
	CreatedAt   time.Time
}

// Plan вычисляет изменения по заблокированному балансу.
// Возвращает изменения и описание для журнала.
type Plan func(current Balances) (Deltas, string, error)

// Типы записей журнала
const (
	KindCollect          = "collect"
	KindBuy              = "buy"
	KindConvertMaterials = "convert_materials"
	KindSwap             = "swap"
	KindWithdraw         = "withdraw"
	KindWithdrawReversal = "withdraw_reversal"
	KindDeposit          = "deposit"
	KindReferralBonus    = "referral_bonus"
	KindAdminPayment     = "admin_payment"
	KindAdminDeposit     = "admin_deposit"
)

var walletRe = regexp.MustCompile(`^[UE]Q[A-Za-z0-9_-]{45,}$`)

// NormalizeWallet убирает пробельные символы и проверяет формат адреса TON.
func NormalizeWallet(raw string) (string, error) {
	addr := strings.Join(strings.Fields(raw), "")
	if !walletRe.MatchString(addr) {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidWallet, addr)
	}
	return addr, nil
}
