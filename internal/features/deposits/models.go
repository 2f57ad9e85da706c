// Package deposits отвечает за пополнение счёта через счета CryptoPay:
// создание счёта, зачисление по вебхуку и реферальный бонус.
package deposits

import (
	"github.com/shopspring/decimal"
)

// Deposit: зачисление по одному оплаченному счёту.
type Deposit struct {
	InvoiceID string
	UserID    int64
	Fiat      decimal.Decimal
	Cash      int64 // зачисляется в available_cash
	Bonus     int64 // бонус рефереру, если он есть
}

// Result: итог RecordDeposit.
type Result struct {
	InvoiceID  string
	UserID     int64
	Fiat       decimal.Decimal
	Cash       int64
	ReferrerID int64 // 0: бонус не начислялся
	Bonus      int64
	// Duplicate: счёт уже был зачислен; Cash и Bonus взяты из первой записи
	Duplicate bool
}

// ComputeCredit переводит сумму в реалах в cash и считает бонус реферера:
// cash = round(fiat * cashPerFiat), bonus = round(cash * refPct / 100).
func ComputeCredit(fiat decimal.Decimal, cashPerFiat int64, refPct float64) (cash, bonus int64) {
	cash = fiat.Mul(decimal.NewFromInt(cashPerFiat)).Round(0).IntPart()
	bonus = decimal.NewFromInt(cash).
		Mul(decimal.NewFromFloat(refPct)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	return cash, bonus
}
