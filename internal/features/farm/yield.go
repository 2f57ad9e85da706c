package farm

import (
	"time"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/features/accounts"
)

const secondsPerDay = 86400

// Yield: материалы, накопленные с момента anchor:
// rate * qty * elapsed / 86400. Ноль, если якоря нет или время не прошло.
func Yield(ratePerDay float64, qty int64, anchor *time.Time, now time.Time) float64 {
	if anchor == nil || qty <= 0 {
		return 0
	}
	elapsed := now.Sub(*anchor).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return ratePerDay * float64(qty) * elapsed / secondsPerDay
}

// Holding: строка production_units вместе с описанием из каталога.
type Holding struct {
	Unit            Unit
	Quantity        int64
	LastCollectedAt *time.Time
}

// Pending: накопленное по одной строке.
func (h Holding) Pending(now time.Time) float64 {
	return Yield(h.Unit.DailyYield, h.Quantity, h.LastCollectedAt, now)
}

// PendingYield суммирует накопленное по всем строкам.
func PendingYield(holdings []Holding, now time.Time) float64 {
	var total float64
	for _, h := range holdings {
		total += h.Pending(now)
	}
	return total
}

// DailyTotal: суммарная выработка в сутки.
func DailyTotal(holdings []Holding) float64 {
	var total float64
	for _, h := range holdings {
		total += h.Unit.DailyYield * float64(h.Quantity)
	}
	return total
}

// PlanBuy считает изменения баланса при покупке: цена списывается с
// available_cash, накопленное по этой строке зачисляется в материалы.
// current == nil: первая покупка этого вида, якоря ещё нет.
func PlanBuy(bal accounts.Balances, unit Unit, current *Holding, now time.Time) (accounts.Deltas, float64, error) {
	if bal.AvailableCash+common.Epsilon < unit.Price {
		return accounts.Deltas{}, 0, common.ErrInsufficientFunds
	}
	var settled float64
	if current != nil {
		settled = current.Pending(now)
	}
	return accounts.Deltas{AvailableCash: -unit.Price, Materials: settled}, settled, nil
}
