// Package exchange отвечает за конвертацию материалов в cash и cash в крипту.
// rules.go содержит чистую арифметику; сервис применяет её под блокировкой счёта.
package exchange

import (
	"fmt"
	"math"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/config"
)

// Rules: параметры конвертации.
type Rules struct {
	LotSize         int64   // материалов в одном лоте
	MinHolding      int64   // минимум материалов для конвертации
	PaymentSharePct int64   // доля лота в payment_cash, остальное в available_cash
	MinSwap         float64 // минимум payment_cash для обмена на крипту
	CashPerFiat     int64   // cash за единицу местной валюты
}

// DefaultRules: 1000 за лот, минимум 2000, 40/60, обмен от 20, 100 cash за real.
func DefaultRules() Rules {
	return Rules{
		LotSize:         1000,
		MinHolding:      2000,
		PaymentSharePct: 40,
		MinSwap:         20,
		CashPerFiat:     100,
	}
}

// RulesFromConfig собирает Rules из конфигурации.
func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		LotSize:         cfg.MaterialsLotSize,
		MinHolding:      cfg.MaterialsMinHolding,
		PaymentSharePct: cfg.PaymentSharePct,
		MinSwap:         cfg.MinSwapCash,
		CashPerFiat:     cfg.CashPerFiat,
	}
}

// Split: результат разбиения материалов на лоты.
type Split struct {
	Lots      int64
	Consumed  int64
	Remainder float64
	Payment   int64
	Available int64
}

// SplitMaterials делит материалы на целые лоты. Payment и Available
// округляются вниз каждый отдельно, поэтому их сумма не больше Consumed.
func SplitMaterials(materials float64, r Rules) (Split, error) {
	if materials+common.Epsilon < float64(r.MinHolding) {
		return Split{}, fmt.Errorf("%w: mínimo %d materiais", common.ErrBelowMinimum, r.MinHolding)
	}
	lots := int64(math.Floor((materials + common.Epsilon) / float64(r.LotSize)))
	if lots <= 0 {
		return Split{}, common.ErrNothingToDo
	}
	consumed := lots * r.LotSize
	remainder := materials - float64(consumed)
	if remainder < 0 {
		remainder = 0
	}
	return Split{
		Lots:      lots,
		Consumed:  consumed,
		Remainder: remainder,
		Payment:   consumed * r.PaymentSharePct / 100,
		Available: consumed * (100 - r.PaymentSharePct) / 100,
	}, nil
}

// UnitsPerCrypto: сколько cash стоит одна единица крипты:
// max(1, round(rate * cashPerFiat)).
func UnitsPerCrypto(rate float64, cashPerFiat int64) int64 {
	units := int64(math.Round(rate * float64(cashPerFiat)))
	if units < 1 {
		return 1
	}
	return units
}

// SwapAmount: сумма обмена: конкретное число или всё, что есть.
type SwapAmount struct {
	Value float64
	All   bool
}

// ResolveSwap возвращает сумму payment_cash к обмену с проверкой границ.
func ResolveSwap(paymentCash float64, amt SwapAmount, r Rules) (float64, error) {
	amount := amt.Value
	if amt.All {
		amount = paymentCash
	} else if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, common.ErrInvalidAmount
	}
	if amount+common.Epsilon < r.MinSwap {
		return 0, fmt.Errorf("%w: mínimo %s", common.ErrBelowMinimum, common.FormatCash(r.MinSwap))
	}
	if amount > paymentCash+common.Epsilon {
		return 0, common.ErrInsufficientFunds
	}
	return amount, nil
}
