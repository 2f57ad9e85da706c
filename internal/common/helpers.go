// Package common содержит общие утилиты, используемые во всём проекте:
// форматирование сумм для чата и работу с часовым поясом.
package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Epsilon: допуск сравнения балансов с плавающей точкой.
const Epsilon = 1e-9

// FormatCash форматирует cash с двумя знаками: 1234.5 → "1.234,50".
// Разделители бразильские, как привыкли пользователи бота.
func FormatCash(v float64) string {
	return formatBR(decimal.NewFromFloat(v).StringFixed(2))
}

// FormatCrypto форматирует сумму в криптовалюте (6 знаков).
func FormatCrypto(v float64, asset string) string {
	return fmt.Sprintf("%s %s", decimal.NewFromFloat(v).StringFixed(6), asset)
}

// FormatFiat форматирует сумму в реалах: "R$ 37,90".
func FormatFiat(v decimal.Decimal) string {
	return "R$ " + formatBR(v.StringFixed(2))
}

// ParseAmount разбирает сумму, введённую пользователем: "37,90", "R$ 10", "1.5".
func ParseAmount(s string) (decimal.Decimal, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	t = strings.TrimSpace(strings.TrimPrefix(t, "R$"))
	t = strings.ReplaceAll(t, ",", ".")
	d, err := decimal.NewFromString(t)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// formatBR переводит "1234.50" в "1.234,50".
func formatBR(fixed string) string {
	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if frac != "" {
		out += "," + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// LoadLocation возвращает часовой пояс бота; при ошибке: UTC-3 (Бразилиа).
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// FormatDateTime форматирует время как "02/01/2006 15:04" в заданном поясе.
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02/01/2006 15:04")
}
