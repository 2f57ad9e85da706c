// Package farm описывает животных игрока: каталог, начисление материалов,
// покупка и сбор урожая.
package farm

import (
	"strings"

	"fazenda.ton/farm-bot/internal/common"
)

// Unit: вид животного из каталога.
type Unit struct {
	Key        string
	Name       string
	Emoji      string
	Price      float64 // в available_cash
	DailyYield float64 // материалов в сутки за одну голову
}

var catalog = []Unit{
	{Key: "galinha", Name: "Galinha", Emoji: "🐔", Price: 100, DailyYield: 2},
	{Key: "porco", Name: "Porco", Emoji: "🐖", Price: 500, DailyYield: 10},
	{Key: "vaca", Name: "Vaca", Emoji: "🐄", Price: 1500, DailyYield: 30},
	{Key: "boi", Name: "Boi", Emoji: "🐂", Price: 2500, DailyYield: 50},
	{Key: "ovelha", Name: "Ovelha", Emoji: "🐑", Price: 5000, DailyYield: 100},
	{Key: "coelho", Name: "Coelho", Emoji: "🐇", Price: 10000, DailyYield: 200},
	{Key: "cabra", Name: "Cabra", Emoji: "🐐", Price: 15000, DailyYield: 300},
	{Key: "cavalo", Name: "Cavalo", Emoji: "🐎", Price: 20000, DailyYield: 400},
}

// Catalog возвращает копию каталога в порядке цены.
func Catalog() []Unit {
	out := make([]Unit, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup ищет животное по ключу, имени или эмодзи.
func Lookup(s string) (Unit, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, u := range catalog {
		if s == u.Key || s == strings.ToLower(u.Name) || s == u.Emoji {
			return u, nil
		}
	}
	return Unit{}, common.ErrUnknownUnit
}
