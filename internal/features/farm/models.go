package farm

import "fazenda.ton/farm-bot/internal/features/accounts"

// BuyResult: итог покупки.
type BuyResult struct {
	Unit     Unit
	Quantity int64   // поголовье после покупки
	Settled  float64 // материалы, зачисленные по этой строке перед покупкой
	Balances accounts.Balances
}

// Overview: экран «Meus animais».
type Overview struct {
	Holdings []Holding
	Pending  float64
	Daily    float64
}
