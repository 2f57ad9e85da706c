package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fazenda.ton/farm-bot/internal/features/accounts"
	"fazenda.ton/farm-bot/internal/features/exchange"
	"fazenda.ton/farm-bot/internal/features/farm"
	"fazenda.ton/farm-bot/internal/ledger"
)

func TestRenderOutcome(t *testing.T) {
	collect := RenderOutcome(&ledger.Outcome{Intent: ledger.Collect{}}, "TON")
	assert.Contains(t, collect, "Nada para coletar")

	collect = RenderOutcome(&ledger.Outcome{
		Intent:    ledger.Collect{},
		Collected: 10,
		Balances:  accounts.Balances{Materials: 2510},
	}, "TON")
	assert.Contains(t, collect, "coletou 10,00 materiais")
	assert.Contains(t, collect, "2.510,00")

	conv := RenderOutcome(&ledger.Outcome{
		Intent: ledger.ConvertMaterials{},
		Conversion: &exchange.Conversion{
			Split: exchange.Split{Lots: 2, Consumed: 2000, Remainder: 500, Payment: 800, Available: 1200},
		},
		Balances: accounts.Balances{Materials: 500},
	}, "TON")
	assert.Contains(t, conv, "2 lote(s)")
	assert.Contains(t, conv, "+800,00 cash para saque")
	assert.Contains(t, conv, "+1.200,00 cash para compras")

	swap := RenderOutcome(&ledger.Outcome{
		Intent:   ledger.Swap{All: true},
		Swap:     &exchange.Swap{Cash: 1551, Crypto: 1, UnitsPerCrypto: 1551},
		Balances: accounts.Balances{Crypto: 1},
	}, "TON")
	assert.Contains(t, swap, "+1.000000 TON")

	unit, _ := farm.Lookup("vaca")
	buy := RenderOutcome(&ledger.Outcome{
		Intent:   ledger.Buy{Unit: "vaca"},
		Purchase: &farm.BuyResult{Unit: unit, Quantity: 3, Settled: 15},
	}, "TON")
	assert.Contains(t, buy, "Agora você tem 3")
	assert.Contains(t, buy, "15,00 materiais acumulados")
}
