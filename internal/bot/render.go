package bot

import (
	"fmt"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/features/payout"
	"fazenda.ton/farm-bot/internal/ledger"
)

// RenderOutcome: ответ пользователю на выполненное действие.
func RenderOutcome(out *ledger.Outcome, asset string) string {
	switch out.Intent.(type) {
	case ledger.Collect:
		if out.Collected <= common.Epsilon {
			return "🧺 Nada para coletar ainda. Seus animais estão produzindo!"
		}
		return fmt.Sprintf("🧺 Você coletou %s materiais!\n📦 Total: %s materiais",
			common.FormatCash(out.Collected), common.FormatCash(out.Balances.Materials))

	case ledger.ConvertMaterials:
		c := out.Conversion
		return fmt.Sprintf(
			"♻️ %d lote(s) convertidos (%s materiais)\n💼 +%s cash para saque\n🛒 +%s cash para compras\n📦 Restam %s materiais",
			c.Lots, common.FormatCash(float64(c.Consumed)),
			common.FormatCash(float64(c.Payment)), common.FormatCash(float64(c.Available)),
			common.FormatCash(out.Balances.Materials),
		)

	case ledger.Swap:
		s := out.Swap
		return fmt.Sprintf("🔄 Troca concluída!\n-%s cash → +%s\n📈 Cotação: %d cash por %s\n💎 Saldo: %s",
			common.FormatCash(s.Cash), common.FormatCrypto(s.Crypto, asset),
			s.UnitsPerCrypto, asset, common.FormatCrypto(out.Balances.Crypto, asset))

	case ledger.Withdraw:
		return payout.FormatResult(out.Withdrawal, asset)

	case ledger.Buy:
		p := out.Purchase
		text := fmt.Sprintf("✅ Você comprou 1 %s %s!\nAgora você tem %d.\n🛒 Cash para compras: %s",
			p.Unit.Emoji, p.Unit.Name, p.Quantity, common.FormatCash(out.Balances.AvailableCash))
		if p.Settled > common.Epsilon {
			text += fmt.Sprintf("\n🧺 %s materiais acumulados foram coletados", common.FormatCash(p.Settled))
		}
		return text
	}
	return "✅ Feito"
}
