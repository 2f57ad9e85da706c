// Package ledger является единой точкой входа для денежных действий пользователя.
// Текстовая команда и кнопка с токеном превращаются в Intent, а Engine
// передаёт его нужному сервису. Строки здесь не разбираются.
package ledger

import "fazenda.ton/farm-bot/internal/features/accounts"

// Intent: закрытое множество действий. Реализации только в этом пакете.
type Intent interface {
	intent()
	// Kind: тип операции в журнале и в метриках
	Kind() string
}

// Collect: собрать накопленные материалы.
type Collect struct{}

// ConvertMaterials: перевести лоты материалов в cash.
type ConvertMaterials struct{}

// Swap: обменять payment_cash на крипту. All: весь баланс, Amount игнорируется.
type Swap struct {
	Amount float64
	All    bool
}

// Withdraw: вывести крипту на кошелёк.
type Withdraw struct {
	Amount float64
}

// Buy: купить одно животное по ключу каталога.
type Buy struct {
	Unit string
}

func (Collect) intent() {}
func (ConvertMaterials) intent() {}
func (Swap) intent() {}
func (Withdraw) intent() {}
func (Buy) intent() {}

func (Collect) Kind() string { return accounts.KindCollect }
func (ConvertMaterials) Kind() string { return accounts.KindConvertMaterials }
func (Swap) Kind() string { return accounts.KindSwap }
func (Withdraw) Kind() string { return accounts.KindWithdraw }
func (Buy) Kind() string { return accounts.KindBuy }
