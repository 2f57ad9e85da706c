package ledger

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/features/accounts"
	"fazenda.ton/farm-bot/internal/features/exchange"
	"fazenda.ton/farm-bot/internal/features/farm"
	"fazenda.ton/farm-bot/internal/features/payout"
)

// Farm: сбор и покупка (farm.Service).
type Farm interface {
	Collect(ctx context.Context, userID int64) (float64, accounts.Balances, error)
	Buy(ctx context.Context, userID int64, unitKey string) (*farm.BuyResult, error)
}

// Exchange: конвертации (exchange.Service).
type Exchange interface {
	ConvertMaterials(ctx context.Context, userID int64) (*exchange.Conversion, error)
	SwapToCrypto(ctx context.Context, userID int64, amt exchange.SwapAmount) (*exchange.Swap, error)
}

// Payout: вывод крипты (payout.Service).
type Payout interface {
	Withdraw(ctx context.Context, userID int64, amount float64) (*payout.Result, error)
}

// Outcome: итог Execute. Заполнено ровно одно поле результата,
// соответствующее типу Intent.
type Outcome struct {
	Intent Intent

	Collected  float64
	Balances   accounts.Balances
	Conversion *exchange.Conversion
	Swap       *exchange.Swap
	Withdrawal *payout.Result
	Purchase   *farm.BuyResult
}

// Engine направляет Intent в сервис.
type Engine struct {
	farm     Farm
	exchange Exchange
	payout   Payout
}

// NewEngine создаёт движок.
func NewEngine(f Farm, x Exchange, p Payout) *Engine {
	return &Engine{farm: f, exchange: x, payout: p}
}

// Execute выполняет действие от имени userID.
func (e *Engine) Execute(ctx context.Context, userID int64, in Intent) (*Outcome, error) {
	out := &Outcome{Intent: in}
	var err error

	switch v := in.(type) {
	case Collect:
		out.Collected, out.Balances, err = e.farm.Collect(ctx, userID)
	case ConvertMaterials:
		out.Conversion, err = e.exchange.ConvertMaterials(ctx, userID)
		if err == nil {
			out.Balances = out.Conversion.Balances
		}
	case Swap:
		out.Swap, err = e.exchange.SwapToCrypto(ctx, userID, exchange.SwapAmount{Value: v.Amount, All: v.All})
		if err == nil {
			out.Balances = out.Swap.Balances
		}
	case Withdraw:
		out.Withdrawal, err = e.payout.Withdraw(ctx, userID, v.Amount)
	case Buy:
		out.Purchase, err = e.farm.Buy(ctx, userID, v.Unit)
		if err == nil {
			out.Balances = out.Purchase.Balances
		}
	default:
		return nil, fmt.Errorf("%w: ação desconhecida %T", common.ErrInvalidInput, in)
	}

	if err != nil {
		entry := log.WithFields(log.Fields{
			"user_id": userID,
			"intent":  in.Kind(),
		}).WithError(err)
		if common.IsRejection(err) {
			entry.Debug("Действие отклонено")
		} else {
			entry.Error("Ошибка выполнения действия")
		}
		return nil, err
	}
	return out, nil
}
