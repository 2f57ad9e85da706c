package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/features/accounts"
	"fazenda.ton/farm-bot/internal/features/exchange"
	"fazenda.ton/farm-bot/internal/features/farm"
	"fazenda.ton/farm-bot/internal/features/payout"
)

// recorder запоминает, какой сервис был вызван и с чем.
type recorder struct {
	calls []string
	swap  exchange.SwapAmount
	unit  string
	amt   float64
	err   error
}

func (r *recorder) Collect(context.Context, int64) (float64, accounts.Balances, error) {
	r.calls = append(r.calls, "collect")
	return 12, accounts.Balances{Materials: 12}, r.err
}

func (r *recorder) Buy(_ context.Context, _ int64, unitKey string) (*farm.BuyResult, error) {
	r.calls = append(r.calls, "buy")
	r.unit = unitKey
	if r.err != nil {
		return nil, r.err
	}
	return &farm.BuyResult{Quantity: 1, Balances: accounts.Balances{AvailableCash: 5}}, nil
}

func (r *recorder) ConvertMaterials(context.Context, int64) (*exchange.Conversion, error) {
	r.calls = append(r.calls, "convert")
	if r.err != nil {
		return nil, r.err
	}
	return &exchange.Conversion{Balances: accounts.Balances{PaymentCash: 800}}, nil
}

func (r *recorder) SwapToCrypto(_ context.Context, _ int64, amt exchange.SwapAmount) (*exchange.Swap, error) {
	r.calls = append(r.calls, "swap")
	r.swap = amt
	if r.err != nil {
		return nil, r.err
	}
	return &exchange.Swap{Crypto: 0.5, Balances: accounts.Balances{Crypto: 0.5}}, nil
}

func (r *recorder) Withdraw(_ context.Context, _ int64, amount float64) (*payout.Result, error) {
	r.calls = append(r.calls, "withdraw")
	r.amt = amount
	if r.err != nil {
		return nil, r.err
	}
	return &payout.Result{Outcome: payout.OutcomePayout}, nil
}

func TestExecute_Dispatch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		intent Intent
		call   string
		check  func(t *testing.T, r *recorder, out *Outcome)
	}{
		{"collect", Collect{}, "collect", func(t *testing.T, _ *recorder, out *Outcome) {
			assert.Equal(t, 12.0, out.Collected)
			assert.Equal(t, 12.0, out.Balances.Materials)
		}},
		{"convert", ConvertMaterials{}, "convert", func(t *testing.T, _ *recorder, out *Outcome) {
			require.NotNil(t, out.Conversion)
			assert.Equal(t, 800.0, out.Balances.PaymentCash)
		}},
		{"swap all", Swap{All: true}, "swap", func(t *testing.T, r *recorder, out *Outcome) {
			assert.Equal(t, exchange.SwapAmount{All: true}, r.swap)
			assert.Equal(t, 0.5, out.Balances.Crypto)
		}},
		{"swap value", Swap{Amount: 150}, "swap", func(t *testing.T, r *recorder, _ *Outcome) {
			assert.Equal(t, exchange.SwapAmount{Value: 150}, r.swap)
		}},
		{"withdraw", Withdraw{Amount: 1.5}, "withdraw", func(t *testing.T, r *recorder, out *Outcome) {
			assert.Equal(t, 1.5, r.amt)
			require.NotNil(t, out.Withdrawal)
		}},
		{"buy", Buy{Unit: "vaca"}, "buy", func(t *testing.T, r *recorder, out *Outcome) {
			assert.Equal(t, "vaca", r.unit)
			require.NotNil(t, out.Purchase)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			out, err := NewEngine(r, r, r).Execute(ctx, 1, tt.intent)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.call}, r.calls)
			assert.Equal(t, tt.intent, out.Intent)
			tt.check(t, r, out)
		})
	}
}

func TestExecute_PropagatesErrors(t *testing.T) {
	r := &recorder{err: common.ErrInsufficientFunds}
	out, err := NewEngine(r, r, r).Execute(context.Background(), 1, Withdraw{Amount: 3})
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)
	assert.Nil(t, out)
}

func TestIntentKinds(t *testing.T) {
	assert.Equal(t, accounts.KindCollect, Collect{}.Kind())
	assert.Equal(t, accounts.KindConvertMaterials, ConvertMaterials{}.Kind())
	assert.Equal(t, accounts.KindSwap, Swap{}.Kind())
	assert.Equal(t, accounts.KindWithdraw, Withdraw{}.Kind())
	assert.Equal(t, accounts.KindBuy, Buy{}.Kind())
}
