package exchange

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/features/accounts"
)

func TestSplitMaterials(t *testing.T) {
	r := DefaultRules()

	s, err := SplitMaterials(2500, r)
	require.NoError(t, err)
	assert.Equal(t, Split{Lots: 2, Consumed: 2000, Remainder: 500, Payment: 800, Available: 1200}, s)

	s, err = SplitMaterials(2000, r)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Lots)
	assert.Zero(t, s.Remainder)

	_, err = SplitMaterials(1999.99, r)
	assert.ErrorIs(t, err, common.ErrBelowMinimum)
}

func TestSplitMaterials_FloorsEachBucket(t *testing.T) {
	r := Rules{LotSize: 7, MinHolding: 7, PaymentSharePct: 33, MinSwap: 1, CashPerFiat: 100}
	for _, m := range []float64{7, 15, 99.5, 1000} {
		s, err := SplitMaterials(m, r)
		require.NoError(t, err)
		assert.LessOrEqual(t, s.Payment+s.Available, s.Consumed, m)
		assert.Equal(t, s.Consumed, s.Lots*r.LotSize)
		assert.InDelta(t, m, float64(s.Consumed)+s.Remainder, 1e-9)
	}
}

func TestUnitsPerCrypto(t *testing.T) {
	assert.Equal(t, int64(1700), UnitsPerCrypto(17.0, 100))
	assert.Equal(t, int64(1551), UnitsPerCrypto(15.506, 100))
	assert.Equal(t, int64(1), UnitsPerCrypto(0.001, 100))
	assert.Equal(t, int64(1), UnitsPerCrypto(0, 100))
}

func TestResolveSwap(t *testing.T) {
	r := DefaultRules()

	v, err := ResolveSwap(100, SwapAmount{Value: 50}, r)
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)

	v, err = ResolveSwap(100, SwapAmount{All: true}, r)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	_, err = ResolveSwap(100, SwapAmount{Value: 19.99}, r)
	assert.ErrorIs(t, err, common.ErrBelowMinimum)

	_, err = ResolveSwap(10, SwapAmount{All: true}, r)
	assert.ErrorIs(t, err, common.ErrBelowMinimum)

	_, err = ResolveSwap(100, SwapAmount{Value: 100.5}, r)
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)

	_, err = ResolveSwap(100, SwapAmount{Value: -5}, r)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

// memApplier повторяет семантику accounts.Repository.Apply в памяти.
type memApplier struct {
	mu      sync.Mutex
	bal     accounts.Balances
	entries []string
}

func (m *memApplier) Apply(_ context.Context, _ int64, kind string, plan accounts.Plan) (accounts.Balances, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, desc, err := plan(m.bal)
	if err != nil {
		return m.bal, err
	}
	next, err := m.bal.Apply(d)
	if err != nil {
		return m.bal, err
	}
	m.bal = next
	m.entries = append(m.entries, kind+": "+desc)
	return next, nil
}

type fixedRate float64

func (f fixedRate) Rate(context.Context) float64 { return float64(f) }

func TestConvertMaterials(t *testing.T) {
	store := &memApplier{bal: accounts.Balances{Materials: 2500}}
	svc := NewService(store, fixedRate(17), DefaultRules())

	c, err := svc.ConvertMaterials(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Lots)
	assert.Equal(t, accounts.Balances{Materials: 500, PaymentCash: 800, AvailableCash: 1200}, c.Balances)
	assert.Equal(t, []string{"convert_materials: 2 lotes de materiais"}, store.entries)

	_, err = svc.ConvertMaterials(context.Background(), 1)
	assert.ErrorIs(t, err, common.ErrBelowMinimum)
	assert.Equal(t, 500.0, store.bal.Materials, "отказ без изменений")
}

func TestSwapToCrypto(t *testing.T) {
	store := &memApplier{bal: accounts.Balances{PaymentCash: 3400}}
	svc := NewService(store, fixedRate(17), DefaultRules())

	q := svc.Quote(context.Background())
	assert.Equal(t, int64(1700), q.UnitsPerCrypto)

	s, err := svc.SwapToCrypto(context.Background(), 1, SwapAmount{Value: 1700})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Crypto, 1e-12)
	assert.InDelta(t, 1700, s.Balances.PaymentCash, 1e-9)

	s, err = svc.SwapToCrypto(context.Background(), 1, SwapAmount{All: true})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Crypto, 1e-12)
	assert.InDelta(t, 0, store.bal.PaymentCash, 1e-9)
	assert.InDelta(t, 2.0, store.bal.Crypto, 1e-12)

	_, err = svc.SwapToCrypto(context.Background(), 1, SwapAmount{Value: 20})
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)
}

func TestSwapToCrypto_ConcurrentNeverOverdraws(t *testing.T) {
	store := &memApplier{bal: accounts.Balances{PaymentCash: 100}}
	svc := NewService(store, fixedRate(10), DefaultRules())

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.SwapToCrypto(context.Background(), 1, SwapAmount{Value: 30}); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.InDelta(t, 10, store.bal.PaymentCash, 1e-9)
	assert.GreaterOrEqual(t, store.bal.PaymentCash, -common.Epsilon)
}
