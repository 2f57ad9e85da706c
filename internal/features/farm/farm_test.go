package farm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/features/accounts"
)

func ptr(t time.Time) *time.Time { return &t }

func TestYield(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	// 10 голов по 2/сутки за 12 часов
	assert.InDelta(t, 10.0, Yield(2, 10, ptr(now.Add(-12*time.Hour)), now), 1e-9)

	assert.Zero(t, Yield(2, 10, nil, now), "нет якоря")
	assert.Zero(t, Yield(2, 10, ptr(now), now), "время не прошло")
	assert.Zero(t, Yield(2, 10, ptr(now.Add(time.Hour)), now), "якорь в будущем")
	assert.Zero(t, Yield(2, 0, ptr(now.Add(-time.Hour)), now))
}

func TestPendingYieldAndDailyTotal(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	galinha, _ := Lookup("galinha")
	vaca, _ := Lookup("vaca")

	hs := []Holding{
		{Unit: galinha, Quantity: 10, LastCollectedAt: ptr(now.Add(-24 * time.Hour))},
		{Unit: vaca, Quantity: 1, LastCollectedAt: ptr(now.Add(-6 * time.Hour))},
		{Unit: vaca, Quantity: 3, LastCollectedAt: nil},
	}
	assert.InDelta(t, 20+7.5, PendingYield(hs, now), 1e-9)
	assert.InDelta(t, 20+30+90, DailyTotal(hs), 1e-9)
}

func TestLookup(t *testing.T) {
	for _, in := range []string{"vaca", "Vaca", " VACA ", "🐄"} {
		u, err := Lookup(in)
		require.NoError(t, err, in)
		assert.Equal(t, 1500.0, u.Price)
		assert.Equal(t, 30.0, u.DailyYield)
	}

	_, err := Lookup("dragão")
	assert.ErrorIs(t, err, common.ErrUnknownUnit)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	assert.Len(t, Catalog(), 8)
}

func TestPlanBuy(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	porco, _ := Lookup("porco")

	t.Run("первая покупка без ретро-начисления", func(t *testing.T) {
		d, settled, err := PlanBuy(accounts.Balances{AvailableCash: 500}, porco, nil, now)
		require.NoError(t, err)
		assert.Zero(t, settled)
		assert.Equal(t, accounts.Deltas{AvailableCash: -500}, d)
	})

	t.Run("накопленное зачисляется перед покупкой", func(t *testing.T) {
		current := &Holding{Unit: porco, Quantity: 2, LastCollectedAt: ptr(now.Add(-12 * time.Hour))}
		d, settled, err := PlanBuy(accounts.Balances{AvailableCash: 600}, porco, current, now)
		require.NoError(t, err)
		assert.InDelta(t, 10.0, settled, 1e-9)
		assert.Equal(t, -500.0, d.AvailableCash)
		assert.InDelta(t, 10.0, d.Materials, 1e-9)
	})

	t.Run("не хватает cash", func(t *testing.T) {
		_, _, err := PlanBuy(accounts.Balances{AvailableCash: 499.99, PaymentCash: 1000}, porco, nil, now)
		assert.ErrorIs(t, err, common.ErrInsufficientFunds)
	})
}

// memStore: хранилище в памяти с той же семантикой, что и Repository.
type memStore struct {
	bal      accounts.Balances
	holdings map[string]*Holding
}

func newMemStore() *memStore {
	return &memStore{holdings: map[string]*Holding{}}
}

func (m *memStore) Holdings(_ context.Context, _ int64) ([]Holding, error) {
	var out []Holding
	for _, u := range catalog {
		if h, ok := m.holdings[u.Key]; ok {
			out = append(out, *h)
		}
	}
	return out, nil
}

func (m *memStore) Collect(ctx context.Context, userID int64, now time.Time) (float64, accounts.Balances, error) {
	hs, _ := m.Holdings(ctx, userID)
	amount := PendingYield(hs, now)
	if amount <= 0 {
		return 0, m.bal, nil
	}
	next, err := m.bal.Apply(accounts.Deltas{Materials: amount})
	if err != nil {
		return 0, m.bal, err
	}
	m.bal = next
	for _, h := range m.holdings {
		h.LastCollectedAt = ptr(now)
	}
	return amount, m.bal, nil
}

func (m *memStore) Buy(_ context.Context, _ int64, unit Unit, now time.Time) (*BuyResult, error) {
	current := m.holdings[unit.Key]
	d, settled, err := PlanBuy(m.bal, unit, current, now)
	if err != nil {
		return nil, err
	}
	next, err := m.bal.Apply(d)
	if err != nil {
		return nil, err
	}
	m.bal = next
	if current == nil {
		current = &Holding{Unit: unit}
		m.holdings[unit.Key] = current
	}
	current.Quantity++
	current.LastCollectedAt = ptr(now)
	return &BuyResult{Unit: unit, Quantity: current.Quantity, Settled: settled, Balances: m.bal}, nil
}

func TestService_BuyAndCollect(t *testing.T) {
	clock := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	store := newMemStore()
	store.bal.AvailableCash = 1000
	svc := NewService(store)
	svc.now = func() time.Time { return clock }
	ctx := context.Background()

	res, err := svc.Buy(ctx, 1, "galinha")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Quantity)
	assert.Equal(t, 900.0, res.Balances.AvailableCash)

	pending, err := svc.ComputePending(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, pending)

	clock = clock.Add(12 * time.Hour)
	pending, err = svc.ComputePending(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pending, 1e-9)

	amount, bal, err := svc.Collect(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, amount, 1e-9)
	assert.InDelta(t, 1.0, bal.Materials, 1e-9)

	again, _, err := svc.Collect(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, again, "повторный сбор без прошедшего времени")
}

func TestService_BuyRejections(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)

	_, err := svc.Buy(context.Background(), 1, "unicórnio")
	assert.True(t, errors.Is(err, common.ErrUnknownUnit))

	_, err = svc.Buy(context.Background(), 1, "cavalo")
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)
	assert.Empty(t, store.holdings)
}

func TestFormatOverview(t *testing.T) {
	assert.Contains(t, FormatOverview(&Overview{}), "/comprar")

	vaca, _ := Lookup("vaca")
	text := FormatOverview(&Overview{
		Holdings: []Holding{{Unit: vaca, Quantity: 2}},
		Pending:  12.5,
		Daily:    60,
	})
	assert.Contains(t, text, "🐄 Vaca × 2")
	assert.Contains(t, text, "2 animais")
	assert.Contains(t, text, "12,50")
	assert.Contains(t, FormatShop(), "🐎 Cavalo — 20.000,00")
}
