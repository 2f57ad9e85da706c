package payout

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/cryptopay"
	"fazenda.ton/farm-bot/internal/features/accounts"
)

var testWallet = "UQ" + strings.Repeat("x", 46)

// memStore держит один счёт и заявки в памяти.
type memStore struct {
	mu    sync.Mutex
	acc   accounts.Account
	rows  map[int64]*Withdrawal
	keys  map[string]bool
	next  int64
	doneE error
}

func newMemStore(crypto float64, wallet string) *memStore {
	return &memStore{
		acc:  accounts.Account{UserID: 1, Balances: accounts.Balances{Crypto: crypto}, Wallet: wallet},
		rows: map[int64]*Withdrawal{},
		keys: map[string]bool{},
	}
}

func (m *memStore) GetAccount(_ context.Context, _ int64) (*accounts.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.acc
	return &cp, nil
}

func (m *memStore) CreateAndDebit(_ context.Context, userID int64, amount float64, wallet, key string) (*Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.acc.Balances.Apply(accounts.Deltas{Crypto: -amount})
	if err != nil {
		return nil, err
	}
	if m.keys[key] {
		return nil, errors.New("duplicate key")
	}
	m.acc.Balances = next
	m.next++
	w := &Withdrawal{ID: m.next, UserID: userID, Amount: amount, Wallet: wallet, Status: StatusProcessing, IdempotencyKey: key}
	m.rows[w.ID] = w
	m.keys[key] = true
	cp := *w
	return &cp, nil
}

func (m *memStore) MarkDone(_ context.Context, id int64, ref, voucherURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doneE != nil {
		return m.doneE
	}
	w := m.rows[id]
	if w.Status != StatusProcessing {
		return ErrNotProcessing
	}
	w.Status, w.ProviderRef, w.VoucherURL = StatusDone, ref, voucherURL
	return nil
}

func (m *memStore) ReverseAndFail(_ context.Context, in *Withdrawal, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.rows[in.ID]
	if w.Status != StatusProcessing {
		return ErrNotProcessing
	}
	next, err := m.acc.Balances.Apply(accounts.Deltas{Crypto: w.Amount})
	if err != nil {
		return err
	}
	m.acc.Balances = next
	w.Status, w.FailureReason = StatusFailed, reason
	return nil
}

func (m *memStore) History(_ context.Context, _ int64, _ int) ([]*Withdrawal, error) {
	return nil, nil
}

func (m *memStore) Stuck(_ context.Context, _ time.Duration) ([]*Withdrawal, error) {
	return nil, nil
}

type mockProvider struct {
	mock.Mock
}

func (p *mockProvider) CreatePayout(ctx context.Context, asset string, amount decimal.Decimal, address, spendID string) (*cryptopay.Payout, error) {
	args := p.Called(asset, amount.String(), address, spendID)
	out, _ := args.Get(0).(*cryptopay.Payout)
	return out, args.Error(1)
}

func (p *mockProvider) CreateCheck(ctx context.Context, asset string, amount decimal.Decimal, pinUserID int64, idemKey string) (*cryptopay.Check, error) {
	args := p.Called(asset, amount.String(), pinUserID, idemKey)
	out, _ := args.Get(0).(*cryptopay.Check)
	return out, args.Error(1)
}

func (p *mockProvider) Available(ctx context.Context, asset string) (decimal.Decimal, error) {
	args := p.Called(asset)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func newService(store *memStore, prov *mockProvider, liquidity bool) *Service {
	return NewService(store, store, prov, Options{Asset: "TON", MinAmount: 0.1, LiquidityCheck: liquidity})
}

func onlyRow(t *testing.T, m *memStore) *Withdrawal {
	t.Helper()
	require.Len(t, m.rows, 1)
	for _, w := range m.rows {
		return w
	}
	return nil
}

func TestWithdraw_Payout(t *testing.T) {
	store := newMemStore(2, testWallet)
	prov := &mockProvider{}
	prov.On("Available", "TON").Return(decimal.NewFromInt(100), nil)
	prov.On("CreatePayout", "TON", "1.5", testWallet, mock.AnythingOfType("string")).
		Return(&cryptopay.Payout{ID: 501, Status: "completed"}, nil)

	res, err := newService(store, prov, true).Withdraw(context.Background(), 1, 1.5)
	require.NoError(t, err)
	assert.Equal(t, OutcomePayout, res.Outcome)
	assert.Equal(t, "501", res.Reference)

	w := onlyRow(t, store)
	assert.Equal(t, StatusDone, w.Status)
	assert.InDelta(t, 0.5, store.acc.Crypto, 1e-12, "баланс остаётся списанным")
	assert.Regexp(t, regexp.MustCompile(`^wd-1-\d+-[0-9a-f]{8}$`), w.IdempotencyKey)

	spendID := prov.Calls[1].Arguments.String(3)
	assert.Equal(t, w.IdempotencyKey, spendID)
	prov.AssertExpectations(t)
	prov.AssertNotCalled(t, "CreateCheck", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWithdraw_VoucherFallback(t *testing.T) {
	store := newMemStore(1, testWallet)
	prov := &mockProvider{}
	prov.On("CreatePayout", "TON", "1", testWallet, mock.Anything).
		Return(nil, &cryptopay.APIError{Status: 400, Code: 400, Name: "METHOD_DISABLED"})
	prov.On("CreateCheck", "TON", "1", int64(1), mock.AnythingOfType("string")).
		Return(&cryptopay.Check{ID: 9, URL: "https://t.me/CryptoBot?start=CQ9"}, nil)

	res, err := newService(store, prov, false).Withdraw(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVoucher, res.Outcome)
	assert.Equal(t, "https://t.me/CryptoBot?start=CQ9", res.VoucherURL)

	w := onlyRow(t, store)
	assert.Equal(t, StatusDone, w.Status)
	assert.Equal(t, res.VoucherURL, w.VoucherURL)
	assert.InDelta(t, 0, store.acc.Crypto, 1e-12)
	assert.Equal(t, w.IdempotencyKey, prov.Calls[1].Arguments.String(3), "чек несёт ключ заявки")
	prov.AssertNotCalled(t, "Available", mock.Anything)
}

func TestWithdraw_VoucherFailsReverses(t *testing.T) {
	store := newMemStore(1, testWallet)
	prov := &mockProvider{}
	prov.On("CreatePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &cryptopay.APIError{Status: 405, Name: "METHOD_NOT_ALLOWED"})
	prov.On("CreateCheck", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("boom"))

	_, err := newService(store, prov, false).Withdraw(context.Background(), 1, 0.4)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExternalProvider)

	w := onlyRow(t, store)
	assert.Equal(t, StatusFailed, w.Status)
	assert.InDelta(t, 1, store.acc.Crypto, 1e-12, "полный возврат")
}

func TestWithdraw_ProviderFailureReverses(t *testing.T) {
	store := newMemStore(3, testWallet)
	prov := &mockProvider{}
	prov.On("CreatePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &cryptopay.APIError{Status: 400, Name: "INSUFFICIENT_FUNDS"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newService(store, prov, false).Withdraw(ctx, 1, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExternalProvider)

	w := onlyRow(t, store)
	assert.Equal(t, StatusFailed, w.Status)
	assert.Contains(t, w.FailureReason, "INSUFFICIENT_FUNDS")
	assert.InDelta(t, 3, store.acc.Crypto, 1e-12)
	prov.AssertNotCalled(t, "CreateCheck", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWithdraw_RetryGetsNewKey(t *testing.T) {
	store := newMemStore(3, testWallet)
	prov := &mockProvider{}
	prov.On("CreatePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout")).Once()
	prov.On("CreatePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&cryptopay.Payout{ID: 2}, nil).Once()
	svc := newService(store, prov, false)

	_, err := svc.Withdraw(context.Background(), 1, 1)
	require.Error(t, err)
	_, err = svc.Withdraw(context.Background(), 1, 1)
	require.NoError(t, err)

	assert.Len(t, store.rows, 2)
	assert.NotEqual(t, store.rows[1].IdempotencyKey, store.rows[2].IdempotencyKey)
	assert.Equal(t, StatusFailed, store.rows[1].Status)
	assert.Equal(t, StatusDone, store.rows[2].Status)
	assert.InDelta(t, 2, store.acc.Crypto, 1e-12)
}

func TestWithdraw_RejectedBeforeProvider(t *testing.T) {
	cases := []struct {
		name   string
		crypto float64
		wallet string
		amount float64
		want   error
	}{
		{"сумма больше баланса", 1, testWallet, 1.5, common.ErrInsufficientFunds},
		{"ниже минимума", 1, testWallet, 0.05, common.ErrBelowMinimum},
		{"ноль", 1, testWallet, 0, common.ErrInvalidAmount},
		{"нет кошелька", 1, "", 0.5, common.ErrWalletMissing},
		{"плохой кошелёк", 1, "UQshort", 0.5, common.ErrInvalidWallet},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore(tc.crypto, tc.wallet)
			prov := &mockProvider{}

			_, err := newService(store, prov, true).Withdraw(context.Background(), 1, tc.amount)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, store.rows)
			assert.Equal(t, tc.crypto, store.acc.Crypto)
			prov.AssertNotCalled(t, "Available", mock.Anything)
			prov.AssertNotCalled(t, "CreatePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestWithdraw_OperatorLiquidity(t *testing.T) {
	store := newMemStore(5, testWallet)
	prov := &mockProvider{}
	prov.On("Available", "TON").Return(decimal.RequireFromString("0.5"), nil)

	_, err := newService(store, prov, true).Withdraw(context.Background(), 1, 1)
	assert.ErrorIs(t, err, common.ErrOperatorLiquidity)
	assert.Empty(t, store.rows, "заявка не создаётся")
	assert.Equal(t, 5.0, store.acc.Crypto)
	prov.AssertNotCalled(t, "CreatePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWithdraw_MarkDoneFailureKeepsSuccess(t *testing.T) {
	store := newMemStore(1, testWallet)
	store.doneE = errors.New("db down")
	prov := &mockProvider{}
	prov.On("CreatePayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&cryptopay.Payout{ID: 3}, nil)

	res, err := newService(store, prov, false).Withdraw(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomePayout, res.Outcome)
	assert.Equal(t, StatusProcessing, onlyRow(t, store).Status, "не откатываем отправленную выплату")
	assert.InDelta(t, 0, store.acc.Crypto, 1e-12)
}

func TestNewIdempotencyKey(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	a := NewIdempotencyKey(42, now)
	b := NewIdempotencyKey(42, now)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "wd-42-1760000000-"))
	assert.Len(t, strings.TrimPrefix(a, "wd-42-1760000000-"), 8)
}

func TestFormatResultAndHistory(t *testing.T) {
	w := &Withdrawal{Amount: 1.5, Wallet: testWallet, Status: StatusDone, CreatedAt: time.Unix(0, 0)}
	assert.Contains(t, FormatResult(&Result{Withdrawal: w, Outcome: OutcomePayout, Reference: "7"}, "TON"), "1.500000 TON")
	assert.Contains(t, FormatResult(&Result{Withdrawal: w, Outcome: OutcomeVoucher, VoucherURL: "https://v"}, "TON"), "https://v")

	text := FormatHistory([]*Withdrawal{w}, "TON", time.UTC)
	assert.Contains(t, text, "concluído")
	assert.Equal(t, "💸 Você ainda não fez saques", FormatHistory(nil, "TON", time.UTC))
}
