package payout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/config"
	"fazenda.ton/farm-bot/internal/cryptopay"
	"fazenda.ton/farm-bot/internal/features/accounts"
	"fazenda.ton/farm-bot/internal/metrics"
)

// Store: хранилище заявок. Реализуется Repository.
type Store interface {
	CreateAndDebit(ctx context.Context, userID int64, amount float64, wallet, key string) (*Withdrawal, error)
	MarkDone(ctx context.Context, id int64, providerRef, voucherURL string) error
	ReverseAndFail(ctx context.Context, w *Withdrawal, reason string) error
	History(ctx context.Context, userID int64, limit int) ([]*Withdrawal, error)
	Stuck(ctx context.Context, olderThan time.Duration) ([]*Withdrawal, error)
}

// AccountReader: чтение счёта без блокировки.
type AccountReader interface {
	GetAccount(ctx context.Context, userID int64) (*accounts.Account, error)
}

// Provider: платёжный провайдер (cryptopay.Client).
type Provider interface {
	CreatePayout(ctx context.Context, asset string, amount decimal.Decimal, address, spendID string) (*cryptopay.Payout, error)
	CreateCheck(ctx context.Context, asset string, amount decimal.Decimal, pinUserID int64, idemKey string) (*cryptopay.Check, error)
	Available(ctx context.Context, asset string) (decimal.Decimal, error)
}

// Options: параметры вывода.
type Options struct {
	Asset          string
	MinAmount      float64
	LiquidityCheck bool
}

// OptionsFromConfig собирает Options из конфигурации.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Asset:          cfg.CryptoAsset,
		MinAmount:      cfg.MinWithdrawCrypto,
		LiquidityCheck: cfg.PayoutLiquidityCheck,
	}
}

// Service проводит вывод крипты.
type Service struct {
	store    Store
	accounts AccountReader
	provider Provider
	opts     Options
	now      func() time.Time
}

// NewService создаёт сервис вывода.
func NewService(store Store, accountsReader AccountReader, provider Provider, opts Options) *Service {
	return &Service{
		store:    store,
		accounts: accountsReader,
		provider: provider,
		opts:     opts,
		now:      time.Now,
	}
}

// Withdraw выводит amount крипты на кошелёк пользователя.
//
// До списания: проверка суммы и кошелька, проверка баланса чтением и
// (опционально) проверка баланса оператора. После списания вызов
// не отменяется: заявка обязана закончиться в done или failed.
func (s *Service) Withdraw(ctx context.Context, userID int64, amount float64) (*Result, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	if amount+common.Epsilon < s.opts.MinAmount {
		return nil, fmt.Errorf("%w: mínimo %s", common.ErrBelowMinimum, common.FormatCrypto(s.opts.MinAmount, s.opts.Asset))
	}

	acc, err := s.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acc.Wallet == "" {
		return nil, common.ErrWalletMissing
	}
	wallet, err := accounts.NormalizeWallet(acc.Wallet)
	if err != nil {
		return nil, err
	}
	if acc.Crypto+common.Epsilon < amount {
		metrics.LedgerOps.WithLabelValues(accounts.KindWithdraw, "rejected").Inc()
		return nil, common.ErrInsufficientFunds
	}

	sendAmount := decimal.NewFromFloat(amount).Round(9)

	if s.opts.LiquidityCheck {
		avail, err := s.provider.Available(ctx, s.opts.Asset)
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Warn("Не удалось проверить баланс оператора")
			return nil, fmt.Errorf("%w: %w", common.ErrExternalProvider, err)
		}
		if avail.LessThan(sendAmount) {
			metrics.Withdrawals.WithLabelValues("liquidity").Inc()
			log.WithFields(log.Fields{
				"user_id":   userID,
				"amount":    amount,
				"available": avail.String(),
			}).Warn("У оператора не хватает средств на выплату")
			return nil, common.ErrOperatorLiquidity
		}
	}

	// дальше отмена вызывающего не прерывает заявку
	ctx = context.WithoutCancel(ctx)

	key := NewIdempotencyKey(userID, s.now())
	w, err := s.store.CreateAndDebit(ctx, userID, amount, wallet, key)
	metrics.LedgerOps.WithLabelValues(accounts.KindWithdraw, metrics.Result(err, common.IsRejection)).Inc()
	if err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{
		"user_id":         userID,
		"withdrawal_id":   w.ID,
		"idempotency_key": key,
		"amount":          amount,
	})

	p, err := s.provider.CreatePayout(ctx, s.opts.Asset, sendAmount, wallet, key)
	if err == nil {
		ref := strconv.FormatInt(p.ID, 10)
		s.markDone(ctx, w, ref, "", logger)
		metrics.Withdrawals.WithLabelValues(string(OutcomePayout)).Inc()
		logger.WithField("payout_id", p.ID).Info("Выплата отправлена")
		return &Result{Withdrawal: w, Outcome: OutcomePayout, Reference: ref}, nil
	}

	if errors.Is(err, cryptopay.ErrMethodUnavailable) {
		logger.WithError(err).Info("Прямые выплаты отключены, создаём чек")
		check, checkErr := s.provider.CreateCheck(ctx, s.opts.Asset, sendAmount, userID, key)
		if checkErr == nil {
			ref := strconv.FormatInt(check.ID, 10)
			s.markDone(ctx, w, ref, check.URL, logger)
			metrics.Withdrawals.WithLabelValues(string(OutcomeVoucher)).Inc()
			logger.WithField("check_id", check.ID).Info("Чек создан")
			return &Result{Withdrawal: w, Outcome: OutcomeVoucher, Reference: ref, VoucherURL: check.URL}, nil
		}
		err = fmt.Errorf("чек: %w", checkErr)
	}

	return nil, s.reverse(ctx, w, err, logger)
}

// markDone не возвращает ошибку: деньги уже ушли, и заявка, оставшаяся
// в processing, попадёт в оповещение о зависших выплатах.
func (s *Service) markDone(ctx context.Context, w *Withdrawal, ref, voucherURL string, logger *log.Entry) {
	if err := s.store.MarkDone(ctx, w.ID, ref, voucherURL); err != nil {
		logger.WithError(err).Error("Не удалось перевести заявку в done")
		return
	}
	w.Status = StatusDone
	w.ProviderRef = ref
	w.VoucherURL = voucherURL
}

func (s *Service) reverse(ctx context.Context, w *Withdrawal, cause error, logger *log.Entry) error {
	logger.WithError(cause).Warn("Выплата не удалась, возвращаем средства")

	if err := s.store.ReverseAndFail(ctx, w, cause.Error()); err != nil {
		metrics.Withdrawals.WithLabelValues("reverse_failed").Inc()
		logger.WithError(err).Error("Не удалось вернуть средства по заявке")
		return fmt.Errorf("%w: %w", common.ErrExternalProvider, errors.Join(cause, err))
	}
	w.Status = StatusFailed
	w.FailureReason = cause.Error()
	metrics.Withdrawals.WithLabelValues("reversed").Inc()
	return fmt.Errorf("%w: %w", common.ErrExternalProvider, cause)
}

// History: последние заявки пользователя.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*Withdrawal, error) {
	return s.store.History(ctx, userID, limit)
}

// Stuck: заявки в processing старше olderThan.
func (s *Service) Stuck(ctx context.Context, olderThan time.Duration) ([]*Withdrawal, error) {
	return s.store.Stuck(ctx, olderThan)
}
