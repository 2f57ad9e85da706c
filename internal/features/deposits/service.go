package deposits

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/config"
	"fazenda.ton/farm-bot/internal/cryptopay"
	"fazenda.ton/farm-bot/internal/features/accounts"
	"fazenda.ton/farm-bot/internal/metrics"
)

// Store: хранилище депозитов. Реализуется Repository.
type Store interface {
	Record(ctx context.Context, d Deposit) (*Result, error)
}

// InvoiceCreator: создание счёта у провайдера (cryptopay.Client).
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, r cryptopay.InvoiceRequest) (*cryptopay.Invoice, error)
}

// Options: параметры пополнения.
type Options struct {
	CashPerFiat int64
	RefPct      float64
	MinFiat     decimal.Decimal
	Fiat        string
	Asset       string
}

// OptionsFromConfig собирает Options из конфигурации.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CashPerFiat: cfg.CashPerFiat,
		RefPct:      cfg.RefPct,
		MinFiat:     decimal.NewFromFloat(cfg.MinDepositFiat),
		Fiat:        cfg.FiatCurrency,
		Asset:       cfg.CryptoAsset,
	}
}

// Service зачисляет депозиты и выставляет счета.
type Service struct {
	store    Store
	invoices InvoiceCreator
	opts     Options
}

// NewService создаёт сервис пополнений.
func NewService(store Store, invoices InvoiceCreator, opts Options) *Service {
	if opts.CashPerFiat <= 0 {
		opts.CashPerFiat = 100
	}
	return &Service{store: store, invoices: invoices, opts: opts}
}

// Options возвращает параметры сервиса.
func (s *Service) Options() Options {
	return s.opts
}

// RecordDeposit зачисляет оплаченный счёт. Повтор того же invoiceID
// возвращает первую запись с Duplicate = true и ничего не меняет.
func (s *Service) RecordDeposit(ctx context.Context, invoiceID string, userID int64, fiat decimal.Decimal) (*Result, error) {
	if invoiceID == "" || userID <= 0 {
		return nil, fmt.Errorf("%w: fatura sem id ou usuário", common.ErrInvalidInput)
	}
	if !fiat.IsPositive() {
		return nil, common.ErrInvalidAmount
	}

	cash, bonus := ComputeCredit(fiat, s.opts.CashPerFiat, s.opts.RefPct)
	res, err := s.store.Record(ctx, Deposit{
		InvoiceID: invoiceID,
		UserID:    userID,
		Fiat:      fiat,
		Cash:      cash,
		Bonus:     bonus,
	})
	metrics.LedgerOps.WithLabelValues(accounts.KindDeposit, metrics.Result(err, common.IsRejection)).Inc()
	if err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{
		"invoice_id": invoiceID,
		"user_id":    res.UserID,
		"fiat":       res.Fiat.String(),
		"cash":       res.Cash,
	})
	if res.Duplicate {
		logger.Info("Повторное уведомление о счёте, зачисление пропущено")
		return res, nil
	}
	if res.Bonus > 0 {
		logger = logger.WithFields(log.Fields{
			"referrer_id": res.ReferrerID,
			"bonus":       res.Bonus,
		})
	}
	logger.Info("Депозит зачислен")
	return res, nil
}

// CreateInvoice выставляет счёт на fiat реалов, оплачиваемый криптой.
// В payload уходит id пользователя, по нему вебхук найдёт счёт.
func (s *Service) CreateInvoice(ctx context.Context, userID int64, fiat decimal.Decimal) (string, error) {
	if !fiat.IsPositive() {
		return "", common.ErrInvalidAmount
	}
	if fiat.LessThan(s.opts.MinFiat) {
		return "", fmt.Errorf("%w: mínimo %s", common.ErrBelowMinimum, common.FormatFiat(s.opts.MinFiat))
	}

	inv, err := s.invoices.CreateInvoice(ctx, cryptopay.InvoiceRequest{
		Fiat:           s.opts.Fiat,
		Amount:         fiat.Round(2),
		AcceptedAssets: s.opts.Asset,
		Payload:        strconv.FormatInt(userID, 10),
		Description:    "Depósito Fazenda TON " + common.FormatFiat(fiat),
	})
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Не удалось создать счёт")
		return "", fmt.Errorf("%w: %w", common.ErrExternalProvider, err)
	}
	link := inv.Link()
	if link == "" {
		return "", fmt.Errorf("%w: fatura sem link", common.ErrExternalProvider)
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"invoice_id": inv.ID,
		"fiat":       fiat.String(),
	}).Info("Счёт на пополнение создан")
	return link, nil
}
