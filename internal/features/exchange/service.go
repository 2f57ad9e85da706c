package exchange

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/features/accounts"
	"fazenda.ton/farm-bot/internal/metrics"
)

// Applier: транзакционное изменение счёта по плану (accounts.Repository).
type Applier interface {
	Apply(ctx context.Context, userID int64, kind string, plan accounts.Plan) (accounts.Balances, error)
}

// RateSource: курс крипты в местной валюте (price.Oracle).
type RateSource interface {
	Rate(ctx context.Context) float64
}

// Conversion: итог конвертации материалов.
type Conversion struct {
	Split
	Balances accounts.Balances
}

// Swap: итог обмена payment_cash на крипту.
type Swap struct {
	Cash           float64
	Crypto         float64
	Rate           float64
	UnitsPerCrypto int64
	Balances       accounts.Balances
}

// Quote: текущий курс для меню обмена.
type Quote struct {
	Rate           float64
	UnitsPerCrypto int64
}

// Service выполняет конвертации.
type Service struct {
	store Applier
	rates RateSource
	rules Rules
}

// NewService создаёт сервис конвертации.
func NewService(store Applier, rates RateSource, rules Rules) *Service {
	return &Service{store: store, rates: rates, rules: rules}
}

// Rules возвращает действующие правила.
func (s *Service) Rules() Rules {
	return s.rules
}

// Quote возвращает курс и цену одной единицы крипты в cash.
func (s *Service) Quote(ctx context.Context) Quote {
	rate := s.rates.Rate(ctx)
	return Quote{Rate: rate, UnitsPerCrypto: UnitsPerCrypto(rate, s.rules.CashPerFiat)}
}

// ConvertMaterials переводит целые лоты материалов в payment_cash и available_cash.
func (s *Service) ConvertMaterials(ctx context.Context, userID int64) (*Conversion, error) {
	var split Split
	bal, err := s.store.Apply(ctx, userID, accounts.KindConvertMaterials,
		func(cur accounts.Balances) (accounts.Deltas, string, error) {
			var err error
			split, err = SplitMaterials(cur.Materials, s.rules)
			if err != nil {
				return accounts.Deltas{}, "", err
			}
			d := accounts.Deltas{
				Materials:     -float64(split.Consumed),
				PaymentCash:   float64(split.Payment),
				AvailableCash: float64(split.Available),
			}
			return d, fmt.Sprintf("%d lotes de materiais", split.Lots), nil
		})
	metrics.LedgerOps.WithLabelValues(accounts.KindConvertMaterials, metrics.Result(err, common.IsRejection)).Inc()
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":   userID,
		"lots":      split.Lots,
		"payment":   split.Payment,
		"available": split.Available,
	}).Info("Материалы конвертированы")
	return &Conversion{Split: split, Balances: bal}, nil
}

// SwapToCrypto меняет payment_cash на крипту по текущему курсу.
// Курс берётся до блокировки счёта: оракул может ходить в сеть.
func (s *Service) SwapToCrypto(ctx context.Context, userID int64, amt SwapAmount) (*Swap, error) {
	q := s.Quote(ctx)
	res := &Swap{Rate: q.Rate, UnitsPerCrypto: q.UnitsPerCrypto}

	bal, err := s.store.Apply(ctx, userID, accounts.KindSwap,
		func(cur accounts.Balances) (accounts.Deltas, string, error) {
			cash, err := ResolveSwap(cur.PaymentCash, amt, s.rules)
			if err != nil {
				return accounts.Deltas{}, "", err
			}
			res.Cash = cash
			res.Crypto = cash / float64(q.UnitsPerCrypto)
			d := accounts.Deltas{PaymentCash: -cash, Crypto: res.Crypto}
			return d, fmt.Sprintf("Troca a %d por unidade", q.UnitsPerCrypto), nil
		})
	metrics.LedgerOps.WithLabelValues(accounts.KindSwap, metrics.Result(err, common.IsRejection)).Inc()
	if err != nil {
		return nil, err
	}
	res.Balances = bal

	log.WithFields(log.Fields{
		"user_id": userID,
		"cash":    res.Cash,
		"crypto":  res.Crypto,
		"rate":    res.Rate,
	}).Info("Обмен на крипту выполнен")
	return res, nil
}
