package farm

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/features/accounts"
	"fazenda.ton/farm-bot/internal/metrics"
)

// Store: хранилище животных. Реализуется Repository.
type Store interface {
	Holdings(ctx context.Context, userID int64) ([]Holding, error)
	Collect(ctx context.Context, userID int64, now time.Time) (float64, accounts.Balances, error)
	Buy(ctx context.Context, userID int64, unit Unit, now time.Time) (*BuyResult, error)
}

// Service: покупка животных и сбор материалов.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService создаёт сервис фермы.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Overview возвращает животных и накопленное без записи в базу.
func (s *Service) Overview(ctx context.Context, userID int64) (*Overview, error) {
	holdings, err := s.store.Holdings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Overview{
		Holdings: holdings,
		Pending:  PendingYield(holdings, s.now()),
		Daily:    DailyTotal(holdings),
	}, nil
}

// ComputePending: сколько материалов можно собрать прямо сейчас.
func (s *Service) ComputePending(ctx context.Context, userID int64) (float64, error) {
	o, err := s.Overview(ctx, userID)
	if err != nil {
		return 0, err
	}
	return o.Pending, nil
}

// Collect зачисляет накопленные материалы. Повторный вызов сразу после
// успешного вернёт 0.
func (s *Service) Collect(ctx context.Context, userID int64) (float64, accounts.Balances, error) {
	amount, bal, err := s.store.Collect(ctx, userID, s.now())
	metrics.LedgerOps.WithLabelValues(accounts.KindCollect, metrics.Result(err, common.IsRejection)).Inc()
	if err != nil {
		return 0, accounts.Balances{}, err
	}
	if amount > 0 {
		log.WithFields(log.Fields{
			"user_id":   userID,
			"materials": amount,
		}).Info("Материалы собраны")
	}
	return amount, bal, nil
}

// Buy покупает одну голову вида unitKey.
func (s *Service) Buy(ctx context.Context, userID int64, unitKey string) (*BuyResult, error) {
	unit, err := Lookup(unitKey)
	if err != nil {
		return nil, err
	}
	res, err := s.store.Buy(ctx, userID, unit, s.now())
	metrics.LedgerOps.WithLabelValues(accounts.KindBuy, metrics.Result(err, common.IsRejection)).Inc()
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"user_id":  userID,
		"unit":     unit.Key,
		"quantity": res.Quantity,
		"settled":  res.Settled,
	}).Info("Животное куплено")
	return res, nil
}
