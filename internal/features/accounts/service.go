package accounts

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Service: операции со счётом для обработчиков и админки.
type Service struct {
	repo *Repository
}

// NewService создаёт сервис счетов.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Repository отдаёт хранилище для модулей, которым нужны транзакции.
func (s *Service) Repository() *Repository {
	return s.repo
}

// Register создаёт счёт и, если передан referrerID, запоминает пригласившего.
// Пригласивший должен уже иметь счёт: чужой id из ссылки счёт не создаёт.
func (s *Service) Register(ctx context.Context, userID, referrerID int64) error {
	if err := s.repo.EnsureAccount(ctx, userID); err != nil {
		return err
	}
	if referrerID <= 0 || referrerID == userID {
		return nil
	}
	created, err := s.repo.SetReferrer(ctx, userID, referrerID)
	if err != nil {
		return err
	}
	if created {
		log.WithFields(log.Fields{
			"user_id":     userID,
			"referrer_id": referrerID,
		}).Info("Новый реферал")
	}
	return nil
}

// Account возвращает счёт пользователя.
func (s *Service) Account(ctx context.Context, userID int64) (*Account, error) {
	return s.repo.GetAccount(ctx, userID)
}

// Balances возвращает балансы пользователя.
func (s *Service) Balances(ctx context.Context, userID int64) (Balances, error) {
	return s.repo.GetBalances(ctx, userID)
}

// Adjust: ручное изменение баланса (админка).
func (s *Service) Adjust(ctx context.Context, userID int64, d Deltas, kind, description string) (Balances, error) {
	b, err := s.repo.Adjust(ctx, userID, d, kind, description)
	if err != nil {
		return b, err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"kind":    kind,
		"deltas":  d,
	}).Info("Баланс изменён")
	return b, nil
}

// SetWallet проверяет и сохраняет адрес кошелька.
func (s *Service) SetWallet(ctx context.Context, userID int64, raw string) (string, error) {
	return s.repo.SetWallet(ctx, userID, raw)
}

// CountReferrals считает приглашённых.
func (s *Service) CountReferrals(ctx context.Context, userID int64) (int64, error) {
	return s.repo.CountReferrals(ctx, userID)
}

// History возвращает последние движения по счёту.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*Entry, error) {
	return s.repo.History(ctx, userID, limit)
}
