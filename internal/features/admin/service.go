// Package admin: service.go содержит вход по паролю, сессии и ручные
// начисления. Все начисления идут через журнал счетов.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/config"
	"fazenda.ton/farm-bot/internal/features/accounts"
)

// Store: хранилище сессий. Реализуется Repository.
type Store interface {
	CreateSession(ctx context.Context, session *AdminSession) error
	GetActiveSession(ctx context.Context, userID int64) (*AdminSession, error)
	DeactivateSession(ctx context.Context, userID int64) error
	UpdateActivity(ctx context.Context, userID int64) error
	LogAttempt(ctx context.Context, userID int64, success bool) error
	GetRecentAttempts(ctx context.Context, userID int64, since time.Time) (int, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Accounts: счета пользователей (accounts.Service).
type Accounts interface {
	Adjust(ctx context.Context, userID int64, d accounts.Deltas, kind, description string) (accounts.Balances, error)
	Account(ctx context.Context, userID int64) (*accounts.Account, error)
}

// Service управляет админ-доступом.
type Service struct {
	store    Store
	accounts Accounts
	cfg      *config.Config
	now      func() time.Time

	states   map[int64]*AdminState // in-memory
	statesMu sync.RWMutex
}

// NewService создаёт сервис.
func NewService(store Store, accountsSvc Accounts, cfg *config.Config) *Service {
	return &Service{
		store:    store,
		accounts: accountsSvc,
		cfg:      cfg,
		now:      time.Now,
		states:   make(map[int64]*AdminState),
	}
}

// IsAdmin: пользователь из ADMIN_IDS.
func (s *Service) IsAdmin(userID int64) bool {
	return s.cfg.IsAdmin(userID)
}

// Login проверяет пароль и открывает сессию на 24 часа.
// 3 неудачные попытки за час блокируют вход.
func (s *Service) Login(ctx context.Context, userID int64, password string) error {
	if !s.IsAdmin(userID) {
		return common.ErrNotAdmin
	}

	attempts, err := s.store.GetRecentAttempts(ctx, userID, s.now().Add(-attemptsWindow))
	if err != nil {
		return fmt.Errorf("ошибка проверки попыток: %w", err)
	}
	if attempts >= maxFailedAttempts {
		return common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.cfg.AdminPasswordHash)
	if err := s.store.LogAttempt(ctx, userID, match); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось записать попытку входа")
	}
	if !match {
		log.WithFields(log.Fields{
			"user_id":  userID,
			"attempts": attempts + 1,
		}).Warn("Неверный пароль администратора")
		return common.ErrWrongPassword
	}

	token, err := generateSecureToken()
	if err != nil {
		return err
	}
	err = s.store.CreateSession(ctx, &AdminSession{
		UserID:       userID,
		SessionToken: token,
		ExpiresAt:    s.now().Add(sessionTTL),
	})
	if err != nil {
		return err
	}
	log.WithField("user_id", userID).Info("Администратор вошёл")
	return nil
}

// Logout закрывает сессию.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	s.ClearState(userID)
	return s.store.DeactivateSession(ctx, userID)
}

// RequireSession пропускает только админа с живой сессией.
func (s *Service) RequireSession(ctx context.Context, userID int64) error {
	if !s.IsAdmin(userID) {
		return common.ErrNotAdmin
	}
	if _, err := s.store.GetActiveSession(ctx, userID); err != nil {
		if errors.Is(err, ErrNoSession) {
			return common.ErrSessionExpired
		}
		return err
	}
	if err := s.store.UpdateActivity(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("Не удалось обновить активность")
	}
	return nil
}

// Credit зачисляет amount в корзину bucket пользователя target.
func (s *Service) Credit(ctx context.Context, adminID, target int64, bucket string, amount float64) (accounts.Balances, error) {
	if err := s.RequireSession(ctx, adminID); err != nil {
		return accounts.Balances{}, err
	}
	if amount <= 0 {
		return accounts.Balances{}, common.ErrInvalidAmount
	}
	if target <= 0 {
		target = adminID
	}

	var (
		d    accounts.Deltas
		kind string
	)
	switch bucket {
	case BucketPayment:
		d, kind = accounts.Deltas{PaymentCash: amount}, accounts.KindAdminPayment
	case BucketAvailable:
		d, kind = accounts.Deltas{AvailableCash: amount}, accounts.KindAdminDeposit
	default:
		return accounts.Balances{}, fmt.Errorf("%w: bucket %q", common.ErrInvalidInput, bucket)
	}

	bal, err := s.accounts.Adjust(ctx, target, d, kind, fmt.Sprintf("admin %d", adminID))
	if err != nil {
		return accounts.Balances{}, err
	}
	log.WithFields(log.Fields{
		"admin_id": adminID,
		"user_id":  target,
		"bucket":   bucket,
		"amount":   amount,
	}).Info("Ручное начисление")
	return bal, nil
}

// ShowBalance возвращает счёт пользователя target.
func (s *Service) ShowBalance(ctx context.Context, adminID, target int64) (*accounts.Account, error) {
	if err := s.RequireSession(ctx, adminID); err != nil {
		return nil, err
	}
	if target <= 0 {
		target = adminID
	}
	return s.accounts.Account(ctx, target)
}

// PurgeExpired чистит истёкшие сессии и старые попытки входа.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.PurgeExpired(ctx, s.now().Add(-7*24*time.Hour))
}

// GetState возвращает текущее состояние диалога.
func (s *Service) GetState(userID int64) *AdminState {
	s.statesMu.RLock()
	defer s.statesMu.RUnlock()

	state, ok := s.states[userID]
	if !ok || s.now().After(state.ExpiresAt) {
		return nil
	}
	return state
}

// SetState устанавливает состояние диалога с 5-минутным таймаутом.
func (s *Service) SetState(userID int64, stateName string) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	s.states[userID] = &AdminState{
		State:     stateName,
		ExpiresAt: s.now().Add(stateTTL),
	}
}

// ClearState сбрасывает состояние диалога.
func (s *Service) ClearState(userID int64) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	delete(s.states, userID)
}
