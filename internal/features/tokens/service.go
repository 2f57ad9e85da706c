package tokens

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"fazenda.ton/farm-bot/internal/metrics"
)

// Store: хранилище токенов. Реализуется Repository.
type Store interface {
	Insert(ctx context.Context, t *Token) error
	ConsumeAtomic(ctx context.Context, id string, userID int64, action string, now time.Time) (string, bool, error)
	Lookup(ctx context.Context, id string) (*Token, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// idLen: длина id; вместе с действием укладывается в 64 байта callback_data.
const idLen = 16

// Service выдаёт и гасит токены.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewService создаёт сервис с TTL по умолчанию.
func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{store: store, ttl: ttl, now: time.Now}
}

// NewID возвращает 16 символов URL-safe base64 из crypto/rand.
func NewID() (string, error) {
	b := make([]byte, idLen*3/4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("ошибка генерации токена: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue создаёт токен для действия и возвращает его id.
func (s *Service) Issue(ctx context.Context, userID int64, action, payload string) (string, error) {
	return s.IssueTTL(ctx, userID, action, payload, s.ttl)
}

// IssueTTL: Issue с явным сроком жизни.
func (s *Service) IssueTTL(ctx context.Context, userID int64, action, payload string, ttl time.Duration) (string, error) {
	id, err := NewID()
	if err != nil {
		return "", err
	}
	now := s.now()
	t := &Token{
		ID:        id,
		UserID:    userID,
		Action:    action,
		Payload:   payload,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return "", err
	}
	return id, nil
}

// Consume гасит токен. Успех возможен ровно один раз; при отказе
// состояние не меняется, причина берётся чтением без записи.
func (s *Service) Consume(ctx context.Context, id string, userID int64, action string) (Result, error) {
	now := s.now()
	payload, ok, err := s.store.ConsumeAtomic(ctx, id, userID, action, now)
	if err != nil {
		return Result{}, err
	}
	if ok {
		metrics.CallbackTokens.WithLabelValues("ok").Inc()
		return Result{OK: true, Payload: payload}, nil
	}

	reason, err := s.reason(ctx, id, userID, action, now)
	if err != nil {
		return Result{}, err
	}
	metrics.CallbackTokens.WithLabelValues("rejected").Inc()
	log.WithFields(log.Fields{
		"user_id": userID,
		"action":  action,
		"reason":  string(reason),
	}).Debug("Токен отклонён")
	return Result{Reason: reason}, nil
}

func (s *Service) reason(ctx context.Context, id string, userID int64, action string, now time.Time) (Reason, error) {
	t, err := s.store.Lookup(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ReasonNotFound, nil
	}
	if err != nil {
		return ReasonNone, err
	}
	switch {
	case t.UserID != userID:
		return ReasonNotYours, nil
	case t.Action != action:
		return ReasonWrongPlace, nil
	case t.Used:
		return ReasonUsed, nil
	case !t.ExpiresAt.After(now):
		return ReasonExpired, nil
	default:
		// гонка: токен погасили между UPDATE и SELECT
		return ReasonUsed, nil
	}
}

// Purge удаляет истёкшие токены.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}

// CallbackData собирает строку callback_data: "<action>:<id>".
func CallbackData(action, id string) string {
	return action + ":" + id
}

// ParseCallbackData разбирает "<action>:<id>".
func ParseCallbackData(data string) (action, id string, ok bool) {
	action, id, ok = strings.Cut(data, ":")
	if !ok || action == "" || id == "" {
		return "", "", false
	}
	return action, id, true
}
