// Package tokens: repository.go работает с таблицей callback_tokens.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fazenda.ton/farm-bot/internal/db/postgres"
)

// ErrNotFound: токена нет в базе.
var ErrNotFound = errors.New("токен не найден")

// Repository: хранилище токенов в PostgreSQL.
type Repository struct {
	db postgres.DB
}

// NewRepository создаёт репозиторий.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// Insert сохраняет новый токен.
func (r *Repository) Insert(ctx context.Context, t *Token) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO callback_tokens (id, user_id, action, payload, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.UserID, t.Action, t.Payload, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}
	return nil
}

// ConsumeAtomic помечает токен использованным одним условным UPDATE.
// Возвращает payload и true, если именно этот вызов погасил токен.
func (r *Repository) ConsumeAtomic(ctx context.Context, id string, userID int64, action string, now time.Time) (string, bool, error) {
	var payload string
	err := r.db.QueryRow(ctx, `
		UPDATE callback_tokens SET used = TRUE
		WHERE id = $1 AND user_id = $2 AND action = $3
		  AND NOT used AND expires_at > $4
		RETURNING payload
	`, id, userID, action, now).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ошибка погашения токена: %w", err)
	}
	return payload, true, nil
}

// Lookup читает токен без изменений (для выбора причины отказа).
func (r *Repository) Lookup(ctx context.Context, id string) (*Token, error) {
	var t Token
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, action, payload, expires_at, used, created_at
		FROM callback_tokens WHERE id = $1
	`, id).Scan(&t.ID, &t.UserID, &t.Action, &t.Payload, &t.ExpiresAt, &t.Used, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения токена: %w", err)
	}
	return &t, nil
}

// DeleteExpired удаляет истёкшие токены.
func (r *Repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM callback_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки токенов: %w", err)
	}
	return tag.RowsAffected(), nil
}
