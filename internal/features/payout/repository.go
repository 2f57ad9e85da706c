// Package payout: repository.go работает с таблицей withdrawals.
// Списание и создание заявки, возврат и перевод в failed: каждая пара
// выполняется одной транзакцией вместе с изменением баланса.
package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fazenda.ton/farm-bot/internal/db/postgres"
	"fazenda.ton/farm-bot/internal/features/accounts"
)

// ErrNotProcessing: заявка уже не в processing, переход запрещён.
var ErrNotProcessing = errors.New("заявка не в статусе processing")

// Repository: хранилище заявок на вывод.
type Repository struct {
	db       postgres.DB
	accounts *accounts.Repository
}

// NewRepository создаёт репозиторий.
func NewRepository(db postgres.DB, accountsRepo *accounts.Repository) *Repository {
	return &Repository{db: db, accounts: accountsRepo}
}

// CreateAndDebit списывает крипту и создаёт заявку в статусе processing.
func (r *Repository) CreateAndDebit(ctx context.Context, userID int64, amount float64, wallet, key string) (*Withdrawal, error) {
	w := &Withdrawal{
		UserID:         userID,
		Amount:         amount,
		Wallet:         wallet,
		Status:         StatusProcessing,
		IdempotencyKey: key,
	}
	err := r.accounts.Tx(ctx, func(s *accounts.TxStore) error {
		if _, err := s.Adjust(ctx, userID, accounts.Deltas{Crypto: -amount}, accounts.KindWithdraw,
			"Saque "+key); err != nil {
			return err
		}
		err := s.Tx().QueryRow(ctx, `
			INSERT INTO withdrawals (user_id, requested_amount, destination_wallet, status, idempotency_key)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at
		`, userID, amount, wallet, StatusProcessing, key).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
		if err != nil {
			return fmt.Errorf("ошибка создания заявки на вывод: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// MarkDone переводит заявку processing -> done.
func (r *Repository) MarkDone(ctx context.Context, id int64, providerRef, voucherURL string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE withdrawals
		SET status = $2, provider_ref = $3, voucher_url = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1 AND status = $5
	`, id, StatusDone, providerRef, voucherURL, StatusProcessing)
	if err != nil {
		return fmt.Errorf("ошибка завершения заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotProcessing
	}
	return nil
}

// ReverseAndFail возвращает крипту и переводит заявку processing -> failed.
// Если заявка уже не в processing, баланс не трогается.
func (r *Repository) ReverseAndFail(ctx context.Context, w *Withdrawal, reason string) error {
	return r.accounts.Tx(ctx, func(s *accounts.TxStore) error {
		tag, err := s.Tx().Exec(ctx, `
			UPDATE withdrawals
			SET status = $2, failure_reason = $3, updated_at = NOW()
			WHERE id = $1 AND status = $4
		`, w.ID, StatusFailed, reason, StatusProcessing)
		if err != nil {
			return fmt.Errorf("ошибка перевода заявки в failed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotProcessing
		}
		_, err = s.Adjust(ctx, w.UserID, accounts.Deltas{Crypto: w.Amount}, accounts.KindWithdrawReversal,
			"Estorno "+w.IdempotencyKey)
		return err
	})
}

const selectWithdrawal = `
	SELECT id, user_id, requested_amount, destination_wallet, status, idempotency_key,
	       COALESCE(provider_ref, ''), COALESCE(voucher_url, ''), COALESCE(failure_reason, ''),
	       created_at, updated_at
	FROM withdrawals
`

func (r *Repository) list(ctx context.Context, sql string, args ...any) ([]*Withdrawal, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявок: %w", err)
	}
	defer rows.Close()

	var out []*Withdrawal
	for rows.Next() {
		var w Withdrawal
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.Amount, &w.Wallet, &w.Status, &w.IdempotencyKey,
			&w.ProviderRef, &w.VoucherURL, &w.FailureReason,
			&w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// History возвращает последние заявки пользователя.
func (r *Repository) History(ctx context.Context, userID int64, limit int) ([]*Withdrawal, error) {
	return r.list(ctx, selectWithdrawal+`
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
}

// Stuck возвращает заявки, застрявшие в processing дольше olderThan.
func (r *Repository) Stuck(ctx context.Context, olderThan time.Duration) ([]*Withdrawal, error) {
	return r.list(ctx, selectWithdrawal+`
		WHERE status = $1 AND updated_at < NOW() - make_interval(secs => $2)
		ORDER BY created_at
	`, StatusProcessing, olderThan.Seconds())
}
