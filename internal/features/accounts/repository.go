// Package accounts: repository.go выполняет все операции с таблицами
// accounts, referrals и ledger_entries. Изменение баланса и запись в журнал
// идут одной транзакцией под блокировкой строки FOR UPDATE.
package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fazenda.ton/farm-bot/internal/db/postgres"
)

// Repository предоставляет методы для работы со счетами.
type Repository struct {
	db postgres.DB
}

// NewRepository создаёт новый репозиторий счетов.
func NewRepository(db postgres.DB) *Repository {
	return &Repository{db: db}
}

// EnsureAccount создаёт пустой счёт, если его ещё нет.
func (r *Repository) EnsureAccount(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("ошибка создания счёта: %w", err)
	}
	return nil
}

// GetBalances возвращает балансы. Для неизвестного пользователя: нули.
func (r *Repository) GetBalances(ctx context.Context, userID int64) (Balances, error) {
	var b Balances
	err := r.db.QueryRow(ctx, `
		SELECT available_cash, payment_cash, materials, crypto_balance
		FROM accounts WHERE user_id = $1
	`, userID).Scan(&b.AvailableCash, &b.PaymentCash, &b.Materials, &b.Crypto)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balances{}, nil
	}
	if err != nil {
		return Balances{}, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return b, nil
}

// GetAccount возвращает счёт целиком. Для неизвестного пользователя: пустой счёт.
func (r *Repository) GetAccount(ctx context.Context, userID int64) (*Account, error) {
	a := Account{UserID: userID}
	var wallet *string
	err := r.db.QueryRow(ctx, `
		SELECT available_cash, payment_cash, materials, crypto_balance,
		       wallet_address, created_at, updated_at
		FROM accounts WHERE user_id = $1
	`, userID).Scan(
		&a.AvailableCash, &a.PaymentCash, &a.Materials, &a.Crypto,
		&wallet, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения счёта: %w", err)
	}
	if wallet != nil {
		a.Wallet = *wallet
	}
	return &a, nil
}

// Tx открывает транзакцию и передаёт её в fn. Commit: только если fn вернула nil.
func (r *Repository) Tx(ctx context.Context, fn func(*TxStore) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&TxStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// Adjust применяет изменения к счёту. Баланс ниже нуля: ErrInsufficientFunds без записи.
func (r *Repository) Adjust(ctx context.Context, userID int64, d Deltas, kind, description string) (Balances, error) {
	var out Balances
	err := r.Tx(ctx, func(s *TxStore) error {
		var err error
		out, err = s.Adjust(ctx, userID, d, kind, description)
		return err
	})
	return out, err
}

// Apply блокирует счёт, вызывает plan с текущим балансом и применяет
// полученные изменения в той же транзакции.
func (r *Repository) Apply(ctx context.Context, userID int64, kind string, plan Plan) (Balances, error) {
	var out Balances
	err := r.Tx(ctx, func(s *TxStore) error {
		current, err := s.Lock(ctx, userID)
		if err != nil {
			return err
		}
		d, description, err := plan(current)
		if err != nil {
			return err
		}
		out, err = s.Adjust(ctx, userID, d, kind, description)
		return err
	})
	return out, err
}

// SetWallet сохраняет адрес кошелька после нормализации и проверки.
func (r *Repository) SetWallet(ctx context.Context, userID int64, raw string) (string, error) {
	addr, err := NormalizeWallet(raw)
	if err != nil {
		return "", err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO accounts (user_id, wallet_address) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET wallet_address = EXCLUDED.wallet_address, updated_at = NOW()
	`, userID, addr)
	if err != nil {
		return "", fmt.Errorf("ошибка сохранения кошелька: %w", err)
	}
	return addr, nil
}

// SetReferrer записывает, кто пригласил пользователя. Связь создаётся один раз
// и только на существующий счёт; приглашение самого себя игнорируется.
// Возвращает true, если связь создана.
func (r *Repository) SetReferrer(ctx context.Context, referredID, referrerID int64) (bool, error) {
	if referredID == referrerID || referrerID <= 0 {
		return false, nil
	}
	tag, err := r.db.Exec(ctx, `
		INSERT INTO referrals (referred_id, referrer_id)
		SELECT $1, $2 WHERE EXISTS (SELECT 1 FROM accounts WHERE user_id = $2)
		ON CONFLICT (referred_id) DO NOTHING
	`, referredID, referrerID)
	if err != nil {
		return false, fmt.Errorf("ошибка записи реферала: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Referrer возвращает пригласившего (0, если его нет).
func (r *Repository) Referrer(ctx context.Context, userID int64) (int64, error) {
	var referrerID int64
	err := r.db.QueryRow(ctx,
		`SELECT referrer_id FROM referrals WHERE referred_id = $1`, userID,
	).Scan(&referrerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения реферера: %w", err)
	}
	return referrerID, nil
}

// CountReferrals считает приглашённых пользователем.
func (r *Repository) CountReferrals(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта рефералов: %w", err)
	}
	return n, nil
}

// History возвращает последние записи журнала пользователя.
func (r *Repository) History(ctx context.Context, userID int64, limit int) ([]*Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, kind, d_available_cash, d_payment_cash, d_materials, d_crypto,
		       description, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Kind,
			&e.Deltas.AvailableCash, &e.Deltas.PaymentCash, &e.Deltas.Materials, &e.Deltas.Crypto,
			&e.Description, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// TxStore: операции со счётом внутри уже открытой транзакции.
// Через него фермы, выплаты и депозиты меняют свои таблицы и баланс атомарно.
type TxStore struct {
	tx pgx.Tx
}

// Tx возвращает транзакцию для запросов к таблицам других модулей.
func (s *TxStore) Tx() pgx.Tx {
	return s.tx
}

// Lock создаёт счёт при необходимости и блокирует его строку до конца транзакции.
func (s *TxStore) Lock(ctx context.Context, userID int64) (Balances, error) {
	if _, err := s.tx.Exec(ctx, `
		INSERT INTO accounts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return Balances{}, fmt.Errorf("ошибка создания счёта: %w", err)
	}

	var b Balances
	err := s.tx.QueryRow(ctx, `
		SELECT available_cash, payment_cash, materials, crypto_balance
		FROM accounts WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&b.AvailableCash, &b.PaymentCash, &b.Materials, &b.Crypto)
	if err != nil {
		return Balances{}, fmt.Errorf("ошибка блокировки счёта: %w", err)
	}
	return b, nil
}

// Adjust блокирует счёт, проверяет результат и записывает изменения и журнал.
func (s *TxStore) Adjust(ctx context.Context, userID int64, d Deltas, kind, description string) (Balances, error) {
	current, err := s.Lock(ctx, userID)
	if err != nil {
		return Balances{}, err
	}
	next, err := current.Apply(d)
	if err != nil {
		return current, err
	}
	if d.IsZero() {
		return current, nil
	}

	_, err = s.tx.Exec(ctx, `
		UPDATE accounts
		SET available_cash = $2, payment_cash = $3, materials = $4, crypto_balance = $5,
		    updated_at = NOW()
		WHERE user_id = $1
	`, userID, next.AvailableCash, next.PaymentCash, next.Materials, next.Crypto)
	if err != nil {
		return Balances{}, fmt.Errorf("ошибка обновления баланса: %w", err)
	}

	_, err = s.tx.Exec(ctx, `
		INSERT INTO ledger_entries
			(user_id, kind, d_available_cash, d_payment_cash, d_materials, d_crypto, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, userID, kind, d.AvailableCash, d.PaymentCash, d.Materials, d.Crypto, description)
	if err != nil {
		return Balances{}, fmt.Errorf("ошибка записи в журнал: %w", err)
	}
	return next, nil
}
