// Package farm: repository.go работает с таблицей production_units.
// Сбор и покупка выполняются в транзакции счёта, чтобы материалы и якоря
// менялись вместе.
package farm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fazenda.ton/farm-bot/internal/db/postgres"
	"fazenda.ton/farm-bot/internal/features/accounts"
)

// Repository: хранилище животных.
type Repository struct {
	db       postgres.DB
	accounts *accounts.Repository
}

// NewRepository создаёт репозиторий.
func NewRepository(db postgres.DB, accountsRepo *accounts.Repository) *Repository {
	return &Repository{db: db, accounts: accountsRepo}
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Holdings возвращает животных пользователя в порядке каталога.
func (r *Repository) Holdings(ctx context.Context, userID int64) ([]Holding, error) {
	return scanHoldings(ctx, r.db, `
		SELECT unit_type, quantity, last_collected_at
		FROM production_units
		WHERE user_id = $1 AND quantity > 0
	`, userID)
}

func scanHoldings(ctx context.Context, q queryer, sql string, userID int64) ([]Holding, error) {
	rows, err := q.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения животных: %w", err)
	}
	defer rows.Close()

	byKey := make(map[string]Holding)
	for rows.Next() {
		var (
			key    string
			qty    int64
			anchor *time.Time
		)
		if err := rows.Scan(&key, &qty, &anchor); err != nil {
			return nil, fmt.Errorf("ошибка сканирования животных: %w", err)
		}
		unit, err := Lookup(key)
		if err != nil {
			// вид убран из каталога: строка не приносит материалов
			continue
		}
		byKey[key] = Holding{Unit: unit, Quantity: qty, LastCollectedAt: anchor}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения животных: %w", err)
	}

	var out []Holding
	for _, u := range catalog {
		if h, ok := byKey[u.Key]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

// Collect зачисляет накопленные материалы и переставляет все якоря на now.
// Если начислять нечего, ничего не пишет и возвращает 0.
func (r *Repository) Collect(ctx context.Context, userID int64, now time.Time) (float64, accounts.Balances, error) {
	var (
		amount float64
		bal    accounts.Balances
	)
	err := r.accounts.Tx(ctx, func(s *accounts.TxStore) error {
		var err error
		bal, err = s.Lock(ctx, userID)
		if err != nil {
			return err
		}

		holdings, err := scanHoldings(ctx, s.Tx(), `
			SELECT unit_type, quantity, last_collected_at
			FROM production_units
			WHERE user_id = $1
			FOR UPDATE
		`, userID)
		if err != nil {
			return err
		}

		amount = PendingYield(holdings, now)
		if amount <= 0 {
			amount = 0
			return nil
		}

		bal, err = s.Adjust(ctx, userID, accounts.Deltas{Materials: amount}, accounts.KindCollect,
			fmt.Sprintf("Coleta de %.2f materiais", amount))
		if err != nil {
			return err
		}

		if _, err := s.Tx().Exec(ctx, `
			UPDATE production_units SET last_collected_at = $2
			WHERE user_id = $1
		`, userID, now); err != nil {
			return fmt.Errorf("ошибка сброса якорей: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, accounts.Balances{}, err
	}
	return amount, bal, nil
}

// Buy покупает одну голову. Накопленное по этой строке сначала
// зачисляется в материалы, затем поголовье растёт и якорь встаёт на now.
func (r *Repository) Buy(ctx context.Context, userID int64, unit Unit, now time.Time) (*BuyResult, error) {
	res := &BuyResult{Unit: unit}
	err := r.accounts.Tx(ctx, func(s *accounts.TxStore) error {
		bal, err := s.Lock(ctx, userID)
		if err != nil {
			return err
		}

		var current *Holding
		var (
			qty    int64
			anchor *time.Time
		)
		err = s.Tx().QueryRow(ctx, `
			SELECT quantity, last_collected_at
			FROM production_units
			WHERE user_id = $1 AND unit_type = $2
			FOR UPDATE
		`, userID, unit.Key).Scan(&qty, &anchor)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("ошибка получения строки животного: %w", err)
		default:
			current = &Holding{Unit: unit, Quantity: qty, LastCollectedAt: anchor}
		}

		d, settled, err := PlanBuy(bal, unit, current, now)
		if err != nil {
			return err
		}

		res.Balances, err = s.Adjust(ctx, userID, d, accounts.KindBuy,
			fmt.Sprintf("Compra: %s %s", unit.Emoji, unit.Name))
		if err != nil {
			return err
		}
		res.Settled = settled

		err = s.Tx().QueryRow(ctx, `
			INSERT INTO production_units (user_id, unit_type, quantity, last_collected_at)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (user_id, unit_type) DO UPDATE
			SET quantity = production_units.quantity + 1, last_collected_at = EXCLUDED.last_collected_at
			RETURNING quantity
		`, userID, unit.Key, now).Scan(&res.Quantity)
		if err != nil {
			return fmt.Errorf("ошибка записи животного: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
