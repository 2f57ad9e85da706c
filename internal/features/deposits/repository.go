// Package deposits: repository.go работает с таблицей deposits.
// Уникальный invoice_id: единственная защита от двойного зачисления.
package deposits

import (
	"context"
	"fmt"

	"fazenda.ton/farm-bot/internal/db/postgres"
	"fazenda.ton/farm-bot/internal/features/accounts"
)

// Repository: хранилище депозитов.
type Repository struct {
	db       postgres.DB
	accounts *accounts.Repository
}

// NewRepository создаёт репозиторий.
func NewRepository(db postgres.DB, accountsRepo *accounts.Repository) *Repository {
	return &Repository{db: db, accounts: accountsRepo}
}

// Record зачисляет депозит одной транзакцией. Повтор того же invoice_id
// ничего не меняет и возвращает сумму из первой записи.
func (r *Repository) Record(ctx context.Context, d Deposit) (*Result, error) {
	res := &Result{InvoiceID: d.InvoiceID, UserID: d.UserID, Fiat: d.Fiat}
	err := r.accounts.Tx(ctx, func(s *accounts.TxStore) error {
		// счёт создаётся до вставки: deposits.user_id ссылается на accounts
		if _, err := s.Lock(ctx, d.UserID); err != nil {
			return err
		}

		tag, err := s.Tx().Exec(ctx, `
			INSERT INTO deposits (invoice_id, user_id, fiat_amount, cash_credited)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (invoice_id) DO NOTHING
		`, d.InvoiceID, d.UserID, d.Fiat, d.Cash)
		if err != nil {
			return fmt.Errorf("ошибка записи депозита: %w", err)
		}

		if tag.RowsAffected() == 0 {
			res.Duplicate = true
			var referrerID *int64
			err := s.Tx().QueryRow(ctx, `
				SELECT user_id, fiat_amount, cash_credited, referrer_id, referral_bonus
				FROM deposits WHERE invoice_id = $1
			`, d.InvoiceID).Scan(&res.UserID, &res.Fiat, &res.Cash, &referrerID, &res.Bonus)
			if err != nil {
				return fmt.Errorf("ошибка чтения депозита: %w", err)
			}
			if referrerID != nil {
				res.ReferrerID = *referrerID
			}
			return nil
		}

		res.Cash = d.Cash
		if d.Cash > 0 {
			if _, err := s.Adjust(ctx, d.UserID, accounts.Deltas{AvailableCash: float64(d.Cash)},
				accounts.KindDeposit, "Depósito "+d.InvoiceID); err != nil {
				return err
			}
		}

		if d.Bonus <= 0 {
			return nil
		}
		var referrerID int64
		err = s.Tx().QueryRow(ctx,
			`SELECT COALESCE(MAX(referrer_id), 0) FROM referrals WHERE referred_id = $1`, d.UserID,
		).Scan(&referrerID)
		if err != nil {
			return fmt.Errorf("ошибка получения реферера: %w", err)
		}
		if referrerID == 0 {
			return nil
		}

		if _, err := s.Adjust(ctx, referrerID, accounts.Deltas{AvailableCash: float64(d.Bonus)},
			accounts.KindReferralBonus, "Bônus de indicação "+d.InvoiceID); err != nil {
			return err
		}
		if _, err := s.Tx().Exec(ctx, `
			UPDATE deposits SET referrer_id = $2, referral_bonus = $3 WHERE invoice_id = $1
		`, d.InvoiceID, referrerID, d.Bonus); err != nil {
			return fmt.Errorf("ошибка записи бонуса: %w", err)
		}
		res.ReferrerID = referrerID
		res.Bonus = d.Bonus
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
