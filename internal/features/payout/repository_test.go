package payout

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fazenda.ton/farm-bot/internal/common"
	"fazenda.ton/farm-bot/internal/features/accounts"
)

const (
	sqlEnsure   = `INSERT INTO accounts \(user_id\) VALUES`
	sqlLock     = `FROM accounts WHERE user_id = \$1\s+FOR UPDATE`
	sqlUpdate   = `UPDATE accounts\s+SET available_cash`
	sqlJournal  = `INSERT INTO ledger_entries`
	sqlInsert   = `INSERT INTO withdrawals`
	sqlToFailed = `UPDATE withdrawals\s+SET status = \$2, failure_reason = \$3`
	sqlToDone   = `UPDATE withdrawals\s+SET status = \$2, provider_ref = \$3`
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock, accounts.NewRepository(mock)), mock
}

func expectLock(mock pgxmock.PgxPoolIface, userID int64, crypto float64) {
	mock.ExpectExec(sqlEnsure).WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(sqlLock).WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"available_cash", "payment_cash", "materials", "crypto_balance"}).
			AddRow(0.0, 0.0, 0.0, crypto))
}

func TestRepoCreateAndDebit(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectLock(mock, 1, 2)
	mock.ExpectExec(sqlUpdate).WithArgs(int64(1), 0.0, 0.0, 0.0, 0.5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(sqlJournal).WithArgs(int64(1), accounts.KindWithdraw, 0.0, 0.0, 0.0, -1.5, "Saque wd-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(sqlInsert).WithArgs(int64(1), 1.5, testWallet, StatusProcessing, "wd-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(10), now, now))
	mock.ExpectCommit()

	w, err := repo.CreateAndDebit(context.Background(), 1, 1.5, testWallet, "wd-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), w.ID)
	assert.Equal(t, StatusProcessing, w.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoCreateAndDebit_InsufficientCreatesNoRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	expectLock(mock, 1, 1)
	mock.ExpectRollback()

	_, err := repo.CreateAndDebit(context.Background(), 1, 1.5, testWallet, "wd-1")
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoReverseAndFail_RefundsOnlyFromProcessing(t *testing.T) {
	w := &Withdrawal{ID: 10, UserID: 1, Amount: 1.5, IdempotencyKey: "wd-1"}

	t.Run("processing", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(sqlToFailed).WithArgs(int64(10), StatusFailed, "timeout", StatusProcessing).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		expectLock(mock, 1, 0.5)
		mock.ExpectExec(sqlUpdate).WithArgs(int64(1), 0.0, 0.0, 0.0, 2.0).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(sqlJournal).WithArgs(int64(1), accounts.KindWithdrawReversal, 0.0, 0.0, 0.0, 1.5, "Estorno wd-1").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		require.NoError(t, repo.ReverseAndFail(context.Background(), w, "timeout"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already done", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(sqlToFailed).WithArgs(int64(10), StatusFailed, "timeout", StatusProcessing).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		err := repo.ReverseAndFail(context.Background(), w, "timeout")
		assert.ErrorIs(t, err, ErrNotProcessing)
		assert.NoError(t, mock.ExpectationsWereMet(), "баланс не возвращается")
	})
}

func TestRepoMarkDone_OnlyFromProcessing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(sqlToDone).WithArgs(int64(10), StatusDone, "501", "", StatusProcessing).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.MarkDone(context.Background(), 10, "501", "")
	assert.ErrorIs(t, err, ErrNotProcessing)
	assert.NoError(t, mock.ExpectationsWereMet())
}
