package farm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fazenda.ton/farm-bot/internal/features/accounts"
)

const (
	sqlEnsure  = `INSERT INTO accounts \(user_id\) VALUES`
	sqlLock    = `FROM accounts WHERE user_id = \$1\s+FOR UPDATE`
	sqlUpdate  = `UPDATE accounts\s+SET available_cash`
	sqlJournal = `INSERT INTO ledger_entries`
	sqlUnits   = `FROM production_units\s+WHERE user_id = \$1\s+FOR UPDATE`
	sqlAnchors = `UPDATE production_units SET last_collected_at = \$2`
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock, accounts.NewRepository(mock)), mock
}

func expectLock(mock pgxmock.PgxPoolIface, userID int64, b accounts.Balances) {
	mock.ExpectExec(sqlEnsure).WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(sqlLock).WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"available_cash", "payment_cash", "materials", "crypto_balance"}).
			AddRow(b.AvailableCash, b.PaymentCash, b.Materials, b.Crypto))
}

func unitRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"unit_type", "quantity", "last_collected_at"})
}

func TestCollect_ResetsAnchorsInSameTx(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	anchor := now.Add(-12 * time.Hour)

	mock.ExpectBegin()
	expectLock(mock, 1, accounts.Balances{Materials: 5})
	mock.ExpectQuery(sqlUnits).WithArgs(int64(1)).
		WillReturnRows(unitRows().AddRow("galinha", int64(12), &anchor))
	expectLock(mock, 1, accounts.Balances{Materials: 5})
	mock.ExpectExec(sqlUpdate).WithArgs(int64(1), 0.0, 0.0, 17.0, 0.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(sqlJournal).WithArgs(int64(1), accounts.KindCollect, 0.0, 0.0, 12.0, 0.0, "Coleta de 12.00 materiais").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(sqlAnchors).WithArgs(int64(1), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	amount, bal, err := repo.Collect(context.Background(), 1, now)
	require.NoError(t, err)
	assert.InDelta(t, 12, amount, 1e-9)
	assert.InDelta(t, 17, bal.Materials, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollect_AnchorFailureRollsBackCredit(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	anchor := now.Add(-24 * time.Hour)

	mock.ExpectBegin()
	expectLock(mock, 1, accounts.Balances{})
	mock.ExpectQuery(sqlUnits).WithArgs(int64(1)).
		WillReturnRows(unitRows().AddRow("porco", int64(1), &anchor))
	expectLock(mock, 1, accounts.Balances{})
	mock.ExpectExec(sqlUpdate).WithArgs(int64(1), 0.0, 0.0, 10.0, 0.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(sqlJournal).WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(sqlAnchors).WithArgs(int64(1), now).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	amount, _, err := repo.Collect(context.Background(), 1, now)
	require.Error(t, err)
	assert.Zero(t, amount)
	assert.NoError(t, mock.ExpectationsWereMet(), "зачисление откатывается вместе с якорями")
}

func TestCollect_NullAnchorYieldsNothing(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectLock(mock, 1, accounts.Balances{Materials: 3})
	mock.ExpectQuery(sqlUnits).WithArgs(int64(1)).
		WillReturnRows(unitRows().AddRow("vaca", int64(2), nil))
	mock.ExpectCommit()

	amount, bal, err := repo.Collect(context.Background(), 1, now)
	require.NoError(t, err)
	assert.Zero(t, amount)
	assert.Equal(t, 3.0, bal.Materials)
	assert.NoError(t, mock.ExpectationsWereMet(), "ни журнала, ни сброса якорей")
}
