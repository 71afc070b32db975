package payment

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	selectAccountQuery = `SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE id = $1 AND user_id = $2`
	lockAccountQuery   = `SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE id = $1 FOR UPDATE`
	updateBalanceQuery = `UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2 RETURNING id, user_id, balance, created_at, updated_at`
	insertAccountQuery = `INSERT INTO accounts (id, user_id) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`
	insertPaymentQuery = `INSERT INTO payments (transaction_id, account_id, payment_amount) VALUES ($1, $2, $3) RETURNING id, transaction_id, account_id, payment_amount`
)

func setupStoreMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	store := NewStore(sqlxDB, time.Second)

	closer := func() { sqlxDB.Close() }
	return store, mock, closer
}

func accountRows(accountID, userID int64, balance string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}).
		AddRow(accountID, userID, balance, time.Now(), time.Now())
}

func TestAdmit_Success(t *testing.T) {
	store, mock, closer := setupStoreMock(t)
	defer closer()

	amount := decimal.RequireFromString("19.99")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '1000ms'`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Account already exists, so the upsert is a no-op.
	mock.ExpectExec(regexp.QuoteMeta(insertAccountQuery)).
		WithArgs(int64(7), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectAccountQuery)).
		WithArgs(int64(7), int64(42)).
		WillReturnRows(accountRows(7, 42, "100.00"))

	mock.ExpectQuery(regexp.QuoteMeta(insertPaymentQuery)).
		WithArgs("tx-1", int64(7), amount).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "account_id", "payment_amount"}).
			AddRow(1, "tx-1", 7, "19.99"))

	mock.ExpectQuery(regexp.QuoteMeta(lockAccountQuery)).
		WithArgs(int64(7)).
		WillReturnRows(accountRows(7, 42, "100.00"))
	mock.ExpectQuery(regexp.QuoteMeta(updateBalanceQuery)).
		WithArgs(amount, int64(7)).
		WillReturnRows(accountRows(7, 42, "119.99"))

	mock.ExpectCommit()

	account, p, err := store.Admit(context.Background(), 42, 7, "tx-1", amount)
	require.NoError(t, err)

	assert.Equal(t, int64(7), account.ID)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("119.99")))
	assert.Equal(t, "tx-1", p.TransactionID)
	assert.True(t, p.PaymentAmount.Equal(amount))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmit_CreatesMissingAccount(t *testing.T) {
	store, mock, closer := setupStoreMock(t)
	defer closer()

	amount := decimal.RequireFromString("5.00")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '1000ms'`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec(regexp.QuoteMeta(insertAccountQuery)).
		WithArgs(int64(9), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Fresh account starts at zero before the credit is applied.
	mock.ExpectQuery(regexp.QuoteMeta(selectAccountQuery)).
		WithArgs(int64(9), int64(42)).
		WillReturnRows(accountRows(9, 42, "0.00"))

	mock.ExpectQuery(regexp.QuoteMeta(insertPaymentQuery)).
		WithArgs("tx-2", int64(9), amount).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "account_id", "payment_amount"}).
			AddRow(2, "tx-2", 9, "5.00"))

	mock.ExpectQuery(regexp.QuoteMeta(lockAccountQuery)).
		WithArgs(int64(9)).
		WillReturnRows(accountRows(9, 42, "0.00"))
	mock.ExpectQuery(regexp.QuoteMeta(updateBalanceQuery)).
		WithArgs(amount, int64(9)).
		WillReturnRows(accountRows(9, 42, "5.00"))

	mock.ExpectCommit()

	account, _, err := store.Admit(context.Background(), 42, 9, "tx-2", amount)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("5.00")))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmit_DuplicateTransaction(t *testing.T) {
	store, mock, closer := setupStoreMock(t)
	defer closer()

	amount := decimal.RequireFromString("19.99")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '1000ms'`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(insertAccountQuery)).
		WithArgs(int64(7), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectAccountQuery)).
		WithArgs(int64(7), int64(42)).
		WillReturnRows(accountRows(7, 42, "100.00"))

	mock.ExpectQuery(regexp.QuoteMeta(insertPaymentQuery)).
		WithArgs("tx-1", int64(7), amount).
		WillReturnError(&pq.Error{Code: "23505"})

	mock.ExpectRollback()

	_, _, err := store.Admit(context.Background(), 42, 7, "tx-1", amount)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmit_LockTimeoutRollsBackPayment(t *testing.T) {
	store, mock, closer := setupStoreMock(t)
	defer closer()

	amount := decimal.RequireFromString("19.99")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '1000ms'`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(insertAccountQuery)).
		WithArgs(int64(7), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectAccountQuery)).
		WithArgs(int64(7), int64(42)).
		WillReturnRows(accountRows(7, 42, "100.00"))

	mock.ExpectQuery(regexp.QuoteMeta(insertPaymentQuery)).
		WithArgs("tx-1", int64(7), amount).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "account_id", "payment_amount"}).
			AddRow(1, "tx-1", 7, "19.99"))

	mock.ExpectQuery(regexp.QuoteMeta(lockAccountQuery)).
		WithArgs(int64(7)).
		WillReturnError(&pq.Error{Code: "55P03"})

	// The whole transaction rolls back: the payment row written above must
	// not survive a lock timeout.
	mock.ExpectRollback()

	_, _, err := store.Admit(context.Background(), 42, 7, "tx-1", amount)
	assert.ErrorIs(t, err, ErrSystemBusy)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmit_AccountOwnedByOtherUser(t *testing.T) {
	store, mock, closer := setupStoreMock(t)
	defer closer()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '1000ms'`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(insertAccountQuery)).
		WithArgs(int64(7), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectAccountQuery)).
		WithArgs(int64(7), int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}))
	mock.ExpectRollback()

	_, _, err := store.Admit(context.Background(), 42, 7, "tx-1", decimal.RequireFromString("1.00"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not owned by user")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAccounts(t *testing.T) {
	store, mock, closer := setupStoreMock(t)
	defer closer()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1 ORDER BY id`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}).
			AddRow(7, 42, "100.00", time.Now(), time.Now()).
			AddRow(8, 42, "0.00", time.Now(), time.Now()))

	accounts, err := store.ListAccounts(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, int64(7), accounts[0].ID)
	assert.True(t, accounts[1].Balance.IsZero())
}

func TestListPayments(t *testing.T) {
	store, mock, closer := setupStoreMock(t)
	defer closer()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT p.id, p.transaction_id, p.account_id, p.payment_amount FROM payments p JOIN accounts a ON a.id = p.account_id WHERE a.user_id = $1 ORDER BY p.id`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "account_id", "payment_amount"}).
			AddRow(1, "tx-1", 7, "19.99"))

	payments, err := store.ListPayments(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "tx-1", payments[0].TransactionID)
}

func TestListPayments_Empty(t *testing.T) {
	store, mock, closer := setupStoreMock(t)
	defer closer()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT p.id, p.transaction_id, p.account_id, p.payment_amount FROM payments p`)).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_id", "account_id", "payment_amount"}))

	payments, err := store.ListPayments(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, payments)
}
