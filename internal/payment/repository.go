package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/avdeevdmitrykrsk/payment-service/internal/logger"
	"github.com/avdeevdmitrykrsk/payment-service/internal/metrics"
)

var (
	// ErrAlreadyProcessed means a payment with the same transaction id was
	// admitted before. Retrying would double-credit the account.
	ErrAlreadyProcessed = errors.New("transaction already processed")

	// ErrSystemBusy means the account row lock could not be acquired within
	// the configured timeout. The caller may retry.
	ErrSystemBusy = errors.New("system busy, account row lock timed out")
)

// Postgres error codes surfaced by the admission protocol.
const (
	pqUniqueViolation  = "23505"
	pqLockNotAvailable = "55P03"
)

const accountColumns = `id, user_id, balance, created_at, updated_at`

type Store struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

func NewStore(db *sqlx.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

// Admit runs the full ledger side of one payment in a single transaction:
// account bootstrap, duplicate-checked payment insert and locked balance
// credit. Any failure rolls the whole thing back, so a lock timeout never
// leaves an orphaned payment row behind.
func (s *Store) Admit(ctx context.Context, userID, accountID int64, transactionID string, amount decimal.Decimal) (*Account, *Payment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// lock_timeout is transaction-scoped and bounds the FOR UPDATE wait in
	// ApplyLockedBalanceDelta. SET does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return nil, nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	account, created, err := s.GetOrCreateAccount(ctx, tx, userID, accountID)
	if err != nil {
		return nil, nil, err
	}

	payment, err := s.InsertPaymentIfNew(ctx, tx, account.ID, transactionID, amount)
	if err != nil {
		return nil, nil, err
	}

	account, err = s.ApplyLockedBalanceDelta(ctx, tx, account.ID, amount)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit payment: %w", err)
	}

	if created {
		metrics.RecordAccountCreated()
	}

	return account, payment, nil
}

// GetOrCreateAccount resolves the account matching both user id and account
// id, creating it with a zero balance if absent. The insert goes through the
// primary key with ON CONFLICT DO NOTHING, so concurrent bootstraps for the
// same missing pair converge on exactly one row.
func (s *Store) GetOrCreateAccount(ctx context.Context, tx *sqlx.Tx, userID, accountID int64) (*Account, bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		accountID, userID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create account: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read insert result: %w", err)
	}
	created := inserted > 0

	a := &Account{}
	err = tx.QueryRowxContext(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts
		 WHERE id = $1 AND user_id = $2`,
		accountID, userID,
	).StructScan(a)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("account %d is not owned by user %d", accountID, userID)
		}
		return nil, false, fmt.Errorf("failed to load account: %w", err)
	}

	if created {
		logger.Info("account created", "account_id", accountID, "user_id", userID)
	}

	return a, created, nil
}

// InsertPaymentIfNew records the payment, relying on the unique index on
// transaction_id for duplicate detection. The constraint check holds under
// concurrency where a read-then-insert would not.
func (s *Store) InsertPaymentIfNew(ctx context.Context, tx *sqlx.Tx, accountID int64, transactionID string, amount decimal.Decimal) (*Payment, error) {
	p := &Payment{}
	err := tx.QueryRowxContext(ctx,
		`INSERT INTO payments (transaction_id, account_id, payment_amount)
		 VALUES ($1, $2, $3)
		 RETURNING id, transaction_id, account_id, payment_amount`,
		transactionID, accountID, amount,
	).StructScan(p)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, ErrAlreadyProcessed
		}
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	return p, nil
}

// ApplyLockedBalanceDelta takes the exclusive row lock on the account,
// bounded by the transaction's lock_timeout, and applies the delta. A lock
// acquisition timeout surfaces as ErrSystemBusy without mutating anything.
func (s *Store) ApplyLockedBalanceDelta(ctx context.Context, tx *sqlx.Tx, accountID int64, delta decimal.Decimal) (*Account, error) {
	locked := &Account{}
	err := tx.QueryRowxContext(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts
		 WHERE id = $1
		 FOR UPDATE`,
		accountID,
	).StructScan(locked)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqLockNotAvailable {
			metrics.RecordLockTimeout()
			return nil, ErrSystemBusy
		}
		return nil, fmt.Errorf("failed to lock account %d: %w", accountID, err)
	}

	updated := &Account{}
	err = tx.QueryRowxContext(ctx,
		`UPDATE accounts
		 SET balance = balance + $1, updated_at = NOW()
		 WHERE id = $2
		 RETURNING `+accountColumns,
		delta, accountID,
	).StructScan(updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance of account %d: %w", accountID, err)
	}

	return updated, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID int64) ([]Account, error) {
	accounts := []Account{}
	err := s.db.SelectContext(ctx, &accounts,
		`SELECT `+accountColumns+`
		 FROM accounts
		 WHERE user_id = $1
		 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	return accounts, nil
}

func (s *Store) ListPayments(ctx context.Context, userID int64) ([]Payment, error) {
	payments := []Payment{}
	err := s.db.SelectContext(ctx, &payments,
		`SELECT p.id, p.transaction_id, p.account_id, p.payment_amount
		 FROM payments p
		 JOIN accounts a ON a.id = p.account_id
		 WHERE a.user_id = $1
		 ORDER BY p.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	return payments, nil
}
