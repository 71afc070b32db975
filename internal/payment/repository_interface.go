package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger is the storage surface the admission engine depends on.
type Ledger interface {
	Admit(ctx context.Context, userID, accountID int64, transactionID string, amount decimal.Decimal) (*Account, *Payment, error)
	ListAccounts(ctx context.Context, userID int64) ([]Account, error)
	ListPayments(ctx context.Context, userID int64) ([]Payment, error)
}
