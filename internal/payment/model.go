package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds a user's balance. Rows are created lazily on first payment
// and only mutated by credits applied under the row lock.
type Account struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Payment is an immutable record of one admitted transaction. TransactionID
// is the provider-supplied idempotency key, unique across the whole system.
type Payment struct {
	ID            int64           `db:"id" json:"id"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	AccountID     int64           `db:"account_id" json:"account_id"`
	PaymentAmount decimal.Decimal `db:"payment_amount" json:"payment_amount"`
}
