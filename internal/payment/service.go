package payment

import (
	"context"
	"errors"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/avdeevdmitrykrsk/payment-service/internal/logger"
	"github.com/avdeevdmitrykrsk/payment-service/internal/metrics"
	"github.com/avdeevdmitrykrsk/payment-service/internal/signature"
)

var ErrInvalidAmount = errors.New("amount must be positive")

// Request is one inbound payment notification after transport decoding.
type Request struct {
	TransactionID string
	AccountID     int64
	UserID        int64
	Amount        decimal.Decimal
	Signature     string
}

type ReceiptTransaction struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
}

type ReceiptAccount struct {
	AccountID  int64           `json:"account_id"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// Receipt is returned to the provider once a payment has been admitted and
// the balance credit committed.
type Receipt struct {
	Status      string             `json:"status"`
	Transaction ReceiptTransaction `json:"transaction"`
	Account     ReceiptAccount     `json:"account"`
}

type Service interface {
	ProcessPayment(ctx context.Context, req Request) (*Receipt, error)
	ListAccounts(ctx context.Context, userID int64) ([]Account, error)
	ListPayments(ctx context.Context, userID int64) ([]Payment, error)
}

type service struct {
	ledger Ledger
	signer *signature.Signer
}

func NewService(ledger Ledger, signer *signature.Signer) Service {
	return &service{ledger: ledger, signer: signer}
}

// ProcessPayment runs the admission pipeline: quantize, verify the signature,
// then credit the account inside the store's atomic scope. For a fixed
// transaction id at most one credit is ever applied, no matter how often or
// how concurrently the request is retried.
func (s *service) ProcessPayment(ctx context.Context, req Request) (*Receipt, error) {
	// Half-even quantization to 2 places, matching how providers sign.
	amount := req.Amount.RoundBank(2)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	fields := map[string]string{
		"transaction_id": req.TransactionID,
		"account_id":     strconv.FormatInt(req.AccountID, 10),
		"user_id":        strconv.FormatInt(req.UserID, 10),
		"amount":         amount.StringFixed(2),
	}

	if err := s.signer.Verify(fields, req.Signature); err != nil {
		logger.Warn("payment rejected",
			"transaction_id", req.TransactionID,
			"account_id", req.AccountID,
			"reason", "invalid signature",
		)
		metrics.RecordPayment(metrics.OutcomeInvalidSignature)
		return nil, err
	}

	account, p, err := s.ledger.Admit(ctx, req.UserID, req.AccountID, req.TransactionID, amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyProcessed):
			logger.Warn("duplicate transaction",
				"transaction_id", req.TransactionID,
				"account_id", req.AccountID,
			)
			metrics.RecordPayment(metrics.OutcomeDuplicate)
		case errors.Is(err, ErrSystemBusy):
			logger.Warn("account lock timed out",
				"transaction_id", req.TransactionID,
				"account_id", req.AccountID,
			)
			metrics.RecordPayment(metrics.OutcomeLockTimeout)
		default:
			logger.Error("payment admission failed",
				"transaction_id", req.TransactionID,
				"account_id", req.AccountID,
				"error", err,
			)
			metrics.RecordPayment(metrics.OutcomeError)
		}
		return nil, err
	}

	logger.Info("payment completed",
		"transaction_id", p.TransactionID,
		"account_id", account.ID,
		"amount", p.PaymentAmount.StringFixed(2),
	)
	metrics.RecordPayment(metrics.OutcomeCompleted)

	return &Receipt{
		Status: "completed",
		Transaction: ReceiptTransaction{
			TransactionID: p.TransactionID,
			Amount:        p.PaymentAmount,
		},
		Account: ReceiptAccount{
			AccountID:  account.ID,
			NewBalance: account.Balance,
		},
	}, nil
}

func (s *service) ListAccounts(ctx context.Context, userID int64) ([]Account, error) {
	return s.ledger.ListAccounts(ctx, userID)
}

func (s *service) ListPayments(ctx context.Context, userID int64) ([]Payment, error) {
	return s.ledger.ListPayments(ctx, userID)
}
