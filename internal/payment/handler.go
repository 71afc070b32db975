package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/avdeevdmitrykrsk/payment-service/internal/api"
	"github.com/avdeevdmitrykrsk/payment-service/internal/auth"
	"github.com/avdeevdmitrykrsk/payment-service/internal/signature"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type PaymentRequest struct {
	TransactionID string          `json:"transaction_id" binding:"required"`
	AccountID     int64           `json:"account_id" binding:"required"`
	UserID        int64           `json:"user_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Signature     string          `json:"signature" binding:"required"`
}

// HandlePayment accepts a signed payment notification from a provider.
// The signature plays the role of authentication here, so the route is not
// behind the JWT middleware.
func (h *Handler) HandlePayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment payload", "details": api.BindingErrors(err)})
		return
	}

	receipt, err := h.service.ProcessPayment(c.Request.Context(), Request{
		TransactionID: req.TransactionID,
		AccountID:     req.AccountID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Signature:     req.Signature,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		case errors.Is(err, signature.ErrInvalidSignature):
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid signature"})
		case errors.Is(err, ErrAlreadyProcessed):
			c.JSON(http.StatusConflict, gin.H{"error": "Transaction already processed"})
		case errors.Is(err, ErrSystemBusy):
			c.JSON(http.StatusConflict, gin.H{"error": "System busy. Please retry in a moment"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process payment"})
		}
		return
	}

	c.JSON(http.StatusOK, receipt)
}

// ListAccounts returns the authenticated user's accounts.
func (h *Handler) ListAccounts(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	accounts, err := h.service.ListAccounts(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load accounts"})
		return
	}

	c.JSON(http.StatusOK, accounts)
}

// ListPayments returns payments across all of the authenticated user's
// accounts.
func (h *Handler) ListPayments(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	payments, err := h.service.ListPayments(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payments"})
		return
	}

	c.JSON(http.StatusOK, payments)
}
