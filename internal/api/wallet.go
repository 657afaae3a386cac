package api

import (
	"bytes"         // Raw JSON inspection
	"context"       // Request contexts
	"encoding/json" // Amount decoding
	"fmt"           // Error wrapping
	"net/http"      // HTTP status codes
	"time"          // Timestamps

	"wallet_ledger/internal/domain" // Importing domain models
	"wallet_ledger/internal/ledger" // Ledger service

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Exact amounts
	"github.com/sirupsen/logrus"    // Logging library
)

// AmountRequest is the body of deposit and withdraw requests. Amount may be a
// JSON number or a string.
type AmountRequest struct {
	Amount      json.RawMessage `json:"amount" binding:"required"`     // Amount to move
	Description string          `json:"description" binding:"max=255"` // Optional free text
}

// TransactionResponse is a transaction as rendered to clients
type TransactionResponse struct {
	ID          uint      `json:"id"`                    // Transaction ID
	Amount      string    `json:"amount"`                // Two fractional digits
	Type        string    `json:"transaction_type"`      // DEPOSIT or WITHDRAWAL
	Description string    `json:"description,omitempty"` // Free text
	Timestamp   time.Time `json:"timestamp"`             // Creation time
}

// ReceiptResponse is returned by deposit and withdraw
type ReceiptResponse struct {
	Balance     string              `json:"balance"`     // Balance after the change
	Transaction TransactionResponse `json:"transaction"` // The recorded transaction
}

// HistoryResponse is returned by the history endpoint
type HistoryResponse struct {
	History    []TransactionResponse `json:"history"`     // Newest first
	Balance    string                `json:"balance"`     // Current balance
	Total      int64                 `json:"total"`       // Number of transactions
	Page       int                   `json:"page"`        // Current page
	PageSize   int                   `json:"page_size"`   // Page size
	TotalPages int                   `json:"total_pages"` // Total pages
}

// parseAmount accepts "12.50" as well as 12.50
func (r AmountRequest) parseAmount() (decimal.Decimal, error) {
	raw := bytes.TrimSpace(r.Amount)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %v", ledger.ErrInvalidAmount, err)
		}
		return ledger.ParseAmount(s)
	}
	if len(raw) == 0 || raw[0] == '{' || raw[0] == '[' || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, fmt.Errorf("%w: must be a number", ledger.ErrInvalidAmount)
	}
	return ledger.ParseAmount(string(raw))
}

// newTransactionResponse renders a transaction with fixed two-digit amounts
func newTransactionResponse(t domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:        t.ID,
		Amount:    ledger.FormatAmount(t.Amount),
		Type:      string(t.Type),
		Timestamp: t.CreatedAt,
	}
	if t.Description != nil {
		resp.Description = *t.Description
	}
	return resp
}

// BalanceHandler returns the wallet balance for the authenticated user
func BalanceHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c) // Get userID from context
		if !ok {
			return
		}
		balance, err := svc.Balance(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err, logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": ledger.FormatAmount(balance)}) // Return the balance
	}
}

// DepositHandler allows a user to deposit funds into their wallet
func DepositHandler(svc *ledger.Service) gin.HandlerFunc {
	return amountHandler(svc.Deposit)
}

// WithdrawHandler allows a user to withdraw funds from their wallet
func WithdrawHandler(svc *ledger.Service) gin.HandlerFunc {
	return amountHandler(svc.Withdraw)
}

type ledgerOp func(ctx context.Context, userID uint, amount decimal.Decimal, description string) (*ledger.Receipt, error)

func amountHandler(op ledgerOp) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c) // Get userID from context
		if !ok {
			return
		}
		var req AmountRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
			return
		}
		amount, err := req.parseAmount()
		if err != nil {
			respondError(c, err, nil)
			return
		}
		receipt, err := op(c.Request.Context(), userID, amount, req.Description)
		if err != nil {
			respondError(c, err, logrus.Fields{"user_id": userID, "amount": ledger.FormatAmount(amount)})
			return
		}
		c.JSON(http.StatusOK, ReceiptResponse{
			Balance:     ledger.FormatAmount(receipt.Balance),
			Transaction: newTransactionResponse(receipt.Transaction),
		})
	}
}

// HistoryHandler returns the user's transactions, newest first, with the
// current balance. An empty history answers 204.
func HistoryHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c) // Get userID from context
		if !ok {
			return
		}
		page, pageSize, ok := parsePage(c) // Pagination parameters
		if !ok {
			return
		}
		h, err := svc.History(c.Request.Context(), userID, ledger.Page{Number: page, Size: pageSize})
		if err != nil {
			respondError(c, err, logrus.Fields{"user_id": userID})
			return
		}
		if h.Total == 0 {
			c.Status(http.StatusNoContent)
			return
		}
		history := make([]TransactionResponse, len(h.Transactions))
		for i, t := range h.Transactions {
			history[i] = newTransactionResponse(t)
		}
		c.JSON(http.StatusOK, HistoryResponse{
			History:    history,
			Balance:    ledger.FormatAmount(h.Balance),
			Total:      h.Total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages(h.Total, pageSize),
		})
	}
}
