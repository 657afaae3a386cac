package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Exact decimal amounts
)

// TransactionType is the kind of balance change a Transaction records
type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
)

// Valid reports whether t is one of the known transaction types
func (t TransactionType) Valid() bool {
	return t == TransactionDeposit || t == TransactionWithdrawal
}

// Sign returns +1 for deposits and -1 for withdrawals
func (t TransactionType) Sign() decimal.Decimal {
	if t == TransactionWithdrawal {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Transaction Model. Rows are append-only.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`                           // Primary key
	WalletID    uint            `gorm:"index;not null" json:"wallet_id"`                // Foreign key to Wallet
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`      // Always positive
	Type        TransactionType `gorm:"size:20;not null;index" json:"transaction_type"` // DEPOSIT or WITHDRAWAL
	Description *string         `gorm:"size:255" json:"description,omitempty"`          // Optional free text
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"timestamp"`          // Server-assigned creation time
	Wallet      *Wallet         `gorm:"constraint:OnDelete:CASCADE;" json:"-"`          // Owning wallet
}

// Signed returns the amount with the sign of its type applied
func (t *Transaction) Signed() decimal.Decimal {
	return t.Amount.Mul(t.Type.Sign())
}
