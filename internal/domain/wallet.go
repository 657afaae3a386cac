package domain

import (
	"github.com/shopspring/decimal" // Exact decimal amounts
)

// Wallet Model
type Wallet struct {
	ID      uint            `gorm:"primaryKey" json:"id"`                                 // Primary key
	UserID  uint            `gorm:"uniqueIndex;not null" json:"user_id"`                  // Foreign key to User
	Balance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"` // Never negative, kept so by the ledger
}
