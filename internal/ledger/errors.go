package ledger

import (
	"errors" // Error inspection
)

var (
	// ErrInvalidAmount is returned for missing, non-numeric, non-positive or over-precise amounts
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDescription is returned when a description does not fit the log column
	ErrInvalidDescription = errors.New("invalid description")

	// ErrWalletNotFound is returned when the caller has no wallet
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInsufficientBalance is returned when a withdrawal exceeds the current balance
	ErrInsufficientBalance = errors.New("insufficient balance")
)
