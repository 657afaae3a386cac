// Package ledger applies balance changes to wallets. Every change updates the
// wallet balance and appends one transaction row inside a single database
// transaction, with the wallet row locked for the duration.
package ledger

import (
	"context" // Request contexts
	"errors"  // Error inspection
	"fmt"     // Error wrapping

	"wallet_ledger/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Exact decimal amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
	"gorm.io/gorm/clause"           // Row locking clauses
)

// Default descriptions recorded when the caller supplies none
const (
	DepositDescription    = "Deposit to wallet"
	WithdrawalDescription = "Withdrawal from wallet"
)

// MaxPageSize caps History pages
const MaxPageSize = 100

// Receipt is the outcome of a committed deposit or withdrawal
type Receipt struct {
	Balance     decimal.Decimal
	Transaction domain.Transaction
}

// Page selects a slice of the history. The zero Page selects everything.
type Page struct {
	Number int
	Size   int
}

// History is a wallet's transactions, newest first, with the current balance
type History struct {
	Transactions []domain.Transaction
	Balance      decimal.Decimal
	Total        int64
}

// Reconciliation compares the stored balance with the sum of the log
type Reconciliation struct {
	WalletID   uint
	Balance    decimal.Decimal
	LedgerSum  decimal.Decimal
	Consistent bool
}

// Service is the ledger. It is safe for concurrent use.
type Service struct {
	db    *gorm.DB
	cache Cache
}

// NewService returns a ledger backed by db. cache may be nil.
func NewService(db *gorm.DB, cache Cache) *Service {
	if cache == nil {
		cache = noCache{}
	}
	return &Service{db: db, cache: cache}
}

// Deposit adds amount to the wallet of userID and records a DEPOSIT
func (s *Service) Deposit(ctx context.Context, userID uint, amount decimal.Decimal, description string) (*Receipt, error) {
	return s.apply(ctx, userID, domain.TransactionDeposit, amount, description)
}

// Withdraw removes amount from the wallet of userID and records a WITHDRAWAL.
// The balance never goes below zero.
func (s *Service) Withdraw(ctx context.Context, userID uint, amount decimal.Decimal, description string) (*Receipt, error) {
	return s.apply(ctx, userID, domain.TransactionWithdrawal, amount, description)
}

func (s *Service) apply(ctx context.Context, userID uint, kind domain.TransactionType, amount decimal.Decimal, description string) (*Receipt, error) {
	amount, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = defaultDescription(kind)
	}
	if len(description) > MaxDescriptionLength {
		return nil, fmt.Errorf("%w: longer than %d characters", ErrInvalidDescription, MaxDescriptionLength)
	}

	var receipt Receipt
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := lockWallet(tx, userID)
		if err != nil {
			return err
		}

		update := tx.Model(&domain.Wallet{}).Where("id = ?", wallet.ID)
		var next decimal.Decimal
		switch kind {
		case domain.TransactionDeposit:
			next = wallet.Balance.Add(amount)
			if next.GreaterThanOrEqual(maxBalance) {
				return fmt.Errorf("%w: balance would exceed %s", ErrInvalidAmount, FormatAmount(maxBalance))
			}
		case domain.TransactionWithdrawal:
			if wallet.Balance.LessThan(amount) {
				return ErrInsufficientBalance
			}
			next = wallet.Balance.Sub(amount)
			// Guards the check above on stores without row locks
			update = update.Where("balance >= ?", amount)
		default:
			return fmt.Errorf("unsupported transaction type %q", kind)
		}

		res := update.Update("balance", next)
		if res.Error != nil {
			return fmt.Errorf("update balance: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			if kind == domain.TransactionWithdrawal {
				return ErrInsufficientBalance
			}
			return ErrWalletNotFound
		}

		txn := domain.Transaction{
			WalletID:    wallet.ID,
			Amount:      amount,
			Type:        kind,
			Description: &description,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}
		receipt = Receipt{Balance: next, Transaction: txn}
		return nil
	})

	fields := logrus.Fields{
		"user_id": userID,
		"amount":  FormatAmount(amount),
		"type":    kind,
	}
	if err != nil {
		if isDomainError(err) {
			logrus.WithFields(fields).WithField("reason", err.Error()).Info("Ledger operation rejected")
			return nil, err
		}
		logrus.WithFields(fields).WithField("error", err.Error()).Error("Ledger operation failed")
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	// The request may already be cancelled; the stale entry must still go.
	s.cache.Invalidate(context.WithoutCancel(ctx), userID)
	logrus.WithFields(fields).
		WithField("transaction_id", receipt.Transaction.ID).
		WithField("balance", FormatAmount(receipt.Balance)).
		Info("Ledger transaction committed")
	return &receipt, nil
}

// Balance returns the current balance of userID's wallet
func (s *Service) Balance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	if balance, ok := s.cache.Balance(ctx, userID); ok {
		return balance, nil
	}
	wallet, err := findWallet(s.db.WithContext(ctx), userID)
	if err != nil {
		return decimal.Zero, err
	}
	s.cache.SetBalance(ctx, userID, wallet.Balance)
	return wallet.Balance, nil
}

// History returns the wallet's transactions newest first (created_at, then id,
// descending) together with the balance read in the same transaction.
func (s *Service) History(ctx context.Context, userID uint, page Page) (*History, error) {
	var h History
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := findWallet(tx, userID)
		if err != nil {
			return err
		}
		h.Balance = wallet.Balance
		if err := tx.Model(&domain.Transaction{}).Where("wallet_id = ?", wallet.ID).Count(&h.Total).Error; err != nil {
			return fmt.Errorf("count transactions: %w", err)
		}
		query := tx.Where("wallet_id = ?", wallet.ID).Order("created_at desc").Order("id desc")
		if page.Size > 0 {
			page = page.normalize()
			query = query.Offset((page.Number - 1) * page.Size).Limit(page.Size)
		}
		h.Transactions = make([]domain.Transaction, 0)
		if err := query.Find(&h.Transactions).Error; err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Reconcile recomputes the balance from the transaction log
func (s *Service) Reconcile(ctx context.Context, userID uint) (*Reconciliation, error) {
	var r Reconciliation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := findWallet(tx, userID)
		if err != nil {
			return err
		}
		var sum decimal.Decimal
		row := tx.Model(&domain.Transaction{}).
			Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0)", domain.TransactionDeposit).
			Where("wallet_id = ?", wallet.ID).
			Row()
		if err := row.Scan(&sum); err != nil {
			return fmt.Errorf("sum transactions: %w", err)
		}
		// SQLite sums decimal columns as floats
		sum = sum.Round(Scale)
		r = Reconciliation{
			WalletID:   wallet.ID,
			Balance:    wallet.Balance,
			LedgerSum:  sum,
			Consistent: sum.Equal(wallet.Balance),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !r.Consistent {
		logrus.WithFields(logrus.Fields{
			"user_id":    userID,
			"wallet_id":  r.WalletID,
			"balance":    FormatAmount(r.Balance),
			"ledger_sum": FormatAmount(r.LedgerSum),
		}).Warn("Wallet balance does not match its transactions")
	}
	return &r, nil
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// lockWallet loads the wallet row with an exclusive row lock. SQLite has no
// row locks and serializes writers on its own, so the clause is left out there.
func lockWallet(tx *gorm.DB, userID uint) (*domain.Wallet, error) {
	if tx.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return findWallet(tx, userID)
}

func findWallet(db *gorm.DB, userID uint) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := db.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	return &wallet, nil
}

func defaultDescription(kind domain.TransactionType) string {
	if kind == domain.TransactionWithdrawal {
		return WithdrawalDescription
	}
	return DepositDescription
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrInsufficientBalance)
}
