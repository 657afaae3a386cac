package db

import (
	"errors"  // Error inspection
	"fmt"     // Error wrapping
	"strings" // String manipulation

	"wallet_ledger/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// ErrUserNotFound is returned by PromoteAdmin when no user has the email
var ErrUserNotFound = errors.New("user not found")

// Migrate performs automatic migration for the database schema
func Migrate(gdb *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := gdb.AutoMigrate(&domain.User{}, &domain.Wallet{}, &domain.Transaction{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}

// PromoteAdmin gives the admin role to the user registered with email
func PromoteAdmin(gdb *gorm.DB, email string) error {
	res := gdb.Model(&domain.User{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Update("role", domain.RoleAdmin)
	if res.Error != nil {
		return fmt.Errorf("promote admin: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	logrus.WithField("email", email).Info("User promoted to admin")
	return nil
}
