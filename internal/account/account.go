// Package account registers users and checks their credentials.
package account

import (
	"context" // Request contexts
	"errors"  // Error inspection
	"fmt"     // Error wrapping
	"strings" // String manipulation

	"wallet_ledger/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt ignores anything longer
)

var (
	ErrPasswordMismatch   = errors.New("password fields didn't match")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrEmailTaken         = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// RegisterInput is what a new user submits
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	Password2 string
}

// Service owns users and creates their wallets
type Service struct {
	db       *gorm.DB
	hashCost int
}

// NewService returns an account service using bcrypt.DefaultCost
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, hashCost: bcrypt.DefaultCost}
}

// WithHashCost changes the bcrypt cost, mostly to keep tests fast
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// Register creates the user and an empty wallet in one database transaction
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := NormalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if username == "" || len(username) > 150 {
		return nil, ErrInvalidUsername
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if in.Password != in.Password2 {
		return nil, ErrPasswordMismatch
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{Username: username, Email: email, Password: string(hash), Role: domain.RoleUser}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&domain.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if existing > 0 {
			return ErrEmailTaken
		}
		if err := tx.Omit("Wallet").Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		wallet := domain.Wallet{UserID: user.ID}
		if err := tx.Create(&wallet).Error; err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		user.Wallet = wallet
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"wallet_id": user.Wallet.ID,
	}).Info("User registered")
	return &user, nil
}

// Authenticate returns the user whose email and password match
func (s *Service) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	// Compare provided password with stored hash
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get loads a user by ID
func (s *Service) Get(ctx context.Context, userID uint) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: must contain at least %d characters", ErrWeakPassword, minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("%w: must contain at most %d bytes", ErrWeakPassword, maxPasswordLength)
	}
	if strings.Trim(password, "0123456789") == "" {
		return fmt.Errorf("%w: entirely numeric", ErrWeakPassword)
	}
	return nil
}
