package domain

import (
	"time" // Timestamps
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User Model
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                                   // Primary key
	Username  string    `gorm:"size:150;not null" json:"username"`                      // Display name, not unique
	Email     string    `gorm:"size:254;uniqueIndex;not null" json:"email"`             // Login identity, stored lower-cased
	Password  string    `gorm:"not null" json:"-"`                                      // Hashed password
	Role      string    `gorm:"size:16;default:user" json:"role"`                       // Role: user or admin
	CreatedAt time.Time `json:"created_at"`                                             // Registration time
	Wallet    Wallet    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"` // One-to-one relationship with Wallet
}

// IsAdmin reports whether the user carries the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
