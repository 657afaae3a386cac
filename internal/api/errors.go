package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes

	"wallet_ledger/internal/account"    // Account errors
	"wallet_ledger/internal/ledger"     // Ledger errors
	"wallet_ledger/internal/middleware" // Request IDs

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// statusFor maps domain errors onto HTTP status codes; zero means unexpected
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidDescription),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, account.ErrPasswordMismatch),
		errors.Is(err, account.ErrWeakPassword),
		errors.Is(err, account.ErrInvalidEmail),
		errors.Is(err, account.ErrInvalidUsername),
		errors.Is(err, account.ErrEmailTaken):
		return http.StatusBadRequest
	case errors.Is(err, account.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, account.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return 0
	}
}

// respondError writes the error response. Unexpected errors are logged with
// their details and reported to the client as a generic server error.
func respondError(c *gin.Context, err error, fields logrus.Fields) {
	if status := statusFor(err); status != 0 {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	entry := logrus.WithFields(fields).WithField("request_id", middleware.GetRequestID(c))
	entry.WithField("error", err.Error()).Error("Unexpected error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// callerID fetches the authenticated user or answers 401
func callerID(c *gin.Context) (uint, bool) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return userID, ok
}
