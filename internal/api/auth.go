package api

import (
	"net/http" // HTTP status codes
	"time"     // Token lifetimes

	"wallet_ledger/internal/account" // Registration and credentials
	"wallet_ledger/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// RegisterRequest is the body of POST /register
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,max=150"` // Display name
	Email     string `json:"email" binding:"required,email"`      // Login identity
	Password  string `json:"password" binding:"required"`         // Plain password
	Password2 string `json:"password2" binding:"required"`        // Confirmation
}

// RegisterResponse is returned for a newly created user
type RegisterResponse struct {
	ID       uint   `json:"id"`       // User ID
	Username string `json:"username"` // Username
	Email    string `json:"email"`    // Normalized email
}

// TokenRequest is the body of POST /token
type TokenRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// RefreshRequest is the body of POST /token/refresh
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"` // Refresh token
}

// RegisterHandler creates a user together with an empty wallet
func RegisterHandler(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
			return
		}
		user, err := accounts.Register(c.Request.Context(), account.RegisterInput{
			Username:  req.Username,
			Email:     req.Email,
			Password:  req.Password,
			Password2: req.Password2,
		})
		if err != nil {
			respondError(c, err, logrus.Fields{"email": req.Email})
			return
		}
		c.JSON(http.StatusCreated, RegisterResponse{ID: user.ID, Username: user.Username, Email: user.Email})
	}
}

// TokenHandler exchanges credentials for an access/refresh token pair
func TokenHandler(accounts *account.Service, secret string, accessTTL, refreshTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TokenRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
			return
		}
		user, err := accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err, logrus.Fields{"email": req.Email})
			return
		}
		pair, err := utils.GenerateTokenPair(utils.TokenSubject{
			UserID: user.ID,
			Email:  user.Email,
			Role:   user.Role,
		}, secret, accessTTL, refreshTTL)
		if err != nil {
			respondError(c, err, logrus.Fields{"user_id": user.ID})
			return
		}
		logrus.WithField("user_id", user.ID).Info("Token pair issued") // Log successful login
		c.JSON(http.StatusOK, pair)                                    // Return the token pair
	}
}

// RefreshHandler issues a new access token for a valid refresh token
func RefreshHandler(secret string, accessTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefreshRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": formatValidationError(err)})
			return
		}
		access, err := utils.RefreshAccessToken(req.Refresh, secret, accessTTL)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is invalid or expired"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access": access})
	}
}
