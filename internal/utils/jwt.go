package utils

import (
	"errors" // Error values
	"time"   // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// Token types carried in the token_type claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidToken covers malformed, expired and badly signed tokens
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrWrongTokenType is returned when a refresh token is used as an access token or vice versa
	ErrWrongTokenType = errors.New("wrong token type")
)

// JWT Claims
type Claims struct {
	UserID               uint   `json:"user_id"`    // Custom claim for user ID
	Email                string `json:"email"`      // Login identity
	Role                 string `json:"role"`       // Role at issue time
	TokenType            string `json:"token_type"` // access or refresh
	jwt.RegisteredClaims                            // Standard JWT claims
}

// TokenPair is an access/refresh token pair
type TokenPair struct {
	Access  string `json:"access"`  // Short-lived token for API calls
	Refresh string `json:"refresh"` // Long-lived token for /token/refresh
}

// TokenSubject identifies who a token is issued to
type TokenSubject struct {
	UserID uint
	Email  string
	Role   string
}

// GenerateJWT creates a signed token of the given type for a subject
func GenerateJWT(sub TokenSubject, tokenType, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	// Set token claims
	claims := Claims{
		UserID:    sub.UserID,
		Email:     sub.Email,
		Role:      sub.Role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)), // Token expiry
			IssuedAt:  jwt.NewNumericDate(now),          // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// GenerateTokenPair issues an access token and a refresh token for a subject
func GenerateTokenPair(sub TokenSubject, secret string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	access, err := GenerateJWT(sub, TokenTypeAccess, secret, accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := GenerateJWT(sub, TokenTypeRefresh, secret, refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// ParseJWT parses and validates a JWT token string
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	// Check for parsing errors
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	// Validate token and extract claims
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// ParseTyped parses a token and checks its token_type claim
func ParseTyped(tokenStr, tokenType, secret string) (*Claims, error) {
	claims, err := ParseJWT(tokenStr, secret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// RefreshAccessToken exchanges a valid refresh token for a new access token
func RefreshAccessToken(refreshToken, secret string, accessTTL time.Duration) (string, error) {
	claims, err := ParseTyped(refreshToken, TokenTypeRefresh, secret)
	if err != nil {
		return "", err
	}
	sub := TokenSubject{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}
	return GenerateJWT(sub, TokenTypeAccess, secret, accessTTL)
}
