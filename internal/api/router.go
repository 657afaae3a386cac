package api

import (
	"time" // Cache TTL

	"wallet_ledger/internal/account"    // Registration and credentials
	"wallet_ledger/internal/ledger"     // Ledger service
	"wallet_ledger/internal/middleware" // Custom package for middleware

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps are the collaborators the HTTP layer needs
type Deps struct {
	DB              *gorm.DB
	Redis           redis.Cmdable // nil disables the admin caches
	Ledger          *ledger.Service
	Accounts        *account.Service
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CacheTTL        time.Duration
	TrustedProxies  []string
}

// NewRouter wires every route onto a new gin engine
func NewRouter(d Deps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery())

	r.GET("/healthz", HealthHandler(d.DB, d.Redis))

	// Auth routes
	r.POST("/register", RegisterHandler(d.Accounts))                                             // Registration endpoint
	r.POST("/token", TokenHandler(d.Accounts, d.JWTSecret, d.AccessTokenTTL, d.RefreshTokenTTL)) // Token pair endpoint
	r.POST("/token/refresh", RefreshHandler(d.JWTSecret, d.AccessTokenTTL))                      // Access token refresh

	// Wallet routes (protected by JWT)
	walletGroup := r.Group("/wallet")
	walletGroup.Use(middleware.JWTAuthMiddleware(d.JWTSecret))
	walletGroup.GET("/balance", BalanceHandler(d.Ledger))    // Balance endpoint
	walletGroup.POST("/deposit", DepositHandler(d.Ledger))   // Deposit endpoint
	walletGroup.POST("/withdraw", WithdrawHandler(d.Ledger)) // Withdraw endpoint
	walletGroup.GET("/history", HistoryHandler(d.Ledger))    // Transaction history endpoint

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.JWTAuthMiddleware(d.JWTSecret), middleware.AdminOnlyMiddleware(d.Accounts))
	adminGroup.GET("/users", ListUsersHandler(d.DB, d.Redis, d.CacheTTL))               // List users endpoint
	adminGroup.GET("/transactions", ListTransactionsHandler(d.DB, d.Redis, d.CacheTTL)) // List transactions endpoint
	adminGroup.GET("/wallets/:user_id/reconcile", ReconcileHandler(d.Ledger))           // Balance vs log check

	return r, nil
}
