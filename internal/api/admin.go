package api

import (
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation
	"time"     // Time durations

	"wallet_ledger/internal/domain" // Importing domain models
	"wallet_ledger/internal/ledger" // Ledger service
	"wallet_ledger/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// Cache key prefixes of the admin listings
const (
	usersCachePrefix        = "admin:users:"
	transactionsCachePrefix = "admin:txs:"
)

// maxSearchLength bounds the q parameter of the user listing
const maxSearchLength = 100

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID        uint      `json:"id"`         // User ID
	Username  string    `json:"username"`   // Username
	Email     string    `json:"email"`      // Email
	Role      string    `json:"role"`       // User role
	Balance   string    `json:"balance"`    // Wallet balance
	CreatedAt time.Time `json:"created_at"` // Registration time
}

// UserListResponse is one page of users
type UserListResponse struct {
	Users      []UserAdminResponse `json:"users"`       // List of users
	Page       int                 `json:"page"`        // Current page
	PageSize   int                 `json:"page_size"`   // Page size
	Total      int64               `json:"total"`       // Total number of users
	TotalPages int                 `json:"total_pages"` // Total pages
	Cached     bool                `json:"cached"`      // Served from cache
}

// AdminTransactionResponse is a transaction with its owner, for admins
type AdminTransactionResponse struct {
	TransactionResponse
	WalletID uint `json:"wallet_id"` // Owning wallet
	UserID   uint `json:"user_id"`   // Owning user
}

// TransactionListResponse is one page of transactions
type TransactionListResponse struct {
	Transactions []AdminTransactionResponse `json:"transactions"` // List of transactions
	Page         int                        `json:"page"`         // Current page
	PageSize     int                        `json:"page_size"`    // Page size
	Total        int64                      `json:"total"`        // Total number of transactions
	TotalPages   int                        `json:"total_pages"`  // Total pages
	Cached       bool                       `json:"cached"`       // Served from cache
}

// ListUsersHandler returns users with their wallet balance, optionally
// filtered by q, a case-insensitive fragment of the username or email
func ListUsersHandler(db *gorm.DB, rdb redis.Cmdable, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize, ok := parsePage(c) // Pagination parameters
		if !ok {
			return
		}
		search := strings.ToLower(strings.TrimSpace(c.Query("q"))) // Username or email fragment
		if len(search) > maxSearchLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "q must be at most " + strconv.Itoa(maxSearchLength) + " characters"})
			return
		}
		// Create a cache key based on search and pagination parameters
		cacheKey := usersCachePrefix + "q=" + search + ":page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)

		var cached UserListResponse
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true // Indicate response is from cache
			c.JSON(http.StatusOK, cached)
			return
		}

		var total int64 // Total user count
		if err := searchUsers(db.WithContext(ctx).Model(&domain.User{}), search).Count(&total).Error; err != nil {
			respondError(c, err, logrus.Fields{"query": "count users"})
			return
		}
		var users []domain.User // Slice to hold users
		// Preload Wallet relation, apply offset and limit for pagination
		err := searchUsers(db.WithContext(ctx), search).Preload("Wallet").Order("id").
			Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error
		if err != nil {
			respondError(c, err, logrus.Fields{"query": "list users"})
			return
		}

		resp := UserListResponse{
			Users:      make([]UserAdminResponse, len(users)),
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages(total, pageSize),
		}
		// Map users to response format
		for i, u := range users {
			resp.Users[i] = UserAdminResponse{
				ID:        u.ID,
				Username:  u.Username,
				Email:     u.Email,
				Role:      u.Role,
				Balance:   ledger.FormatAmount(u.Wallet.Balance),
				CreatedAt: u.CreatedAt,
			}
		}
		if err := utils.SetCache(ctx, rdb, cacheKey, resp, ttl); err != nil {
			logrus.WithField("key", cacheKey).WithError(err).Warn("Failed to cache admin listing")
		}
		c.JSON(http.StatusOK, resp) // Return the response
	}
}

// searchUsers narrows query to users whose username or email contains search
func searchUsers(query *gorm.DB, search string) *gorm.DB {
	if search == "" {
		return query
	}
	pattern := "%" + likeEscaper.Replace(search) + "%"
	return query.Where("LOWER(username) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!'", pattern, pattern)
}

// likeEscaper quotes LIKE wildcards with '!', which every supported database accepts as ESCAPE
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// transactionFilter holds the optional filters of the transaction listing
type transactionFilter struct {
	userID uint
	txType domain.TransactionType
	from   *time.Time
	to     *time.Time
}

// parseTransactionFilter reads user_id, type, from and to from the query
func parseTransactionFilter(c *gin.Context) (transactionFilter, string) {
	var f transactionFilter
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return f, "user_id must be a positive integer"
		}
		f.userID = uint(id)
	}
	if v := c.Query("type"); v != "" {
		f.txType = domain.TransactionType(strings.ToUpper(v))
		if !f.txType.Valid() {
			return f, "type must be DEPOSIT or WITHDRAWAL"
		}
	}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"from", &f.from}, {"to", &f.to}} {
		v := c.Query(p.key)
		if v == "" {
			continue
		}
		t, err := parseTime(v)
		if err != nil {
			return f, p.key + " must be RFC 3339 or YYYY-MM-DD"
		}
		*p.dst = &t
	}
	return f, ""
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

// apply narrows query to the filter
func (f transactionFilter) apply(query *gorm.DB) *gorm.DB {
	if f.userID != 0 {
		query = query.Where("wallet_id IN (SELECT id FROM wallets WHERE user_id = ?)", f.userID) // Filter by owner
	}
	if f.txType != "" {
		query = query.Where("type = ?", f.txType) // Filter by transaction type
	}
	if f.from != nil {
		query = query.Where("created_at >= ?", *f.from) // Filter by start date
	}
	if f.to != nil {
		query = query.Where("created_at <= ?", *f.to) // Filter by end date
	}
	return query
}

// ListTransactionsHandler returns all transactions, with optional filtering by user, type, or date
func ListTransactionsHandler(db *gorm.DB, rdb redis.Cmdable, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		filter, msg := parseTransactionFilter(c)
		if msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		page, pageSize, ok := parsePage(c) // Pagination parameters
		if !ok {
			return
		}

		// Build cache key from all query params
		var keyParts []string
		for _, k := range []string{"user_id", "type", "from", "to"} {
			keyParts = append(keyParts, k+"="+c.Query(k)) // Append key-value pair
		}
		keyParts = append(keyParts, "page="+strconv.Itoa(page), "size="+strconv.Itoa(pageSize))
		cacheKey := transactionsCachePrefix + strings.Join(keyParts, ":")

		var cached TransactionListResponse
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true // Indicate response is from cache
			c.JSON(http.StatusOK, cached)
			return
		}

		var total int64 // Total transaction count
		if err := filter.apply(db.WithContext(ctx).Model(&domain.Transaction{})).Count(&total).Error; err != nil {
			respondError(c, err, logrus.Fields{"query": "count transactions"})
			return
		}
		var txs []domain.Transaction // Slice to hold transactions
		err := filter.apply(db.WithContext(ctx).Model(&domain.Transaction{})).Preload("Wallet").
			Order("created_at desc").Order("id desc").
			Offset((page - 1) * pageSize).Limit(pageSize).Find(&txs).Error
		if err != nil {
			respondError(c, err, logrus.Fields{"query": "list transactions"})
			return
		}

		resp := TransactionListResponse{
			Transactions: make([]AdminTransactionResponse, len(txs)),
			Page:         page,
			PageSize:     pageSize,
			Total:        total,
			TotalPages:   totalPages(total, pageSize),
		}
		for i, t := range txs {
			resp.Transactions[i] = AdminTransactionResponse{
				TransactionResponse: newTransactionResponse(t),
				WalletID:            t.WalletID,
			}
			if t.Wallet != nil {
				resp.Transactions[i].UserID = t.Wallet.UserID
			}
		}
		if err := utils.SetCache(ctx, rdb, cacheKey, resp, ttl); err != nil {
			logrus.WithField("key", cacheKey).WithError(err).Warn("Failed to cache admin listing")
		}
		c.JSON(http.StatusOK, resp) // Return the response
	}
}

// ReconcileHandler compares a wallet's balance with the sum of its transactions
func ReconcileHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
		if err != nil || userID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be a positive integer"})
			return
		}
		r, err := svc.Reconcile(c.Request.Context(), uint(userID))
		if err != nil {
			respondError(c, err, logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user_id":    userID,
			"wallet_id":  r.WalletID,
			"balance":    ledger.FormatAmount(r.Balance),
			"ledger_sum": ledger.FormatAmount(r.LedgerSum),
			"consistent": r.Consistent,
		})
	}
}
