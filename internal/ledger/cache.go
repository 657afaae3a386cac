package ledger

import (
	"context" // Request contexts
	"strconv" // String conversion
	"time"    // Time durations

	"wallet_ledger/internal/utils" // Cache helpers

	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Exact decimal amounts
	"github.com/sirupsen/logrus"    // Logging library
)

// Cache keeps recently read balances. Implementations must be safe for
// concurrent use; failures are absorbed so the database stays authoritative.
type Cache interface {
	Balance(ctx context.Context, userID uint) (decimal.Decimal, bool)
	SetBalance(ctx context.Context, userID uint, balance decimal.Decimal)
	Invalidate(ctx context.Context, userID uint)
}

// noCache is used when no Redis client is configured
type noCache struct{}

func (noCache) Balance(context.Context, uint) (decimal.Decimal, bool) { return decimal.Zero, false }
func (noCache) SetBalance(context.Context, uint, decimal.Decimal)     {}
func (noCache) Invalidate(context.Context, uint)                      {}

// RedisCache stores balances under wallet:user:<id>
type RedisCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisCache returns a Redis backed balance cache
func NewRedisCache(rdb redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// BalanceKey is the cache key of a user's balance
func BalanceKey(userID uint) string {
	return "wallet:user:" + strconv.FormatUint(uint64(userID), 10)
}

// Balance returns the cached balance of userID; read errors count as a miss
func (c *RedisCache) Balance(ctx context.Context, userID uint) (decimal.Decimal, bool) {
	var balance decimal.Decimal
	found, err := utils.GetCache(ctx, c.rdb, BalanceKey(userID), &balance)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Balance cache read failed")
		return decimal.Zero, false
	}
	return balance, found
}

// SetBalance stores the balance of userID for the configured TTL
func (c *RedisCache) SetBalance(ctx context.Context, userID uint, balance decimal.Decimal) {
	if err := utils.SetCache(ctx, c.rdb, BalanceKey(userID), balance, c.ttl); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Balance cache write failed")
	}
}

// Invalidate drops the cached balance of userID
func (c *RedisCache) Invalidate(ctx context.Context, userID uint) {
	if err := utils.DeleteCache(ctx, c.rdb, BalanceKey(userID)); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Warn("Balance cache invalidation failed")
	}
}
