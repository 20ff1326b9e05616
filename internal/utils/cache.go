package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"time"          // Time durations

	"github.com/google/uuid"       // UUID identifiers
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Structured logging
)

// GetCache retrieves a value from Redis and unmarshals it into dest.
// A nil client behaves as a permanent miss.
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if err == redis.Nil {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes keys from Redis
func DeleteCache(ctx context.Context, rdb *redis.Client, keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err() // Delete keys from Redis
}

// WalletKey is the cache key of a user's wallet read
func WalletKey(userID uuid.UUID) string {
	return "wallet:user:" + userID.String()
}

// TransactionsKey is the cache key of a user's transaction history read
func TransactionsKey(userID uuid.UUID) string {
	return "txhistory:user:" + userID.String()
}

// WalletCache drops cached wallet reads when the ledger commits a change
type WalletCache struct {
	RDB *redis.Client
}

// InvalidateWallet deletes the user's cached wallet and history
func (w WalletCache) InvalidateWallet(ctx context.Context, userID uuid.UUID) {
	if err := DeleteCache(ctx, w.RDB, WalletKey(userID), TransactionsKey(userID)); err != nil {
		logrus.WithField("user_id", userID).WithError(err).Warn("Failed to invalidate wallet cache")
	}
}
