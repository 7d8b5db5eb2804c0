package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"strconv"       // Key building
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging of cache failures
)

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
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
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes keys from Redis
func DeleteCache(ctx context.Context, rdb *redis.Client, keys ...string) error {
	return rdb.Del(ctx, keys...).Err() // Delete keys from Redis
}

// WalletKey is the cache key of a user's wallet
func WalletKey(userID uint) string {
	return "wallet:user:" + strconv.FormatUint(uint64(userID), 10)
}

// TxHistoryPrefix is the cache key prefix of a user's paginated history
func TxHistoryPrefix(userID uint) string {
	return "txhistory:user:" + strconv.FormatUint(uint64(userID), 10)
}

// TxHistoryKey is the cache key of one history page
func TxHistoryKey(userID uint, page, pageSize int) string {
	return TxHistoryPrefix(userID) + ":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
}

// Cache wraps the Redis client for read-through caching of ledger views.
// A nil *Cache or a nil client disables caching.
type Cache struct {
	rdb *redis.Client // Redis client
	ttl time.Duration // Entry lifetime
}

// NewCache returns a cache backed by rdb
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// enabled reports whether a Redis client is configured
func (c *Cache) enabled() bool { return c != nil && c.rdb != nil }

// Get reads key into dest, treating Redis failures as a miss
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if !c.enabled() {
		return false
	}
	found, err := GetCache(ctx, c.rdb, key, dest)
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("cache read failed")
		return false
	}
	return found
}

// Set stores value under key
func (c *Cache) Set(ctx context.Context, key string, value any) {
	if !c.enabled() {
		return
	}
	if err := SetCache(ctx, c.rdb, key, value, c.ttl); err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("cache write failed")
	}
}

// InvalidateWallet drops the wallet and every cached history page of the given users
func (c *Cache) InvalidateWallet(ctx context.Context, userIDs ...uint) {
	if !c.enabled() {
		return
	}
	for _, id := range userIDs {
		keys := []string{WalletKey(id)} // Wallet cache key
		iter := c.rdb.Scan(ctx, 0, TxHistoryPrefix(id)+":*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val()) // Every history page
		}
		if err := iter.Err(); err != nil {
			logrus.WithFields(logrus.Fields{"user_id": id, "error": err.Error()}).Warn("cache scan failed")
		}
		if err := DeleteCache(ctx, c.rdb, keys...); err != nil {
			logrus.WithFields(logrus.Fields{"user_id": id, "error": err.Error()}).Warn("cache invalidation failed")
		}
	}
}
