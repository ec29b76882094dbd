package api

import (
	"context"                      // Context for Redis operations
	"school_ledger/internal/utils" // Cache helpers
	"time"                         // Time durations

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// ledgerCachePrefix namespaces every cached read derived from the ledger
const ledgerCachePrefix = "ledger:"

// cacheTTL is the lifetime of cached reads
var cacheTTL = 60 * time.Second

// SetCacheTTL overrides the lifetime of cached reads
func SetCacheTTL(ttl time.Duration) {
	if ttl > 0 {
		cacheTTL = ttl
	}
}

// readCache loads key into dest, reporting whether it was found
func readCache(c *gin.Context, rdb *redis.Client, key string, dest any) bool {
	found, err := utils.GetCache(c.Request.Context(), rdb, key, dest)
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache read failed")
		return false
	}
	return found
}

// writeCache stores value under key for cacheTTL
func writeCache(c *gin.Context, rdb *redis.Client, key string, value any) {
	if err := utils.SetCache(c.Request.Context(), rdb, key, value, cacheTTL); err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache write failed")
	}
}

// invalidateLedger drops every cached balance, list and report. Any ledger
// write can move the figures behind all of them.
func invalidateLedger(rdb *redis.Client) {
	if rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second) // Outlive the request
	defer cancel()
	if err := utils.DeletePrefix(ctx, rdb, ledgerCachePrefix); err != nil {
		logrus.WithFields(logrus.Fields{"error": err.Error()}).Warn("Cache invalidation failed")
	}
}
