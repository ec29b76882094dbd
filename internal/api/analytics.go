package api

import (
	"school_ledger/internal/ledger" // Ledger reports
	"time"                          // Date window

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// SummaryHandler returns billed, collected and outstanding totals
func SummaryHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		cacheKey := ledgerCachePrefix + "analytics:summary"
		var s ledger.Summary
		if readCache(c, rdb, cacheKey, &s) {
			respondCached(c, s, true)
			return
		}
		got, err := lg.Summary(c.Request.Context())
		if err != nil {
			failErr(c, err, "Build summary", nil)
			return
		}
		writeCache(c, rdb, cacheKey, got)
		respondCached(c, got, false)
	}
}

// CollectionsHandler breaks collections down by payment method and currency
func CollectionsHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, ok := dateRange(c)
		if !ok {
			return
		}
		var f, t time.Time
		if from != nil {
			f = *from
		}
		if to != nil {
			t = *to
		}
		cacheKey := ledgerCachePrefix + "analytics:collections:" + c.Query("from") + ":" + c.Query("to")
		var col ledger.Collections
		if readCache(c, rdb, cacheKey, &col) {
			respondCached(c, col, true)
			return
		}
		got, err := lg.Collections(c.Request.Context(), f, t)
		if err != nil {
			failErr(c, err, "Build collections", nil)
			return
		}
		writeCache(c, rdb, cacheKey, got)
		respondCached(c, got, false)
	}
}

// TrialBalanceHandler returns journal totals per account
func TrialBalanceHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		cacheKey := ledgerCachePrefix + "analytics:trial-balance"
		var tb ledger.TrialBalance
		if readCache(c, rdb, cacheKey, &tb) {
			respondCached(c, tb, true)
			return
		}
		got, err := lg.TrialBalance(c.Request.Context())
		if err != nil {
			failErr(c, err, "Build trial balance", nil)
			return
		}
		writeCache(c, rdb, cacheKey, got)
		respondCached(c, got, false)
	}
}
