package api

import (
	"net/http"                      // HTTP status codes
	"school_ledger/internal/domain" // Importing domain models
	"school_ledger/internal/ledger" // Ledger operations
	"school_ledger/internal/utils"  // Utility functions
	"strconv"                       // String conversion
	"time"                          // Timestamps for logs

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
)

// OpeningBalanceRequest sets a student's opening balance
type OpeningBalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`                 // Zero or more, base currency
	Note   string          `json:"note" binding:"max=255"` // Shown on the ledger entry
}

func studentKey(id uint, what string) string {
	return ledgerCachePrefix + "student:" + strconv.Itoa(int(id)) + ":" + what
}

// StudentBalanceHandler returns debits, credits and the balance of a student
func StudentBalanceHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		cacheKey := studentKey(id, "balance") // Cache key for the balance
		var bal ledger.BalanceSummary
		if readCache(c, rdb, cacheKey, &bal) {
			respondCached(c, bal, true) // Return cached balance
			return
		}
		got, err := lg.Balance(c.Request.Context(), id)
		if err != nil {
			failErr(c, err, "Get balance", logrus.Fields{"student_id": id})
			return
		}
		writeCache(c, rdb, cacheKey, got)
		respondCached(c, got, false)
	}
}

// StatementHandler returns the ledger entries of a date window with the
// balance brought forward
func StatementHandler(lg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		from, to, ok := dateRange(c)
		if !ok {
			return
		}
		s, err := lg.Statement(c.Request.Context(), id, from, to)
		if err != nil {
			failErr(c, err, "Build statement", logrus.Fields{"student_id": id})
			return
		}
		respond(c, http.StatusOK, s)
	}
}

// StudentTransactionsHandler returns a page of the ledger, newest first
func StudentTransactionsHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		p := utils.ParsePagination(c)
		cacheKey := studentKey(id, "transactions") + p.CacheSuffix() // Cache key per page
		var cached pageBody[domain.StudentTransaction]
		if readCache(c, rdb, cacheKey, &cached) {
			respondPage(c, cached, true) // Return cached page
			return
		}
		txs, total, err := lg.Transactions(c.Request.Context(), id, p.Offset(), p.PageSize)
		if err != nil {
			failErr(c, err, "List transactions", logrus.Fields{"student_id": id})
			return
		}
		body := newPage(txs, p, total)
		writeCache(c, rdb, cacheKey, body)
		respondPage(c, body, false)
	}
}

// StudentAssignmentsHandler lists a student's charges with what is still owed
func StudentAssignmentsHandler(lg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		as, err := lg.Assignments(c.Request.Context(), id)
		if err != nil {
			failErr(c, err, "List assignments", logrus.Fields{"student_id": id})
			return
		}
		if as == nil {
			as = []domain.FeeAssignment{}
		}
		respond(c, http.StatusOK, as)
	}
}

// OpeningBalanceHandler records or corrects a student's opening balance
func OpeningBalanceHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req OpeningBalanceRequest
		if !bindJSON(c, &req) {
			return
		}
		a, err := lg.RecordOpeningBalance(c.Request.Context(), id, req.Amount, req.Note)
		if err != nil {
			failErr(c, err, "Record opening balance", logrus.Fields{"student_id": id, "amount": req.Amount.String()})
			return
		}
		logrus.WithFields(logrus.Fields{
			"student_id":  id,                              // Student ID
			"amount":      a.Amount.StringFixed(2),         // Opening balance
			"recorded_by": currentUserID(c),                // Acting user
			"timestamp":   time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Opening balance recorded")
		invalidateLedger(rdb) // Balances changed
		respond(c, http.StatusOK, a)
	}
}

// listFilter reads the class filter and page of balance lists
func listFilter(c *gin.Context) (ledger.Filter, utils.Pagination, bool) {
	classID, ok := optionalUint(c, "class_term_year_id")
	if !ok {
		return ledger.Filter{}, utils.Pagination{}, false
	}
	p := utils.ParsePagination(c)
	return ledger.Filter{ClassTermYearID: classID, Offset: p.Offset(), Limit: p.PageSize}, p, true
}

func classSuffix(id *uint) string {
	if id == nil {
		return ":class:all"
	}
	return ":class:" + strconv.Itoa(int(*id))
}

// OutstandingBalancesHandler lists students who owe money, largest debt first
func OutstandingBalancesHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, p, ok := listFilter(c)
		if !ok {
			return
		}
		cacheKey := ledgerCachePrefix + "outstanding" + classSuffix(f.ClassTermYearID) + p.CacheSuffix()
		var cached pageBody[ledger.OutstandingRow]
		if readCache(c, rdb, cacheKey, &cached) {
			respondPage(c, cached, true)
			return
		}
		rows, total, err := lg.Outstanding(c.Request.Context(), f)
		if err != nil {
			failErr(c, err, "List outstanding balances", nil)
			return
		}
		body := newPage(rows, p, total)
		writeCache(c, rdb, cacheKey, body)
		respondPage(c, body, false)
	}
}

// OpeningBalancesHandler lists students carrying an opening balance;
// unpaid=true keeps only those with something left to pay
func OpeningBalancesHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, p, ok := listFilter(c)
		if !ok {
			return
		}
		unpaid := c.Query("unpaid") == "true"
		cacheKey := ledgerCachePrefix + "opening" + classSuffix(f.ClassTermYearID) + ":unpaid:" + strconv.FormatBool(unpaid) + p.CacheSuffix()
		var cached pageBody[ledger.OpeningBalanceRow]
		if readCache(c, rdb, cacheKey, &cached) {
			respondPage(c, cached, true)
			return
		}
		rows, total, err := lg.StudentsWithOpeningBalance(c.Request.Context(), f, unpaid)
		if err != nil {
			failErr(c, err, "List opening balances", nil)
			return
		}
		body := newPage(rows, p, total)
		writeCache(c, rdb, cacheKey, body)
		respondPage(c, body, false)
	}
}
