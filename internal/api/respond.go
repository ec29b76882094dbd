package api

import (
	"net/http"                      // HTTP status codes
	"school_ledger/internal/ledger" // Ledger errors
	"school_ledger/internal/utils"  // Pagination and validation helpers
	"strconv"                       // String conversion
	"time"                          // Date parsing

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/pkg/errors"      // Error matching
	"github.com/sirupsen/logrus" // Logging library
)

// dateLayout is the format of dates in query strings and request bodies
const dateLayout = "2006-01-02"

// respond writes a success envelope
func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondCached writes a success envelope flagged with its cache origin
func respondCached(c *gin.Context, data any, cached bool) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "cached": cached})
}

// pageBody is the cached form of a paginated response
type pageBody[T any] struct {
	Data       []T   `json:"data"`        // Rows of the page
	Page       int   `json:"page"`        // Current page
	PageSize   int   `json:"page_size"`   // Page size
	Total      int64 `json:"total"`       // Total rows
	TotalPages int   `json:"total_pages"` // Total pages
}

func newPage[T any](rows []T, p utils.Pagination, total int64) pageBody[T] {
	if rows == nil {
		rows = []T{}
	}
	return pageBody[T]{Data: rows, Page: p.Page, PageSize: p.PageSize, Total: total, TotalPages: p.TotalPages(total)}
}

// respondPage writes a paginated success envelope
func respondPage[T any](c *gin.Context, body pageBody[T], cached bool) {
	c.JSON(http.StatusOK, gin.H{
		"success":     true,            // Success flag
		"data":        body.Data,       // Rows of the page
		"page":        body.Page,       // Current page
		"page_size":   body.PageSize,   // Page size
		"total":       body.Total,      // Total rows
		"total_pages": body.TotalPages, // Total pages
		"cached":      cached,          // Served from cache
	})
}

// fail writes an error envelope
func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// statusFor maps ledger errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrStudentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidCategory),
		errors.Is(err, ledger.ErrInvalidMethod),
		errors.Is(err, ledger.ErrInvalidRate),
		errors.Is(err, ledger.ErrInvalidFormula):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrAlreadyReversed),
		errors.Is(err, ledger.ErrDuplicateAssignment),
		errors.Is(err, ledger.ErrAlreadyBoarder):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrOverpayment),
		errors.Is(err, ledger.ErrNothingOutstanding),
		errors.Is(err, ledger.ErrOpeningBelowPaid),
		errors.Is(err, ledger.ErrHostelFull),
		errors.Is(err, ledger.ErrNotBoarder),
		errors.Is(err, ledger.ErrInactiveStudent),
		errors.Is(err, ledger.ErrUnknownCurrency):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// failErr maps err to a response. Unexpected errors are logged with fields
// and hidden behind a generic message.
func failErr(c *gin.Context, err error, action string, fields logrus.Fields) {
	status := statusFor(err)
	if status != http.StatusInternalServerError {
		fail(c, status, err.Error())
		return
	}
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["error"] = err.Error() // Error message
	fields["path"] = c.FullPath() // Route
	logrus.WithFields(fields).Error(action + " failed")
	fail(c, status, action+" failed")
}

// bindJSON binds the request body, answering 400 with translated messages
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, utils.ValidationMessage(err))
		return false
	}
	return true
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		fail(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(v), true
}

// optionalUint parses a positive numeric query parameter, nil when absent
func optionalUint(c *gin.Context, name string) (*uint, bool) {
	s := c.Query(name)
	if s == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		fail(c, http.StatusBadRequest, "Invalid "+name)
		return nil, false
	}
	id := uint(v)
	return &id, true
}

// parseDate parses a YYYY-MM-DD date, the zero time when empty
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// dateRange reads the from and to query parameters. The to date is
// inclusive, so it is moved to the last instant of that day.
func dateRange(c *gin.Context) (from, to *time.Time, ok bool) {
	f, err := parseDate(c.Query("from"))
	if err != nil {
		fail(c, http.StatusBadRequest, "from must be a date in YYYY-MM-DD format")
		return nil, nil, false
	}
	t, err := parseDate(c.Query("to"))
	if err != nil {
		fail(c, http.StatusBadRequest, "to must be a date in YYYY-MM-DD format")
		return nil, nil, false
	}
	if !f.IsZero() {
		from = &f
	}
	if !t.IsZero() {
		end := t.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	if from != nil && to != nil && to.Before(*from) {
		fail(c, http.StatusBadRequest, "to must not be before from")
		return nil, nil, false
	}
	return from, to, true
}

// currentUserID returns the authenticated user's ID, zero when absent
func currentUserID(c *gin.Context) uint {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
