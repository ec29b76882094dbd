package api

import (
	"net/http"                      // HTTP status codes
	"school_ledger/internal/domain" // Importing domain models
	"school_ledger/internal/ledger" // Ledger operations
	"school_ledger/internal/utils"  // Utility functions
	"strings"                       // String manipulation
	"time"                          // Timestamps for logs

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// PaymentRequest records money received for a student
type PaymentRequest struct {
	StudentID    uint             `json:"student_id" binding:"required"`
	Amount       decimal.Decimal  `json:"amount"`                                // In Currency
	Currency     string           `json:"currency" binding:"omitempty,currency"` // Defaults to the base currency
	ExchangeRate *decimal.Decimal `json:"exchange_rate"`                         // Overrides the stored rate
	Method       string           `json:"method" binding:"required,oneof=cash bank mobile cheque"`
	Reference    string           `json:"reference" binding:"max=64"`
	PaidAt       string           `json:"paid_at" binding:"omitempty,datetime=2006-01-02"`
}

// BoardingPaymentRequest records boarding money, settling boarding charges only
type BoardingPaymentRequest struct {
	PaymentRequest
	HostelID *uint `json:"hostel_id"` // Defaults to the student's hostel
}

// ReverseRequest voids a payment
type ReverseRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// recordPayment is shared by tuition and boarding payments
func recordPayment(c *gin.Context, lg *ledger.Ledger, rdb *redis.Client, req PaymentRequest, category string, hostelID *uint) {
	paidAt, _ := parseDate(req.PaidAt) // Format already validated
	p, err := lg.RecordPayment(c.Request.Context(), ledger.PaymentInput{
		StudentID:  req.StudentID,
		Category:   category,
		HostelID:   hostelID,
		Currency:   req.Currency,
		Amount:     req.Amount,
		Rate:       req.ExchangeRate,
		Method:     req.Method,
		Reference:  req.Reference,
		PaidAt:     paidAt,
		RecordedBy: currentUserID(c),
	})
	if err != nil {
		failErr(c, err, "Record payment", logrus.Fields{
			"student_id": req.StudentID,       // Student ID
			"amount":     req.Amount.String(), // Amount sent
			"currency":   req.Currency,        // Currency sent
		})
		return
	}
	logrus.WithFields(logrus.Fields{
		"student_id":  p.StudentID,                     // Student ID
		"receipt_no":  p.ReceiptNo,                     // Receipt number
		"category":    p.Category,                      // Tuition or boarding
		"amount":      p.Amount.StringFixed(2),         // Amount received
		"currency":    p.Currency,                      // Currency received
		"base_amount": p.BaseAmount.StringFixed(2),     // Amount credited
		"method":      p.Method,                        // Payment method
		"recorded_by": p.RecordedBy,                    // Acting user
		"timestamp":   time.Now().Format(time.RFC3339), // Current timestamp
	}).Info("Payment recorded")
	invalidateLedger(rdb) // Balances changed
	respond(c, http.StatusCreated, p)
}

// RecordPaymentHandler records a tuition payment
func RecordPaymentHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentRequest
		if !bindJSON(c, &req) {
			return
		}
		recordPayment(c, lg, rdb, req, domain.CategoryTuition, nil)
	}
}

// BoardingPaymentHandler records a boarding payment
func BoardingPaymentHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BoardingPaymentRequest
		if !bindJSON(c, &req) {
			return
		}
		recordPayment(c, lg, rdb, req.PaymentRequest, domain.CategoryBoarding, req.HostelID)
	}
}

// ListPaymentsHandler lists payments, newest first, filtered by student,
// category, method, reversal state and date
func ListPaymentsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		studentID, ok := optionalUint(c, "student_id")
		if !ok {
			return
		}
		from, to, ok := dateRange(c)
		if !ok {
			return
		}
		p := utils.ParsePagination(c)
		q := db.WithContext(c.Request.Context()).Model(&domain.FeePayment{})
		if studentID != nil {
			q = q.Where("student_id = ?", *studentID) // Filter by student
		}
		if category := c.Query("category"); category != "" {
			q = q.Where("category = ?", category) // Filter by category
		}
		if method := c.Query("method"); method != "" {
			q = q.Where("method = ?", method) // Filter by payment method
		}
		if reversed := c.Query("reversed"); reversed != "" {
			q = q.Where("reversed = ?", reversed == "true") // Filter by reversal state
		}
		if from != nil {
			q = q.Where("paid_at >= ?", *from) // Filter by start date
		}
		if to != nil {
			q = q.Where("paid_at <= ?", *to) // Filter by end date
		}
		var total int64
		if err := q.Count(&total).Error; err != nil {
			failErr(c, err, "Count payments", nil)
			return
		}
		var payments []domain.FeePayment
		if err := q.Preload("Allocations").Scopes(p.Scope()).Order("id desc").Find(&payments).Error; err != nil {
			failErr(c, err, "List payments", nil)
			return
		}
		respondPage(c, newPage(payments, p, total), false)
	}
}

// ReceiptHandler returns the printable receipt of a payment
func ReceiptHandler(lg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		r, err := lg.Receipt(c.Request.Context(), id)
		if err != nil {
			failErr(c, err, "Build receipt", logrus.Fields{"payment_id": id})
			return
		}
		respond(c, http.StatusOK, r)
	}
}

// ReversePaymentHandler voids a payment and restores the debt it settled
func ReversePaymentHandler(lg *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req ReverseRequest
		if !bindJSON(c, &req) {
			return
		}
		p, err := lg.ReversePayment(c.Request.Context(), id, strings.TrimSpace(req.Reason))
		if err != nil {
			failErr(c, err, "Reverse payment", logrus.Fields{"payment_id": id})
			return
		}
		logrus.WithFields(logrus.Fields{
			"payment_id":  p.ID,                            // Payment ID
			"receipt_no":  p.ReceiptNo,                     // Receipt number
			"student_id":  p.StudentID,                     // Student ID
			"base_amount": p.BaseAmount.StringFixed(2),     // Amount restored
			"reason":      p.ReversalReason,                // Why it was reversed
			"reversed_by": currentUserID(c),                // Acting user
			"timestamp":   time.Now().Format(time.RFC3339), // Current timestamp
		}).Warn("Payment reversed")
		invalidateLedger(rdb) // Balances changed
		respond(c, http.StatusOK, p)
	}
}
