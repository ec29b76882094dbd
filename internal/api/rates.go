package api

import (
	"net/http"                      // HTTP status codes
	"school_ledger/internal/domain" // Importing domain models
	"school_ledger/internal/ledger" // Ledger operations
	"strings"                       // String manipulation
	"time"                          // Timestamps for logs

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Exchange rates
	"github.com/sirupsen/logrus"    // Logging library
)

// RateRequest sets the rate of one currency
type RateRequest struct {
	Currency string          `json:"currency" binding:"required,currency"`
	Rate     decimal.Decimal `json:"rate"` // Base currency units per unit of Currency
}

// ListRatesHandler lists stored exchange rates
func ListRatesHandler(lg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rates, err := lg.Rates(c.Request.Context())
		if err != nil {
			failErr(c, err, "List rates", nil)
			return
		}
		if rates == nil {
			rates = []domain.ExchangeRate{}
		}
		respond(c, http.StatusOK, gin.H{"base_currency": lg.BaseCurrency(), "rates": rates})
	}
}

// SetRateHandler creates or replaces a currency's rate. Existing payments
// keep the rate they were recorded with.
func SetRateHandler(lg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RateRequest
		if !bindJSON(c, &req) {
			return
		}
		r, err := lg.SetRate(c.Request.Context(), strings.ToUpper(req.Currency), req.Rate)
		if err != nil {
			failErr(c, err, "Set rate", logrus.Fields{"currency": req.Currency})
			return
		}
		logrus.WithFields(logrus.Fields{
			"currency":   r.Currency,                      // Currency code
			"rate":       r.Rate.String(),                 // New rate
			"updated_by": currentUserID(c),                // Acting user
			"timestamp":  time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Exchange rate set")
		respond(c, http.StatusOK, r)
	}
}
