package api

import (
	"net/http"                          // HTTP status codes
	"school_ledger/internal/config"     // Application configuration
	"school_ledger/internal/domain"     // Roles
	"school_ledger/internal/ledger"     // Ledger operations
	"school_ledger/internal/middleware" // Auth middleware
	"school_ledger/internal/utils"      // Validators
	"time"                              // CORS max age

	"github.com/gin-contrib/cors"  // CORS middleware
	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// NewRouter wires every route under /api. rdb may be nil, which disables caching.
func NewRouter(cfg *config.Config, db *gorm.DB, lg *ledger.Ledger, rdb *redis.Client) *gin.Engine {
	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	utils.InitValidators()    // Custom tags and English messages
	SetCacheTTL(cfg.CacheTTL) // Lifetime of cached reads

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,                                     // Web client origins
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}, // Methods used by the API
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"}, // Bearer tokens and JSON
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// Auth routes
	api.POST("/auth/register", RegisterHandler(db, rdb, cfg.JWTSecret)) // First user bootstraps, then admins only
	api.POST("/auth/login", LoginHandler(db, cfg.JWTSecret))            // Login endpoint

	authed := api.Group("", middleware.JWTAuthMiddleware(cfg.JWTSecret))
	readers := authed.Group("", middleware.RequireRoles(db, domain.RoleAdmin, domain.RoleBursar, domain.RoleViewer))
	writers := authed.Group("", middleware.RequireRoles(db, domain.RoleAdmin, domain.RoleBursar))
	admins := authed.Group("", middleware.RequireRoles(db, domain.RoleAdmin))

	// Classes
	readers.GET("/classes", ListClassesHandler(db))
	writers.POST("/classes", CreateClassHandler(db))

	// Students
	readers.GET("/students", ListStudentsHandler(db))
	writers.POST("/students", CreateStudentHandler(db, lg, rdb))
	readers.GET("/students/:id", GetStudentHandler(db))
	writers.PUT("/students/:id", UpdateStudentHandler(db, rdb))
	readers.GET("/students/:id/balance", StudentBalanceHandler(lg, rdb))
	readers.GET("/students/:id/statement", StatementHandler(lg))
	readers.GET("/students/:id/transactions", StudentTransactionsHandler(lg, rdb))
	readers.GET("/students/:id/assignments", StudentAssignmentsHandler(lg))
	writers.POST("/students/:id/opening-balance", OpeningBalanceHandler(lg, rdb))
	readers.GET("/students/balances/outstanding", OutstandingBalancesHandler(lg, rdb))
	readers.GET("/students/balances/opening", OpeningBalancesHandler(lg, rdb))

	// Fees
	writers.GET("/fees/structures", ListFeeStructuresHandler(db))
	writers.POST("/fees/structures", CreateFeeStructureHandler(db))
	writers.PUT("/fees/structures/:id", UpdateFeeStructureHandler(db))
	writers.DELETE("/fees/structures/:id", DeleteFeeStructureHandler(db))
	writers.POST("/fees/structures/:id/apply", ApplyFeeStructureHandler(lg, rdb))
	writers.POST("/fees/assignments", AssignFeeHandler(lg, rdb))
	readers.GET("/fees/payments", ListPaymentsHandler(db))
	writers.POST("/fees/payments", RecordPaymentHandler(lg, rdb))
	readers.GET("/fees/payments/:id/receipt", ReceiptHandler(lg))
	admins.POST("/fees/payments/:id/reverse", ReversePaymentHandler(lg, rdb))

	// Invoice structures
	writers.GET("/invoices/structures", ListInvoiceStructuresHandler(db))
	writers.POST("/invoices/structures", CreateInvoiceStructureHandler(db))
	writers.PUT("/invoices/structures/:id", UpdateInvoiceStructureHandler(db))
	writers.DELETE("/invoices/structures/:id", DeleteInvoiceStructureHandler(db))
	writers.POST("/invoices/structures/:id/apply", ApplyInvoiceStructureHandler(lg, rdb))
	readers.GET("/invoices/structures/:id/schedule", InstallmentScheduleHandler(lg))

	// Boarding
	writers.GET("/boarding/hostels", ListHostelsHandler(db))
	writers.POST("/boarding/hostels", CreateHostelHandler(db))
	writers.PUT("/boarding/hostels/:id", UpdateHostelHandler(db))
	writers.DELETE("/boarding/hostels/:id", DeleteHostelHandler(db))
	writers.POST("/boarding/hostels/:id/students", AssignHostelHandler(lg, rdb))
	writers.POST("/boarding/payments", BoardingPaymentHandler(lg, rdb))

	// Currencies
	readers.GET("/currencies/rates", ListRatesHandler(lg))
	admins.PUT("/currencies/rates", SetRateHandler(lg))

	// Analytics
	readers.GET("/analytics/summary", SummaryHandler(lg, rdb))
	readers.GET("/analytics/collections", CollectionsHandler(lg, rdb))
	readers.GET("/analytics/trial-balance", TrialBalanceHandler(lg, rdb))

	// Administration
	admins.GET("/admin/reconcile", ReconcileHandler(lg))
	admins.GET("/admin/users", ListUsersHandler(db, rdb))
	admins.PUT("/admin/users/:id/role", UpdateUserRoleHandler(db, rdb))

	return r
}

// requestLogger logs every request with logrus
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,           // HTTP method
			"path":    c.Request.URL.Path,         // Request path
			"status":  c.Writer.Status(),          // Response status
			"latency": time.Since(start).String(), // Time taken
			"client":  c.ClientIP(),               // Caller address
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}
