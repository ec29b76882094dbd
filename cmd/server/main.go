package main

import (
	"context"                       // context package is needed for Redis operations and shutdown
	"net/http"                      // HTTP server
	"os"                            // Signals
	"os/signal"                     // Signal notification
	"school_ledger/internal/api"    // Custom package for API handlers
	"school_ledger/internal/config" // Custom package for configuration
	"school_ledger/internal/db"     // Database connection
	"school_ledger/internal/ledger" // Ledger engine
	"syscall"                       // SIGTERM
	"time"                          // Timeouts

	"github.com/pkg/errors"        // Server close detection
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{}) // Machine readable logs in production
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	// Connect to the database
	gdb, err := db.Open(cfg.DSN(), cfg.IsProd)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client, caching is skipped when no address is configured
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
	} else {
		logrus.Warn("REDIS_ADDR not set, caching disabled")
	}

	lg := ledger.New(gdb, cfg.BaseCurrency, ledger.WithOverpayment(cfg.AllowOverpayment)) // Ledger engine
	r := api.NewRouter(cfg, gdb, lg, redisClient)                                         // Routes

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":          cfg.AppPort,          // Listening port
			"base_currency": cfg.BaseCurrency,     // Ledger currency
			"overpayment":   cfg.AllowOverpayment, // Overpayment policy
		}).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	// Wait for a termination signal, then let in-flight requests finish
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("forced shutdown: %v", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
