package main

import (
	"school_ledger/internal/config" // Custom import path (Config)
	"school_ledger/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.WithFields(logrus.Fields{"host": cfg.DBHost, "database": cfg.DBName}).Info("Migrating")
	db.Migrate(cfg.DSN()) // Creates tables and seeds the chart of accounts
}
