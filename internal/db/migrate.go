package db

import (
	"school_ledger/internal/domain" // Importing domain models

	"github.com/pkg/errors"      // Error wrapping
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/clause"        // Conflict handling for seeds
)

// Models lists every table owned by the service
func Models() []any {
	return []any{
		&domain.User{},
		&domain.ClassTermYear{},
		&domain.Hostel{},
		&domain.Student{},
		&domain.FeeStructure{},
		&domain.FeeAssignment{},
		&domain.InvoiceStructure{},
		&domain.InvoiceItem{},
		&domain.InstallmentRule{},
		&domain.ExchangeRate{},
		&domain.FeePayment{},
		&domain.PaymentAllocation{},
		&domain.StudentTransaction{},
		&domain.Account{},
		&domain.JournalEntry{},
	}
}

// AutoMigrate creates tables, missing columns and indexes, then seeds the chart of accounts
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	accounts := domain.DefaultAccounts()
	// Existing codes are left untouched so renamed accounts survive re-runs
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&accounts).Error; err != nil {
		return errors.Wrap(err, "seed chart of accounts")
	}
	return nil
}

// Migrate performs automatic migration for the database schema
func Migrate(dsn string) {
	db, err := Open(dsn, false) // Open a connection to the database
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err) // Log fatal error if connection fails
	}
	if err := AutoMigrate(db); err != nil {
		logrus.Fatalf("migration failed: %v", err) // Log fatal error if migration fails
	}
	logrus.Info("Migration completed.") // Log successful migration
}
