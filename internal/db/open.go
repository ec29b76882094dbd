package db

import (
	"time" // Connection pool lifetimes

	"github.com/pkg/errors" // Error wrapping
	"gorm.io/driver/mysql"  // MySQL driver for GORM
	"gorm.io/gorm"          // GORM ORM library
	"gorm.io/gorm/logger"   // SQL logging
)

// Open connects to MySQL and checks the connection
func Open(dsn string, isProd bool) (*gorm.DB, error) {
	level := logger.Info // Log every statement while developing
	if isProd {
		level = logger.Warn // Only slow queries and errors in production
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level), // Statement logging
		TranslateError: true,                          // Unique violations become gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql db")
	}
	sqlDB.SetMaxOpenConns(25)                  // Upper bound on concurrent connections
	sqlDB.SetMaxIdleConns(10)                  // Keep a few warm connections
	sqlDB.SetConnMaxLifetime(30 * time.Minute) // Recycle before MySQL wait_timeout
	if err := sqlDB.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping mysql")
	}
	return db, nil
}
