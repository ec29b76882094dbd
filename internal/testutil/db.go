// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"school_ledger/internal/db"
	"school_ledger/internal/domain"
)

// NewDB returns a migrated SQLite database private to the test. SQLite has
// no row locks, so the pool is limited to one connection to serialise
// writers the way row locks do on MySQL.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	gdb, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("NewDB() open failed: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("NewDB() failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("NewDB() migrate failed: %v", err)
	}
	return gdb
}

// Dec parses a decimal literal
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateClass inserts a class-term-year
func CreateClass(t *testing.T, gdb *gorm.DB, name string, term, year int) domain.ClassTermYear {
	t.Helper()
	c := domain.ClassTermYear{ClassName: name, Term: term, Year: year}
	if err := gdb.Create(&c).Error; err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return c
}

// CreateStudent inserts an active student, optionally in a class
func CreateStudent(t *testing.T, gdb *gorm.DB, admissionNo, first, last string, classID *uint) domain.Student {
	t.Helper()
	st := domain.Student{
		AdmissionNo:     admissionNo,
		FirstName:       first,
		LastName:        last,
		ClassTermYearID: classID,
		Balance:         decimal.Zero,
		Active:          true,
	}
	if err := gdb.Create(&st).Error; err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

// CreateHostel inserts a hostel
func CreateHostel(t *testing.T, gdb *gorm.DB, name string, capacity int, fee string) domain.Hostel {
	t.Helper()
	h := domain.Hostel{Name: name, Capacity: capacity, BoardingFee: Dec(fee)}
	if err := gdb.Create(&h).Error; err != nil {
		t.Fatalf("CreateHostel() failed: %v", err)
	}
	return h
}

// CreateFeeStructure inserts a fee structure
func CreateFeeStructure(t *testing.T, gdb *gorm.DB, name string, classID uint, category, amount string) domain.FeeStructure {
	t.Helper()
	fs := domain.FeeStructure{Name: name, ClassTermYearID: classID, Category: category, Amount: Dec(amount), Mandatory: true}
	if err := gdb.Create(&fs).Error; err != nil {
		t.Fatalf("CreateFeeStructure() failed: %v", err)
	}
	return fs
}

// Date builds a UTC midnight time
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
