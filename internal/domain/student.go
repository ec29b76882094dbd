package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClassTermYear identifies a class in a given term of an academic year
type ClassTermYear struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ClassName string `gorm:"size:64;not null;uniqueIndex:idx_class_term_year" json:"class_name"`
	Term      int    `gorm:"not null;uniqueIndex:idx_class_term_year" json:"term"`
	Year      int    `gorm:"not null;uniqueIndex:idx_class_term_year" json:"year"`
}

// Student Model
type Student struct {
	ID              uint            `gorm:"primaryKey" json:"id"`                                 // Primary key
	AdmissionNo     string          `gorm:"size:32;uniqueIndex;not null" json:"admission_no"`     // School admission number
	FirstName       string          `gorm:"size:64;not null" json:"first_name"`                   // First name
	LastName        string          `gorm:"size:64;not null" json:"last_name"`                    // Last name
	ClassTermYearID *uint           `gorm:"index" json:"class_term_year_id"`                      // Current class, term and year
	HostelID        *uint           `gorm:"index" json:"hostel_id"`                               // Hostel for boarders
	Balance         decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"balance"` // Credits minus debits, base currency
	Active          bool            `gorm:"not null;default:true" json:"active"`                  // Enrolled flag
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`                     // Creation time
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`                     // Last update time
}

// FullName joins first and last name
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Outstanding is the amount the student owes, zero when in credit
func (s Student) Outstanding() decimal.Decimal {
	if s.Balance.IsNegative() {
		return s.Balance.Neg()
	}
	return decimal.Zero
}
