package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fee categories
const (
	CategoryTuition  = "tuition"
	CategoryBoarding = "boarding"
	CategoryOther    = "other"
)

// Assignment kinds
const (
	KindFee            = "fee"
	KindOpeningBalance = "opening_balance"
)

// ValidCategory reports whether c is a known fee category
func ValidCategory(c string) bool {
	switch c {
	case CategoryTuition, CategoryBoarding, CategoryOther:
		return true
	}
	return false
}

// FeeStructure is a single named charge for a class in a term
type FeeStructure struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Name            string          `gorm:"size:128;not null" json:"name"`
	ClassTermYearID uint            `gorm:"index;not null" json:"class_term_year_id"`
	Category        string          `gorm:"size:16;not null;default:tuition" json:"category"`
	Amount          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Mandatory       bool            `gorm:"not null;default:true" json:"mandatory"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// FeeAssignment is a charge owed by one student. Opening balances are
// assignments of kind opening_balance without a fee structure.
type FeeAssignment struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	StudentID      uint            `gorm:"index;not null" json:"student_id"`
	FeeStructureID *uint           `gorm:"index" json:"fee_structure_id"`
	InvoiceItemID  *uint           `gorm:"index" json:"invoice_item_id"`
	Description    string          `gorm:"size:255;not null" json:"description"`
	Category       string          `gorm:"size:16;not null" json:"category"`
	Kind           string          `gorm:"size:24;not null;default:fee" json:"kind"`
	Amount         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"amount_paid"`
	DueDate        time.Time       `gorm:"index" json:"due_date"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Outstanding is the unpaid part of the assignment
func (a FeeAssignment) Outstanding() decimal.Decimal {
	return a.Amount.Sub(a.AmountPaid)
}

// ExchangeRate converts one unit of Currency into the base currency
type ExchangeRate struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Currency  string          `gorm:"size:3;uniqueIndex;not null" json:"currency"`
	Rate      decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"rate"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
