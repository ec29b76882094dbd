package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry types
const (
	Debit  = "DEBIT"
	Credit = "CREDIT"
)

// Entry sources
const (
	SourceFee            = "FEE"
	SourceOpeningBalance = "OPENING_BALANCE"
	SourcePayment        = "PAYMENT"
	SourceReversal       = "REVERSAL"
	SourceAdjustment     = "ADJUSTMENT"
)

// StudentTransaction is one DEBIT or CREDIT line of a student's ledger
type StudentTransaction struct {
	ID             uint            `gorm:"primaryKey" json:"id"`                               // Primary key
	StudentID      uint            `gorm:"index;not null" json:"student_id"`                   // Owning student
	EntryType      string          `gorm:"size:8;not null" json:"entry_type"`                  // DEBIT or CREDIT
	Source         string          `gorm:"size:24;not null" json:"source"`                     // What produced the entry
	SourceID       uint            `json:"source_id"`                                          // Assignment or payment ID
	Amount         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`          // Always positive, base currency
	RunningBalance decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"running_balance"` // Balance after this entry
	Reference      string          `gorm:"size:40;index;not null" json:"reference"`            // Groups entries of one operation
	Description    string          `gorm:"size:255" json:"description"`                        // Human readable note
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"created_at"`             // Timestamp of creation
}

// Signed returns the entry's effect on the balance
func (t StudentTransaction) Signed() decimal.Decimal {
	if t.EntryType == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}
