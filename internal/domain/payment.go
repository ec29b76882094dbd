package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment methods
const (
	MethodCash   = "cash"
	MethodBank   = "bank"
	MethodMobile = "mobile"
	MethodCheque = "cheque"
)

// FeePayment is money received for a student. Boarding payments carry a
// hostel and settle boarding charges only.
type FeePayment struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	ReceiptNo      string              `gorm:"size:40;uniqueIndex;not null" json:"receipt_no"`
	StudentID      uint                `gorm:"index;not null" json:"student_id"`
	Category       string              `gorm:"size:16;not null" json:"category"`
	HostelID       *uint               `gorm:"index" json:"hostel_id,omitempty"`
	Currency       string              `gorm:"size:3;not null" json:"currency"`
	Amount         decimal.Decimal     `gorm:"type:decimal(14,2);not null" json:"amount"`
	ExchangeRate   decimal.Decimal     `gorm:"type:decimal(18,6);not null" json:"exchange_rate"`
	BaseAmount     decimal.Decimal     `gorm:"type:decimal(14,2);not null" json:"base_amount"`
	Method         string              `gorm:"size:16;not null" json:"method"`
	Reference      string              `gorm:"size:64" json:"reference"`
	Reversed       bool                `gorm:"not null;default:false" json:"reversed"`
	ReversalReason string              `gorm:"size:255" json:"reversal_reason,omitempty"`
	RecordedBy     uint                `json:"recorded_by"`
	PaidAt         time.Time           `gorm:"index" json:"paid_at"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	Allocations    []PaymentAllocation `gorm:"foreignKey:PaymentID" json:"allocations,omitempty"`
}

// PaymentAllocation records how much of a payment settled one assignment
type PaymentAllocation struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	PaymentID       uint            `gorm:"index;not null" json:"payment_id"`
	FeeAssignmentID uint            `gorm:"index;not null" json:"fee_assignment_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
}
