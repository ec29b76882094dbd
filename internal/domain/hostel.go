package domain

import "github.com/shopspring/decimal"

// Hostel Model
type Hostel struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Capacity    int             `gorm:"not null" json:"capacity"`
	BoardingFee decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"boarding_fee"` // Charged per term, base currency
}
