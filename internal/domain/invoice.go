package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStructure is a named template of fee line items for a class and term
type InvoiceStructure struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Name            string            `gorm:"size:128;not null" json:"name"`
	ClassTermYearID uint              `gorm:"index;not null" json:"class_term_year_id"`
	Items           []InvoiceItem     `gorm:"foreignKey:InvoiceStructureID;constraint:OnDelete:CASCADE" json:"items"`
	Installments    []InstallmentRule `gorm:"foreignKey:InvoiceStructureID;constraint:OnDelete:CASCADE" json:"installments"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// Total sums the template's line items
func (s InvoiceStructure) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Amount)
	}
	return total
}

// InvoiceItem is one line of an invoice structure
type InvoiceItem struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	InvoiceStructureID uint            `gorm:"index;not null" json:"-"`
	Description        string          `gorm:"size:255;not null" json:"description"`
	Category           string          `gorm:"size:16;not null;default:tuition" json:"category"`
	Amount             decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
}

// InstallmentRule describes one instalment as a formula over the template
// total, e.g. "Total * 0.4"
type InstallmentRule struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	InvoiceStructureID uint      `gorm:"index;not null" json:"-"`
	Label              string    `gorm:"size:64;not null" json:"label"`
	DueDate            time.Time `gorm:"not null" json:"due_date"`
	Formula            string    `gorm:"size:255;not null" json:"formula"`
}
