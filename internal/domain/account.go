package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account types
const (
	AccountAsset     = "asset"
	AccountLiability = "liability"
	AccountEquity    = "equity"
	AccountRevenue   = "revenue"
	AccountExpense   = "expense"
)

// Chart of accounts codes used by the ledger
const (
	AccountCash            = "1000"
	AccountBank            = "1010"
	AccountMobileMoney     = "1020"
	AccountFeesReceivable  = "1100"
	AccountOpeningEquity   = "3000"
	AccountTuitionRevenue  = "4000"
	AccountBoardingRevenue = "4100"
	AccountOtherRevenue    = "4200"
)

// Account is a chart of accounts entry
type Account struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"size:16;uniqueIndex;not null" json:"code"`
	Name string `gorm:"size:128;not null" json:"name"`
	Type string `gorm:"size:16;not null" json:"type"`
}

// JournalEntry is one line of a balanced general ledger posting
type JournalEntry struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Reference   string          `gorm:"size:40;index;not null" json:"reference"`
	AccountCode string          `gorm:"size:16;index;not null" json:"account_code"`
	Debit       decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"debit"`
	Credit      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"credit"`
	Memo        string          `gorm:"size:255" json:"memo"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

// DefaultAccounts is the chart of accounts seeded by migration
func DefaultAccounts() []Account {
	return []Account{
		{Code: AccountCash, Name: "Cash on Hand", Type: AccountAsset},
		{Code: AccountBank, Name: "Bank", Type: AccountAsset},
		{Code: AccountMobileMoney, Name: "Mobile Money", Type: AccountAsset},
		{Code: AccountFeesReceivable, Name: "Fees Receivable", Type: AccountAsset},
		{Code: AccountOpeningEquity, Name: "Opening Balance Equity", Type: AccountEquity},
		{Code: AccountTuitionRevenue, Name: "Tuition Fees", Type: AccountRevenue},
		{Code: AccountBoardingRevenue, Name: "Boarding Fees", Type: AccountRevenue},
		{Code: AccountOtherRevenue, Name: "Other Fees", Type: AccountRevenue},
	}
}
