package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"school_ledger/internal/domain"
	"school_ledger/internal/money"
)

// Summary is the headline view of the school's receivables
type Summary struct {
	Currency         string          `json:"currency"`
	Billed           decimal.Decimal `json:"billed"`
	Collected        decimal.Decimal `json:"collected"`
	Outstanding      decimal.Decimal `json:"outstanding"`
	Prepaid          decimal.Decimal `json:"prepaid"`
	StudentsInDebt   int64           `json:"students_in_debt"`
	ActiveStudents   int64           `json:"active_students"`
	CollectionRate   decimal.Decimal `json:"collection_rate"`
	ReversedPayments int64           `json:"reversed_payments"`
}

// Share is one group of a collections breakdown
type Share struct {
	Key     string          `json:"key"`
	Count   int64           `json:"count"`
	Amount  decimal.Decimal `json:"amount"`
	Percent decimal.Decimal `json:"percent"`
}

// Collections breaks collected money down by method and by currency
type Collections struct {
	Currency   string          `json:"currency"`
	Total      decimal.Decimal `json:"total"`
	ByMethod   []Share         `json:"by_method"`
	ByCurrency []Share         `json:"by_currency"`
}

// TrialBalanceLine is one account of the trial balance
type TrialBalanceLine struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// TrialBalance lists journal totals per account
type TrialBalance struct {
	Lines       []TrialBalanceLine `json:"lines"`
	TotalDebit  decimal.Decimal    `json:"total_debit"`
	TotalCredit decimal.Decimal    `json:"total_credit"`
	Balanced    bool               `json:"balanced"`
}

// Summary computes billed, collected and outstanding totals
func (l *Ledger) Summary(ctx context.Context) (*Summary, error) {
	db := l.db.WithContext(ctx)
	s := &Summary{Currency: l.baseCurrency}

	var billed struct{ Total decimal.Decimal }
	if err := db.Model(&domain.FeeAssignment{}).Select("COALESCE(SUM(amount), 0) AS total").Scan(&billed).Error; err != nil {
		return nil, errors.Wrap(err, "sum billed")
	}
	var collected struct{ Total decimal.Decimal }
	if err := db.Model(&domain.FeePayment{}).Where("reversed = ?", false).
		Select("COALESCE(SUM(base_amount), 0) AS total").Scan(&collected).Error; err != nil {
		return nil, errors.Wrap(err, "sum collected")
	}
	var positions struct {
		Owed    decimal.Decimal
		Prepaid decimal.Decimal
	}
	if err := db.Model(&domain.Student{}).Where("active = ?", true).Select(`
		COALESCE(SUM(CASE WHEN balance < 0 THEN -balance ELSE 0 END), 0) AS owed,
		COALESCE(SUM(CASE WHEN balance > 0 THEN balance ELSE 0 END), 0) AS prepaid`).
		Scan(&positions).Error; err != nil {
		return nil, errors.Wrap(err, "sum balances")
	}
	if err := db.Model(&domain.Student{}).Where("active = ? AND balance < 0", true).Count(&s.StudentsInDebt).Error; err != nil {
		return nil, errors.Wrap(err, "count debtors")
	}
	if err := db.Model(&domain.Student{}).Where("active = ?", true).Count(&s.ActiveStudents).Error; err != nil {
		return nil, errors.Wrap(err, "count students")
	}
	if err := db.Model(&domain.FeePayment{}).Where("reversed = ?", true).Count(&s.ReversedPayments).Error; err != nil {
		return nil, errors.Wrap(err, "count reversals")
	}
	s.Billed = money.Round(billed.Total)
	s.Collected = money.Round(collected.Total)
	s.Outstanding = money.Round(positions.Owed)
	s.Prepaid = money.Round(positions.Prepaid)
	s.CollectionRate = decimal.Zero
	if s.Billed.IsPositive() {
		s.CollectionRate = money.Round(s.Collected.Div(s.Billed).Mul(decimal.NewFromInt(100)))
	}
	return s, nil
}

type groupRow struct {
	Grp    string
	N      int64
	Amount decimal.Decimal
}

func shares(rows []groupRow) []Share {
	amounts := make([]decimal.Decimal, len(rows))
	for i, r := range rows {
		amounts[i] = money.Round(r.Amount)
	}
	pct := money.Shares(amounts)
	out := make([]Share, len(rows))
	for i, r := range rows {
		out[i] = Share{Key: r.Grp, Count: r.N, Amount: amounts[i], Percent: pct[i]}
	}
	return out
}

// Collections groups non-reversed payments received between from and to.
// Either bound may be zero.
func (l *Ledger) Collections(ctx context.Context, from, to time.Time) (*Collections, error) {
	base := func() *gorm.DB {
		q := l.db.WithContext(ctx).Model(&domain.FeePayment{}).Where("reversed = ?", false)
		if !from.IsZero() {
			q = q.Where("paid_at >= ?", from)
		}
		if !to.IsZero() {
			q = q.Where("paid_at <= ?", to)
		}
		return q
	}
	var byMethod, byCurrency []groupRow
	if err := base().Select("method AS grp, COUNT(*) AS n, COALESCE(SUM(base_amount), 0) AS amount").
		Group("method").Order("method").Scan(&byMethod).Error; err != nil {
		return nil, errors.Wrap(err, "group by method")
	}
	if err := base().Select("currency AS grp, COUNT(*) AS n, COALESCE(SUM(base_amount), 0) AS amount").
		Group("currency").Order("currency").Scan(&byCurrency).Error; err != nil {
		return nil, errors.Wrap(err, "group by currency")
	}
	c := &Collections{
		Currency:   l.baseCurrency,
		ByMethod:   shares(byMethod),
		ByCurrency: shares(byCurrency),
		Total:      decimal.Zero,
	}
	for _, s := range c.ByMethod {
		c.Total = c.Total.Add(s.Amount)
	}
	return c, nil
}

// TrialBalance totals the journal per account. Debits always equal credits
// because every posting is balanced.
func (l *Ledger) TrialBalance(ctx context.Context) (*TrialBalance, error) {
	db := l.db.WithContext(ctx)
	var rows []struct {
		AccountCode string
		Debit       decimal.Decimal
		Credit      decimal.Decimal
	}
	if err := db.Model(&domain.JournalEntry{}).
		Select("account_code, COALESCE(SUM(debit), 0) AS debit, COALESCE(SUM(credit), 0) AS credit").
		Group("account_code").Order("account_code").Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "sum journal")
	}
	var accounts []domain.Account
	if err := db.Find(&accounts).Error; err != nil {
		return nil, errors.Wrap(err, "load accounts")
	}
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.Code] = a.Name
	}
	tb := &TrialBalance{Lines: []TrialBalanceLine{}, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, r := range rows {
		ln := TrialBalanceLine{
			AccountCode: r.AccountCode,
			AccountName: names[r.AccountCode],
			Debit:       money.Round(r.Debit),
			Credit:      money.Round(r.Credit),
		}
		tb.TotalDebit = tb.TotalDebit.Add(ln.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(ln.Credit)
		tb.Lines = append(tb.Lines, ln)
	}
	tb.Balanced = tb.TotalDebit.Equal(tb.TotalCredit)
	return tb, nil
}
