// Package ledger keeps the per-student DEBIT/CREDIT ledger, the fee
// assignments it settles and the general journal behind them.
//
// Every write locks the student row for the duration of its database
// transaction, so concurrent charges and payments on one student are applied
// one after another and the running balance never skips an entry.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"school_ledger/internal/domain"
	"school_ledger/internal/money"
)

// Ledger posts and reads student ledgers
type Ledger struct {
	db               *gorm.DB
	baseCurrency     string
	allowOverpayment bool
	now              func() time.Time
}

// Option configures a Ledger
type Option func(*Ledger)

// WithOverpayment lets payments exceed the outstanding balance, leaving the
// student in credit
func WithOverpayment(allow bool) Option {
	return func(l *Ledger) { l.allowOverpayment = allow }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger keeping balances in baseCurrency
func New(db *gorm.DB, baseCurrency string, opts ...Option) *Ledger {
	l := &Ledger{
		db:           db,
		baseCurrency: strings.ToUpper(baseCurrency),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BaseCurrency returns the currency balances are kept in
func (l *Ledger) BaseCurrency() string {
	return l.baseCurrency
}

func newReference() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20]
}

// lockStudent loads the student row with an exclusive lock held until the
// surrounding transaction ends
func lockStudent(tx *gorm.DB, id uint) (*domain.Student, error) {
	var st domain.Student
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&st, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "lock student")
	}
	return &st, nil
}

type entry struct {
	entryType   string
	source      string
	sourceID    uint
	amount      decimal.Decimal
	reference   string
	description string
}

// post appends one entry to the student's ledger and moves the stored balance
func post(tx *gorm.DB, st *domain.Student, e entry) (*domain.StudentTransaction, error) {
	if !e.amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	amount := money.Round(e.amount)
	balance := st.Balance
	if e.entryType == domain.Debit {
		balance = balance.Sub(amount)
	} else {
		balance = balance.Add(amount)
	}
	t := domain.StudentTransaction{
		StudentID:      st.ID,
		EntryType:      e.entryType,
		Source:         e.source,
		SourceID:       e.sourceID,
		Amount:         amount,
		RunningBalance: balance,
		Reference:      e.reference,
		Description:    e.description,
	}
	if err := tx.Create(&t).Error; err != nil {
		return nil, errors.Wrap(err, "create ledger entry")
	}
	if err := tx.Model(&domain.Student{}).Where("id = ?", st.ID).Update("balance", balance).Error; err != nil {
		return nil, errors.Wrap(err, "update student balance")
	}
	st.Balance = balance
	return &t, nil
}

type line struct {
	account string
	debit   decimal.Decimal
	credit  decimal.Decimal
}

func dr(account string, amount decimal.Decimal) line {
	return line{account: account, debit: amount, credit: decimal.Zero}
}

func cr(account string, amount decimal.Decimal) line {
	return line{account: account, debit: decimal.Zero, credit: amount}
}

// journal writes a balanced general ledger posting
func journal(tx *gorm.DB, ref, memo string, lines ...line) error {
	debits, credits := decimal.Zero, decimal.Zero
	entries := make([]domain.JournalEntry, 0, len(lines))
	for _, ln := range lines {
		debits = debits.Add(ln.debit)
		credits = credits.Add(ln.credit)
		entries = append(entries, domain.JournalEntry{
			Reference:   ref,
			AccountCode: ln.account,
			Debit:       money.Round(ln.debit),
			Credit:      money.Round(ln.credit),
			Memo:        memo,
		})
	}
	if !debits.Equal(credits) {
		return ErrUnbalancedJournal
	}
	if len(entries) == 0 {
		return nil
	}
	return errors.Wrap(tx.Create(&entries).Error, "create journal entries")
}

// revenueAccount maps a fee category to its revenue account
func revenueAccount(category string) string {
	switch category {
	case domain.CategoryBoarding:
		return domain.AccountBoardingRevenue
	case domain.CategoryOther:
		return domain.AccountOtherRevenue
	}
	return domain.AccountTuitionRevenue
}

// cashAccount maps a payment method to the asset account receiving the money
func cashAccount(method string) string {
	switch method {
	case domain.MethodBank, domain.MethodCheque:
		return domain.AccountBank
	case domain.MethodMobile:
		return domain.AccountMobileMoney
	}
	return domain.AccountCash
}

func (l *Ledger) tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return l.db.WithContext(ctx).Transaction(fn)
}
