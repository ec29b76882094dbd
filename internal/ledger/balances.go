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

// BalanceSummary is a student's position in the base currency
type BalanceSummary struct {
	StudentID    uint            `json:"student_id"`
	Currency     string          `json:"currency"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	Balance      decimal.Decimal `json:"balance"`
	Outstanding  decimal.Decimal `json:"outstanding"`
}

// Statement is a window of a student's ledger
type Statement struct {
	StudentID      uint                        `json:"student_id"`
	Currency       string                      `json:"currency"`
	From           *time.Time                  `json:"from,omitempty"`
	To             *time.Time                  `json:"to,omitempty"`
	OpeningBalance decimal.Decimal             `json:"opening_balance"`
	Entries        []domain.StudentTransaction `json:"entries"`
	TotalDebits    decimal.Decimal             `json:"total_debits"`
	TotalCredits   decimal.Decimal             `json:"total_credits"`
	ClosingBalance decimal.Decimal             `json:"closing_balance"`
}

// OutstandingRow is one debtor in the outstanding balances list
type OutstandingRow struct {
	StudentID       uint            `json:"student_id"`
	AdmissionNo     string          `json:"admission_no"`
	Name            string          `json:"name"`
	ClassTermYearID *uint           `json:"class_term_year_id"`
	Balance         decimal.Decimal `json:"balance"`
	Outstanding     decimal.Decimal `json:"outstanding"`
}

// OpeningBalanceRow is a student carrying an opening balance
type OpeningBalanceRow struct {
	StudentID       uint            `json:"student_id"`
	AdmissionNo     string          `json:"admission_no"`
	FirstName       string          `json:"-"`
	LastName        string          `json:"-"`
	Name            string          `json:"name" gorm:"-"`
	ClassTermYearID *uint           `json:"class_term_year_id"`
	OpeningBalance  decimal.Decimal `json:"opening_balance"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	Outstanding     decimal.Decimal `json:"outstanding" gorm:"-"`
}

// Filter narrows list queries
type Filter struct {
	ClassTermYearID *uint
	Offset          int
	Limit           int
}

func (l *Ledger) student(db *gorm.DB, id uint) (*domain.Student, error) {
	var st domain.Student
	err := db.First(&st, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStudentNotFound
	}
	return &st, errors.Wrap(err, "load student")
}

func (l *Ledger) entries(db *gorm.DB, studentID uint) ([]domain.StudentTransaction, error) {
	var txs []domain.StudentTransaction
	err := db.Where("student_id = ?", studentID).Order("id").Find(&txs).Error
	return txs, errors.Wrap(err, "load ledger entries")
}

// Balance totals a student's ledger
func (l *Ledger) Balance(ctx context.Context, studentID uint) (*BalanceSummary, error) {
	db := l.db.WithContext(ctx)
	st, err := l.student(db, studentID)
	if err != nil {
		return nil, err
	}
	txs, err := l.entries(db, st.ID)
	if err != nil {
		return nil, err
	}
	r := Replay(txs)
	return &BalanceSummary{
		StudentID:    st.ID,
		Currency:     l.baseCurrency,
		TotalDebits:  r.Debits,
		TotalCredits: r.Credits,
		Balance:      r.Balance,
		Outstanding:  owed(r.Balance),
	}, nil
}

func owed(balance decimal.Decimal) decimal.Decimal {
	if balance.IsNegative() {
		return balance.Neg()
	}
	return decimal.Zero
}

// Transactions returns a page of a student's ledger, newest first
func (l *Ledger) Transactions(ctx context.Context, studentID uint, offset, limit int) ([]domain.StudentTransaction, int64, error) {
	db := l.db.WithContext(ctx)
	if _, err := l.student(db, studentID); err != nil {
		return nil, 0, err
	}
	var total int64
	q := db.Model(&domain.StudentTransaction{}).Where("student_id = ?", studentID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count ledger entries")
	}
	var txs []domain.StudentTransaction
	err := q.Order("id desc").Offset(offset).Limit(limit).Find(&txs).Error
	return txs, total, errors.Wrap(err, "load ledger entries")
}

// Assignments lists a student's charges, oldest first
func (l *Ledger) Assignments(ctx context.Context, studentID uint) ([]domain.FeeAssignment, error) {
	db := l.db.WithContext(ctx)
	if _, err := l.student(db, studentID); err != nil {
		return nil, err
	}
	var as []domain.FeeAssignment
	err := db.Where("student_id = ?", studentID).Order("due_date, id").Find(&as).Error
	return as, errors.Wrap(err, "load assignments")
}

// Statement returns the entries between from and to (inclusive, either may
// be nil) with the balance carried into the window
func (l *Ledger) Statement(ctx context.Context, studentID uint, from, to *time.Time) (*Statement, error) {
	db := l.db.WithContext(ctx)
	st, err := l.student(db, studentID)
	if err != nil {
		return nil, err
	}
	txs, err := l.entries(db, st.ID)
	if err != nil {
		return nil, err
	}
	s := &Statement{
		StudentID:      st.ID,
		Currency:       l.baseCurrency,
		From:           from,
		To:             to,
		OpeningBalance: decimal.Zero,
		Entries:        []domain.StudentTransaction{},
		TotalDebits:    decimal.Zero,
		TotalCredits:   decimal.Zero,
	}
	running := decimal.Zero
	for _, t := range txs {
		if to != nil && t.CreatedAt.After(*to) {
			break
		}
		if from != nil && t.CreatedAt.Before(*from) {
			running = running.Add(t.Signed())
			s.OpeningBalance = running
			continue
		}
		running = running.Add(t.Signed())
		if t.EntryType == domain.Debit {
			s.TotalDebits = s.TotalDebits.Add(t.Amount)
		} else {
			s.TotalCredits = s.TotalCredits.Add(t.Amount)
		}
		s.Entries = append(s.Entries, t)
	}
	s.ClosingBalance = running
	return s, nil
}

// Outstanding lists active students who owe money, largest debt first
func (l *Ledger) Outstanding(ctx context.Context, f Filter) ([]OutstandingRow, int64, error) {
	q := l.db.WithContext(ctx).Model(&domain.Student{}).Where("balance < 0 AND active = ?", true)
	if f.ClassTermYearID != nil {
		q = q.Where("class_term_year_id = ?", *f.ClassTermYearID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count debtors")
	}
	if f.Limit > 0 {
		q = q.Offset(f.Offset).Limit(f.Limit)
	}
	var students []domain.Student
	if err := q.Order("balance, id").Find(&students).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list debtors")
	}
	rows := make([]OutstandingRow, 0, len(students))
	for _, st := range students {
		rows = append(rows, OutstandingRow{
			StudentID:       st.ID,
			AdmissionNo:     st.AdmissionNo,
			Name:            st.FullName(),
			ClassTermYearID: st.ClassTermYearID,
			Balance:         money.Round(st.Balance),
			Outstanding:     money.Round(st.Outstanding()),
		})
	}
	return rows, total, nil
}

// StudentsWithOpeningBalance lists, in one query, every student carrying an
// opening balance and how much of it is still unpaid
func (l *Ledger) StudentsWithOpeningBalance(ctx context.Context, f Filter, unpaidOnly bool) ([]OpeningBalanceRow, int64, error) {
	q := l.db.WithContext(ctx).
		Table("fee_assignments AS fa").
		Joins("JOIN students AS s ON s.id = fa.student_id").
		Where("fa.kind = ?", domain.KindOpeningBalance)
	if f.ClassTermYearID != nil {
		q = q.Where("s.class_term_year_id = ?", *f.ClassTermYearID)
	}
	if unpaidOnly {
		q = q.Where("fa.amount_paid < fa.amount")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count opening balances")
	}
	if f.Limit > 0 {
		q = q.Offset(f.Offset).Limit(f.Limit)
	}
	var rows []OpeningBalanceRow
	err := q.Select(`s.id AS student_id, s.admission_no, s.first_name, s.last_name, s.class_term_year_id,
		fa.amount AS opening_balance, fa.amount_paid`).
		Order("s.id").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list opening balances")
	}
	for i := range rows {
		rows[i].Name = rows[i].FirstName + " " + rows[i].LastName
		rows[i].OpeningBalance = money.Round(rows[i].OpeningBalance)
		rows[i].AmountPaid = money.Round(rows[i].AmountPaid)
		rows[i].Outstanding = rows[i].OpeningBalance.Sub(rows[i].AmountPaid)
	}
	if rows == nil {
		rows = []OpeningBalanceRow{}
	}
	return rows, total, nil
}
