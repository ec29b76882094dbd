package ledger

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"school_ledger/internal/domain"
)

// ReplayResult is the outcome of recomputing a ledger from its entries
type ReplayResult struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
	Balance decimal.Decimal
	Issues  []string
}

// Replay recomputes totals from entries in posting order and checks every
// stored running balance along the way
func Replay(txs []domain.StudentTransaction) ReplayResult {
	r := ReplayResult{Debits: decimal.Zero, Credits: decimal.Zero, Balance: decimal.Zero}
	for _, t := range txs {
		if !t.Amount.IsPositive() {
			r.Issues = append(r.Issues, fmt.Sprintf("entry %d has non-positive amount %s", t.ID, t.Amount))
		}
		switch t.EntryType {
		case domain.Debit:
			r.Debits = r.Debits.Add(t.Amount)
		case domain.Credit:
			r.Credits = r.Credits.Add(t.Amount)
		default:
			r.Issues = append(r.Issues, fmt.Sprintf("entry %d has unknown type %q", t.ID, t.EntryType))
			continue
		}
		r.Balance = r.Balance.Add(t.Signed())
		if !r.Balance.Equal(t.RunningBalance) {
			r.Issues = append(r.Issues, fmt.Sprintf("entry %d running balance %s, expected %s",
				t.ID, t.RunningBalance.StringFixed(2), r.Balance.StringFixed(2)))
		}
	}
	return r
}

// ReconcileReport describes whether a student's ledger adds up
type ReconcileReport struct {
	StudentID     uint            `json:"student_id"`
	StoredBalance decimal.Decimal `json:"stored_balance"`
	Computed      decimal.Decimal `json:"computed_balance"`
	TotalDebits   decimal.Decimal `json:"total_debits"`
	TotalCredits  decimal.Decimal `json:"total_credits"`
	OK            bool            `json:"ok"`
	Issues        []string        `json:"issues,omitempty"`
}

// Reconcile checks that the stored balance equals credits minus debits,
// that every running balance is right, and that each assignment's paid
// amount matches the live allocations against it
func (l *Ledger) Reconcile(ctx context.Context, studentID uint) (*ReconcileReport, error) {
	db := l.db.WithContext(ctx)
	st, err := l.student(db, studentID)
	if err != nil {
		return nil, err
	}
	return l.reconcile(db, st)
}

func (l *Ledger) reconcile(db *gorm.DB, st *domain.Student) (*ReconcileReport, error) {
	txs, err := l.entries(db, st.ID)
	if err != nil {
		return nil, err
	}
	r := Replay(txs)
	rep := &ReconcileReport{
		StudentID:     st.ID,
		StoredBalance: st.Balance,
		Computed:      r.Balance,
		TotalDebits:   r.Debits,
		TotalCredits:  r.Credits,
		Issues:        r.Issues,
	}
	if !st.Balance.Equal(r.Credits.Sub(r.Debits)) {
		rep.Issues = append(rep.Issues, fmt.Sprintf("stored balance %s, credits minus debits %s",
			st.Balance.StringFixed(2), r.Credits.Sub(r.Debits).StringFixed(2)))
	}

	var assignments []domain.FeeAssignment
	if err := db.Where("student_id = ?", st.ID).Find(&assignments).Error; err != nil {
		return nil, errors.Wrap(err, "load assignments")
	}
	var payments []domain.FeePayment
	if err := db.Preload("Allocations").Where("student_id = ?", st.ID).Find(&payments).Error; err != nil {
		return nil, errors.Wrap(err, "load payments")
	}
	allocated := make(map[uint]decimal.Decimal)
	for _, p := range payments {
		if p.Reversed {
			continue
		}
		sum := decimal.Zero
		for _, al := range p.Allocations {
			sum = sum.Add(al.Amount)
			allocated[al.FeeAssignmentID] = allocated[al.FeeAssignmentID].Add(al.Amount)
		}
		if sum.GreaterThan(p.BaseAmount) {
			rep.Issues = append(rep.Issues, fmt.Sprintf("payment %s allocates %s of %s",
				p.ReceiptNo, sum.StringFixed(2), p.BaseAmount.StringFixed(2)))
		}
	}
	for _, a := range assignments {
		if a.AmountPaid.IsNegative() || a.AmountPaid.GreaterThan(a.Amount) {
			rep.Issues = append(rep.Issues, fmt.Sprintf("assignment %d paid %s of %s",
				a.ID, a.AmountPaid.StringFixed(2), a.Amount.StringFixed(2)))
		}
		if !allocated[a.ID].Equal(a.AmountPaid) {
			rep.Issues = append(rep.Issues, fmt.Sprintf("assignment %d paid %s, allocations total %s",
				a.ID, a.AmountPaid.StringFixed(2), allocated[a.ID].StringFixed(2)))
		}
	}
	rep.OK = len(rep.Issues) == 0
	return rep, nil
}

// ReconcileAll reconciles every student and returns the number checked
// along with the reports that found problems
func (l *Ledger) ReconcileAll(ctx context.Context) (int, []ReconcileReport, error) {
	db := l.db.WithContext(ctx)
	var (
		checked int
		failed  []ReconcileReport
	)
	var batch []domain.Student
	res := db.Model(&domain.Student{}).FindInBatches(&batch, 200, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			rep, err := l.reconcile(db, &batch[i])
			if err != nil {
				return err
			}
			checked++
			if !rep.OK {
				failed = append(failed, *rep)
			}
		}
		return nil
	})
	if res.Error != nil {
		return checked, failed, errors.Wrap(res.Error, "reconcile students")
	}
	return checked, failed, nil
}
