package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"school_ledger/internal/domain"
	"school_ledger/internal/money"
)

// AssignFeeInput describes a charge for one student. When FeeStructureID is
// set, the structure's name, category and amount are used.
type AssignFeeInput struct {
	StudentID      uint
	FeeStructureID *uint
	InvoiceItemID  *uint
	Description    string
	Category       string
	Amount         decimal.Decimal
	DueDate        time.Time
}

// ApplyResult counts the outcome of a bulk assignment
type ApplyResult struct {
	Assigned int             `json:"assigned"`
	Skipped  int             `json:"skipped"`
	Total    decimal.Decimal `json:"total"`
}

// AssignFee charges a student and posts the matching DEBIT
func (l *Ledger) AssignFee(ctx context.Context, in AssignFeeInput) (*domain.FeeAssignment, error) {
	if in.FeeStructureID != nil {
		var fs domain.FeeStructure
		if err := l.db.WithContext(ctx).First(&fs, *in.FeeStructureID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, errors.Wrap(err, "load fee structure")
		}
		in.Description = fs.Name
		in.Category = fs.Category
		in.Amount = fs.Amount
	}
	var out *domain.FeeAssignment
	err := l.tx(ctx, func(tx *gorm.DB) error {
		a, err := l.assign(tx, in)
		out = a
		return err
	})
	return out, err
}

func (l *Ledger) assign(tx *gorm.DB, in AssignFeeInput) (*domain.FeeAssignment, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !domain.ValidCategory(in.Category) {
		return nil, ErrInvalidCategory
	}
	st, err := lockStudent(tx, in.StudentID)
	if err != nil {
		return nil, err
	}
	if !st.Active {
		return nil, ErrInactiveStudent
	}
	if in.FeeStructureID != nil || in.InvoiceItemID != nil {
		q := tx.Model(&domain.FeeAssignment{}).Where("student_id = ?", st.ID)
		if in.FeeStructureID != nil {
			q = q.Where("fee_structure_id = ?", *in.FeeStructureID)
		} else {
			q = q.Where("invoice_item_id = ?", *in.InvoiceItemID)
		}
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return nil, errors.Wrap(err, "check existing assignment")
		}
		if n > 0 {
			return nil, ErrDuplicateAssignment
		}
	}
	due := in.DueDate
	if due.IsZero() {
		due = l.now()
	}
	a := domain.FeeAssignment{
		StudentID:      st.ID,
		FeeStructureID: in.FeeStructureID,
		InvoiceItemID:  in.InvoiceItemID,
		Description:    in.Description,
		Category:       in.Category,
		Kind:           domain.KindFee,
		Amount:         money.Round(in.Amount),
		AmountPaid:     decimal.Zero,
		DueDate:        due,
	}
	if err := tx.Create(&a).Error; err != nil {
		return nil, errors.Wrap(err, "create fee assignment")
	}
	ref := newReference()
	if _, err := post(tx, st, entry{
		entryType:   domain.Debit,
		source:      domain.SourceFee,
		sourceID:    a.ID,
		amount:      a.Amount,
		reference:   ref,
		description: a.Description,
	}); err != nil {
		return nil, err
	}
	if err := journal(tx, ref, "Fee charged: "+a.Description,
		dr(domain.AccountFeesReceivable, a.Amount),
		cr(revenueAccount(a.Category), a.Amount),
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (l *Ledger) classStudents(ctx context.Context, classTermYearID uint) ([]domain.Student, error) {
	var students []domain.Student
	err := l.db.WithContext(ctx).
		Where("class_term_year_id = ? AND active = ?", classTermYearID, true).
		Order("id").
		Find(&students).Error
	return students, errors.Wrap(err, "list class students")
}

// ApplyFeeStructure charges the fee to every active student of the
// structure's class, skipping students already charged
func (l *Ledger) ApplyFeeStructure(ctx context.Context, feeStructureID uint, due time.Time) (ApplyResult, error) {
	res := ApplyResult{Total: decimal.Zero}
	var fs domain.FeeStructure
	if err := l.db.WithContext(ctx).First(&fs, feeStructureID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return res, ErrNotFound
		}
		return res, errors.Wrap(err, "load fee structure")
	}
	students, err := l.classStudents(ctx, fs.ClassTermYearID)
	if err != nil {
		return res, err
	}
	for _, st := range students {
		_, err := l.AssignFee(ctx, AssignFeeInput{StudentID: st.ID, FeeStructureID: &fs.ID, DueDate: due})
		switch {
		case errors.Is(err, ErrDuplicateAssignment):
			res.Skipped++
		case err != nil:
			return res, errors.Wrapf(err, "assign %s to student %d", fs.Name, st.ID)
		default:
			res.Assigned++
			res.Total = res.Total.Add(fs.Amount)
		}
	}
	return res, nil
}

// ApplyInvoiceStructure charges every item of the template to every active
// student of its class. Items already charged to a student are skipped.
func (l *Ledger) ApplyInvoiceStructure(ctx context.Context, invoiceStructureID uint, due time.Time) (ApplyResult, error) {
	res := ApplyResult{Total: decimal.Zero}
	var is domain.InvoiceStructure
	if err := l.db.WithContext(ctx).Preload("Items").First(&is, invoiceStructureID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return res, ErrNotFound
		}
		return res, errors.Wrap(err, "load invoice structure")
	}
	students, err := l.classStudents(ctx, is.ClassTermYearID)
	if err != nil {
		return res, err
	}
	for _, st := range students {
		for _, item := range is.Items {
			itemID := item.ID
			_, err := l.AssignFee(ctx, AssignFeeInput{
				StudentID:     st.ID,
				InvoiceItemID: &itemID,
				Description:   fmt.Sprintf("%s: %s", is.Name, item.Description),
				Category:      item.Category,
				Amount:        item.Amount,
				DueDate:       due,
			})
			switch {
			case errors.Is(err, ErrDuplicateAssignment):
				res.Skipped++
			case err != nil:
				return res, errors.Wrapf(err, "apply invoice item %d to student %d", item.ID, st.ID)
			default:
				res.Assigned++
				res.Total = res.Total.Add(item.Amount)
			}
		}
	}
	return res, nil
}

// RecordOpeningBalance records or corrects the historical debt a student
// carried before the system. Corrections post only the difference.
func (l *Ledger) RecordOpeningBalance(ctx context.Context, studentID uint, amount decimal.Decimal, note string) (*domain.FeeAssignment, error) {
	if amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	amount = money.Round(amount)
	var out *domain.FeeAssignment
	err := l.tx(ctx, func(tx *gorm.DB) error {
		st, err := lockStudent(tx, studentID)
		if err != nil {
			return err
		}
		out, err = l.recordOpening(tx, st, amount, note)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EnrollStudent creates st and records its opening balance in the same
// transaction. A rejected opening balance leaves no student behind.
func (l *Ledger) EnrollStudent(ctx context.Context, st *domain.Student, opening decimal.Decimal, note string) error {
	if opening.IsNegative() {
		return ErrInvalidAmount
	}
	rounded := money.Round(opening)
	if opening.IsPositive() && !rounded.IsPositive() {
		return ErrInvalidAmount // Less than a cent
	}
	st.Balance = decimal.Zero
	return l.tx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(st).Error; err != nil {
			return errors.Wrap(err, "create student")
		}
		if !rounded.IsPositive() {
			return nil
		}
		locked, err := lockStudent(tx, st.ID)
		if err != nil {
			return err
		}
		if _, err := l.recordOpening(tx, locked, rounded, note); err != nil {
			return err
		}
		st.Balance = locked.Balance
		return nil
	})
}

// recordOpening creates or adjusts the opening balance of a locked student
func (l *Ledger) recordOpening(tx *gorm.DB, st *domain.Student, amount decimal.Decimal, note string) (*domain.FeeAssignment, error) {
	if note == "" {
		note = "Opening balance"
	}
	var a domain.FeeAssignment
	err := tx.Where("student_id = ? AND kind = ?", st.ID, domain.KindOpeningBalance).First(&a).Error
	ref := newReference()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if !amount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		a = domain.FeeAssignment{
			StudentID:   st.ID,
			Description: note,
			Category:    domain.CategoryTuition,
			Kind:        domain.KindOpeningBalance,
			Amount:      amount,
			AmountPaid:  decimal.Zero,
			DueDate:     l.now(),
		}
		if err := tx.Create(&a).Error; err != nil {
			return nil, errors.Wrap(err, "create opening balance")
		}
		if _, err := post(tx, st, entry{
			entryType:   domain.Debit,
			source:      domain.SourceOpeningBalance,
			sourceID:    a.ID,
			amount:      amount,
			reference:   ref,
			description: note,
		}); err != nil {
			return nil, err
		}
		err := journal(tx, ref, note,
			dr(domain.AccountFeesReceivable, amount),
			cr(domain.AccountOpeningEquity, amount),
		)
		return &a, err
	}
	if err != nil {
		return nil, errors.Wrap(err, "load opening balance")
	}
	if amount.LessThan(a.AmountPaid) {
		return nil, ErrOpeningBelowPaid
	}
	diff := amount.Sub(a.Amount)
	if diff.IsZero() {
		return &a, nil
	}
	if err := tx.Model(&a).Updates(map[string]any{"amount": amount, "description": note}).Error; err != nil {
		return nil, errors.Wrap(err, "update opening balance")
	}
	a.Amount = amount
	a.Description = note
	e := entry{
		source:      domain.SourceAdjustment,
		sourceID:    a.ID,
		amount:      diff.Abs(),
		reference:   ref,
		description: "Opening balance adjustment: " + note,
	}
	lines := []line{dr(domain.AccountFeesReceivable, diff), cr(domain.AccountOpeningEquity, diff)}
	if diff.IsPositive() {
		e.entryType = domain.Debit
	} else {
		e.entryType = domain.Credit
		lines = []line{dr(domain.AccountOpeningEquity, diff.Abs()), cr(domain.AccountFeesReceivable, diff.Abs())}
	}
	if _, err := post(tx, st, e); err != nil {
		return nil, err
	}
	return &a, journal(tx, ref, e.description, lines...)
}
