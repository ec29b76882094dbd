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

// PaymentInput is money received for a student
type PaymentInput struct {
	StudentID  uint
	Category   string           // tuition or boarding
	HostelID   *uint            // boarding only, defaults to the student's hostel
	Currency   string           // defaults to the base currency
	Amount     decimal.Decimal  // in Currency
	Rate       *decimal.Decimal // overrides the stored rate when set
	Method     string
	Reference  string
	PaidAt     time.Time
	RecordedBy uint
}

// Receipt is the printable view of a payment
type Receipt struct {
	Payment       domain.FeePayment `json:"payment"`
	StudentName   string            `json:"student_name"`
	AdmissionNo   string            `json:"admission_no"`
	BaseCurrency  string            `json:"base_currency"`
	AmountInWords string            `json:"amount_in_words"`
	Lines         []ReceiptLine     `json:"lines"`
	BalanceAfter  decimal.Decimal   `json:"balance_after"`
}

// ReceiptLine names the charge an allocation settled
type ReceiptLine struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

func validMethod(m string) bool {
	switch m {
	case domain.MethodCash, domain.MethodBank, domain.MethodMobile, domain.MethodCheque:
		return true
	}
	return false
}

func newReceiptNo(at time.Time) string {
	return "RCT-" + at.Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:8])
}

// ResolveRate returns the rate converting currency into the base currency
func (l *Ledger) ResolveRate(ctx context.Context, currency string, override *decimal.Decimal) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	if currency == "" || currency == l.baseCurrency {
		return decimal.NewFromInt(1), nil
	}
	if override != nil {
		rate := money.RoundRate(*override)
		if !rate.IsPositive() {
			return decimal.Zero, ErrInvalidRate
		}
		return rate, nil
	}
	var r domain.ExchangeRate
	err := l.db.WithContext(ctx).Where("currency = ?", currency).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, ErrUnknownCurrency
	}
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "load exchange rate")
	}
	return r.Rate, nil
}

// SetRate creates or replaces the stored rate for a currency
func (l *Ledger) SetRate(ctx context.Context, currency string, rate decimal.Decimal) (*domain.ExchangeRate, error) {
	currency = strings.ToUpper(currency)
	rate = money.RoundRate(rate)
	if !rate.IsPositive() {
		return nil, ErrInvalidRate
	}
	if currency == l.baseCurrency && !rate.Equal(decimal.NewFromInt(1)) {
		return nil, ErrInvalidRate
	}
	r := domain.ExchangeRate{Currency: currency, Rate: rate}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "currency"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate", "updated_at"}),
	}).Create(&r).Error
	if err != nil {
		return nil, errors.Wrap(err, "save exchange rate")
	}
	return &r, nil
}

// Rates lists the stored exchange rates
func (l *Ledger) Rates(ctx context.Context) ([]domain.ExchangeRate, error) {
	var rates []domain.ExchangeRate
	err := l.db.WithContext(ctx).Order("currency").Find(&rates).Error
	return rates, errors.Wrap(err, "list exchange rates")
}

// RecordPayment converts the payment into the base currency, allocates it to
// outstanding charges and posts the CREDIT. A payment larger than what the
// student owes is rejected unless overpayment is allowed. The amount is kept
// in cents and the rate to six decimals; the base amount is converted from
// those stored values.
func (l *Ledger) RecordPayment(ctx context.Context, in PaymentInput) (*domain.FeePayment, error) {
	amount := money.Round(in.Amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if in.Category == "" {
		in.Category = domain.CategoryTuition
	}
	if in.Category != domain.CategoryTuition && in.Category != domain.CategoryBoarding {
		return nil, ErrInvalidCategory
	}
	if !validMethod(in.Method) {
		return nil, ErrInvalidMethod
	}
	in.Currency = strings.ToUpper(in.Currency)
	if in.Currency == "" {
		in.Currency = l.baseCurrency
	}
	rate, err := l.ResolveRate(ctx, in.Currency, in.Rate)
	if err != nil {
		return nil, err
	}
	base := money.Convert(amount, rate)
	if !base.IsPositive() {
		return nil, ErrInvalidAmount
	}
	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = l.now()
	}

	var out *domain.FeePayment
	err = l.tx(ctx, func(tx *gorm.DB) error {
		st, err := lockStudent(tx, in.StudentID)
		if err != nil {
			return err
		}
		hostelID := in.HostelID
		if in.Category == domain.CategoryBoarding {
			if hostelID == nil {
				hostelID = st.HostelID
			}
			if hostelID == nil {
				return ErrNotBoarder
			}
		}

		q := tx.Where("student_id = ? AND amount_paid < amount", st.ID)
		if in.Category == domain.CategoryBoarding {
			q = q.Where("category = ?", domain.CategoryBoarding)
		}
		var open []domain.FeeAssignment
		if err := q.Find(&open).Error; err != nil {
			return errors.Wrap(err, "load outstanding assignments")
		}

		if !l.allowOverpayment {
			limit := st.Outstanding()
			if in.Category == domain.CategoryBoarding {
				owed := decimal.Zero
				for _, a := range open {
					owed = owed.Add(a.Outstanding())
				}
				limit = money.Min(limit, owed)
			}
			if !limit.IsPositive() {
				return ErrNothingOutstanding
			}
			if base.GreaterThan(limit) {
				return errors.Wrapf(ErrOverpayment, "%s %s exceeds %s %s owed", base.StringFixed(2), l.baseCurrency, limit.StringFixed(2), l.baseCurrency)
			}
		}

		p := domain.FeePayment{
			ReceiptNo:    newReceiptNo(paidAt),
			StudentID:    st.ID,
			Category:     in.Category,
			HostelID:     hostelID,
			Currency:     in.Currency,
			Amount:       amount,
			ExchangeRate: rate,
			BaseAmount:   base,
			Method:       in.Method,
			Reference:    in.Reference,
			RecordedBy:   in.RecordedBy,
			PaidAt:       paidAt,
		}
		if err := tx.Omit("Allocations").Create(&p).Error; err != nil {
			return errors.Wrap(err, "create payment")
		}

		allocs, _ := Allocate(open, base)
		byID := make(map[uint]domain.FeeAssignment, len(open))
		for _, a := range open {
			byID[a.ID] = a
		}
		for _, al := range allocs {
			pa := domain.PaymentAllocation{PaymentID: p.ID, FeeAssignmentID: al.AssignmentID, Amount: al.Amount}
			if err := tx.Create(&pa).Error; err != nil {
				return errors.Wrap(err, "create allocation")
			}
			paid := byID[al.AssignmentID].AmountPaid.Add(al.Amount)
			if err := tx.Model(&domain.FeeAssignment{}).Where("id = ?", al.AssignmentID).Update("amount_paid", paid).Error; err != nil {
				return errors.Wrap(err, "update assignment")
			}
			p.Allocations = append(p.Allocations, pa)
		}

		ref := newReference()
		if _, err := post(tx, st, entry{
			entryType:   domain.Credit,
			source:      domain.SourcePayment,
			sourceID:    p.ID,
			amount:      base,
			reference:   ref,
			description: "Payment " + p.ReceiptNo,
		}); err != nil {
			return err
		}
		if err := journal(tx, ref, "Payment "+p.ReceiptNo,
			dr(cashAccount(p.Method), base),
			cr(domain.AccountFeesReceivable, base),
		); err != nil {
			return err
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) loadPayment(db *gorm.DB, id uint) (*domain.FeePayment, error) {
	var p domain.FeePayment
	err := db.Preload("Allocations").First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load payment")
	}
	return &p, nil
}

// Payment returns a payment with its allocations
func (l *Ledger) Payment(ctx context.Context, id uint) (*domain.FeePayment, error) {
	return l.loadPayment(l.db.WithContext(ctx), id)
}

// ReversePayment voids a payment: its allocations are released and a DEBIT
// restores the balance it had settled
func (l *Ledger) ReversePayment(ctx context.Context, paymentID uint, reason string) (*domain.FeePayment, error) {
	p, err := l.Payment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	err = l.tx(ctx, func(tx *gorm.DB) error {
		st, err := lockStudent(tx, p.StudentID)
		if err != nil {
			return err
		}
		// reload under the student lock; a concurrent reversal may have won
		p, err = l.loadPayment(tx, paymentID)
		if err != nil {
			return err
		}
		if p.Reversed {
			return ErrAlreadyReversed
		}
		for _, al := range p.Allocations {
			var a domain.FeeAssignment
			if err := tx.First(&a, al.FeeAssignmentID).Error; err != nil {
				return errors.Wrap(err, "load allocated assignment")
			}
			paid := a.AmountPaid.Sub(al.Amount)
			if paid.IsNegative() {
				paid = decimal.Zero
			}
			if err := tx.Model(&a).Update("amount_paid", paid).Error; err != nil {
				return errors.Wrap(err, "release allocation")
			}
		}
		if err := tx.Model(&domain.FeePayment{}).Where("id = ?", p.ID).Updates(map[string]any{"reversed": true, "reversal_reason": reason}).Error; err != nil {
			return errors.Wrap(err, "mark payment reversed")
		}
		p.Reversed = true
		p.ReversalReason = reason
		ref := newReference()
		if _, err := post(tx, st, entry{
			entryType:   domain.Debit,
			source:      domain.SourceReversal,
			sourceID:    p.ID,
			amount:      p.BaseAmount,
			reference:   ref,
			description: "Reversal of " + p.ReceiptNo + ": " + reason,
		}); err != nil {
			return err
		}
		return journal(tx, ref, "Reversal of "+p.ReceiptNo,
			dr(domain.AccountFeesReceivable, p.BaseAmount),
			cr(cashAccount(p.Method), p.BaseAmount),
		)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Receipt builds the receipt for a payment
func (l *Ledger) Receipt(ctx context.Context, paymentID uint) (*Receipt, error) {
	db := l.db.WithContext(ctx)
	p, err := l.loadPayment(db, paymentID)
	if err != nil {
		return nil, err
	}
	var st domain.Student
	if err := db.First(&st, p.StudentID).Error; err != nil {
		return nil, errors.Wrap(err, "load student")
	}
	var credit domain.StudentTransaction
	err = db.Where("student_id = ? AND source = ? AND source_id = ?", st.ID, domain.SourcePayment, p.ID).First(&credit).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "load payment entry")
	}
	r := &Receipt{
		Payment:       *p,
		StudentName:   st.FullName(),
		AdmissionNo:   st.AdmissionNo,
		BaseCurrency:  l.baseCurrency,
		AmountInWords: money.Words(p.BaseAmount, l.baseCurrency),
		BalanceAfter:  credit.RunningBalance,
	}
	for _, al := range p.Allocations {
		var a domain.FeeAssignment
		if err := db.First(&a, al.FeeAssignmentID).Error; err != nil {
			return nil, errors.Wrap(err, "load allocated assignment")
		}
		r.Lines = append(r.Lines, ReceiptLine{Description: a.Description, Amount: al.Amount})
	}
	return r, nil
}
