package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"school_ledger/internal/domain"
	"school_ledger/internal/money"
)

// Installment is one dated amount of an invoice's payment plan
type Installment struct {
	Label   string          `json:"label"`
	DueDate time.Time       `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
}

// BuildSchedule evaluates the installment formulas against the invoice total.
// Formulas may reference Total. The last installment takes whatever is left
// so the plan always sums to the total.
func BuildSchedule(total decimal.Decimal, rules []domain.InstallmentRule) ([]Installment, error) {
	total = money.Round(total)
	if len(rules) == 0 {
		return []Installment{{Label: "Full payment", Amount: total}}, nil
	}
	sorted := append([]domain.InstallmentRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DueDate.Before(sorted[j].DueDate) })

	params := map[string]interface{}{"Total": total.InexactFloat64()}
	out := make([]Installment, 0, len(sorted))
	allocated := decimal.Zero
	for i, rule := range sorted {
		inst := Installment{Label: rule.Label, DueDate: rule.DueDate}
		if i == len(sorted)-1 {
			inst.Amount = total.Sub(allocated)
		} else {
			expr, err := govaluate.NewEvaluableExpression(rule.Formula)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidFormula, "%q: %v", rule.Formula, err)
			}
			result, err := expr.Evaluate(params)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidFormula, "%q: %v", rule.Formula, err)
			}
			f, ok := result.(float64)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidFormula, "%q does not evaluate to a number", rule.Formula)
			}
			inst.Amount = money.Round(decimal.NewFromFloat(f))
		}
		if inst.Amount.IsNegative() {
			return nil, errors.Wrapf(ErrInvalidFormula, "installments exceed the total of %s", total.StringFixed(2))
		}
		allocated = allocated.Add(inst.Amount)
		out = append(out, inst)
	}
	return out, nil
}

// ValidateFormula checks that an installment formula parses and only
// references Total
func ValidateFormula(formula string) error {
	expr, err := govaluate.NewEvaluableExpression(formula)
	if err != nil {
		return errors.Wrapf(ErrInvalidFormula, "%q: %v", formula, err)
	}
	for _, v := range expr.Vars() {
		if v != "Total" {
			return errors.Wrapf(ErrInvalidFormula, "unknown variable %q", v)
		}
	}
	return nil
}

// InstallmentSchedule builds the payment plan of an invoice structure
func (l *Ledger) InstallmentSchedule(ctx context.Context, invoiceStructureID uint) ([]Installment, error) {
	var is domain.InvoiceStructure
	err := l.db.WithContext(ctx).Preload("Items").Preload("Installments").First(&is, invoiceStructureID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load invoice structure")
	}
	return BuildSchedule(is.Total(), is.Installments)
}
