package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"school_ledger/internal/domain"
	"school_ledger/internal/money"
)

// Allocation is the share of a payment applied to one assignment
type Allocation struct {
	AssignmentID uint            `json:"fee_assignment_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// Allocate spreads amount over the outstanding assignments: the opening
// balance first, then the earliest due, then the oldest. It returns the
// allocations and whatever could not be placed.
func Allocate(assignments []domain.FeeAssignment, amount decimal.Decimal) ([]Allocation, decimal.Decimal) {
	open := make([]domain.FeeAssignment, 0, len(assignments))
	for _, a := range assignments {
		if a.Outstanding().IsPositive() {
			open = append(open, a)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		oi, oj := open[i].Kind == domain.KindOpeningBalance, open[j].Kind == domain.KindOpeningBalance
		if oi != oj {
			return oi
		}
		if !open[i].DueDate.Equal(open[j].DueDate) {
			return open[i].DueDate.Before(open[j].DueDate)
		}
		return open[i].ID < open[j].ID
	})
	remaining := money.Round(amount)
	var out []Allocation
	for _, a := range open {
		if !remaining.IsPositive() {
			break
		}
		take := money.Min(a.Outstanding(), remaining)
		out = append(out, Allocation{AssignmentID: a.ID, Amount: take})
		remaining = remaining.Sub(take)
	}
	return out, remaining
}
