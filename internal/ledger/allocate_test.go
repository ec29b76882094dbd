package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_ledger/internal/domain"
)

func TestAllocate(t *testing.T) {
	jan := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	feb := jan.AddDate(0, 1, 0)
	d := decimal.RequireFromString
	assignments := []domain.FeeAssignment{
		{ID: 1, Kind: domain.KindFee, Amount: d("100"), AmountPaid: d("0"), DueDate: feb},
		{ID: 2, Kind: domain.KindFee, Amount: d("100"), AmountPaid: d("0"), DueDate: jan},
		{ID: 3, Kind: domain.KindOpeningBalance, Amount: d("50"), AmountPaid: d("20"), DueDate: feb},
		{ID: 4, Kind: domain.KindFee, Amount: d("80"), AmountPaid: d("80"), DueDate: jan},
		{ID: 5, Kind: domain.KindFee, Amount: d("10"), AmountPaid: d("0"), DueDate: feb},
	}

	tests := []struct {
		name      string
		amount    string
		want      []Allocation
		remaining string
	}{
		{
			name:      "opening balance first",
			amount:    "20",
			want:      []Allocation{{AssignmentID: 3, Amount: d("20")}},
			remaining: "0",
		},
		{
			name:   "then earliest due, then oldest",
			amount: "205",
			want: []Allocation{
				{AssignmentID: 3, Amount: d("30")},
				{AssignmentID: 2, Amount: d("100")},
				{AssignmentID: 1, Amount: d("75")},
			},
			remaining: "0",
		},
		{
			name:   "more than owed",
			amount: "300",
			want: []Allocation{
				{AssignmentID: 3, Amount: d("30")},
				{AssignmentID: 2, Amount: d("100")},
				{AssignmentID: 1, Amount: d("100")},
				{AssignmentID: 5, Amount: d("10")},
			},
			remaining: "60",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, remaining := Allocate(assignments, d(tt.amount))
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].AssignmentID, got[i].AssignmentID)
				assert.True(t, tt.want[i].Amount.Equal(got[i].Amount), "allocation %d: got %s", i, got[i].Amount)
			}
			assert.True(t, d(tt.remaining).Equal(remaining), "remaining %s", remaining)
		})
	}
}

func TestAllocate_NothingOpen(t *testing.T) {
	got, remaining := Allocate(nil, decimal.NewFromInt(25))
	assert.Empty(t, got)
	assert.True(t, remaining.Equal(decimal.NewFromInt(25)))
}
