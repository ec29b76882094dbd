package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_ledger/internal/domain"
	"school_ledger/internal/ledger"
	"school_ledger/internal/testutil"
)

func TestBuildSchedule(t *testing.T) {
	rules := []domain.InstallmentRule{
		{Label: "Third", DueDate: testutil.Date(2025, time.March, 1), Formula: "Total * 0.9"},
		{Label: "First", DueDate: testutil.Date(2025, time.January, 1), Formula: "Total / 3"},
		{Label: "Second", DueDate: testutil.Date(2025, time.February, 1), Formula: "Total / 3"},
	}
	plan, err := ledger.BuildSchedule(dec("100"), rules)
	require.NoError(t, err)
	require.Len(t, plan, 3)
	assert.Equal(t, "First", plan[0].Label)
	assertMoney(t, "33.33", plan[0].Amount)
	assertMoney(t, "33.33", plan[1].Amount)
	// the last instalment absorbs rounding and ignores its formula
	assert.Equal(t, "Third", plan[2].Label)
	assertMoney(t, "33.34", plan[2].Amount)
}

func TestBuildSchedule_NoRules(t *testing.T) {
	plan, err := ledger.BuildSchedule(dec("250.5"), nil)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "Full payment", plan[0].Label)
	assertMoney(t, "250.5", plan[0].Amount)
}

func TestBuildSchedule_Errors(t *testing.T) {
	day := testutil.Date(2025, time.January, 1)
	tests := []struct {
		name  string
		rules []domain.InstallmentRule
	}{
		{"does not parse", []domain.InstallmentRule{{Formula: "Total *"}, {DueDate: day.AddDate(0, 1, 0)}}},
		{"exceeds total", []domain.InstallmentRule{{Formula: "Total * 2"}, {DueDate: day.AddDate(0, 1, 0)}}},
		{"not a number", []domain.InstallmentRule{{Formula: "Total > 5"}, {DueDate: day.AddDate(0, 1, 0)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.BuildSchedule(dec("100"), tt.rules)
			assert.ErrorIs(t, err, ledger.ErrInvalidFormula)
		})
	}
}

func TestValidateFormula(t *testing.T) {
	assert.NoError(t, ledger.ValidateFormula("Total * 0.25"))
	assert.NoError(t, ledger.ValidateFormula("1000"))
	assert.ErrorIs(t, ledger.ValidateFormula("Amount * 0.5"), ledger.ErrInvalidFormula)
	assert.ErrorIs(t, ledger.ValidateFormula("Total *"), ledger.ErrInvalidFormula)
}
