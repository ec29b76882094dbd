package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school_ledger/internal/db"
	"school_ledger/internal/domain"
	"school_ledger/internal/testutil"
)

func TestAutoMigrate_SeedsAccountsOnce(t *testing.T) {
	gdb := testutil.NewDB(t) // Already migrated once

	require.NoError(t, gdb.Model(&domain.Account{}).
		Where("code = ?", domain.AccountCash).
		Update("name", "Petty cash").Error)
	require.NoError(t, db.AutoMigrate(gdb))

	var count int64
	require.NoError(t, gdb.Model(&domain.Account{}).Count(&count).Error)
	assert.EqualValues(t, len(domain.DefaultAccounts()), count)

	var cash domain.Account
	require.NoError(t, gdb.Where("code = ?", domain.AccountCash).First(&cash).Error)
	assert.Equal(t, "Petty cash", cash.Name)

	for _, m := range db.Models() {
		assert.True(t, gdb.Migrator().HasTable(m))
	}
}
