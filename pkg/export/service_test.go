package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qutab/affiliate-ledger/pkg/domain"
	"github.com/qutab/affiliate-ledger/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Affiliate{},
		&models.LedgerEntry{},
		&models.PayoutRequest{},
	))
	return db
}

func TestLedgerHistory(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)
	ctx := context.Background()

	aff := &models.Affiliate{
		AffiliateCode:      "ABC1234",
		Name:               "Budi Santoso",
		Email:              "budi@example.com",
		Phone:              "+6281234567890",
		VerificationStatus: models.VerificationVerified,
		BalanceCached:      200000,
	}
	require.NoError(t, db.Create(aff).Error)

	entries := []models.LedgerEntry{
		{AffiliateID: aff.ID, Kind: models.EntryCredit, Amount: 1000000, Actor: "admin", Note: "referral commission"},
		{AffiliateID: aff.ID, Kind: models.EntryDebit, Amount: 800000, Actor: "finance", TransactionRef: "TRX-001"},
	}
	for i := range entries {
		require.NoError(t, db.Create(&entries[i]).Error)
	}

	t.Run("Success - Workbook carries the running balance", func(t *testing.T) {
		data, filename, err := service.LedgerHistory(ctx, aff.ID)

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(filename, "ledger-ABC1234-"))
		assert.True(t, strings.HasSuffix(filename, ".xlsx"))

		f, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer f.Close()

		kind, err := f.GetCellValue("Ledger", "C2")
		require.NoError(t, err)
		assert.Equal(t, "credit", kind)

		running, err := f.GetCellValue("Ledger", "E3")
		require.NoError(t, err)
		assert.Equal(t, "200000", running)

		ref, err := f.GetCellValue("Ledger", "H3")
		require.NoError(t, err)
		assert.Equal(t, "TRX-001", ref)
	})

	t.Run("Failure - Unknown affiliate", func(t *testing.T) {
		_, _, err := service.LedgerHistory(ctx, 99999)

		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestPayoutRecap(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)
	ctx := context.Background()

	now := time.Now()
	resolved := now.Add(-time.Hour)
	requests := []models.PayoutRequest{
		{
			AffiliateID:           1,
			Amount:                800000,
			Status:                models.PayoutPaid,
			BankNameSnapshot:      "BCA",
			AccountNumberSnapshot: "1234567890",
			AccountHolderSnapshot: "Budi Santoso",
			ResolvedAt:            &resolved,
			ResolvedBy:            "finance",
			TransactionRef:        "TRX-001",
			NameCheck:             models.NameCheckMatch,
		},
		{
			AffiliateID: 2,
			Amount:      150000,
			Status:      models.PayoutPending,
		},
	}
	for i := range requests {
		require.NoError(t, db.Create(&requests[i]).Error)
	}

	t.Run("Success - One row per request in range", func(t *testing.T) {
		data, filename, err := service.PayoutRecap(ctx, now.AddDate(0, 0, -1), now.AddDate(0, 0, 1))

		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(filename, ".xlsx"))

		f, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows("Payouts")
		require.NoError(t, err)
		assert.Len(t, rows, 3) // header + 2 requests

		status, err := f.GetCellValue("Payouts", "E2")
		require.NoError(t, err)
		assert.Equal(t, "paid", status)

		holder, err := f.GetCellValue("Payouts", "H2")
		require.NoError(t, err)
		assert.Equal(t, "Budi Santoso", holder)
	})

	t.Run("Success - Empty range yields only the header", func(t *testing.T) {
		data, _, err := service.PayoutRecap(ctx, now.AddDate(0, 0, 1), now.AddDate(0, 0, 2))

		require.NoError(t, err)

		f, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows("Payouts")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("Failure - Inverted range", func(t *testing.T) {
		_, _, err := service.PayoutRecap(ctx, now, now.AddDate(0, 0, -1))

		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})
}
