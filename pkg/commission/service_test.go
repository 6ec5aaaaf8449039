package commission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qutab/affiliate-ledger/pkg/domain"
	"github.com/qutab/affiliate-ledger/pkg/ledger"
	"github.com/qutab/affiliate-ledger/pkg/models"
)

const testHoldingDays = 30

func setupServices(t *testing.T) (*gorm.DB, *Service, *ledger.Service) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Affiliate{},
		&models.LedgerEntry{},
		&models.Commission{},
	))

	ledgerSvc := ledger.NewService(db, nil, nil)
	commissionSvc := NewService(db, ledgerSvc, nil, nil, testHoldingDays)
	return db, commissionSvc, ledgerSvc
}

func createTestAffiliate(t *testing.T, db *gorm.DB) *models.Affiliate {
	aff := &models.Affiliate{
		AffiliateCode:      "TESTCD1",
		Name:               "Budi Santoso",
		Email:              "budi@example.com",
		Phone:              "+6281234567890",
		VerificationStatus: models.VerificationVerified,
	}
	require.NoError(t, db.Create(aff).Error)
	return aff
}

func TestAccrue(t *testing.T) {
	db, service, _ := setupServices(t)
	ctx := context.Background()
	aff := createTestAffiliate(t, db)

	t.Run("Success - Accrue computes the commission amount", func(t *testing.T) {
		c, err := service.Accrue(ctx, aff.ID, "QTB-1001", 2000000, 5)

		require.NoError(t, err)
		assert.Equal(t, models.CommissionPending, c.Status)
		assert.Equal(t, int64(100000), c.Amount)
		assert.Equal(t, "QTB-1001", c.OrderRef)
	})

	t.Run("Success - Same order accrued twice returns the existing row", func(t *testing.T) {
		c, err := service.Accrue(ctx, aff.ID, "QTB-1001", 2000000, 5)

		require.NoError(t, err)

		var count int64
		require.NoError(t, db.Model(&models.Commission{}).
			Where("order_ref = ?", "QTB-1001").Count(&count).Error)
		assert.Equal(t, int64(1), count)
		assert.Equal(t, int64(100000), c.Amount)
	})

	t.Run("Failure - Rate out of range", func(t *testing.T) {
		_, err := service.Accrue(ctx, aff.ID, "QTB-1002", 2000000, 101)

		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("Failure - Non-positive order amount", func(t *testing.T) {
		_, err := service.Accrue(ctx, aff.ID, "QTB-1003", 0, 5)

		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("Failure - Missing order reference", func(t *testing.T) {
		_, err := service.Accrue(ctx, aff.ID, "  ", 2000000, 5)

		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})
}

func TestMature(t *testing.T) {
	db, service, ledgerSvc := setupServices(t)
	ctx := context.Background()
	aff := createTestAffiliate(t, db)

	old, err := service.Accrue(ctx, aff.ID, "QTB-OLD", 1000000, 10)
	require.NoError(t, err)
	// Backdate past the holding period
	backdated := time.Now().AddDate(0, 0, -(testHoldingDays + 1))
	require.NoError(t, db.Model(old).Update("created_at", backdated).Error)

	fresh, err := service.Accrue(ctx, aff.ID, "QTB-FRESH", 1000000, 10)
	require.NoError(t, err)

	t.Run("Success - Only commissions past the holding period are credited", func(t *testing.T) {
		credited, err := service.Mature(ctx, time.Now())

		require.NoError(t, err)
		assert.Equal(t, 1, credited)

		balance, err := ledgerSvc.Balance(ctx, aff.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(100000), balance)

		var matured models.Commission
		require.NoError(t, db.First(&matured, old.ID).Error)
		assert.Equal(t, models.CommissionCredited, matured.Status)
		assert.NotNil(t, matured.MaturedAt)

		var pending models.Commission
		require.NoError(t, db.First(&pending, fresh.ID).Error)
		assert.Equal(t, models.CommissionPending, pending.Status)
	})

	t.Run("Success - Re-running credits nothing new", func(t *testing.T) {
		credited, err := service.Mature(ctx, time.Now())

		require.NoError(t, err)
		assert.Zero(t, credited)

		balance, err := ledgerSvc.Balance(ctx, aff.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(100000), balance)
	})

	t.Run("Success - System actor on the resulting ledger entry", func(t *testing.T) {
		var entry models.LedgerEntry
		require.NoError(t, db.Where("affiliate_id = ?", aff.ID).First(&entry).Error)
		assert.Equal(t, SystemActor, entry.Actor)
		assert.Contains(t, entry.Note, "QTB-OLD")
	})
}

func TestMatureConcurrentRuns(t *testing.T) {
	db, service, ledgerSvc := setupServices(t)
	ctx := context.Background()
	aff := createTestAffiliate(t, db)

	old, err := service.Accrue(ctx, aff.ID, "QTB-RACE", 1000000, 10)
	require.NoError(t, err)
	backdated := time.Now().AddDate(0, 0, -(testHoldingDays + 1))
	require.NoError(t, db.Model(old).Update("created_at", backdated).Error)

	// Two overlapping job runs must credit the commission exactly once:
	// the credit and the status flip commit as one transaction, and the
	// status is re-checked inside it.
	var wg sync.WaitGroup
	counts := make(chan int, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			credited, err := service.Mature(ctx, time.Now())
			counts <- credited
			errs <- err
		}()
	}
	wg.Wait()
	close(counts)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	total := 0
	for c := range counts {
		total += c
	}
	assert.Equal(t, 1, total)

	balance, err := ledgerSvc.Balance(ctx, aff.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), balance)

	var entryCount int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).
		Where("affiliate_id = ?", aff.ID).Count(&entryCount).Error)
	assert.Equal(t, int64(1), entryCount)
}

func TestVoid(t *testing.T) {
	db, service, _ := setupServices(t)
	ctx := context.Background()
	aff := createTestAffiliate(t, db)

	c, err := service.Accrue(ctx, aff.ID, "QTB-2001", 500000, 5)
	require.NoError(t, err)

	t.Run("Failure - Reason required", func(t *testing.T) {
		_, err := service.Void(ctx, "QTB-2001", "  ")

		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("Success - Void a pending commission", func(t *testing.T) {
		voided, err := service.Void(ctx, "QTB-2001", "order refunded")

		require.NoError(t, err)
		assert.Equal(t, models.CommissionVoided, voided.Status)
		assert.Equal(t, "order refunded", voided.VoidedReason)
		assert.NotNil(t, voided.VoidedAt)
	})

	t.Run("Failure - Void twice", func(t *testing.T) {
		_, err := service.Void(ctx, "QTB-2001", "again")

		require.Error(t, err)
		assert.True(t, domain.IsInvalidState(err))
	})

	t.Run("Failure - Voided commission never matures", func(t *testing.T) {
		backdated := time.Now().AddDate(0, 0, -(testHoldingDays + 1))
		require.NoError(t, db.Model(c).Update("created_at", backdated).Error)

		credited, err := service.Mature(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, credited)
	})

	t.Run("Failure - Unknown order", func(t *testing.T) {
		_, err := service.Void(ctx, "QTB-NOPE", "refund")

		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestListByAffiliate(t *testing.T) {
	db, service, _ := setupServices(t)
	ctx := context.Background()
	aff := createTestAffiliate(t, db)

	for _, ref := range []string{"QTB-3001", "QTB-3002", "QTB-3003"} {
		_, err := service.Accrue(ctx, aff.ID, ref, 1000000, 5)
		require.NoError(t, err)
	}

	commissions, total, err := service.ListByAffiliate(ctx, aff.ID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, commissions, 2)
	assert.Equal(t, int64(3), total)
}
