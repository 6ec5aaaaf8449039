package query

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qutab/affiliate-ledger/pkg/cache"
	"github.com/qutab/affiliate-ledger/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Affiliate{},
		&models.PayoutRequest{},
	))
	return db
}

func seedDashboardData(t *testing.T, db *gorm.DB) {
	affiliates := []models.Affiliate{
		{AffiliateCode: "CODE001", Name: "Budi Santoso", Email: "budi@example.com", Phone: "+6281234567890", VerificationStatus: models.VerificationVerified, BalanceCached: 200000},
		{AffiliateCode: "CODE002", Name: "Siti Aminah", Email: "siti@example.com", Phone: "+6281234567891", VerificationStatus: models.VerificationPending, BalanceCached: 50000},
		{AffiliateCode: "CODE003", Name: "Ahmad Fauzi", Email: "ahmad@example.com", Phone: "+6281234567892", VerificationStatus: models.VerificationUnverified},
	}
	for i := range affiliates {
		require.NoError(t, db.Create(&affiliates[i]).Error)
	}

	payouts := []models.PayoutRequest{
		{AffiliateID: affiliates[0].ID, Amount: 800000, Status: models.PayoutPaid},
		{AffiliateID: affiliates[0].ID, Amount: 100000, Status: models.PayoutPending},
		{AffiliateID: affiliates[1].ID, Amount: 150000, Status: models.PayoutRejected},
	}
	for i := range payouts {
		require.NoError(t, db.Create(&payouts[i]).Error)
	}
}

func TestDashboardStats(t *testing.T) {
	db := setupTestDB(t)
	seedDashboardData(t, db)

	mr := miniredis.RunT(t)
	cacheClient, err := cache.NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	defer cacheClient.Close()

	service := NewService(db, cacheClient)
	ctx := context.Background()

	t.Run("Success - Aggregates by status", func(t *testing.T) {
		stats, err := service.DashboardStats(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(800000), stats.TotalPaidOut)
		assert.Equal(t, int64(1), stats.PayoutCounts[models.PayoutPending])
		assert.Equal(t, int64(100000), stats.PayoutAmounts[models.PayoutPending])
		assert.Equal(t, int64(1), stats.VerificationCounts[models.VerificationPending])
		assert.Equal(t, int64(250000), stats.OutstandingBalance)
	})

	t.Run("Success - Second read is served from cache", func(t *testing.T) {
		exists, err := cacheClient.Exists(ctx, "stats:dashboard")
		require.NoError(t, err)
		require.True(t, exists)

		// Mutate the database; the cached aggregate should still be returned
		require.NoError(t, db.Model(&models.PayoutRequest{}).
			Where("status = ?", models.PayoutPending).
			Update("status", models.PayoutRejected).Error)

		stats, err := service.DashboardStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.PayoutCounts[models.PayoutPending])
	})

	t.Run("Success - Invalidation forces a fresh read", func(t *testing.T) {
		require.NoError(t, service.InvalidateStats(ctx))

		stats, err := service.DashboardStats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.PayoutCounts[models.PayoutPending])
		assert.Equal(t, int64(2), stats.PayoutCounts[models.PayoutRejected])
	})
}

func TestDashboardStatsWithoutCache(t *testing.T) {
	db := setupTestDB(t)
	seedDashboardData(t, db)

	service := NewService(db, nil)
	ctx := context.Background()

	stats, err := service.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(800000), stats.TotalPaidOut)

	require.NoError(t, service.InvalidateStats(ctx))
}
