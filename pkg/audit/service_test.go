package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qutab/affiliate-ledger/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))
	return db
}

func TestLog(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)
	ctx := context.Background()

	t.Run("Success - Metadata encoded as JSON", func(t *testing.T) {
		err := service.Log(ctx, Entry{
			Actor:        "finance",
			Action:       models.AuditActionPayoutSettled,
			ResourceType: "payout_request",
			ResourceID:   "7",
			Severity:     models.AuditSeverityCritical,
			Description:  "Payout of Rp 800000 settled (TRX-001)",
			Metadata:     map[string]interface{}{"amount": 800000},
		})
		require.NoError(t, err)

		var stored models.AuditLog
		require.NoError(t, db.Where("resource_id = ?", "7").First(&stored).Error)
		assert.Equal(t, "finance", stored.Actor)

		var meta map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(stored.Metadata), &meta))
		assert.Equal(t, float64(800000), meta["amount"])
	})

	t.Run("Success - Severity defaults to info", func(t *testing.T) {
		err := service.Log(ctx, Entry{
			Actor:        "admin",
			Action:       models.AuditActionVerificationReviewed,
			ResourceType: "affiliate",
			ResourceID:   "42",
			Description:  "Verification approved",
		})
		require.NoError(t, err)

		var stored models.AuditLog
		require.NoError(t, db.Where("resource_id = ?", "42").First(&stored).Error)
		assert.Equal(t, models.AuditSeverityInfo, stored.Severity)
	})
}

func TestQueries(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db)
	ctx := context.Background()

	require.NoError(t, service.LogPayoutRequested(ctx, 1, 10, 100000))
	require.NoError(t, service.LogPayoutSettled(ctx, 1, 10, 100000, "TRX-001", "match", "finance"))
	require.NoError(t, service.LogPayoutRejected(ctx, 2, 11, "bad account", "finance"))
	require.NoError(t, service.LogAffiliateDeactivated(ctx, 3, "admin"))

	t.Run("Success - Recent logs honor the limit", func(t *testing.T) {
		logs, err := service.GetRecentLogs(ctx, 2)

		require.NoError(t, err)
		assert.Len(t, logs, 2)
	})

	t.Run("Success - Logs scoped to one resource", func(t *testing.T) {
		logs, err := service.GetLogsForResource(ctx, "payout_request", "10", 50)

		require.NoError(t, err)
		assert.Len(t, logs, 2)
		for _, l := range logs {
			assert.Equal(t, "10", l.ResourceID)
		}
	})

	t.Run("Success - Critical logs only show settlements", func(t *testing.T) {
		logs, err := service.GetCriticalLogs(ctx, 50)

		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, models.AuditActionPayoutSettled, logs[0].Action)
	})
}
