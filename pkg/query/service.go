package query

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/qutab/affiliate-ledger/pkg/domain"
	"github.com/qutab/affiliate-ledger/pkg/models"
)

const (
	statsCacheKey = "stats:dashboard"
	statsCacheTTL = 60 * time.Second
)

// Service serves the read side: dashboard aggregates and admin queues.
// Aggregates are cached briefly in Redis since the dashboard polls them.
type Service struct {
	db    *gorm.DB
	cache domain.CacheRepository
}

// NewService creates a new query service
func NewService(db *gorm.DB, cache domain.CacheRepository) *Service {
	return &Service{db: db, cache: cache}
}

type statusCount struct {
	Status string
	Count  int64
	Total  int64
}

// DashboardStats returns payout and verification aggregates for the admin
// dashboard. Served from cache when fresh.
func (s *Service) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, statsCacheKey); err == nil && cached != "" {
			var stats models.DashboardStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	stats := &models.DashboardStats{
		PayoutCounts:       make(map[models.PayoutStatus]int64),
		PayoutAmounts:      make(map[models.PayoutStatus]int64),
		VerificationCounts: make(map[models.VerificationStatus]int64),
	}

	var payoutRows []statusCount
	err := s.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Select("status, count(*) as count, coalesce(sum(amount), 0) as total").
		Group("status").
		Scan(&payoutRows).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	for _, row := range payoutRows {
		status := models.PayoutStatus(row.Status)
		stats.PayoutCounts[status] = row.Count
		stats.PayoutAmounts[status] = row.Total
		if status == models.PayoutPaid {
			stats.TotalPaidOut = row.Total
		}
	}

	var verificationRows []statusCount
	err = s.db.WithContext(ctx).
		Model(&models.Affiliate{}).
		Select("verification_status as status, count(*) as count").
		Group("verification_status").
		Scan(&verificationRows).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	for _, row := range verificationRows {
		stats.VerificationCounts[models.VerificationStatus(row.Status)] = row.Count
	}

	err = s.db.WithContext(ctx).
		Model(&models.Affiliate{}).
		Select("coalesce(sum(balance_cached), 0)").
		Scan(&stats.OutstandingBalance).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			_ = s.cache.Set(ctx, statsCacheKey, string(raw), statsCacheTTL)
		}
	}

	return stats, nil
}

// InvalidateStats drops cached dashboard aggregates. Called after commands
// that move money or change verification state.
func (s *Service) InvalidateStats(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeletePattern(ctx, "stats:*")
}
