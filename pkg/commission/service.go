package commission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qutab/affiliate-ledger/pkg/domain"
	"github.com/qutab/affiliate-ledger/pkg/ledger"
	"github.com/qutab/affiliate-ledger/pkg/models"
)

// SystemActor identifies ledger credits written by the maturation job
const SystemActor = "system"

// Service accrues referral commissions and converts them into ledger credits
// once the holding period elapses. A commission in its holding period is not
// withdrawable; only the matured ledger credit is.
type Service struct {
	db          *gorm.DB
	ledger      *ledger.Service
	audit       domain.AuditLogger
	events      domain.EventPublisher
	holdingDays int
}

// NewService creates a new commission service
func NewService(db *gorm.DB, ledgerSvc *ledger.Service, audit domain.AuditLogger, events domain.EventPublisher, holdingDays int) *Service {
	return &Service{db: db, ledger: ledgerSvc, audit: audit, events: events, holdingDays: holdingDays}
}

// Accrue records a commission for a referred order. Idempotent per orderRef:
// accruing the same order twice returns the existing commission.
func (s *Service) Accrue(ctx context.Context, affiliateID uint, orderRef string, orderAmount, ratePercent int64) (*models.Commission, error) {
	orderRef = strings.TrimSpace(orderRef)
	if orderRef == "" {
		return nil, domain.NewValidationError("order reference is required")
	}
	if orderAmount <= 0 {
		return nil, domain.NewValidationError("order amount must be positive")
	}
	if ratePercent <= 0 || ratePercent > 100 {
		return nil, domain.NewValidationError("commission rate must be between 1 and 100 percent")
	}

	var existing models.Commission
	err := s.db.WithContext(ctx).Where("order_ref = ?", orderRef).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewInternalError(err)
	}

	commission := &models.Commission{
		AffiliateID: affiliateID,
		OrderRef:    orderRef,
		OrderAmount: orderAmount,
		RatePercent: ratePercent,
		Amount:      models.CommissionAmount(orderAmount, ratePercent),
		Status:      models.CommissionPending,
	}
	if err := s.db.WithContext(ctx).Create(commission).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to create commission: %w", err))
	}

	return commission, nil
}

// Mature converts pending commissions older than the holding period into
// ledger credits. Returns how many commissions were credited. Safe to re-run:
// a commission is only credited once.
func (s *Service) Mature(ctx context.Context, asOf time.Time) (int, error) {
	cutoff := asOf.AddDate(0, 0, -s.holdingDays)

	var due []models.Commission
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at <= ?", models.CommissionPending, cutoff).
		Order("created_at asc").
		Find(&due).Error
	if err != nil {
		return 0, domain.NewInternalError(err)
	}

	credited := 0
	for i := range due {
		entry, err := s.matureOne(ctx, &due[i])
		if err != nil {
			return credited, err
		}
		if entry == nil {
			continue // already credited or voided by a concurrent run
		}
		credited++

		c := &due[i]
		if s.audit != nil {
			_ = s.audit.LogCreditApplied(ctx, c.AffiliateID, entry.ID, c.Amount, entry.Note, SystemActor)
		}
		if s.events != nil {
			s.events.Publish(ctx, "credit.applied", map[string]interface{}{
				"affiliate_id": c.AffiliateID,
				"entry_id":     entry.ID,
				"amount":       c.Amount,
				"actor":        SystemActor,
			})
		}
	}

	return credited, nil
}

// matureOne credits a single commission and flips it to credited in one
// transaction, so a crash between the two can never leave a credited ledger
// entry with the commission still pending (and re-creditable). The status is
// re-checked inside the transaction.
func (s *Service) matureOne(ctx context.Context, c *models.Commission) (*models.LedgerEntry, error) {
	unlock := s.ledger.LockAffiliate(c.AffiliateID)
	defer unlock()

	var entry *models.LedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Commission
		if err := tx.First(&current, c.ID).Error; err != nil {
			return domain.NewInternalError(err)
		}
		if current.Status != models.CommissionPending {
			return nil
		}

		note := fmt.Sprintf("referral commission for order %s (%d%% of Rp %d)", current.OrderRef, current.RatePercent, current.OrderAmount)
		var err error
		entry, err = s.ledger.CreditTx(tx, current.AffiliateID, current.Amount, note, SystemActor)
		if err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":     models.CommissionCredited,
			"matured_at": &now,
		}
		if err := tx.Model(&current).Updates(updates).Error; err != nil {
			return domain.NewInternalError(fmt.Errorf("failed to mark commission credited: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Void cancels a pending commission when the underlying order is cancelled or
// refunded. No ledger effect; a credited commission can no longer be voided
// (the correction is a compensating ledger entry instead).
func (s *Service) Void(ctx context.Context, orderRef, reason string) (*models.Commission, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("a void reason is required")
	}

	var commission models.Commission
	err := s.db.WithContext(ctx).Where("order_ref = ?", orderRef).First(&commission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("commission")
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	if commission.Status != models.CommissionPending {
		return nil, domain.NewInvalidStateError(fmt.Sprintf(
			"commission is %s and cannot be voided", commission.Status))
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":        models.CommissionVoided,
		"voided_at":     &now,
		"voided_reason": reason,
	}
	if err := s.db.WithContext(ctx).Model(&commission).Updates(updates).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to void commission: %w", err))
	}

	return &commission, nil
}

// ListByAffiliate returns an affiliate's commissions, newest first
func (s *Service) ListByAffiliate(ctx context.Context, affiliateID uint, page, limit int) ([]models.Commission, int64, error) {
	page, limit = models.NormalizePage(page, limit)

	base := s.db.WithContext(ctx).Model(&models.Commission{}).
		Where("affiliate_id = ?", affiliateID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, domain.NewInternalError(err)
	}

	var commissions []models.Commission
	err := base.Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&commissions).Error
	if err != nil {
		return nil, 0, domain.NewInternalError(err)
	}

	return commissions, total, nil
}
