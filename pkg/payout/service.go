package payout

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
	"github.com/qutab/affiliate-ledger/pkg/registry"
)

// Service owns the payout request state machine. All transitions are
// validated here and nowhere else:
//
//	pending -> paid      (settle, debits the ledger)
//	pending -> rejected  (reject, no ledger effect)
//
// paid and rejected are terminal; any operation on a terminal request fails
// with an invalid state error rather than silently succeeding.
type Service struct {
	db       *gorm.DB
	ledger   *ledger.Service
	registry *registry.Service
	audit    domain.AuditLogger
	events   domain.EventPublisher

	minimumAmount int64
}

// NewService creates a new payout service
func NewService(db *gorm.DB, ledgerSvc *ledger.Service, registrySvc *registry.Service, audit domain.AuditLogger, events domain.EventPublisher, minimumAmount int64) *Service {
	return &Service{
		db:            db,
		ledger:        ledgerSvc,
		registry:      registrySvc,
		audit:         audit,
		events:        events,
		minimumAmount: minimumAmount,
	}
}

// Request creates a payout request in pending. The balance check here is
// advisory (the authoritative check happens at settlement), but a request
// that already exceeds the withdrawable balance is rejected up front.
// Withdrawable = current balance minus the sum of other pending requests.
func (s *Service) Request(ctx context.Context, affiliateID uint, amount int64) (*models.PayoutRequest, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("payout amount must be positive")
	}
	if amount < s.minimumAmount {
		return nil, domain.NewValidationError(fmt.Sprintf("minimum payout is Rp %d", s.minimumAmount))
	}

	affiliate, err := s.registry.Get(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	if affiliate.VerificationStatus != models.VerificationVerified {
		return nil, domain.NewInvalidStateError("bank details must be verified before requesting a payout")
	}

	unlock := s.ledger.LockAffiliate(affiliateID)
	defer unlock()

	var request *models.PayoutRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Affiliate
		if err := tx.First(&current, affiliateID).Error; err != nil {
			return domain.NewInternalError(err)
		}
		withdrawable, err := s.withdrawableTx(tx, affiliateID, current.BalanceCached)
		if err != nil {
			return err
		}
		if amount > withdrawable {
			return domain.NewInsufficientBalanceError(withdrawable, amount)
		}

		request = &models.PayoutRequest{
			AffiliateID:           affiliateID,
			Amount:                amount,
			Status:                models.PayoutPending,
			BankNameSnapshot:      affiliate.BankName,
			AccountNumberSnapshot: affiliate.AccountNumber,
			AccountHolderSnapshot: affiliate.AccountHolder,
		}
		if err := tx.Create(request).Error; err != nil {
			return domain.NewInternalError(fmt.Errorf("failed to create payout request: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.LogPayoutRequested(ctx, affiliateID, request.ID, amount)
	}

	return request, nil
}

// Settle marks a pending request as paid. The caller supplies the external
// bank transfer reference as proof; the balance is re-validated
// authoritatively and the ledger debit and the status flip commit atomically.
// The name-check result observed at this moment is stored on the request for
// the audit trail.
func (s *Service) Settle(ctx context.Context, requestID uint, transactionRef, overrideNote, actor string) (*models.PayoutRequest, error) {
	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return nil, domain.NewValidationError("a transaction reference is required to settle")
	}
	if strings.TrimSpace(actor) == "" {
		return nil, domain.NewValidationError("actor is required")
	}

	// Load first to learn the affiliate, then take that affiliate's lock and
	// re-read inside the transaction.
	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	unlock := s.ledger.LockAffiliate(request.AffiliateID)
	defer unlock()

	var nameCheck models.NameCheckResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.PayoutRequest
		if err := tx.First(&current, requestID).Error; err != nil {
			return domain.NewInternalError(err)
		}
		if current.Status != models.PayoutPending {
			return domain.NewInvalidStateError(fmt.Sprintf(
				"payout request is %s and cannot be settled", current.Status))
		}

		var affiliate models.Affiliate
		if err := tx.First(&affiliate, current.AffiliateID).Error; err != nil {
			return domain.NewInternalError(err)
		}
		nameCheck = s.registry.CheckNames(&affiliate).Result

		// Authoritative balance re-check + debit, atomic with the flip. The
		// debit is keyed on this request's ID, so a reference already spent on
		// another request fails with a conflict instead of silently matching
		// that request's entry.
		if _, err := s.ledger.DebitTx(tx, current.AffiliateID, current.Amount, transactionRef, current.ID, actor); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":          models.PayoutPaid,
			"resolved_at":     &now,
			"resolved_by":     actor,
			"transaction_ref": transactionRef,
			"name_check":      nameCheck,
			"override_note":   strings.TrimSpace(overrideNote),
		}
		if err := tx.Model(&current).Updates(updates).Error; err != nil {
			return domain.NewInternalError(fmt.Errorf("failed to mark payout paid: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	settled, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.LogPayoutSettled(ctx, settled.AffiliateID, settled.ID, settled.Amount, transactionRef, string(nameCheck), actor)
	}
	if s.events != nil {
		s.events.Publish(ctx, "payout.settled", map[string]interface{}{
			"affiliate_id":    settled.AffiliateID,
			"request_id":      settled.ID,
			"amount":          settled.Amount,
			"transaction_ref": transactionRef,
			"actor":           actor,
		})
	}

	return settled, nil
}

// Reject moves a pending request to rejected with a mandatory reason.
// No ledger effect.
func (s *Service) Reject(ctx context.Context, requestID uint, reason, actor string) (*models.PayoutRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("a rejection reason is required")
	}
	if strings.TrimSpace(actor) == "" {
		return nil, domain.NewValidationError("actor is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.PayoutRequest
		err := tx.First(&current, requestID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewNotFoundError("payout request")
		}
		if err != nil {
			return domain.NewInternalError(err)
		}
		if current.Status != models.PayoutPending {
			return domain.NewInvalidStateError(fmt.Sprintf(
				"payout request is %s and cannot be rejected", current.Status))
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":           models.PayoutRejected,
			"resolved_at":      &now,
			"resolved_by":      actor,
			"rejection_reason": reason,
		}
		if err := tx.Model(&current).Updates(updates).Error; err != nil {
			return domain.NewInternalError(fmt.Errorf("failed to reject payout: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rejected, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.LogPayoutRejected(ctx, rejected.AffiliateID, rejected.ID, reason, actor)
	}
	if s.events != nil {
		s.events.Publish(ctx, "payout.rejected", map[string]interface{}{
			"affiliate_id": rejected.AffiliateID,
			"request_id":   rejected.ID,
			"reason":       reason,
			"actor":        actor,
		})
	}

	return rejected, nil
}

// Get returns a payout request by ID
func (s *Service) Get(ctx context.Context, requestID uint) (*models.PayoutRequest, error) {
	var request models.PayoutRequest
	err := s.db.WithContext(ctx).First(&request, requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("payout request")
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return &request, nil
}

// ListPending returns pending requests oldest first (the admin queue)
func (s *Service) ListPending(ctx context.Context, page, limit int) (*models.PayoutListResponse, error) {
	return s.list(ctx, s.db.WithContext(ctx).Model(&models.PayoutRequest{}).
		Where("status = ?", models.PayoutPending), "created_at asc", page, limit)
}

// ListByAffiliate returns all requests for one affiliate, newest first
func (s *Service) ListByAffiliate(ctx context.Context, affiliateID uint, page, limit int) (*models.PayoutListResponse, error) {
	return s.list(ctx, s.db.WithContext(ctx).Model(&models.PayoutRequest{}).
		Where("affiliate_id = ?", affiliateID), "created_at desc", page, limit)
}

func (s *Service) list(ctx context.Context, base *gorm.DB, order string, page, limit int) (*models.PayoutListResponse, error) {
	page, limit = models.NormalizePage(page, limit)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}

	var requests []models.PayoutRequest
	err := base.Order(order).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	return &models.PayoutListResponse{
		Data:       requests,
		Pagination: models.NewPaginationInfo(page, limit, total),
	}, nil
}

// withdrawableTx computes balance minus the sum of other pending payout
// amounts, inside the caller's transaction
func (s *Service) withdrawableTx(tx *gorm.DB, affiliateID uint, balance int64) (int64, error) {
	var pending int64
	err := tx.Model(&models.PayoutRequest{}).
		Where("affiliate_id = ? AND status = ?", affiliateID, models.PayoutPending).
		Select("COALESCE(SUM(amount), 0)").Scan(&pending).Error
	if err != nil {
		return 0, domain.NewInternalError(err)
	}
	return balance - pending, nil
}
