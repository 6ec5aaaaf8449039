package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qutab/affiliate-ledger/pkg/domain"
	"github.com/qutab/affiliate-ledger/pkg/models"
)

// Service is the append-only ledger of balance movements. Every operation
// that reads the balance and writes an entry based on that read runs as one
// serialized unit per affiliate, so two concurrent debits can never jointly
// overdraw an account.
type Service struct {
	db     *gorm.DB
	audit  domain.AuditLogger
	events domain.EventPublisher
	locks  sync.Map // affiliate ID -> *sync.Mutex
}

// NewService creates a new ledger service
func NewService(db *gorm.DB, audit domain.AuditLogger, events domain.EventPublisher) *Service {
	return &Service{db: db, audit: audit, events: events}
}

// LockAffiliate serializes balance-affecting operations for one affiliate.
// Returns the unlock func. The payout workflow takes this lock around its
// settle transaction so the balance re-check and the debit are one unit.
func (s *Service) LockAffiliate(affiliateID uint) func() {
	mu, _ := s.locks.LoadOrStore(affiliateID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Credit appends a credit entry and increases the cached balance in the same
// transaction. Credits represent manual commission grants and always require
// a human-readable note.
func (s *Service) Credit(ctx context.Context, affiliateID uint, amount int64, note, actor string) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("credit amount must be positive")
	}
	if strings.TrimSpace(note) == "" {
		return nil, domain.NewValidationError("a note is required for manual credits")
	}
	if strings.TrimSpace(actor) == "" {
		return nil, domain.NewValidationError("actor is required")
	}

	unlock := s.LockAffiliate(affiliateID)
	defer unlock()

	var entry *models.LedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.CreditTx(tx, affiliateID, amount, note, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.LogCreditApplied(ctx, affiliateID, entry.ID, amount, entry.Note, actor)
	}
	if s.events != nil {
		s.events.Publish(ctx, "credit.applied", map[string]interface{}{
			"affiliate_id": affiliateID,
			"entry_id":     entry.ID,
			"amount":       amount,
			"actor":        actor,
		})
	}

	return entry, nil
}

// CreditTx appends a credit entry inside an existing transaction, so callers
// such as commission maturation can make the credit and their own state change
// one atomic unit. Callers must hold the affiliate lock (LockAffiliate).
func (s *Service) CreditTx(tx *gorm.DB, affiliateID uint, amount int64, note, actor string) (*models.LedgerEntry, error) {
	affiliate, err := s.loadForUpdate(tx, affiliateID)
	if err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		AffiliateID: affiliateID,
		Kind:        models.EntryCredit,
		Amount:      amount,
		Actor:       actor,
		Note:        strings.TrimSpace(note),
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to write credit entry: %w", err))
	}

	if err := s.applyBalance(tx, affiliate, affiliate.BalanceCached+amount); err != nil {
		return nil, err
	}
	return entry, nil
}

// Debit appends a debit entry after an authoritative balance check. The check
// and the write are one atomic unit. Retries with the same transactionRef are
// idempotent: the existing entry is returned and the balance is untouched.
func (s *Service) Debit(ctx context.Context, affiliateID uint, amount int64, transactionRef, actor string) (*models.LedgerEntry, error) {
	transactionRef = strings.TrimSpace(transactionRef)
	if amount <= 0 {
		return nil, domain.NewValidationError("debit amount must be positive")
	}
	if transactionRef == "" {
		return nil, domain.NewValidationError("a transaction reference is required for debits")
	}
	if strings.TrimSpace(actor) == "" {
		return nil, domain.NewValidationError("actor is required")
	}

	unlock := s.LockAffiliate(affiliateID)
	defer unlock()

	var entry *models.LedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.DebitTx(tx, affiliateID, amount, transactionRef, 0, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// DebitTx performs the balance check and debit write inside an existing
// transaction. Callers must hold the affiliate lock (LockAffiliate).
//
// Idempotency is keyed on the payout request when one is given: a retried
// settlement of the same request returns its existing debit, while reusing a
// transaction reference for a different request is a conflict (one bank
// transfer cannot pay out two requests). Plain debits (payoutRequestID 0)
// stay idempotent per (affiliate, transactionRef).
func (s *Service) DebitTx(tx *gorm.DB, affiliateID uint, amount int64, transactionRef string, payoutRequestID uint, actor string) (*models.LedgerEntry, error) {
	if payoutRequestID > 0 {
		var existing models.LedgerEntry
		err := tx.Where("payout_request_id = ?", payoutRequestID).First(&existing).Error
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewInternalError(err)
		}
	}

	var existing models.LedgerEntry
	err := tx.Where("affiliate_id = ? AND transaction_ref = ?", affiliateID, transactionRef).
		First(&existing).Error
	if err == nil {
		if payoutRequestID > 0 {
			return nil, domain.NewConflictError(fmt.Sprintf(
				"transaction reference %s was already used by another ledger entry", transactionRef))
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewInternalError(err)
	}

	affiliate, err := s.loadForUpdate(tx, affiliateID)
	if err != nil {
		return nil, err
	}

	if affiliate.BalanceCached < amount {
		return nil, domain.NewInsufficientBalanceError(affiliate.BalanceCached, amount)
	}

	entry := &models.LedgerEntry{
		AffiliateID:     affiliateID,
		Kind:            models.EntryDebit,
		Amount:          amount,
		Actor:           actor,
		TransactionRef:  transactionRef,
		PayoutRequestID: payoutRequestID,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to write debit entry: %w", err))
	}

	if err := s.applyBalance(tx, affiliate, affiliate.BalanceCached-amount); err != nil {
		return nil, err
	}
	return entry, nil
}

// Balance returns the current balance from the cached counter
func (s *Service) Balance(ctx context.Context, affiliateID uint) (int64, error) {
	var affiliate models.Affiliate
	err := s.db.WithContext(ctx).Select("id", "balance_cached").First(&affiliate, affiliateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, domain.NewNotFoundError("affiliate")
	}
	if err != nil {
		return 0, domain.NewInternalError(err)
	}
	return affiliate.BalanceCached, nil
}

// Recompute sums the entry log directly: Σcredits − Σdebits. The cached
// counter must always equal this value; exposed for consistency checks.
func (s *Service) Recompute(ctx context.Context, affiliateID uint) (int64, error) {
	var credits, debits int64
	err := s.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("affiliate_id = ? AND kind = ?", affiliateID, models.EntryCredit).
		Select("COALESCE(SUM(amount), 0)").Scan(&credits).Error
	if err != nil {
		return 0, domain.NewInternalError(err)
	}
	err = s.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("affiliate_id = ? AND kind = ?", affiliateID, models.EntryDebit).
		Select("COALESCE(SUM(amount), 0)").Scan(&debits).Error
	if err != nil {
		return 0, domain.NewInternalError(err)
	}
	return credits - debits, nil
}

// History returns entries newest first. cursor is the last entry ID from the
// previous page (0 for the first page); the sequence is restartable from any
// returned NextCursor.
func (s *Service) History(ctx context.Context, affiliateID uint, cursor uint, limit int) (*models.LedgerHistoryResponse, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	q := s.db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		Order("id desc").
		Limit(limit + 1)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}

	var entries []models.LedgerEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}

	resp := &models.LedgerHistoryResponse{}
	if len(entries) > limit {
		entries = entries[:limit]
		resp.HasMore = true
		resp.NextCursor = entries[len(entries)-1].ID
	}
	resp.Data = entries
	return resp, nil
}

// loadForUpdate loads the affiliate row inside a transaction, taking a row
// lock on dialects that support FOR UPDATE (sqlite does not)
func (s *Service) loadForUpdate(tx *gorm.DB, affiliateID uint) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&affiliate, affiliateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("affiliate")
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return &affiliate, nil
}

func (s *Service) applyBalance(tx *gorm.DB, affiliate *models.Affiliate, newBalance int64) error {
	res := tx.Model(&models.Affiliate{}).
		Where("id = ?", affiliate.ID).
		Update("balance_cached", newBalance)
	if res.Error != nil {
		return domain.NewInternalError(fmt.Errorf("failed to update balance: %w", res.Error))
	}
	return nil
}
