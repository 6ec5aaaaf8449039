package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/qutab/affiliate-ledger/pkg/models"
)

// Service handles audit logging
type Service struct {
	db *gorm.DB
}

// NewService creates a new audit service
func NewService(db *gorm.DB) *Service {
	return &Service{
		db: db,
	}
}

// Entry represents an audit log entry before persistence
type Entry struct {
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	Severity     string
	Description  string
	Metadata     map[string]interface{}
}

// Log creates a new audit log entry
func (s *Service) Log(ctx context.Context, entry Entry) error {
	// Create context with timeout
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	record := &models.AuditLog{
		Actor:        entry.Actor,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Severity:     entry.Severity,
		Description:  entry.Description,
	}
	if record.Severity == "" {
		record.Severity = models.AuditSeverityInfo
	}
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		record.Metadata = string(raw)
	}

	return s.db.WithContext(ctx).Create(record).Error
}

// LogVerificationReviewed logs a verification decision
func (s *Service) LogVerificationReviewed(ctx context.Context, affiliateID uint, decision, note, nameCheck, actor string) error {
	return s.Log(ctx, Entry{
		Actor:        actor,
		Action:       models.AuditActionVerificationReviewed,
		ResourceType: "affiliate",
		ResourceID:   fmt.Sprintf("%d", affiliateID),
		Severity:     models.AuditSeverityInfo,
		Description:  fmt.Sprintf("Verification %s", decision),
		Metadata: map[string]interface{}{
			"decision":   decision,
			"note":       note,
			"name_check": nameCheck,
		},
	})
}

// LogCreditApplied logs a commission credit
func (s *Service) LogCreditApplied(ctx context.Context, affiliateID uint, entryID uint, amount int64, note, actor string) error {
	return s.Log(ctx, Entry{
		Actor:        actor,
		Action:       models.AuditActionCreditApplied,
		ResourceType: "ledger_entry",
		ResourceID:   fmt.Sprintf("%d", entryID),
		Severity:     models.AuditSeverityInfo,
		Description:  fmt.Sprintf("Credited Rp %d to affiliate %d", amount, affiliateID),
		Metadata: map[string]interface{}{
			"affiliate_id": affiliateID,
			"amount":       amount,
			"note":         note,
		},
	})
}

// LogPayoutRequested logs a payout request submitted by an affiliate
func (s *Service) LogPayoutRequested(ctx context.Context, affiliateID uint, requestID uint, amount int64) error {
	return s.Log(ctx, Entry{
		Actor:        fmt.Sprintf("affiliate:%d", affiliateID),
		Action:       models.AuditActionPayoutRequested,
		ResourceType: "payout_request",
		ResourceID:   fmt.Sprintf("%d", requestID),
		Severity:     models.AuditSeverityInfo,
		Description:  fmt.Sprintf("Payout of Rp %d requested", amount),
		Metadata: map[string]interface{}{
			"affiliate_id": affiliateID,
			"amount":       amount,
		},
	})
}

// LogPayoutSettled logs a settled payout. Critical severity: money left the platform.
func (s *Service) LogPayoutSettled(ctx context.Context, affiliateID uint, requestID uint, amount int64, transactionRef, nameCheck, actor string) error {
	return s.Log(ctx, Entry{
		Actor:        actor,
		Action:       models.AuditActionPayoutSettled,
		ResourceType: "payout_request",
		ResourceID:   fmt.Sprintf("%d", requestID),
		Severity:     models.AuditSeverityCritical,
		Description:  fmt.Sprintf("Payout of Rp %d settled (%s)", amount, transactionRef),
		Metadata: map[string]interface{}{
			"affiliate_id":    affiliateID,
			"amount":          amount,
			"transaction_ref": transactionRef,
			"name_check":      nameCheck,
		},
	})
}

// LogPayoutRejected logs a rejected payout
func (s *Service) LogPayoutRejected(ctx context.Context, affiliateID uint, requestID uint, reason, actor string) error {
	return s.Log(ctx, Entry{
		Actor:        actor,
		Action:       models.AuditActionPayoutRejected,
		ResourceType: "payout_request",
		ResourceID:   fmt.Sprintf("%d", requestID),
		Severity:     models.AuditSeverityWarning,
		Description:  "Payout rejected",
		Metadata: map[string]interface{}{
			"affiliate_id": affiliateID,
			"reason":       reason,
		},
	})
}

// LogAffiliateDeactivated logs an affiliate deactivation
func (s *Service) LogAffiliateDeactivated(ctx context.Context, affiliateID uint, actor string) error {
	return s.Log(ctx, Entry{
		Actor:        actor,
		Action:       models.AuditActionAffiliateDeactivated,
		ResourceType: "affiliate",
		ResourceID:   fmt.Sprintf("%d", affiliateID),
		Severity:     models.AuditSeverityWarning,
		Description:  fmt.Sprintf("Affiliate %d deactivated", affiliateID),
	})
}

// GetRecentLogs returns the most recent audit logs
func (s *Service) GetRecentLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// GetLogsForResource returns audit logs for a specific resource
func (s *Service) GetLogsForResource(ctx context.Context, resourceType, resourceID string, limit int) ([]models.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at desc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// GetCriticalLogs returns critical severity logs
func (s *Service) GetCriticalLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("severity = ?", models.AuditSeverityCritical).
		Order("created_at desc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
