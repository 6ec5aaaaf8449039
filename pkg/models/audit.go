package models

import "time"

// Audit actions
const (
	AuditActionVerificationReviewed = "verification.reviewed"
	AuditActionCreditApplied        = "credit.applied"
	AuditActionPayoutRequested      = "payout.requested"
	AuditActionPayoutSettled        = "payout.settled"
	AuditActionPayoutRejected       = "payout.rejected"
	AuditActionAffiliateDeactivated = "affiliate.deactivated"
)

// Audit severities
const (
	AuditSeverityInfo     = "info"
	AuditSeverityWarning  = "warning"
	AuditSeverityCritical = "critical"
)

// AuditLog is an append-only record of an administrative or system action.
// Rows are never updated or deleted.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Actor        string         `gorm:"size:100;not null;index" json:"actor"`
	Action       string         `gorm:"size:50;not null;index" json:"action"`
	ResourceType string         `gorm:"size:50" json:"resource_type,omitempty"`
	ResourceID   string         `gorm:"size:50" json:"resource_id,omitempty"`
	Severity     string         `gorm:"size:20;not null;default:'info'" json:"severity"`
	Description  string         `gorm:"size:500" json:"description,omitempty"`
	Metadata     string         `gorm:"type:text" json:"metadata,omitempty"` // JSON-encoded map
}

// TableName sets the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}
