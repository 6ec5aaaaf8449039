package models

import (
	"time"

	"gorm.io/gorm"
)

// VerificationStatus is the review state of an affiliate's bank/KTP claim
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

// NameCheckResult is the outcome of comparing the KTP legal name against the
// bank account holder name. Advisory only; never auto-blocking.
type NameCheckResult string

const (
	NameCheckMatch    NameCheckResult = "match"
	NameCheckMismatch NameCheckResult = "mismatch"
)

// Affiliate is the canonical record of a commission earner, their KTP
// identity claim and bank account claim. Never physically deleted;
// deactivation is a gorm soft delete.
type Affiliate struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	AffiliateCode string `gorm:"size:10;uniqueIndex;not null" json:"affiliate_code"`
	Name          string `gorm:"size:200;not null" json:"name"`
	Email         string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone         string `gorm:"size:20" json:"phone"` // normalized E.164

	// Bank claim
	BankName      string `gorm:"size:100" json:"bank_name"`
	AccountNumber string `gorm:"size:50" json:"account_number"`
	AccountHolder string `gorm:"size:200" json:"account_holder"`

	// KTP identity claim
	KTPName     string `gorm:"size:200" json:"ktp_name"`
	KTPNumber   string `gorm:"size:16" json:"ktp_number"`
	KTPPhotoRef string `gorm:"size:255" json:"ktp_photo_ref"` // opaque asset-store reference

	// Verification review state
	VerificationStatus VerificationStatus `gorm:"size:20;not null;default:'unverified';index" json:"verification_status"`
	ReviewedAt         *time.Time         `json:"reviewed_at,omitempty"`
	ReviewedBy         string             `gorm:"size:100" json:"reviewed_by,omitempty"`
	ReviewerNote       string             `gorm:"size:500" json:"reviewer_note,omitempty"`

	// Running balance in the smallest currency unit (Rupiah). Updated in the
	// same transaction as every ledger entry insert; the entry log remains
	// the source of truth.
	BalanceCached int64 `gorm:"not null;default:0" json:"balance"`
}

// TableName sets the table name for Affiliate
func (Affiliate) TableName() string {
	return "affiliates"
}

// HasBankClaim reports whether a bank/KTP claim has been submitted
func (a *Affiliate) HasBankClaim() bool {
	return a.BankName != "" && a.AccountNumber != "" && a.AccountHolder != ""
}
