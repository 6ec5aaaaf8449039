package models

import "time"

// PayoutStatus is the state of a withdrawal attempt.
//
// Transitions are validated in exactly one place (pkg/payout):
// pending -> paid, pending -> rejected. Both paid and rejected are terminal.
// Settlement goes directly from pending to paid; there is no separate
// approved state.
type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "pending"
	PayoutPaid     PayoutStatus = "paid"
	PayoutRejected PayoutStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions
func (s PayoutStatus) Terminal() bool {
	return s == PayoutPaid || s == PayoutRejected
}

// PayoutRequest is one withdrawal attempt by an affiliate
type PayoutRequest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AffiliateID uint         `gorm:"not null;index" json:"affiliate_id"`
	Amount      int64        `gorm:"not null" json:"amount"`
	Status      PayoutStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`

	// Bank details snapshot taken at request time, in case the affiliate
	// changes their claim before resolution
	BankNameSnapshot      string `gorm:"size:100;not null" json:"bank_name"`
	AccountNumberSnapshot string `gorm:"size:50;not null" json:"account_number"`
	AccountHolderSnapshot string `gorm:"size:200;not null" json:"account_holder"`

	// Resolution fields, set exactly once when leaving pending
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy      string          `gorm:"size:100" json:"resolved_by,omitempty"`
	TransactionRef  string          `gorm:"size:100" json:"transaction_ref,omitempty"` // required to reach paid
	RejectionReason string          `gorm:"size:500" json:"rejection_reason,omitempty"`
	NameCheck       NameCheckResult `gorm:"size:10" json:"name_check,omitempty"`  // check result observed at settlement
	OverrideNote    string          `gorm:"size:500" json:"override_note,omitempty"` // set when settled despite a name mismatch

	Affiliate Affiliate `gorm:"foreignKey:AffiliateID" json:"-"`
}

// TableName sets the table name for PayoutRequest
func (PayoutRequest) TableName() string {
	return "payout_requests"
}
