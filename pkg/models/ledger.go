package models

import "time"

// EntryKind distinguishes balance-increasing from balance-decreasing entries
type EntryKind string

const (
	EntryCredit EntryKind = "credit"
	EntryDebit  EntryKind = "debit"
)

// LedgerEntry is an immutable record of a single balance-affecting event.
// Entries are never edited or deleted after creation; corrections are made by
// inserting a compensating entry.
type LedgerEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	AffiliateID uint      `gorm:"not null;index;index:idx_entries_affiliate_ref,unique" json:"affiliate_id"`
	Kind        EntryKind `gorm:"size:10;not null" json:"kind"`
	Amount      int64     `gorm:"not null" json:"amount"` // always positive, smallest currency unit
	Actor       string    `gorm:"size:100;not null" json:"actor"`
	Note        string    `gorm:"size:500" json:"note"`

	// External transaction reference; required for debits and unique per
	// affiliate so the same bank transfer can never be applied twice.
	TransactionRef string `gorm:"size:100;index:idx_entries_affiliate_ref,unique,where:transaction_ref <> ''" json:"transaction_ref,omitempty"`

	// Set on debits written by the payout workflow and unique, so one payout
	// request corresponds to at most one debit no matter how settlement is
	// retried.
	PayoutRequestID uint `gorm:"index:idx_entries_payout_request,unique,where:payout_request_id > 0" json:"payout_request_id,omitempty"`

	Affiliate Affiliate `gorm:"foreignKey:AffiliateID" json:"-"`
}

// TableName sets the table name for LedgerEntry
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// Signed returns the entry amount with debits negated
func (e *LedgerEntry) Signed() int64 {
	if e.Kind == EntryDebit {
		return -e.Amount
	}
	return e.Amount
}
