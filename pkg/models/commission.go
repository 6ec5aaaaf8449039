package models

import "time"

// CommissionStatus tracks a referral commission through its holding period
type CommissionStatus string

const (
	CommissionPending  CommissionStatus = "pending"  // order paid, in holding period
	CommissionCredited CommissionStatus = "credited" // matured into a ledger credit
	CommissionVoided   CommissionStatus = "voided"   // order cancelled/refunded
)

// Commission is a referral commission accrued from an order. It becomes
// withdrawable only when the holding period elapses and it is converted into
// a ledger credit by the maturation job.
type Commission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AffiliateID uint   `gorm:"not null;index" json:"affiliate_id"`
	OrderRef    string `gorm:"size:100;uniqueIndex;not null" json:"order_ref"`
	OrderAmount int64  `gorm:"not null" json:"order_amount"`
	RatePercent int64  `gorm:"not null" json:"rate_percent"` // e.g. 5 = 5%
	Amount      int64  `gorm:"not null" json:"amount"`

	Status      CommissionStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	MaturedAt   *time.Time       `json:"matured_at,omitempty"`
	VoidedAt    *time.Time       `json:"voided_at,omitempty"`
	VoidedReason string          `gorm:"size:255" json:"voided_reason,omitempty"`

	Affiliate Affiliate `gorm:"foreignKey:AffiliateID" json:"-"`
}

// TableName sets the table name for Commission
func (Commission) TableName() string {
	return "commissions"
}

// CommissionAmount calculates the commission in the smallest currency unit,
// truncating any fractional Rupiah
func CommissionAmount(orderAmount, ratePercent int64) int64 {
	return orderAmount * ratePercent / 100
}
