package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RegisterAffiliateRequest creates a new affiliate record
type RegisterAffiliateRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

// BankDetailsRequest submits the bank account and KTP identity claim
type BankDetailsRequest struct {
	BankName      string `json:"bank_name" validate:"required,max=100"`
	AccountNumber string `json:"account_number" validate:"required,max=50"`
	AccountHolder string `json:"account_holder" validate:"required,max=200"`
	KTPName       string `json:"ktp_name" validate:"required,max=200"`
	KTPNumber     string `json:"ktp_number" validate:"required,len=16,numeric"`
	KTPPhotoRef   string `json:"ktp_photo_ref" validate:"required,max=255"`
}

// ReviewVerificationRequest resolves a pending bank/KTP verification
type ReviewVerificationRequest struct {
	Decision     string `json:"decision" validate:"required,oneof=approve reject"`
	ReviewerNote string `json:"reviewer_note" validate:"max=500"`
}

// CreditRequest applies a manual commission credit
type CreditRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Note   string `json:"note" validate:"required,max=500"`
}

// RequestPayoutRequest initiates a withdrawal
type RequestPayoutRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// SettlePayoutRequest marks a payout as paid with external transfer proof
type SettlePayoutRequest struct {
	TransactionRef string `json:"transaction_ref" validate:"required,max=100"`
	// Override must be set (with a note) to settle despite a name mismatch
	Override     bool   `json:"override"`
	OverrideNote string `json:"override_note" validate:"max=500"`
}

// RejectPayoutRequest rejects a pending payout
type RejectPayoutRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// BalanceResponse returns the current withdrawable balance
type BalanceResponse struct {
	AffiliateID uint  `json:"affiliate_id"`
	Balance     int64 `json:"balance"`
}

// VerificationCheckResponse surfaces the advisory name-match signal
type VerificationCheckResponse struct {
	AffiliateID   uint            `json:"affiliate_id"`
	KTPName       string          `json:"ktp_name"`
	AccountHolder string          `json:"account_holder"`
	Result        NameCheckResult `json:"result"`
}

// LedgerHistoryResponse is a cursor-paginated slice of ledger entries,
// newest first. Resume by passing NextCursor back as the cursor.
type LedgerHistoryResponse struct {
	Data       []LedgerEntry `json:"data"`
	NextCursor uint          `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

// PayoutListResponse is a paginated list of payout requests
type PayoutListResponse struct {
	Data       []PayoutRequest `json:"data"`
	Pagination PaginationInfo  `json:"pagination"`
}

// AffiliateListResponse is a paginated list of affiliates
type AffiliateListResponse struct {
	Data       []Affiliate    `json:"data"`
	Pagination PaginationInfo `json:"pagination"`
}

// PaginationInfo contains pagination metadata
type PaginationInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPaginationInfo builds pagination metadata for a page of results
func NewPaginationInfo(page, limit int, total int64) PaginationInfo {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return PaginationInfo{
		Page:       page,
		Limit:      limit,
		Total:      int(total),
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// NormalizePage clamps page and limit to sane bounds
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// DashboardStats aggregates the read-side counters the admin dashboard shows
type DashboardStats struct {
	PayoutCounts       map[PayoutStatus]int64       `json:"payout_counts"`
	PayoutAmounts      map[PayoutStatus]int64       `json:"payout_amounts"`
	VerificationCounts map[VerificationStatus]int64 `json:"verification_counts"`
	OutstandingBalance int64                        `json:"outstanding_balance"`
	TotalPaidOut       int64                        `json:"total_paid_out"`
}
