package registry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/qutab/affiliate-ledger/pkg/domain"
	"github.com/qutab/affiliate-ledger/pkg/models"
	"github.com/qutab/affiliate-ledger/pkg/phone"
)

// Service is the canonical store of affiliate identity and bank claims and
// the single source of truth for the KTP name-matching check.
type Service struct {
	db     *gorm.DB
	audit  domain.AuditLogger
	events domain.EventPublisher
}

// NewService creates a new registry service
func NewService(db *gorm.DB, audit domain.AuditLogger, events domain.EventPublisher) *Service {
	return &Service{db: db, audit: audit, events: events}
}

const affiliateCodeLength = 7

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Register creates a new affiliate with a unique tracking code.
// Verification status starts at unverified until bank details are submitted.
func (s *Service) Register(ctx context.Context, name, email, phoneNumber string) (*models.Affiliate, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" {
		return nil, domain.NewValidationError("name is required")
	}
	if email == "" {
		return nil, domain.NewValidationError("email is required")
	}

	normalized, err := phone.Normalize(phoneNumber)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid phone number: %v", err))
	}

	var existing models.Affiliate
	err = s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, domain.NewConflictError("an affiliate with this email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewInternalError(err)
	}

	code, err := s.generateUniqueCode(ctx)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	affiliate := &models.Affiliate{
		AffiliateCode:      code,
		Name:               name,
		Email:              email,
		Phone:              normalized,
		VerificationStatus: models.VerificationUnverified,
	}

	if err := s.db.WithContext(ctx).Create(affiliate).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to create affiliate: %w", err))
	}

	return affiliate, nil
}

// BankDetailsInput carries the affiliate's bank account and KTP claim
type BankDetailsInput struct {
	BankName      string
	AccountNumber string
	AccountHolder string
	KTPName       string
	KTPNumber     string
	KTPPhotoRef   string
}

// SubmitBankDetails stores the bank/KTP claim and moves verification to
// pending. Allowed from unverified or rejected; a pending claim must be
// reviewed first, and a verified claim is not silently overwritten.
func (s *Service) SubmitBankDetails(ctx context.Context, affiliateID uint, input BankDetailsInput) (*models.Affiliate, error) {
	if err := validateBankDetails(input); err != nil {
		return nil, err
	}

	affiliate, err := s.Get(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	switch affiliate.VerificationStatus {
	case models.VerificationPending:
		return nil, domain.NewInvalidStateError("a verification review is already pending for this affiliate")
	case models.VerificationVerified:
		return nil, domain.NewInvalidStateError("bank details are already verified; contact support to change them")
	}

	updates := map[string]interface{}{
		"bank_name":           strings.TrimSpace(input.BankName),
		"account_number":      strings.TrimSpace(input.AccountNumber),
		"account_holder":      strings.TrimSpace(input.AccountHolder),
		"ktp_name":            strings.TrimSpace(input.KTPName),
		"ktp_number":          strings.TrimSpace(input.KTPNumber),
		"ktp_photo_ref":       strings.TrimSpace(input.KTPPhotoRef),
		"verification_status": models.VerificationPending,
		"reviewed_at":         nil,
		"reviewed_by":         "",
		"reviewer_note":       "",
	}

	if err := s.db.WithContext(ctx).Model(affiliate).Updates(updates).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to update bank details: %w", err))
	}

	return s.Get(ctx, affiliateID)
}

// ReviewVerification resolves a pending bank/KTP claim. Rejection requires a
// reviewer note. Only valid while the claim is pending.
func (s *Service) ReviewVerification(ctx context.Context, affiliateID uint, decision, reviewerNote, actor string) (*models.Affiliate, error) {
	if decision != "approve" && decision != "reject" {
		return nil, domain.NewValidationError("decision must be approve or reject")
	}
	reviewerNote = strings.TrimSpace(reviewerNote)
	if decision == "reject" && reviewerNote == "" {
		return nil, domain.NewValidationError("a reviewer note is required when rejecting")
	}

	affiliate, err := s.Get(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	if affiliate.VerificationStatus != models.VerificationPending {
		return nil, domain.NewInvalidStateError(fmt.Sprintf(
			"verification is %s, only pending claims can be reviewed", affiliate.VerificationStatus))
	}

	status := models.VerificationVerified
	if decision == "reject" {
		status = models.VerificationRejected
	}

	now := time.Now()
	updates := map[string]interface{}{
		"verification_status": status,
		"reviewed_at":         &now,
		"reviewed_by":         actor,
		"reviewer_note":       reviewerNote,
	}
	if err := s.db.WithContext(ctx).Model(affiliate).Updates(updates).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to record review: %w", err))
	}

	check := s.CheckNames(affiliate)
	if s.audit != nil {
		_ = s.audit.LogVerificationReviewed(ctx, affiliateID, decision, reviewerNote, string(check.Result), actor)
	}
	if s.events != nil {
		s.events.Publish(ctx, "verification.resolved", map[string]interface{}{
			"affiliate_id": affiliateID,
			"status":       string(status),
			"actor":        actor,
		})
	}

	return s.Get(ctx, affiliateID)
}

// VerificationCheck compares the affiliate's KTP legal name against the bank
// account holder name. Advisory only: a mismatch never blocks at this layer,
// but callers must surface a hard warning.
func (s *Service) VerificationCheck(ctx context.Context, affiliateID uint) (*models.VerificationCheckResponse, error) {
	affiliate, err := s.Get(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	return s.CheckNames(affiliate), nil
}

// CheckNames evaluates the name match on an already-loaded affiliate record
func (s *Service) CheckNames(affiliate *models.Affiliate) *models.VerificationCheckResponse {
	result := models.NameCheckMismatch
	if NormalizeName(affiliate.KTPName) == NormalizeName(affiliate.AccountHolder) {
		result = models.NameCheckMatch
	}
	return &models.VerificationCheckResponse{
		AffiliateID:   affiliate.ID,
		KTPName:       affiliate.KTPName,
		AccountHolder: affiliate.AccountHolder,
		Result:        result,
	}
}

// NormalizeName prepares a legal name for comparison: strip diacritics,
// case-fold and collapse internal whitespace. Bank records often drop accents
// that the KTP keeps ("José" vs "Jose"), and composed vs decomposed Unicode
// forms of the same accented name must compare equal.
func NormalizeName(name string) string {
	decomposed := norm.NFD.String(name)
	stripped := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, decomposed)
	name = norm.NFC.String(stripped)
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Get returns an affiliate by ID
func (s *Service) Get(ctx context.Context, affiliateID uint) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := s.db.WithContext(ctx).First(&affiliate, affiliateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("affiliate")
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return &affiliate, nil
}

// GetByCode returns an affiliate by its tracking code
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := s.db.WithContext(ctx).Where("affiliate_code = ?", code).First(&affiliate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("affiliate")
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return &affiliate, nil
}

// ListPendingVerifications returns affiliates awaiting bank/KTP review,
// oldest submission first
func (s *Service) ListPendingVerifications(ctx context.Context, page, limit int) (*models.AffiliateListResponse, error) {
	page, limit = models.NormalizePage(page, limit)

	var total int64
	base := s.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("verification_status = ?", models.VerificationPending)
	if err := base.Count(&total).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}

	var affiliates []models.Affiliate
	err := base.Order("updated_at asc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&affiliates).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	return &models.AffiliateListResponse{
		Data:       affiliates,
		Pagination: models.NewPaginationInfo(page, limit, total),
	}, nil
}

// Deactivate soft-deletes an affiliate. The record and its ledger survive;
// the affiliate simply stops resolving in queries.
func (s *Service) Deactivate(ctx context.Context, affiliateID uint, actor string) error {
	affiliate, err := s.Get(ctx, affiliateID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(affiliate).Error; err != nil {
		return domain.NewInternalError(fmt.Errorf("failed to deactivate affiliate: %w", err))
	}
	if s.audit != nil {
		_ = s.audit.LogAffiliateDeactivated(ctx, affiliateID, actor)
	}
	return nil
}

func validateBankDetails(input BankDetailsInput) error {
	if strings.TrimSpace(input.BankName) == "" {
		return domain.NewValidationError("bank name is required")
	}
	if strings.TrimSpace(input.AccountNumber) == "" {
		return domain.NewValidationError("account number is required")
	}
	if strings.TrimSpace(input.AccountHolder) == "" {
		return domain.NewValidationError("account holder name is required")
	}
	if strings.TrimSpace(input.KTPName) == "" {
		return domain.NewValidationError("KTP name is required")
	}
	ktpNumber := strings.TrimSpace(input.KTPNumber)
	if len(ktpNumber) != 16 || !isDigits(ktpNumber) {
		return domain.NewValidationError("KTP number must be 16 digits")
	}
	if strings.TrimSpace(input.KTPPhotoRef) == "" {
		return domain.NewValidationError("KTP photo reference is required")
	}
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// generateUniqueCode draws random codes until one is unused
func (s *Service) generateUniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code, err := randomCode(affiliateCodeLength)
		if err != nil {
			return "", err
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Affiliate{}).
			Where("affiliate_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique affiliate code")
}

func randomCode(length int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

